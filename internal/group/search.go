package group

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nexusmmo/core/internal/bus"
	syncmgr "github.com/nexusmmo/core/internal/sync"
	"github.com/nexusmmo/core/internal/wire"
)

// SearchEntry is a published listing (party/clan recruitment, trade board,
// and similar match-making-by-search use cases) with an optional wall-clock
// expiration and an optional parent for cascading removal (spec §4.3
// SearchEntry, §4.7 "Expiration").
type SearchEntry struct {
	EntryID        int32
	ParentEntryID  int32
	SourceCID      int32
	Type           int32
	ExpirationTime time.Time // zero means no expiration
	LastAction     time.Time
	Payload        []byte
}

var ErrSearchEntryNotFound = errors.New("search entry not found")

const searchEntryTypeName = "SearchEntry"

// SearchManager tracks published search entries, globally monotonic per
// World (spec §4.3 "Entry-ids are globally monotonically increasing").
type SearchManager struct {
	mu      sync.Mutex
	entries map[int32]*SearchEntry
	nextID  atomic.Int32

	timers *bus.TimerManager
	sync   *syncmgr.Manager
}

// NewSearchManager builds an empty search-entry registry.
func NewSearchManager(timers *bus.TimerManager, syncMgr *syncmgr.Manager) *SearchManager {
	m := &SearchManager{
		entries: make(map[int32]*SearchEntry),
		timers:  timers,
		sync:    syncMgr,
	}
	m.registerSyncType()
	return m
}

func (m *SearchManager) registerSyncType() {
	if m.sync == nil {
		return
	}
	_ = m.sync.RegisterType(&syncmgr.TypeConfig{
		Name:   searchEntryTypeName,
		Encode: encodeSearchEntry,
		Decode: decodeSearchEntry,
		// Cascade removal (spec §4.7 "removing a parent entry removes all
		// children in the same transaction") runs locally through Remove.
		// An update arriving from another server is not stored here (no
		// local entry, no expiration timer); a removal arriving from
		// another server forgets the local copy.
		UpdateHandler: func(_ *syncmgr.Manager, _ string, record any, isRemove bool, _ string) (syncmgr.Result, error) {
			if isRemove {
				if entry, ok := record.(*SearchEntry); ok {
					m.forgetLocal(entry.EntryID)
				}
			}
			return syncmgr.Updated, nil
		},
	})
}

func encodeSearchEntry(record any) ([]byte, error) {
	e := record.(*SearchEntry)
	p := wire.NewPacket()
	rec := &wire.SearchEntryRecord{
		EntryID: e.EntryID, ParentEntryID: e.ParentEntryID, SourceCID: e.SourceCID, Type: e.Type,
		ExpirationTime: unixOrZero(e.ExpirationTime), LastAction: unixOrZero(e.LastAction),
		Payload: e.Payload,
	}
	if err := rec.Encode(p); err != nil {
		return nil, err
	}
	return p.Bytes(), nil
}

func decodeSearchEntry(stream []byte) (any, error) {
	p := wire.NewPacketFromBytes(stream)
	rec, err := wire.DecodeSearchEntryRecord(p)
	if err != nil {
		return nil, err
	}
	return &SearchEntry{
		EntryID: rec.EntryID, ParentEntryID: rec.ParentEntryID, SourceCID: rec.SourceCID, Type: rec.Type,
		ExpirationTime: timeOrZero(rec.ExpirationTime), LastAction: timeOrZero(rec.LastAction),
		Payload: rec.Payload,
	}, nil
}

func unixOrZero(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	return uint32(t.Unix())
}

func timeOrZero(sec uint32) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0)
}

// Publish creates a new search entry. If expiration is non-zero, a timer is
// scheduled to remove it when it fires, re-validated against the entry's
// current expiration time at fire (spec §4.7 "covers replacement races").
func (m *SearchManager) Publish(sourceCID, parentEntryID, entryType int32, expiration time.Time, payload []byte) *SearchEntry {
	m.mu.Lock()
	m.nextID.Add(1)
	id := m.nextID.Load()
	entry := &SearchEntry{
		EntryID: id, ParentEntryID: parentEntryID, SourceCID: sourceCID, Type: entryType,
		ExpirationTime: expiration, LastAction: time.Now(), Payload: payload,
	}
	m.entries[id] = entry
	m.mu.Unlock()

	if m.sync != nil {
		m.sync.UpdateRecord(searchEntryTypeName, entryIDKey(id), entry)
	}
	m.scheduleExpiration(entry)
	return entry
}

// Replace updates an existing entry's expiration (spec §8 S6), rescheduling
// its expiration timer.
func (m *SearchManager) Replace(entryID int32, newExpiration time.Time, payload []byte) (*SearchEntry, error) {
	m.mu.Lock()
	entry, ok := m.entries[entryID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrSearchEntryNotFound
	}
	entry.ExpirationTime = newExpiration
	entry.LastAction = time.Now()
	entry.Payload = payload
	m.mu.Unlock()

	if m.sync != nil {
		m.sync.UpdateRecord(searchEntryTypeName, entryIDKey(entryID), entry)
	}
	m.scheduleExpiration(entry)
	return entry, nil
}

func (m *SearchManager) scheduleExpiration(entry *SearchEntry) {
	if entry.ExpirationTime.IsZero() {
		return
	}
	deadline := entry.ExpirationTime
	fire := func() { m.fireExpiration(entry.EntryID, deadline) }
	if m.timers == nil {
		fire()
		return
	}
	m.timers.Register(deadline, fire)
}

// fireExpiration re-reads the entry and removes it only if its expiration
// still matches the deadline this timer was scheduled for, so a later
// replacement's new timer is the one that actually deletes it.
func (m *SearchManager) fireExpiration(entryID int32, recordedDeadline time.Time) {
	m.mu.Lock()
	entry, ok := m.entries[entryID]
	if !ok || !entry.ExpirationTime.Equal(recordedDeadline) {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	_ = m.Remove(entryID)
}

// Remove deletes entryID and, recursively, every entry whose
// ParentEntryID chain leads back to it (spec §4.3 "removing a parent entry
// removes all children... in the same transaction").
func (m *SearchManager) Remove(entryID int32) error {
	m.mu.Lock()
	entry, ok := m.entries[entryID]
	if !ok {
		m.mu.Unlock()
		return ErrSearchEntryNotFound
	}
	removed := m.collectCascadeLocked(entryID)
	for _, e := range removed {
		delete(m.entries, e.EntryID)
	}
	m.mu.Unlock()

	if m.sync != nil {
		m.sync.RemoveRecord(searchEntryTypeName, entryIDKey(entryID), entry)
		for _, e := range removed {
			if e.EntryID == entryID {
				continue
			}
			m.sync.RemoveRecord(searchEntryTypeName, entryIDKey(e.EntryID), e)
		}
	}
	return nil
}

// collectCascadeLocked returns entryID's entry plus every descendant,
// breadth-first. Must be called with m.mu held.
func (m *SearchManager) collectCascadeLocked(entryID int32) []*SearchEntry {
	root, ok := m.entries[entryID]
	if !ok {
		return nil
	}
	out := []*SearchEntry{root}
	frontier := []int32{entryID}
	for len(frontier) > 0 {
		var next []int32
		for _, parent := range frontier {
			for id, e := range m.entries {
				if e.ParentEntryID == parent {
					out = append(out, e)
					next = append(next, id)
				}
			}
		}
		frontier = next
	}
	return out
}

func (m *SearchManager) forgetLocal(entryID int32) {
	m.mu.Lock()
	delete(m.entries, entryID)
	m.mu.Unlock()
}

// Get returns a search entry by id.
func (m *SearchManager) Get(entryID int32) (*SearchEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryID]
	return e, ok
}

func entryIDKey(id int32) string {
	return fmt.Sprintf("entry:%d", id)
}
