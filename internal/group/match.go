package group

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nexusmmo/core/internal/bus"
	syncmgr "github.com/nexusmmo/core/internal/sync"
	"github.com/nexusmmo/core/internal/wire"
)

// MatchEntry is one character or team queued for a PvP match (spec §4.3).
type MatchEntry struct {
	CID       int32
	TeamID    int32 // 0 means solo
	MatchType int32
	EntryTime time.Time
	ReadyTime time.Time
	MatchID   int32
}

// PvPMatch is a formed match, created only by World (spec §4.3).
type PvPMatch struct {
	ID        int32
	Type      int32
	ChannelID int8
	ReadyTime time.Time
	Blue      []int32
	Red       []int32
}

// MatchConfig holds the per-pvp-type thresholds read from
// config.World/MatchConfig (spec §6 "pvp_queue_wait", "pvp_ghosts[type]").
type MatchConfig struct {
	MinPlayers map[int32]int
	Ghosts     map[int32]int
	QueueWait  time.Duration
}

func (c MatchConfig) minPlayers(matchType int32) int {
	return c.MinPlayers[matchType]
}

func (c MatchConfig) ghosts(matchType int32) int {
	return c.Ghosts[matchType]
}

var (
	ErrAlreadyQueued  = errors.New("character is already queued for a match")
	ErrNotQueued      = errors.New("character is not queued for a match")
)

type readyKey struct {
	isTeam    bool
	matchType int32
}

// ChannelPicker decides which channel a newly formed match runs on. The
// original source picks the first channel iterator, which spec §9 flags as
// an ambiguous, unintentional detail; this core exposes it as a policy hook
// instead of guessing.
type ChannelPicker func(matchType int32) int8

const matchEntryTypeName = "MatchEntry"
const pvpMatchTypeName = "PvPMatch"

// MatchManager implements the match-queue pipeline (spec §4.10 "Match
// queue"): entries are tracked in memory and mirrored into the sync engine
// as MatchEntry records, and a timer-driven pipeline forms matches once a
// per-type readiness clock elapses with the threshold still met.
type MatchManager struct {
	mu sync.Mutex

	entries    map[int32]*MatchEntry // keyed by cid
	readyTimes map[readyKey]time.Time
	matches    map[int32]*PvPMatch

	nextMatchID atomic.Int32

	config   MatchConfig
	timers   *bus.TimerManager
	sync     *syncmgr.Manager
	channel  ChannelPicker
}

// NewMatchManager builds a match queue driven by timers and mirrored
// through sync. channel may be nil, in which case formed matches default to
// channel 0.
func NewMatchManager(config MatchConfig, timers *bus.TimerManager, syncMgr *syncmgr.Manager, channel ChannelPicker) *MatchManager {
	m := &MatchManager{
		entries:    make(map[int32]*MatchEntry),
		readyTimes: make(map[readyKey]time.Time),
		matches:    make(map[int32]*PvPMatch),
		config:     config,
		timers:     timers,
		sync:       syncMgr,
		channel:    channel,
	}
	m.registerSyncTypes()
	return m
}

func (m *MatchManager) registerSyncTypes() {
	if m.sync == nil {
		return
	}
	_ = m.sync.RegisterType(&syncmgr.TypeConfig{
		Name:     matchEntryTypeName,
		Encode:   encodeMatchEntry,
		Decode:   decodeMatchEntry,
		UpdateHandler: func(_ *syncmgr.Manager, _ string, _ any, _ bool, _ string) (syncmgr.Result, error) {
			return syncmgr.Handled, nil
		},
	})
	_ = m.sync.RegisterType(&syncmgr.TypeConfig{
		Name:     pvpMatchTypeName,
		Encode:   encodePvPMatch,
		Decode:   decodePvPMatch,
		UpdateHandler: func(_ *syncmgr.Manager, _ string, _ any, _ bool, _ string) (syncmgr.Result, error) {
			return syncmgr.Handled, nil
		},
	})
}

func encodeMatchEntry(record any) ([]byte, error) {
	e := record.(*MatchEntry)
	p := wire.NewPacket()
	rec := &wire.MatchEntryRecord{
		CID: e.CID, TeamID: e.TeamID, MatchType: e.MatchType,
		EntryTime: uint32(e.EntryTime.Unix()), ReadyTime: uint32(e.ReadyTime.Unix()),
		MatchID: e.MatchID,
	}
	if err := rec.Encode(p); err != nil {
		return nil, err
	}
	return p.Bytes(), nil
}

func decodeMatchEntry(stream []byte) (any, error) {
	p := wire.NewPacketFromBytes(stream)
	rec, err := wire.DecodeMatchEntryRecord(p)
	if err != nil {
		return nil, err
	}
	return &MatchEntry{
		CID: rec.CID, TeamID: rec.TeamID, MatchType: rec.MatchType,
		EntryTime: time.Unix(int64(rec.EntryTime), 0), ReadyTime: time.Unix(int64(rec.ReadyTime), 0),
		MatchID: rec.MatchID,
	}, nil
}

func encodePvPMatch(record any) ([]byte, error) {
	match := record.(*PvPMatch)
	p := wire.NewPacket()
	rec := &wire.PvPMatchRecord{
		ID: match.ID, Type: match.Type, ChannelID: match.ChannelID,
		ReadyTime: uint32(match.ReadyTime.Unix()), Blue: match.Blue, Red: match.Red,
	}
	if err := rec.Encode(p); err != nil {
		return nil, err
	}
	return p.Bytes(), nil
}

func decodePvPMatch(stream []byte) (any, error) {
	p := wire.NewPacketFromBytes(stream)
	rec, err := wire.DecodePvPMatchRecord(p)
	if err != nil {
		return nil, err
	}
	return &PvPMatch{
		ID: rec.ID, Type: rec.Type, ChannelID: rec.ChannelID,
		ReadyTime: time.Unix(int64(rec.ReadyTime), 0), Blue: rec.Blue, Red: rec.Red,
	}, nil
}

// AddEntry queues cid for matchType. teamID is 0 for a solo queue entry.
func (m *MatchManager) AddEntry(cid, teamID, matchType int32) error {
	m.mu.Lock()
	if _, queued := m.entries[cid]; queued {
		m.mu.Unlock()
		return ErrAlreadyQueued
	}
	entry := &MatchEntry{CID: cid, TeamID: teamID, MatchType: matchType, EntryTime: time.Now()}
	m.entries[cid] = entry
	m.mu.Unlock()

	if m.sync != nil {
		m.sync.UpdateRecord(matchEntryTypeName, entryKey(cid), entry)
	}
	m.determineMatch(teamID != 0, matchType)
	return nil
}

// RemoveEntry dequeues cid, used when a player leaves the queue. If the
// entry belongs to a team (TeamID != 0), every sibling entry sharing that
// team-id is removed alongside it (spec §4.7 "If it is a team MatchEntry,
// all sibling entries with the same team-id are also removed").
func (m *MatchManager) RemoveEntry(cid int32) error {
	m.mu.Lock()
	entry, ok := m.entries[cid]
	if !ok {
		m.mu.Unlock()
		return ErrNotQueued
	}
	delete(m.entries, cid)

	var siblings []*MatchEntry
	if entry.TeamID != 0 {
		for otherCID, other := range m.entries {
			if other.TeamID == entry.TeamID {
				siblings = append(siblings, other)
				delete(m.entries, otherCID)
			}
		}
	}
	m.mu.Unlock()

	if m.sync != nil {
		m.sync.RemoveRecord(matchEntryTypeName, entryKey(cid), entry)
		for _, sib := range siblings {
			m.sync.RemoveRecord(matchEntryTypeName, entryKey(sib.CID), sib)
		}
	}
	m.determineMatch(entry.TeamID != 0, entry.MatchType)
	return nil
}

func entryKey(cid int32) string {
	return fmt.Sprintf("cid:%d", cid)
}

// countViableLocked counts real entries plus configured ghosts for (isTeam,
// matchType). Must be called with m.mu held.
func (m *MatchManager) countViableLocked(isTeam bool, matchType int32) int {
	count := m.config.ghosts(matchType)
	for _, e := range m.entries {
		if e.MatchID != 0 {
			continue
		}
		if (e.TeamID != 0) == isTeam && e.MatchType == matchType {
			count++
		}
	}
	return count
}

func (m *MatchManager) collectEntriesLocked(isTeam bool, matchType int32) []*MatchEntry {
	var out []*MatchEntry
	for _, e := range m.entries {
		if e.MatchID != 0 {
			continue
		}
		if (e.TeamID != 0) == isTeam && e.MatchType == matchType {
			out = append(out, e)
		}
	}
	return out
}

// determineMatch implements spec §4.10 step 1: schedule a match-formation
// timer if the viable count crosses the threshold, or clear the stored
// ready-time if it has fallen back below it.
func (m *MatchManager) determineMatch(isTeam bool, matchType int32) {
	key := readyKey{isTeam, matchType}
	min := m.config.minPlayers(matchType)

	m.mu.Lock()
	count := m.countViableLocked(isTeam, matchType)
	_, hasReady := m.readyTimes[key]

	if count < min {
		if hasReady {
			delete(m.readyTimes, key)
		}
		m.mu.Unlock()
		return
	}
	if hasReady {
		m.mu.Unlock()
		return
	}
	deadline := time.Now().Add(m.config.QueueWait)
	m.readyTimes[key] = deadline
	m.mu.Unlock()

	if m.timers == nil {
		m.fireMatchTimer(isTeam, matchType, deadline)
		return
	}
	m.timers.Register(deadline, func() {
		m.fireMatchTimer(isTeam, matchType, deadline)
	})
}

// fireMatchTimer implements spec §4.10 step 2/3: recheck the threshold at
// fire time against the recorded deadline, forming a match only if the
// ready-time was never cleared or rescheduled in the meantime.
func (m *MatchManager) fireMatchTimer(isTeam bool, matchType int32, recordedDeadline time.Time) {
	key := readyKey{isTeam, matchType}

	m.mu.Lock()
	current, ok := m.readyTimes[key]
	if !ok || !current.Equal(recordedDeadline) {
		m.mu.Unlock()
		return
	}

	min := m.config.minPlayers(matchType)
	if m.countViableLocked(isTeam, matchType) < min {
		delete(m.readyTimes, key)
		m.mu.Unlock()
		return
	}

	entries := m.collectEntriesLocked(isTeam, matchType)
	delete(m.readyTimes, key)
	m.mu.Unlock()

	m.formMatch(matchType, entries)
}

// formMatch implements spec §4.10 step 2's match-creation: sort by
// entry-time, round down to an even team count, alternate blue/red, persist
// the match, and clear the participating entries.
func (m *MatchManager) formMatch(matchType int32, entries []*MatchEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].EntryTime.Before(entries[j].EntryTime) })

	teamCount := len(entries)
	if teamCount%2 != 0 {
		teamCount--
	}
	if teamCount < 2 {
		return
	}
	participants := entries[:teamCount]

	var blue, red []int32
	for i, e := range participants {
		if i%2 == 0 {
			blue = append(blue, e.CID)
		} else {
			red = append(red, e.CID)
		}
	}

	m.nextMatchID.Add(1)
	matchID := m.nextMatchID.Load()
	var channelID int8
	if m.channel != nil {
		channelID = m.channel(matchType)
	}
	match := &PvPMatch{ID: matchID, Type: matchType, ChannelID: channelID, ReadyTime: time.Now(), Blue: blue, Red: red}

	m.mu.Lock()
	m.matches[matchID] = match
	for _, e := range participants {
		delete(m.entries, e.CID)
	}
	m.mu.Unlock()

	if m.sync != nil {
		m.sync.UpdateRecord(pvpMatchTypeName, matchKey(matchID), match)
		for _, e := range participants {
			m.sync.RemoveRecord(matchEntryTypeName, entryKey(e.CID), e)
		}
	}
}

func matchKey(id int32) string {
	return fmt.Sprintf("match:%d", id)
}

// Match returns a formed match by id.
func (m *MatchManager) Match(id int32) (*PvPMatch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	return match, ok
}

// EntryOf returns cid's current queue entry, if any.
func (m *MatchManager) EntryOf(cid int32) (*MatchEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[cid]
	return e, ok
}
