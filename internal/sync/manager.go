// Package sync implements the cross-server data replication engine (spec
// §4.7 "DataSyncManager"): world-authoritative or server-owned records are
// queued for outgoing sync, batched per (connection, type) pair, and
// incoming batches are applied through per-type handler callbacks with
// per-record error isolation.
package sync

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/nexusmmo/core/internal/wire"
)

// Result is the outcome an UpdateHandler reports back to the manager,
// mirroring the teacher's SYNC_UPDATED/SYNC_HANDLED/SYNC_FAILED codes. A
// handler failure is reported as a Go error instead of a sentinel code.
type Result int

const (
	// Updated means the handler applied the change; on a ServerOwned type
	// the record is then queued for outbound sync to other connections.
	Updated Result = iota
	// Handled means the handler fully dealt with the change and it must
	// NOT be forwarded to any other connection.
	Handled
)

// Sink is anything a sync batch can be sent over; internal/netconn's
// Connection satisfies this without sync importing netconn.
type Sink interface {
	SendPacket(payload []byte, closeAfter bool) error
}

// UpdateHandler applies one incoming update or removal. key is the
// record's UUID for persistent types; for non-persistent ones it is empty,
// since their datastream carries no separate key. source identifies the connection the update
// arrived from ("" for a locally originated change).
type UpdateHandler func(mgr *Manager, key string, record any, isRemove bool, source string) (Result, error)

// CompleteRecord is one member of the batch passed to a SyncCompleteHandler.
type CompleteRecord struct {
	Key      string
	Record   any
	IsRemove bool
}

// SyncCompleteHandler runs once per type after every record in an incoming
// batch has been applied, useful for cascade effects (e.g. a SearchEntry
// removal cascading to its children).
type SyncCompleteHandler func(mgr *Manager, records []CompleteRecord, source string)

// TypeConfig registers one synchronized record type.
type TypeConfig struct {
	Name string

	// Persistent types travel as a UUID and are reloaded from storage by
	// Load; non-persistent types travel as an opaque datastream encoded
	// and decoded by Encode/Decode.
	Persistent bool

	// ServerOwned marks this process as the master for the type: updates
	// this process makes are authoritative and always flow outward,
	// whereas a subordinate process mostly relays what it is told.
	ServerOwned bool

	Load   func(uuid string) (any, error)
	Decode func(stream []byte) (any, error)
	Encode func(record any) ([]byte, error)

	// UpdateHandler is required for non-persistent types and optional for
	// persistent ones (a persistent type with no handler is simply
	// reloaded, and queued for outbound sync when the type is ServerOwned).
	UpdateHandler UpdateHandler

	// SyncCompleteHandler is optional.
	SyncCompleteHandler SyncCompleteHandler
}

type outboundEntry struct {
	key    string
	record any
}

// Manager is the per-process data sync engine. One Manager instance is
// shared by every worker that needs to queue or receive sync traffic;
// callers serialize access to it through whichever worker's dispatch loop
// owns sync traffic, but Manager is itself safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	types map[string]*TypeConfig

	connections map[Sink]map[string]bool

	outboundUpdates map[string]map[string]outboundEntry
	outboundRemoves map[string]map[string]outboundEntry
}

// NewManager builds an empty sync engine.
func NewManager() *Manager {
	return &Manager{
		types:           make(map[string]*TypeConfig),
		connections:     make(map[Sink]map[string]bool),
		outboundUpdates: make(map[string]map[string]outboundEntry),
		outboundRemoves: make(map[string]map[string]outboundEntry),
	}
}

// RegisterType adds or replaces a type's sync configuration.
func (m *Manager) RegisterType(cfg *TypeConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("sync type config needs a name")
	}
	if !cfg.Persistent {
		if cfg.Decode == nil || cfg.Encode == nil {
			return fmt.Errorf("non-persistent type %s needs Decode and Encode", cfg.Name)
		}
		if cfg.UpdateHandler == nil {
			return fmt.Errorf("non-persistent type %s needs an UpdateHandler", cfg.Name)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[cfg.Name] = cfg
	return nil
}

// RegisterConnection subscribes sink to the given types. Returns false if
// sink is already registered.
func (m *Manager) RegisterConnection(sink Sink, types []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.connections[sink]; exists {
		return false
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	m.connections[sink] = set
	return true
}

// RemoveConnection drops sink from the registry. Returns false if it was
// not registered.
func (m *Manager) RemoveConnection(sink Sink) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.connections[sink]; !exists {
		return false
	}
	delete(m.connections, sink)
	return true
}

// UpdateRecord queues record (identified by key, under typeName) for
// outbound sync. Returns true if it was queued.
func (m *Manager) UpdateRecord(typeName, key string, record any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.types[typeName]; !ok {
		return false
	}
	m.queueLocked(m.outboundUpdates, typeName, key, record)
	delete(m.outboundRemoves[typeName], key)
	return true
}

// RemoveRecord queues record's removal for outbound sync.
func (m *Manager) RemoveRecord(typeName, key string, record any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.types[typeName]; !ok {
		return false
	}
	m.queueLocked(m.outboundRemoves, typeName, key, record)
	delete(m.outboundUpdates[typeName], key)
	return true
}

func (m *Manager) queueLocked(dst map[string]map[string]outboundEntry, typeName, key string, record any) {
	bucket, ok := dst[typeName]
	if !ok {
		bucket = make(map[string]outboundEntry)
		dst[typeName] = bucket
	}
	bucket[key] = outboundEntry{key: key, record: record}
}

// SyncOutgoing builds and sends one batch per (connection, type) pair for
// every type with pending updates or removes, then clears the outbound
// queues. Per spec, a send failure on one connection does not stop the
// others; it is logged and that connection's batches for this round are
// dropped.
func (m *Manager) SyncOutgoing() {
	m.mu.Lock()
	if len(m.outboundUpdates) == 0 && len(m.outboundRemoves) == 0 {
		m.mu.Unlock()
		return
	}

	type job struct {
		sink    Sink
		typ     string
		updates []outboundEntry
		removes []outboundEntry
	}
	var jobs []job

	for sink, subscribed := range m.connections {
		for typeName := range subscribed {
			updates := valuesOf(m.outboundUpdates[typeName])
			removes := valuesOf(m.outboundRemoves[typeName])
			if len(updates) == 0 && len(removes) == 0 {
				continue
			}
			jobs = append(jobs, job{sink: sink, typ: typeName, updates: updates, removes: removes})
		}
	}
	m.outboundUpdates = make(map[string]map[string]outboundEntry)
	m.outboundRemoves = make(map[string]map[string]outboundEntry)
	types := m.types
	m.mu.Unlock()

	for _, j := range jobs {
		cfg := types[j.typ]
		if cfg == nil {
			continue
		}
		batch, err := buildBatch(cfg, j.typ, j.updates, j.removes)
		if err != nil {
			slog.Error("failed to build outgoing sync batch", "type", j.typ, "error", err)
			continue
		}
		payload, err := encodeDataSyncPacketFor(batch, cfg.Persistent)
		if err != nil {
			slog.Error("failed to encode outgoing sync batch", "type", j.typ, "error", err)
			continue
		}
		if err := j.sink.SendPacket(payload, false); err != nil {
			slog.Error("failed to send outgoing sync batch", "type", j.typ, "error", err)
		}
	}
}

func valuesOf(m map[string]outboundEntry) []outboundEntry {
	out := make([]outboundEntry, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func buildBatch(cfg *TypeConfig, typeName string, updates, removes []outboundEntry) (*wire.DataSyncBatch, error) {
	b := &wire.DataSyncBatch{Type: typeName}
	for _, u := range updates {
		rec, err := encodeRecord(cfg, u)
		if err != nil {
			return nil, err
		}
		b.Updates = append(b.Updates, rec)
	}
	for _, r := range removes {
		rec, err := encodeRecord(cfg, r)
		if err != nil {
			return nil, err
		}
		b.Removes = append(b.Removes, rec)
	}
	return b, nil
}

func encodeRecord(cfg *TypeConfig, e outboundEntry) (wire.SyncRecord, error) {
	if cfg.Persistent {
		return wire.SyncRecord{UUID: e.key}, nil
	}
	stream, err := cfg.Encode(e.record)
	if err != nil {
		return wire.SyncRecord{}, fmt.Errorf("encoding %s record %s: %w", cfg.Name, e.key, err)
	}
	return wire.SyncRecord{Stream: stream}, nil
}

// SyncIncoming applies a decoded batch from source. Each record is applied
// independently; a failure on one record is logged and does not stop the
// others. The type's SyncCompleteHandler, if any, runs once with every
// record that was successfully applied.
func (m *Manager) SyncIncoming(batch *wire.DataSyncBatch, source string) error {
	m.mu.Lock()
	cfg, ok := m.types[batch.Type]
	m.mu.Unlock()
	if !ok {
		slog.Warn("ignoring sync batch for unregistered type", "type", batch.Type)
		return nil
	}

	var completed []CompleteRecord
	completed = append(completed, m.applyRecords(cfg, batch.Updates, false, source)...)
	completed = append(completed, m.applyRecords(cfg, batch.Removes, true, source)...)

	if cfg.SyncCompleteHandler != nil && len(completed) > 0 {
		cfg.SyncCompleteHandler(m, completed, source)
	}
	return nil
}

func (m *Manager) applyRecords(cfg *TypeConfig, records []wire.SyncRecord, isRemove bool, source string) []CompleteRecord {
	var completed []CompleteRecord
	for _, r := range records {
		key, record, err := m.resolveRecord(cfg, r)
		if err != nil {
			slog.Error("failed to resolve incoming sync record", "type", cfg.Name, "error", err)
			continue
		}

		result := Updated
		if cfg.UpdateHandler != nil {
			result, err = cfg.UpdateHandler(m, key, record, isRemove, source)
			if err != nil {
				slog.Error("sync update handler failed", "type", cfg.Name, "key", key, "error", err)
				continue
			}
		}

		completed = append(completed, CompleteRecord{Key: key, Record: record, IsRemove: isRemove})

		if result == Updated && cfg.ServerOwned {
			if isRemove {
				m.RemoveRecord(cfg.Name, key, record)
			} else {
				m.UpdateRecord(cfg.Name, key, record)
			}
		}
	}
	return completed
}

func (m *Manager) resolveRecord(cfg *TypeConfig, r wire.SyncRecord) (string, any, error) {
	if cfg.Persistent {
		if r.UUID == "" {
			return "", nil, fmt.Errorf("empty uuid for persistent record")
		}
		if cfg.Load == nil {
			return r.UUID, nil, nil
		}
		record, err := cfg.Load(r.UUID)
		if err != nil {
			return "", nil, fmt.Errorf("loading %s: %w", r.UUID, err)
		}
		return r.UUID, record, nil
	}

	record, err := cfg.Decode(r.Stream)
	if err != nil {
		return "", nil, fmt.Errorf("decoding stream: %w", err)
	}
	return "", record, nil
}
