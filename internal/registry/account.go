// Package registry implements the account and character presence
// tracking shared by the lobby and world processes (spec §4.8
// "AccountRegistry" and §4.9 "CharacterRegistry").
package registry

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// LoginState is an account's position in the lobby/channel handoff state
// machine.
type LoginState int

const (
	StateOffline LoginState = iota
	StateLobby
	StateLobbyToChannel
	StateChannel
	StateChannelToChannel
)

func (s LoginState) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateLobby:
		return "lobby"
	case StateLobbyToChannel:
		return "lobby-to-channel"
	case StateChannel:
		return "channel"
	case StateChannelToChannel:
		return "channel-to-channel"
	default:
		return "unknown"
	}
}

// dailyLoginPointAward is the flat login-point credit applied the first
// time an account completes a channel login on a given day (spec §4.8
// "proportional to level"). The original scales the award by character
// level; level is persistent game content this core does not model, so a
// flat award is used instead and documented as a deliberate simplification.
const dailyLoginPointAward = 100

// LoginEffects applies the persisted and cross-subsystem side effects of a
// character's first channel login of the day: crediting login points on
// the character row and folding them into its clan's level recompute
// (spec §4.8, §4.10). Defined here rather than satisfied directly by
// internal/group and internal/db so that package registry never needs to
// import internal/group; cmd/world supplies the concrete adapter.
type LoginEffects interface {
	AwardDailyLogin(ctx context.Context, characterUUID string, characterCID int32) error
}

// AccountEntry is one account's tracked login state. A session key is a
// one-time handoff token, not a long-lived credential, so it is generated
// with crypto/rand rather than the math/rand/v2 the teacher uses for its
// Lineage2 session key: an account entry's key gates which client may
// claim a channel session, and guessing it would let an attacker hijack a
// handoff in progress.
type AccountEntry struct {
	mu sync.Mutex

	Username   string
	State      LoginState
	SessionKey uint64

	LobbyConnID uint64
	ChannelID   int8
	WorldCID    int32 // -1 when no character is active

	pendingChannelID int8
	switchDeadline   time.Time

	// lastChannelLoginDay is the YYYY-MM-DD stamp of the last day
	// CompleteChannelSwitch credited this account's daily login award,
	// used to detect "first login of the day" (spec §4.8).
	lastChannelLoginDay string

	// webSessionID is the active web-game session token, empty when none
	// is open (spec §4.8 supplement "start/end web-game session").
	webSessionID string
}

func newSessionKey() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("generating session key: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func newWebSessionID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generating web session id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// Snapshot is a read-only copy of an AccountEntry's fields, safe to use
// without holding any lock.
type Snapshot struct {
	Username    string
	State       LoginState
	SessionKey  uint64
	LobbyConnID uint64
	ChannelID   int8
	WorldCID    int32
}

func (e *AccountEntry) snapshotLocked() Snapshot {
	return Snapshot{
		Username:    e.Username,
		State:       e.State,
		SessionKey:  e.SessionKey,
		LobbyConnID: e.LobbyConnID,
		ChannelID:   e.ChannelID,
		WorldCID:    e.WorldCID,
	}
}

// AccountRegistry tracks every account currently known to the process
// (lobby or world), keyed by username.
type AccountRegistry struct {
	mu  sync.Mutex
	byU map[string]*AccountEntry

	// switchTimeout bounds how long an account may sit in a transitional
	// state (lobby-to-channel / channel-to-channel) before
	// ExpireTimedOutSwitches reverts it.
	switchTimeout time.Duration

	// characters resolves a WorldCID to the character it belongs to, so
	// CompleteChannelSwitch can look up the uuid LoginEffects needs. Only
	// populated on World, where AccountRegistry and CharacterRegistry
	// both live.
	characters *CharacterRegistry
	effects    LoginEffects
}

// NewAccountRegistry builds an empty registry. switchTimeout is the
// channel-switch grace period (spec §4.8 "channel-switch timeout").
// characters and effects may be nil; both are only exercised by
// CompleteChannelSwitch's daily-login side effects, which World alone
// triggers.
func NewAccountRegistry(switchTimeout time.Duration, characters *CharacterRegistry, effects LoginEffects) *AccountRegistry {
	return &AccountRegistry{
		byU:           make(map[string]*AccountEntry),
		switchTimeout: switchTimeout,
		characters:    characters,
		effects:       effects,
	}
}

func (r *AccountRegistry) entryLocked(username string) *AccountEntry {
	e, ok := r.byU[username]
	if !ok {
		e = &AccountEntry{Username: username, State: StateOffline, WorldCID: -1}
		r.byU[username] = e
	}
	return e
}

// LobbyLogin transitions an account into StateLobby, regenerating its
// session key. It fails if the account is already logged in anywhere
// other than offline.
func (r *AccountRegistry) LobbyLogin(username string, connID uint64) (Snapshot, error) {
	r.mu.Lock()
	e := r.entryLocked(username)
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State != StateOffline {
		return Snapshot{}, fmt.Errorf("account %s already logged in (state %s)", username, e.State)
	}
	key, err := newSessionKey()
	if err != nil {
		return Snapshot{}, err
	}
	e.State = StateLobby
	e.SessionKey = key
	e.LobbyConnID = connID
	e.ChannelID = -1
	e.WorldCID = -1
	return e.snapshotLocked(), nil
}

// AssignChannel performs the initial lobby-to-channel handoff after a
// successful lobby_login, moving the account from StateLobby into
// StateLobbyToChannel. This is a distinct operation from
// RequestChannelSwitch below: switch_channel is only ever valid once a
// character is already established on a channel (spec §4.8), and the
// original engine rejects a switch_channel attempted straight from the
// lobby state rather than treating it as an initial assignment.
func (r *AccountRegistry) AssignChannel(username string, targetChannel int8) (Snapshot, error) {
	r.mu.Lock()
	e := r.entryLocked(username)
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State != StateLobby {
		return Snapshot{}, fmt.Errorf("account %s cannot be assigned a channel from state %s", username, e.State)
	}
	key, err := newSessionKey()
	if err != nil {
		return Snapshot{}, err
	}
	e.State = StateLobbyToChannel
	e.SessionKey = key
	e.pendingChannelID = targetChannel
	e.switchDeadline = time.Now().Add(r.switchTimeout)
	return e.snapshotLocked(), nil
}

// RequestChannelSwitch moves an account already established on a channel
// into its transitional state ahead of a handoff to a different channel,
// regenerating the session key the target channel must present back to
// confirm the handoff. switch_channel is only valid from StateChannel; the
// lobby-to-channel initial assignment is AssignChannel above.
func (r *AccountRegistry) RequestChannelSwitch(username string, targetChannel int8) (Snapshot, error) {
	r.mu.Lock()
	e := r.entryLocked(username)
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State != StateChannel {
		return Snapshot{}, fmt.Errorf("account %s cannot switch channels from state %s", username, e.State)
	}

	key, err := newSessionKey()
	if err != nil {
		return Snapshot{}, err
	}
	e.State = StateChannelToChannel
	e.SessionKey = key
	e.pendingChannelID = targetChannel
	e.switchDeadline = time.Now().Add(r.switchTimeout)
	return e.snapshotLocked(), nil
}

// CompleteChannelSwitch is called once the target channel confirms the
// account's session key, finishing the handoff. On the first completion of
// a given calendar day it also applies channel_login's documented side
// effects (spec §4.8): marking the account online, crediting the daily
// login-point award, and folding that award into the character's clan
// level. A LoginEffects failure is logged but does not fail the switch
// itself; the handoff has already happened from the client's perspective.
func (r *AccountRegistry) CompleteChannelSwitch(ctx context.Context, username string, sessionKey uint64) (Snapshot, error) {
	r.mu.Lock()
	e, ok := r.byU[username]
	r.mu.Unlock()
	if !ok {
		return Snapshot{}, fmt.Errorf("unknown account %s", username)
	}

	e.mu.Lock()
	if e.State != StateLobbyToChannel && e.State != StateChannelToChannel {
		e.mu.Unlock()
		return Snapshot{}, fmt.Errorf("account %s is not mid-switch (state %s)", username, e.State)
	}
	if e.SessionKey != sessionKey {
		e.mu.Unlock()
		return Snapshot{}, fmt.Errorf("session key mismatch for account %s", username)
	}
	e.State = StateChannel
	e.ChannelID = e.pendingChannelID
	e.switchDeadline = time.Time{}

	today := time.Now().UTC().Format("2006-01-02")
	firstLoginToday := e.lastChannelLoginDay != today
	if firstLoginToday {
		e.lastChannelLoginDay = today
	}
	worldCID := e.WorldCID
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	if firstLoginToday {
		r.applyDailyLoginEffects(ctx, username, worldCID)
	}
	return snapshot, nil
}

// applyDailyLoginEffects resolves worldCID to a character uuid and invokes
// LoginEffects.AwardDailyLogin. Demon-quest daily reset and partner-demon
// has-quest flags are also named among channel_login's side effects in the
// original engine, but demons are persistent game content this core does
// not model, so only the login-point award is implemented here.
func (r *AccountRegistry) applyDailyLoginEffects(ctx context.Context, username string, worldCID int32) {
	if r.effects == nil || r.characters == nil || worldCID <= 0 {
		return
	}
	entry, ok := r.characters.Lookup(worldCID)
	if !ok {
		return
	}
	if err := r.effects.AwardDailyLogin(ctx, entry.UUID, worldCID); err != nil {
		slog.Error("daily login award failed", "account", username, "character", entry.UUID, "error", err)
	}
}

// ExpireTimedOutSwitches reverts any account whose channel-switch deadline
// has passed back to its pre-switch state (lobby if it never held a prior
// channel, channel otherwise) and returns the usernames affected so the
// caller can kick the stranded client.
func (r *AccountRegistry) ExpireTimedOutSwitches(now time.Time) []string {
	r.mu.Lock()
	entries := make([]*AccountEntry, 0, len(r.byU))
	for _, e := range r.byU {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	var expired []string
	for _, e := range entries {
		e.mu.Lock()
		if (e.State == StateLobbyToChannel || e.State == StateChannelToChannel) &&
			!e.switchDeadline.IsZero() && now.After(e.switchDeadline) {
			if e.State == StateLobbyToChannel {
				e.State = StateLobby
			} else {
				e.State = StateChannel
			}
			e.switchDeadline = time.Time{}
			expired = append(expired, e.Username)
		}
		e.mu.Unlock()
	}
	return expired
}

// Logout moves an account back to StateOffline.
func (r *AccountRegistry) Logout(username string) {
	r.mu.Lock()
	e, ok := r.byU[username]
	r.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.State = StateOffline
	e.SessionKey = 0
	e.ChannelID = -1
	e.WorldCID = -1
	e.switchDeadline = time.Time{}
	e.mu.Unlock()
}

// LogoutUsersOnChannel force-logs-out every account currently attached to
// channelID, used when a channel process disconnects unexpectedly.
func (r *AccountRegistry) LogoutUsersOnChannel(channelID int8) []string {
	r.mu.Lock()
	entries := make([]*AccountEntry, 0)
	for _, e := range r.byU {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	var affected []string
	for _, e := range entries {
		e.mu.Lock()
		if e.ChannelID == channelID && e.State != StateOffline {
			e.State = StateOffline
			e.SessionKey = 0
			e.ChannelID = -1
			e.WorldCID = -1
			e.switchDeadline = time.Time{}
			affected = append(affected, e.Username)
		}
		e.mu.Unlock()
	}
	return affected
}

// Validate reports whether sessionKey matches the account's current
// session key and it is not offline. Used by a channel to authenticate an
// incoming client claiming a handed-off session.
func (r *AccountRegistry) Validate(username string, sessionKey uint64) bool {
	r.mu.Lock()
	e, ok := r.byU[username]
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.State != StateOffline && e.SessionKey == sessionKey
}

// Get returns a snapshot of the account's current state.
func (r *AccountRegistry) Get(username string) (Snapshot, bool) {
	r.mu.Lock()
	e, ok := r.byU[username]
	r.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(), true
}

// SetWorldCID records which character (by world-cid) is active on the
// account's current session, or -1 when none is.
func (r *AccountRegistry) SetWorldCID(username string, cid int32) error {
	r.mu.Lock()
	e, ok := r.byU[username]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown account %s", username)
	}
	e.mu.Lock()
	e.WorldCID = cid
	e.mu.Unlock()
	return nil
}

// StartWebGameSession opens a browser-side companion session for username,
// independent of its client login state (spec §4.8 supplement), returning
// the token a later EndWebGameSession call must present back. Fails if a
// web session is already open.
func (r *AccountRegistry) StartWebGameSession(username string) (string, error) {
	r.mu.Lock()
	e := r.entryLocked(username)
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.webSessionID != "" {
		return "", fmt.Errorf("account %s already has a web game session open", username)
	}
	id, err := newWebSessionID()
	if err != nil {
		return "", err
	}
	e.webSessionID = id
	return id, nil
}

// EndWebGameSession closes username's web-game session, failing if
// sessionID does not match the currently open one.
func (r *AccountRegistry) EndWebGameSession(username, sessionID string) error {
	r.mu.Lock()
	e, ok := r.byU[username]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown account %s", username)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.webSessionID == "" || e.webSessionID != sessionID {
		return fmt.Errorf("no matching web game session open for account %s", username)
	}
	e.webSessionID = ""
	return nil
}
