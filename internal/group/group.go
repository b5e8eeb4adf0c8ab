package group

import (
	"github.com/nexusmmo/core/internal/bus"
	"github.com/nexusmmo/core/internal/registry"
	syncmgr "github.com/nexusmmo/core/internal/sync"
	"github.com/nexusmmo/core/internal/wire"
)

// Coordinator wires the Party, Clan, Team, Match and SearchEntry managers
// together and into the CharacterRegistry's related-character fan-out
// (spec §4.9/§4.10). Building every subsystem through one constructor keeps
// the cross-cutting rules (a party join forces a team leave, team
// eligibility checks party membership) in one place instead of scattered
// import-cycle workarounds.
type Coordinator struct {
	Party  *PartyManager
	Clan   *ClanManager
	Team   *TeamManager
	Match  *MatchManager
	Search *SearchManager
}

// NewCoordinator builds every group subsystem and registers their
// RelatedResolver callbacks and cross-subsystem hooks. characters is the
// world process's CharacterRegistry; clanStore persists clan state;
// isOnline reports whether a cid is currently logged in; matchConfig and
// channelPicker configure the PvP match queue (channelPicker may be nil).
func NewCoordinator(
	characters *registry.CharacterRegistry,
	clanStore ClanStore,
	isOnline func(cid int32) bool,
	timers *bus.TimerManager,
	syncMgr *syncmgr.Manager,
	matchConfig MatchConfig,
	channelPicker ChannelPicker,
) *Coordinator {
	party := NewPartyManager()
	team := NewTeamManager(party.inPartyFunc())
	clan := NewClanManager(clanStore, isOnline)
	match := NewMatchManager(matchConfig, timers, syncMgr, channelPicker)
	search := NewSearchManager(timers, syncMgr)

	party.SetJoinHook(team.ForceRemove)

	if characters != nil {
		characters.SetRelatedResolver(wire.RelatedParty, party.RelatedMembers)
		characters.SetRelatedResolver(wire.RelatedClan, clan.RelatedMembers)
		characters.SetRelatedResolver(wire.RelatedTeam, team.RelatedMembers)
	}

	return &Coordinator{Party: party, Clan: clan, Team: team, Match: match, Search: search}
}

// inPartyFunc adapts PartyManager.PartyOf to the predicate TeamManager
// needs for its "not already in a party" join rule (spec §4.10 Team).
func (m *PartyManager) inPartyFunc() func(cid int32) bool {
	return func(cid int32) bool {
		_, ok := m.PartyOf(cid)
		return ok
	}
}
