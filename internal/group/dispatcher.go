package group

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nexusmmo/core/internal/wire"
)

// Dispatcher turns a wire.GroupRequest into a call against the right
// Party/Clan/Team/Match/Search manager and maps whatever the manager
// returns into a wire.GroupResponse a channel can relay straight back to
// the client (spec §4.10). It is the packet-dispatch entry point the
// Coordinator itself intentionally does not provide, since the
// Coordinator's job is wiring the managers together, not the wire format.
type Dispatcher struct {
	coordinator *Coordinator
}

// NewDispatcher wraps coordinator for packet dispatch.
func NewDispatcher(coordinator *Coordinator) *Dispatcher {
	return &Dispatcher{coordinator: coordinator}
}

// Handle executes req and always returns a response, never an error: every
// failure mode this package defines has a corresponding wire.FailureCode,
// and an unrecognized GroupOp is itself reported as FailureGenericError
// rather than propagated as a transport-level error.
func (d *Dispatcher) Handle(ctx context.Context, req *wire.GroupRequest) *wire.GroupResponse {
	var err error

	switch req.Op {
	case wire.GroupOpPartyInvite:
		err = d.coordinator.Party.Invite(req.ActorCID, req.TargetCID)
	case wire.GroupOpPartyAccept:
		_, err = d.coordinator.Party.AcceptInvite(req.ActorCID)
	case wire.GroupOpPartyKick:
		err = d.coordinator.Party.Kick(req.ActorCID, req.TargetCID)
	case wire.GroupOpPartyLeave:
		err = d.coordinator.Party.Leave(req.ActorCID)
	case wire.GroupOpPartyDisband:
		err = d.coordinator.Party.Disband(req.ActorCID)

	case wire.GroupOpClanForm:
		_, err = d.coordinator.Clan.Form(ctx, req.ActorCID, uuid.New().String(), req.Name, req.BaseZone)
	case wire.GroupOpClanInvite:
		err = d.clanInvite(ctx, req)
	case wire.GroupOpClanKick:
		err = d.coordinator.Clan.Kick(ctx, req.ActorCID, req.TargetCID)
	case wire.GroupOpClanLeave:
		err = d.coordinator.Clan.Leave(ctx, req.ActorCID)
	case wire.GroupOpClanDisband:
		_, err = d.coordinator.Clan.Disband(ctx, req.ActorCID)

	case wire.GroupOpTeamCreate:
		_, err = d.coordinator.Team.Create(req.ActorCID, Category(req.TeamCategory))
	case wire.GroupOpTeamJoin:
		err = d.coordinator.Team.Join(req.TeamID, req.ActorCID)
	case wire.GroupOpTeamLeave:
		err = d.coordinator.Team.Leave(req.ActorCID)

	case wire.GroupOpMatchJoin:
		err = d.coordinator.Match.AddEntry(req.ActorCID, req.TeamID, req.MatchType)
	case wire.GroupOpMatchLeave:
		err = d.coordinator.Match.RemoveEntry(req.ActorCID)

	case wire.GroupOpSearchPublish:
		d.coordinator.Search.Publish(req.ActorCID, req.SearchEntry, req.MatchType, time.Time{}, req.Payload)
	case wire.GroupOpSearchRemove:
		err = d.coordinator.Search.Remove(req.SearchEntry)

	default:
		return &wire.GroupResponse{Op: req.Op, Success: false, Failure: wire.FailureGenericError}
	}

	if err != nil {
		return &wire.GroupResponse{Op: req.Op, Success: false, Failure: failureCodeFor(err)}
	}
	return &wire.GroupResponse{Op: req.Op, Success: true}
}

// clanInvite resolves the inviting character's own clan before delegating,
// since ClanManager.Invite takes an explicit clan id rather than inferring
// it from the requester (an actor not currently in any clan can't invite).
func (d *Dispatcher) clanInvite(ctx context.Context, req *wire.GroupRequest) error {
	clan, ok := d.coordinator.Clan.ClanOf(req.ActorCID)
	if !ok {
		return ErrNotInClan
	}
	return d.coordinator.Clan.Invite(ctx, clan.ID(), req.TargetCID)
}

// failureCodeFor maps a domain sentinel error to the client-facing failure
// code spec §7 defines for it. Errors this package has no dedicated code
// for fall back to FailureGenericError.
func failureCodeFor(err error) wire.FailureCode {
	switch {
	case errors.Is(err, ErrPartyFull):
		return wire.FailurePartyFull
	case errors.Is(err, ErrAlreadyInParty):
		return wire.FailureInParty
	case errors.Is(err, ErrNotInParty), errors.Is(err, ErrNoPendingInvite):
		return wire.FailureNoParty
	case errors.Is(err, ErrNotPartyLeader):
		return wire.FailureLeaderRequired
	case errors.Is(err, ErrInviterBusy):
		return wire.FailureInvalidTarget

	case errors.Is(err, ErrAlreadyOnTeam):
		return wire.FailureOtherTeam
	case errors.Is(err, ErrNotOnTeam):
		return wire.FailureNoTeam
	case errors.Is(err, ErrInPartyForTeam):
		return wire.FailureInParty
	case errors.Is(err, ErrTeamFull):
		return wire.FailureTeamFull
	case errors.Is(err, ErrNotTeamLeader):
		return wire.FailureLeaderRequired

	case errors.Is(err, ErrClanNameTaken):
		return wire.FailureNameTaken
	case errors.Is(err, ErrClanFull):
		return wire.FailureClanFull
	case errors.Is(err, ErrAlreadyInClan):
		return wire.FailureAlreadyInClan
	case errors.Is(err, ErrNotInClan):
		return wire.FailureNotInClan
	case errors.Is(err, ErrTargetOffline):
		return wire.FailureInvalidOrOffline
	case errors.Is(err, ErrClanRankTooLow), errors.Is(err, ErrNotClanMaster), errors.Is(err, ErrCannotKickMaster):
		return wire.FailureLeaderRequired

	case errors.Is(err, ErrAlreadyQueued), errors.Is(err, ErrNotQueued):
		return wire.FailureInvalidTarget

	case errors.Is(err, ErrSearchEntryNotFound):
		return wire.FailureInvalidTarget

	default:
		return wire.FailureGenericError
	}
}
