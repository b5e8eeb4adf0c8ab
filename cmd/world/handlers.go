package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nexusmmo/core/internal/db"
	"github.com/nexusmmo/core/internal/group"
	"github.com/nexusmmo/core/internal/netconn"
	"github.com/nexusmmo/core/internal/registry"
	syncmgr "github.com/nexusmmo/core/internal/sync"
	"github.com/nexusmmo/core/internal/wire"
)

// loginEffectsAdapter satisfies registry.LoginEffects by crediting a
// character's persisted login-point total and folding the same delta into
// its clan's in-memory standing, the two halves RecomputeLevel sums across
// members (spec §4.8, §4.10).
type loginEffectsAdapter struct {
	characterRepo *db.CharacterRepository
	clan          *group.ClanManager
}

func (a *loginEffectsAdapter) AwardDailyLogin(ctx context.Context, characterUUID string, characterCID int32) error {
	if err := a.characterRepo.AddLoginPoints(ctx, characterUUID, dailyLoginPointAward); err != nil {
		return fmt.Errorf("crediting login points: %w", err)
	}
	a.clan.AddMemberLoginPoints(characterCID, dailyLoginPointAward)
	if clan, ok := a.clan.ClanOf(characterCID); ok {
		a.clan.RecomputeLevel(clan.ID())
	}
	return nil
}

// dailyLoginPointAward is the flat login-point credit this adapter applies
// on a character's first channel login of a calendar day. See
// internal/registry/account.go's identical constant for why this replaces
// the original's level-proportional award.
const dailyLoginPointAward = 100

// handlers bundles every dependency World's packet handlers need to act on
// an incoming command, so cmd/world/main.go can register plain method
// values with netconn.PacketManager.Register.
type handlers struct {
	characters  *registry.CharacterRegistry
	accounts    *registry.AccountRegistry
	coordinator *group.Coordinator
	dispatcher  *group.Dispatcher
	syncMgr     *syncmgr.Manager
	directory   *netconn.ChannelDirectory
}

func sendReply(conn *netconn.Connection, code uint16, payload interface{ Encode(*wire.Packet) error }) error {
	p := wire.NewPacket()
	if err := p.WriteU16LE(code); err != nil {
		return err
	}
	if err := payload.Encode(p); err != nil {
		return err
	}
	return conn.SendPacket(p.Bytes(), false)
}

// handleChannelAnnounce records which channel id owns conn and subscribes
// it to the sync types channels relay (spec §4.4, §4.7).
func (h *handlers) handleChannelAnnounce(conn *netconn.Connection, args []byte) error {
	p := wire.NewPacketFromBytes(args)
	ann, err := wire.DecodeChannelAnnounce(p)
	if err != nil {
		return err
	}
	h.directory.Announce(ann.ChannelID, conn)
	h.syncMgr.RegisterConnection(conn, []string{"Account", "Character"})
	slog.Info("channel announced", "channel_id", ann.ChannelID, "conn", conn.ID())
	return nil
}

// handleDataSync applies an incoming sync batch from a channel.
func (h *handlers) handleDataSync(conn *netconn.Connection, args []byte) error {
	batch, err := h.syncMgr.DecodeIncoming(args)
	if err != nil {
		return fmt.Errorf("decoding data sync batch: %w", err)
	}
	return h.syncMgr.SyncIncoming(batch, conn.RemoteAddr())
}

// handleCharacterLogin applies a presence update and fans it out to the
// character's friends, party, clan and team (spec §4.9 "SendToRelated").
func (h *handlers) handleCharacterLogin(conn *netconn.Connection, args []byte) error {
	p := wire.NewPacketFromBytes(args)
	update, err := wire.DecodeCharacterLoginUpdate(p)
	if err != nil {
		return err
	}
	if update.Flags&wire.CLFlagChannel != 0 {
		if err := h.characters.SetChannel(update.WorldCID, update.ChannelID); err != nil {
			slog.Warn("character login update for unknown world-cid", "world_cid", update.WorldCID, "error", err)
		}
	}

	out := wire.NewPacket()
	if err := out.WriteU16LE(wire.PacketCharacterLogin); err != nil {
		return err
	}
	if err := update.Encode(out); err != nil {
		return err
	}

	mask := wire.RelatedFriends | wire.RelatedParty | wire.RelatedClan | wire.RelatedTeam
	return h.characters.SendToRelated(update.WorldCID, mask, out.Bytes(), h.sendToChannel)
}

func (h *handlers) sendToChannel(channelID int8, envelope []byte) error {
	return h.directory.Send(channelID, envelope)
}

// handleRelay forwards a relay envelope to its resolved targets. Only
// RelayModeCIDs is fully resolved here: a channel that already knows its
// own relay targets (party/clan/team broadcasts it assembled itself) sends
// them this way. The other modes are accepted by the wire format (spec §6)
// but World does not yet resolve Account/Character/Party/Clan/Team targets
// into cid lists on this path, so they are logged and dropped rather than
// silently misrouted.
func (h *handlers) handleRelay(conn *netconn.Connection, args []byte) error {
	p := wire.NewPacketFromBytes(args)
	envelope, err := wire.DecodeRelayEnvelope(p)
	if err != nil {
		return err
	}

	if envelope.Mode != wire.RelayModeCIDs {
		slog.Warn("relay mode not yet resolved by world, dropping", "mode", envelope.Mode, "source", envelope.SourceWorldCID)
		return nil
	}

	return h.characters.ForwardToCIDs(envelope.SourceWorldCID, envelope.TargetCIDs, envelope.Payload, h.sendToChannel)
}

// handleGroupRequest dispatches a forwarded Party/Clan/Team/Match/Search
// action and replies with its outcome on the same connection (spec §4.10).
func (h *handlers) handleGroupRequest(conn *netconn.Connection, args []byte) error {
	p := wire.NewPacketFromBytes(args)
	req, err := wire.DecodeGroupRequest(p)
	if err != nil {
		return err
	}
	resp := h.dispatcher.Handle(context.Background(), req)
	return sendReply(conn, wire.PacketGroupResponse, resp)
}

// handleAccountLobbyLogin receives Lobby's forward of a successful
// lobby_login, assigns the account's first channel and replies with the
// handoff grant (spec §4.8).
func (h *handlers) handleAccountLobbyLogin(conn *netconn.Connection, args []byte) error {
	p := wire.NewPacketFromBytes(args)
	req, err := wire.DecodeAccountUsername(p)
	if err != nil {
		return err
	}
	if _, err := h.accounts.LobbyLogin(req.Username, conn.ID()); err != nil {
		return sendReply(conn, wire.PacketAccountAck, &wire.AccountAck{Failure: wire.FailureGenericError})
	}
	assigned, err := h.accounts.AssignChannel(req.Username, h.pickChannel())
	if err != nil {
		return sendReply(conn, wire.PacketAccountAck, &wire.AccountAck{Failure: wire.FailureGenericError})
	}
	return sendReply(conn, wire.PacketAccountAssignChannel, &wire.AccountChannelGrant{
		Username:   req.Username,
		ChannelID:  assigned.ChannelID,
		SessionKey: assigned.SessionKey,
	})
}

// pickChannel is a placeholder channel-assignment policy until the world
// process keeps a load-aware registry of its connected channels; it always
// assigns channel 1, mirroring cmd/world/main.go's channelPicker stub for
// PvP match channel assignment.
func (h *handlers) pickChannel() int8 { return 1 }

// handleAccountSwitchChannel receives a channel's forward of a client's
// switch_channel request and replies with the new handoff grant.
func (h *handlers) handleAccountSwitchChannel(conn *netconn.Connection, args []byte) error {
	p := wire.NewPacketFromBytes(args)
	req, err := wire.DecodeAccountSwitchRequest(p)
	if err != nil {
		return err
	}
	switching, err := h.accounts.RequestChannelSwitch(req.Username, req.TargetChannelID)
	if err != nil {
		return sendReply(conn, wire.PacketAccountAck, &wire.AccountAck{Failure: wire.FailureGenericError})
	}
	return sendReply(conn, wire.PacketAccountSwitchChannel, &wire.AccountChannelGrant{
		Username:   req.Username,
		ChannelID:  switching.ChannelID,
		SessionKey: switching.SessionKey,
	})
}

// handleAccountCompleteSwitch receives a channel's confirmation that a
// client claimed a pending handoff, finishing the switch and triggering any
// first-login-of-the-day effects.
func (h *handlers) handleAccountCompleteSwitch(conn *netconn.Connection, args []byte) error {
	p := wire.NewPacketFromBytes(args)
	claim, err := wire.DecodeAccountSessionClaim(p)
	if err != nil {
		return err
	}
	if _, err := h.accounts.CompleteChannelSwitch(context.Background(), claim.Username, claim.SessionKey); err != nil {
		return sendReply(conn, wire.PacketAccountAck, &wire.AccountAck{Failure: wire.FailureGenericError})
	}
	return sendReply(conn, wire.PacketAccountAck, &wire.AccountAck{Success: true})
}

// handleAccountLogout receives a channel's forward of a client disconnect
// or explicit logout.
func (h *handlers) handleAccountLogout(conn *netconn.Connection, args []byte) error {
	p := wire.NewPacketFromBytes(args)
	req, err := wire.DecodeAccountUsername(p)
	if err != nil {
		return err
	}
	h.accounts.Logout(req.Username)
	return sendReply(conn, wire.PacketAccountAck, &wire.AccountAck{Success: true})
}

// handleWebGameSession starts or ends a browser-side companion session for
// an account, independent of its client login state.
func (h *handlers) handleWebGameSession(conn *netconn.Connection, args []byte) error {
	p := wire.NewPacketFromBytes(args)
	req, err := wire.DecodeWebGameSessionRequest(p)
	if err != nil {
		return err
	}

	if req.Start {
		id, err := h.accounts.StartWebGameSession(req.Username)
		if err != nil {
			return sendReply(conn, wire.PacketAccountAck, &wire.AccountAck{Failure: wire.FailureGenericError})
		}
		return sendReply(conn, wire.PacketAccountAck, &wire.AccountAck{Success: true, Detail: id})
	}

	if err := h.accounts.EndWebGameSession(req.Username, req.SessionID); err != nil {
		return sendReply(conn, wire.PacketAccountAck, &wire.AccountAck{Failure: wire.FailureGenericError})
	}
	return sendReply(conn, wire.PacketAccountAck, &wire.AccountAck{Success: true})
}

// register binds every handler above to pm, called once per worker so each
// worker's own PacketManager dispatches the full command set (spec §4.6).
func (h *handlers) register(pm *netconn.PacketManager) {
	pm.Register(wire.PacketChannelAnnounce, true, h.handleChannelAnnounce)
	pm.Register(wire.PacketDataSync, true, h.handleDataSync)
	pm.Register(wire.PacketCharacterLogin, true, h.handleCharacterLogin)
	pm.Register(wire.PacketRelay, true, h.handleRelay)
	pm.Register(wire.PacketGroupRequest, true, h.handleGroupRequest)
	pm.Register(wire.PacketAccountLobbyLogin, true, h.handleAccountLobbyLogin)
	pm.Register(wire.PacketAccountSwitchChannel, true, h.handleAccountSwitchChannel)
	pm.Register(wire.PacketAccountCompleteSwitch, true, h.handleAccountCompleteSwitch)
	pm.Register(wire.PacketAccountLogout, true, h.handleAccountLogout)
	pm.Register(wire.PacketWebGameSession, true, h.handleWebGameSession)
}
