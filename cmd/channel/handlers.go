package main

import (
	"log/slog"

	"github.com/nexusmmo/core/internal/netconn"
	syncmgr "github.com/nexusmmo/core/internal/sync"
	"github.com/nexusmmo/core/internal/wire"
)

// handlers bundles the dependencies this channel's packet handlers need to
// act on traffic arriving over its world link. A channel's own zone
// simulation and client-facing opcode catalog is out of scope (spec §1
// "does not specify the per-opcode client packet catalog"); these handlers
// cover the cluster-facing half of the flow and log where a concrete zone
// simulation would take over.
type handlers struct {
	channelID int8
	syncMgr   *syncmgr.Manager
	worldLink *netconn.Link
}

func sendToWorld(link *netconn.Link, code uint16, payload interface{ Encode(*wire.Packet) error }) error {
	p := wire.NewPacket()
	if err := p.WriteU16LE(code); err != nil {
		return err
	}
	if err := payload.Encode(p); err != nil {
		return err
	}
	return link.Send(p.Bytes())
}

// handleDataSync applies an incoming sync batch pushed down from World.
func (h *handlers) handleDataSync(conn *netconn.Connection, args []byte) error {
	batch, err := h.syncMgr.DecodeIncoming(args)
	if err != nil {
		return err
	}
	return h.syncMgr.SyncIncoming(batch, conn.RemoteAddr())
}

// handleRelay receives a relay envelope World has routed to this channel.
// Fanning it out to the specific local client sessions named by
// envelope.TargetCIDs is the zone simulation's job, out of scope here.
func (h *handlers) handleRelay(conn *netconn.Connection, args []byte) error {
	p := wire.NewPacketFromBytes(args)
	envelope, err := wire.DecodeRelayEnvelope(p)
	if err != nil {
		return err
	}
	slog.Info("relay envelope received", "mode", envelope.Mode, "targets", envelope.TargetCIDs, "bytes", len(envelope.Payload))
	return nil
}

// handleGroupResponse receives the outcome of a Party/Clan/Team/Match/Search
// action this channel forwarded to World via ForwardGroupRequest.
// Delivering it to the originating client session is out of scope here.
func (h *handlers) handleGroupResponse(conn *netconn.Connection, args []byte) error {
	p := wire.NewPacketFromBytes(args)
	resp, err := wire.DecodeGroupResponse(p)
	if err != nil {
		return err
	}
	slog.Info("group response received", "op", resp.Op, "success", resp.Success, "failure", resp.Failure)
	return nil
}

// handleAccountChannelGrant receives World's reply to either an
// AssignChannel (initial login) or a RequestChannelSwitch forward,
// carrying the session key a reconnecting client must present back via
// ForwardCompleteSwitch.
func (h *handlers) handleAccountChannelGrant(conn *netconn.Connection, args []byte) error {
	p := wire.NewPacketFromBytes(args)
	grant, err := wire.DecodeAccountChannelGrant(p)
	if err != nil {
		return err
	}
	slog.Info("account channel grant received", "account", grant.Username, "channel_id", grant.ChannelID)
	return nil
}

// handleAccountAck receives the outcome of a logout/complete-switch/
// web-game-session forward.
func (h *handlers) handleAccountAck(conn *netconn.Connection, args []byte) error {
	p := wire.NewPacketFromBytes(args)
	ack, err := wire.DecodeAccountAck(p)
	if err != nil {
		return err
	}
	slog.Info("account ack received", "success", ack.Success, "failure", ack.Failure, "detail", ack.Detail)
	return nil
}

// ForwardGroupRequest forwards a client-triggered Party/Clan/Team/Match/
// Search action to World over this channel's world link (spec §4.10).
func (h *handlers) ForwardGroupRequest(req *wire.GroupRequest) error {
	return sendToWorld(h.worldLink, wire.PacketGroupRequest, req)
}

// ForwardSwitchChannel forwards a client's switch_channel request to World.
func (h *handlers) ForwardSwitchChannel(username string, targetChannelID int8) error {
	return sendToWorld(h.worldLink, wire.PacketAccountSwitchChannel, &wire.AccountSwitchRequest{
		Username:        username,
		TargetChannelID: targetChannelID,
	})
}

// ForwardCompleteSwitch confirms to World that a client claimed a pending
// handoff by presenting sessionKey, completing channel_login.
func (h *handlers) ForwardCompleteSwitch(username string, sessionKey uint64) error {
	return sendToWorld(h.worldLink, wire.PacketAccountCompleteSwitch, &wire.AccountSessionClaim{
		Username:   username,
		SessionKey: sessionKey,
	})
}

// ForwardLogout forwards a client disconnect or explicit logout to World.
func (h *handlers) ForwardLogout(username string) error {
	return sendToWorld(h.worldLink, wire.PacketAccountLogout, &wire.AccountUsername{Username: username})
}

// ForwardRelay sends an already-resolved CID-targeted relay envelope to
// World for onward delivery (spec §6), used when this channel itself
// resolved the targets (e.g. a local party/clan/team broadcast).
func (h *handlers) ForwardRelay(sourceWorldCID int32, targetCIDs []int32, payload []byte) error {
	return sendToWorld(h.worldLink, wire.PacketRelay, &wire.RelayEnvelope{
		SourceWorldCID: sourceWorldCID,
		Mode:           wire.RelayModeCIDs,
		TargetCIDs:     targetCIDs,
		Payload:        payload,
	})
}

// announce tells World which channel id this process is, right after the
// world link's handshake completes (spec §4.4).
func (h *handlers) announce() error {
	return sendToWorld(h.worldLink, wire.PacketChannelAnnounce, &wire.ChannelAnnounce{ChannelID: h.channelID})
}

// register binds every handler above to pm. It is called once, on the
// world link worker's PacketManager, which dispatches the command set this
// channel receives from World (spec §4.6).
func (h *handlers) register(pm *netconn.PacketManager) {
	pm.Register(wire.PacketDataSync, true, h.handleDataSync)
	pm.Register(wire.PacketRelay, true, h.handleRelay)
	pm.Register(wire.PacketGroupResponse, true, h.handleGroupResponse)
	pm.Register(wire.PacketAccountAssignChannel, true, h.handleAccountChannelGrant)
	pm.Register(wire.PacketAccountSwitchChannel, true, h.handleAccountChannelGrant)
	pm.Register(wire.PacketAccountAck, true, h.handleAccountAck)
}
