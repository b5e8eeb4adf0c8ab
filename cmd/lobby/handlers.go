package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nexusmmo/core/internal/db"
	"github.com/nexusmmo/core/internal/netconn"
	"github.com/nexusmmo/core/internal/wire"
)

// handlers bundles the dependencies lobby needs to authenticate a client
// and forward account operations up to World, where AccountRegistry now
// lives (spec §4.8). The per-opcode client packet catalog lobby would use
// to trigger these is a declared non-goal (spec §1); these are the
// core's own forwarding operations once some client-facing layer decides
// to act.
type handlers struct {
	accountRepo *db.AccountRepository
	worldLink   *netconn.Link
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

// Authenticate checks login/password against the lobby database, returning
// the matched account or (nil, nil) on a bad login or wrong password; it
// never distinguishes the two in its return value, since leaking which
// login exists is the one thing worth avoiding here.
func (h *handlers) Authenticate(ctx context.Context, login, password string) (*db.Account, error) {
	acc, err := h.accountRepo.GetAccount(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("looking up account %q: %w", login, err)
	}
	if acc == nil || !db.CheckPassword(acc.PasswordHash, password) {
		return nil, nil
	}
	return acc, nil
}

// ForwardLobbyLogin forwards a successful credential check to World, which
// owns the AccountRegistry state machine and will reply with the
// account's first channel assignment over this same link.
func (h *handlers) ForwardLobbyLogin(login string) error {
	return sendToWorld(h.worldLink, wire.PacketAccountLobbyLogin, &wire.AccountUsername{Username: login})
}

// ForwardLogout forwards a client disconnect or explicit logout at the
// lobby to World.
func (h *handlers) ForwardLogout(login string) error {
	return sendToWorld(h.worldLink, wire.PacketAccountLogout, &wire.AccountUsername{Username: login})
}

// handleAccountChannelGrant receives World's reply to a forwarded
// lobby_login: the channel id and session key the client must be handed to
// complete the handoff. Delivering it to the originating client connection
// is the client-facing layer's job, out of scope here.
func (h *handlers) handleAccountChannelGrant(conn *netconn.Connection, args []byte) error {
	p := wire.NewPacketFromBytes(args)
	grant, err := wire.DecodeAccountChannelGrant(p)
	if err != nil {
		return err
	}
	slog.Info("account channel grant received from world", "account", grant.Username, "channel_id", grant.ChannelID)
	return nil
}

// handleAccountAck receives the outcome of a forwarded logout.
func (h *handlers) handleAccountAck(conn *netconn.Connection, args []byte) error {
	p := wire.NewPacketFromBytes(args)
	ack, err := wire.DecodeAccountAck(p)
	if err != nil {
		return err
	}
	slog.Info("account ack received from world", "success", ack.Success, "failure", ack.Failure)
	return nil
}

// register binds the handlers above to pm, called on the worker that owns
// the world link connection.
func (h *handlers) register(pm *netconn.PacketManager) {
	pm.Register(wire.PacketAccountAssignChannel, true, h.handleAccountChannelGrant)
	pm.Register(wire.PacketAccountAck, true, h.handleAccountAck)
}
