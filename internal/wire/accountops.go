package wire

import "fmt"

// ChannelAnnounce is the payload of PacketChannelAnnounce: a channel
// process telling World which channel id it is (spec §4.4).
type ChannelAnnounce struct {
	ChannelID int8
}

func (a *ChannelAnnounce) Encode(p *Packet) error {
	return p.WriteU8(uint8(a.ChannelID))
}

func DecodeChannelAnnounce(p *Packet) (*ChannelAnnounce, error) {
	ch, err := p.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("decode channel announce: %w", err)
	}
	return &ChannelAnnounce{ChannelID: int8(ch)}, nil
}

// AccountUsername is the payload of PacketAccountLobbyLogin and
// PacketAccountLogout: an operation that only needs the account's login
// name.
type AccountUsername struct {
	Username string
}

func (a *AccountUsername) Encode(p *Packet) error {
	return p.WriteString16(a.Username)
}

func DecodeAccountUsername(p *Packet) (*AccountUsername, error) {
	u, err := p.ReadString16()
	if err != nil {
		return nil, fmt.Errorf("decode account username: %w", err)
	}
	return &AccountUsername{Username: u}, nil
}

// AccountChannelGrant is the payload of PacketAccountAssignChannel (World
// replying to Lobby) and of PacketAccountSwitchChannel's reply (World
// replying to a channel): the channel id and one-time session key the
// client must present to claim the handoff.
type AccountChannelGrant struct {
	Username   string
	ChannelID  int8
	SessionKey uint64
}

func (g *AccountChannelGrant) Encode(p *Packet) error {
	if err := p.WriteString16(g.Username); err != nil {
		return err
	}
	if err := p.WriteU8(uint8(g.ChannelID)); err != nil {
		return err
	}
	if err := p.WriteU32LE(uint32(g.SessionKey >> 32)); err != nil {
		return err
	}
	return p.WriteU32LE(uint32(g.SessionKey))
}

func DecodeAccountChannelGrant(p *Packet) (*AccountChannelGrant, error) {
	u, err := p.ReadString16()
	if err != nil {
		return nil, fmt.Errorf("decode account channel grant: %w", err)
	}
	ch, err := p.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("decode account channel grant: %w", err)
	}
	hi, err := p.ReadU32LE()
	if err != nil {
		return nil, fmt.Errorf("decode account channel grant: %w", err)
	}
	lo, err := p.ReadU32LE()
	if err != nil {
		return nil, fmt.Errorf("decode account channel grant: %w", err)
	}
	return &AccountChannelGrant{
		Username:   u,
		ChannelID:  int8(ch),
		SessionKey: uint64(hi)<<32 | uint64(lo),
	}, nil
}

// AccountSwitchRequest is the payload of PacketAccountSwitchChannel: a
// channel forwarding a client's switch_channel request to World.
type AccountSwitchRequest struct {
	Username        string
	TargetChannelID int8
}

func (r *AccountSwitchRequest) Encode(p *Packet) error {
	if err := p.WriteString16(r.Username); err != nil {
		return err
	}
	return p.WriteU8(uint8(r.TargetChannelID))
}

func DecodeAccountSwitchRequest(p *Packet) (*AccountSwitchRequest, error) {
	u, err := p.ReadString16()
	if err != nil {
		return nil, fmt.Errorf("decode account switch request: %w", err)
	}
	ch, err := p.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("decode account switch request: %w", err)
	}
	return &AccountSwitchRequest{Username: u, TargetChannelID: int8(ch)}, nil
}

// AccountSessionClaim is the payload of PacketAccountCompleteSwitch: a
// channel presenting the session key a reconnecting client claimed,
// confirming it actually belongs to a pending handoff.
type AccountSessionClaim struct {
	Username   string
	SessionKey uint64
}

func (c *AccountSessionClaim) Encode(p *Packet) error {
	if err := p.WriteString16(c.Username); err != nil {
		return err
	}
	if err := p.WriteU32LE(uint32(c.SessionKey >> 32)); err != nil {
		return err
	}
	return p.WriteU32LE(uint32(c.SessionKey))
}

func DecodeAccountSessionClaim(p *Packet) (*AccountSessionClaim, error) {
	u, err := p.ReadString16()
	if err != nil {
		return nil, fmt.Errorf("decode account session claim: %w", err)
	}
	hi, err := p.ReadU32LE()
	if err != nil {
		return nil, fmt.Errorf("decode account session claim: %w", err)
	}
	lo, err := p.ReadU32LE()
	if err != nil {
		return nil, fmt.Errorf("decode account session claim: %w", err)
	}
	return &AccountSessionClaim{Username: u, SessionKey: uint64(hi)<<32 | uint64(lo)}, nil
}

// AccountAck is the payload of PacketAccountAck: a generic success/failure
// reply to an account-operation request (switch completion, logout,
// web-game-session toggles). Detail carries the freshly minted web-game
// session id on a successful start_web_game_session reply and is empty
// otherwise.
type AccountAck struct {
	Success bool
	Failure FailureCode
	Detail  string
}

func (a *AccountAck) Encode(p *Packet) error {
	success := uint8(0)
	if a.Success {
		success = 1
	}
	if err := p.WriteU8(success); err != nil {
		return err
	}
	if err := p.WriteU16LE(uint16(a.Failure)); err != nil {
		return err
	}
	return p.WriteString16(a.Detail)
}

func DecodeAccountAck(p *Packet) (*AccountAck, error) {
	success, err := p.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("decode account ack: %w", err)
	}
	failure, err := p.ReadU16LE()
	if err != nil {
		return nil, fmt.Errorf("decode account ack: %w", err)
	}
	detail, err := p.ReadString16()
	if err != nil {
		return nil, fmt.Errorf("decode account ack: %w", err)
	}
	return &AccountAck{Success: success != 0, Failure: FailureCode(failure), Detail: detail}, nil
}

// WebGameSessionRequest is the payload of PacketWebGameSession: a request
// to start or end a browser-side companion session for an account,
// independent of its client login state (spec §4.8 supplement).
type WebGameSessionRequest struct {
	Username string
	Start    bool
	// SessionID identifies the web session being ended; ignored on Start,
	// where World mints a fresh id itself and returns it in the
	// PacketAccountAck reply's Detail field.
	SessionID string
}

func (r *WebGameSessionRequest) Encode(p *Packet) error {
	if err := p.WriteString16(r.Username); err != nil {
		return err
	}
	start := uint8(0)
	if r.Start {
		start = 1
	}
	if err := p.WriteU8(start); err != nil {
		return err
	}
	return p.WriteString16(r.SessionID)
}

func DecodeWebGameSessionRequest(p *Packet) (*WebGameSessionRequest, error) {
	u, err := p.ReadString16()
	if err != nil {
		return nil, fmt.Errorf("decode web game session request: %w", err)
	}
	start, err := p.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("decode web game session request: %w", err)
	}
	id, err := p.ReadString16()
	if err != nil {
		return nil, fmt.Errorf("decode web game session request: %w", err)
	}
	return &WebGameSessionRequest{Username: u, Start: start != 0, SessionID: id}, nil
}
