package wire

import "fmt"

// GroupOp selects which Party/Clan/Team/Match/Search operation a
// GroupRequest carries (spec §4.10). The client opcode that triggers each
// one is out of scope; this is the core's own internal request shape once
// a channel has decided to act on a client's command.
type GroupOp uint8

const (
	GroupOpPartyInvite GroupOp = iota + 1
	GroupOpPartyAccept
	GroupOpPartyKick
	GroupOpPartyLeave
	GroupOpPartyDisband

	GroupOpClanForm
	GroupOpClanInvite
	GroupOpClanKick
	GroupOpClanLeave
	GroupOpClanDisband

	GroupOpTeamCreate
	GroupOpTeamJoin
	GroupOpTeamLeave

	GroupOpMatchJoin
	GroupOpMatchLeave

	GroupOpSearchPublish
	GroupOpSearchRemove
)

// GroupRequest is the payload of PacketGroupRequest. Fields not relevant to
// Op are left zero; which ones matter is determined entirely by Op, the
// same way the original engine packs one struct per family of ClientPacket
// commands.
type GroupRequest struct {
	ActorCID     int32
	Op           GroupOp
	TargetCID    int32
	Name         string
	BaseZone     int32
	TeamCategory int32
	MatchType    int32
	TeamID       int32
	SearchEntry  int32
	Payload      []byte
}

func (r *GroupRequest) Encode(p *Packet) error {
	if err := p.WriteI32LE(r.ActorCID); err != nil {
		return err
	}
	if err := p.WriteU8(uint8(r.Op)); err != nil {
		return err
	}
	if err := p.WriteI32LE(r.TargetCID); err != nil {
		return err
	}
	if err := p.WriteString16(r.Name); err != nil {
		return err
	}
	if err := p.WriteI32LE(r.BaseZone); err != nil {
		return err
	}
	if err := p.WriteI32LE(r.TeamCategory); err != nil {
		return err
	}
	if err := p.WriteI32LE(r.MatchType); err != nil {
		return err
	}
	if err := p.WriteI32LE(r.TeamID); err != nil {
		return err
	}
	if err := p.WriteI32LE(r.SearchEntry); err != nil {
		return err
	}
	return p.WriteBytes(r.Payload)
}

func DecodeGroupRequest(p *Packet) (*GroupRequest, error) {
	r := &GroupRequest{}
	var op uint8
	var err error

	if r.ActorCID, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode group request: %w", err)
	}
	if op, err = p.ReadU8(); err != nil {
		return nil, fmt.Errorf("decode group request: %w", err)
	}
	r.Op = GroupOp(op)
	if r.TargetCID, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode group request: %w", err)
	}
	if r.Name, err = p.ReadString16(); err != nil {
		return nil, fmt.Errorf("decode group request: %w", err)
	}
	if r.BaseZone, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode group request: %w", err)
	}
	if r.TeamCategory, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode group request: %w", err)
	}
	if r.MatchType, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode group request: %w", err)
	}
	if r.TeamID, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode group request: %w", err)
	}
	if r.SearchEntry, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode group request: %w", err)
	}
	r.Payload, err = p.ReadBytes(p.Remaining())
	if err != nil {
		return nil, fmt.Errorf("decode group request: %w", err)
	}
	return r, nil
}

// GroupResponse is the payload of PacketGroupResponse: the result of a
// GroupRequest, addressed back to the channel that forwarded it by the
// request's ActorCID (carried out-of-band by whichever relay wraps this).
type GroupResponse struct {
	Op      GroupOp
	Success bool
	Failure FailureCode
}

func (r *GroupResponse) Encode(p *Packet) error {
	if err := p.WriteU8(uint8(r.Op)); err != nil {
		return err
	}
	success := uint8(0)
	if r.Success {
		success = 1
	}
	if err := p.WriteU8(success); err != nil {
		return err
	}
	return p.WriteU16LE(uint16(r.Failure))
}

func DecodeGroupResponse(p *Packet) (*GroupResponse, error) {
	op, err := p.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("decode group response: %w", err)
	}
	success, err := p.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("decode group response: %w", err)
	}
	failure, err := p.ReadU16LE()
	if err != nil {
		return nil, fmt.Errorf("decode group response: %w", err)
	}
	return &GroupResponse{Op: GroupOp(op), Success: success != 0, Failure: FailureCode(failure)}, nil
}
