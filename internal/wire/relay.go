package wire

import "fmt"

// RelayEnvelope is the internal relay packet described in spec §6: World-
// mediated forwarding of a channel-to-channel or channel-to-client message,
// with an optional failure bounce.
//
//	source world-cid (i32), mode (u8), mode-dependent target, original
//	packet bytes.
type RelayEnvelope struct {
	SourceWorldCID int32
	Mode           RelayMode

	// Exactly one of the following is populated, selected by Mode.
	TargetAccount   string  // RelayModeAccount
	TargetCharacter string  // RelayModeCharacter (name)
	TargetCIDs      []int32 // RelayModeCIDs
	TargetParty     uint32  // RelayModeParty
	TargetClan      int32   // RelayModeClan
	TargetTeam      int32   // RelayModeTeam

	// FailureTargets carries back names that could not be reached when
	// Mode == RelayModeFailure; the sender shows these to the client as a
	// bounce.
	FailureTargets []string

	// Payload is the original packet bytes being forwarded.
	Payload []byte
}

// Encode serializes the envelope onto p.
func (e *RelayEnvelope) Encode(p *Packet) error {
	if err := p.WriteI32LE(e.SourceWorldCID); err != nil {
		return err
	}
	if err := p.WriteU8(uint8(e.Mode)); err != nil {
		return err
	}

	switch e.Mode {
	case RelayModeFailure:
		if err := p.WriteU16LE(uint16(len(e.FailureTargets))); err != nil {
			return err
		}
		for _, name := range e.FailureTargets {
			if err := p.WriteString16(name); err != nil {
				return err
			}
		}
	case RelayModeAccount:
		if err := p.WriteString16(e.TargetAccount); err != nil {
			return err
		}
	case RelayModeCharacter:
		if err := p.WriteString16(e.TargetCharacter); err != nil {
			return err
		}
	case RelayModeCIDs:
		if err := p.WriteU16LE(uint16(len(e.TargetCIDs))); err != nil {
			return err
		}
		for _, cid := range e.TargetCIDs {
			if err := p.WriteI32LE(cid); err != nil {
				return err
			}
		}
	case RelayModeParty:
		if err := p.WriteU32LE(e.TargetParty); err != nil {
			return err
		}
	case RelayModeClan:
		if err := p.WriteI32LE(e.TargetClan); err != nil {
			return err
		}
	case RelayModeTeam:
		if err := p.WriteI32LE(e.TargetTeam); err != nil {
			return err
		}
	default:
		return fmt.Errorf("relay encode: unknown mode %d", e.Mode)
	}

	return p.WriteBytes(e.Payload)
}

// DecodeRelayEnvelope reads a RelayEnvelope from p starting at the current
// cursor; any trailing bytes are the forwarded payload.
func DecodeRelayEnvelope(p *Packet) (*RelayEnvelope, error) {
	e := &RelayEnvelope{}

	src, err := p.ReadI32LE()
	if err != nil {
		return nil, fmt.Errorf("relay decode: source cid: %w", err)
	}
	e.SourceWorldCID = src

	mode, err := p.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("relay decode: mode: %w", err)
	}
	e.Mode = RelayMode(mode)

	switch e.Mode {
	case RelayModeFailure:
		n, err := p.ReadU16LE()
		if err != nil {
			return nil, fmt.Errorf("relay decode: failure count: %w", err)
		}
		for i := 0; i < int(n); i++ {
			name, err := p.ReadString16()
			if err != nil {
				return nil, fmt.Errorf("relay decode: failure target %d: %w", i, err)
			}
			e.FailureTargets = append(e.FailureTargets, name)
		}
	case RelayModeAccount:
		e.TargetAccount, err = p.ReadString16()
	case RelayModeCharacter:
		e.TargetCharacter, err = p.ReadString16()
	case RelayModeCIDs:
		var n uint16
		n, err = p.ReadU16LE()
		if err != nil {
			return nil, fmt.Errorf("relay decode: cid count: %w", err)
		}
		for i := 0; i < int(n); i++ {
			cid, cerr := p.ReadI32LE()
			if cerr != nil {
				return nil, fmt.Errorf("relay decode: cid %d: %w", i, cerr)
			}
			e.TargetCIDs = append(e.TargetCIDs, cid)
		}
	case RelayModeParty:
		e.TargetParty, err = p.ReadU32LE()
	case RelayModeClan:
		e.TargetClan, err = p.ReadI32LE()
	case RelayModeTeam:
		e.TargetTeam, err = p.ReadI32LE()
	default:
		return nil, fmt.Errorf("relay decode: unknown mode %d", e.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("relay decode: target: %w", err)
	}

	e.Payload, err = p.ReadBytes(p.Remaining())
	if err != nil {
		return nil, fmt.Errorf("relay decode: payload: %w", err)
	}
	return e, nil
}
