package wire

import "fmt"

// MatchEntryRecord is the non-persistent sync record for one queued PvP
// match participant (spec §4.3 MatchEntry, §4.10 "Match queue"). TeamID is
// 0 for a solo entry.
type MatchEntryRecord struct {
	CID        int32
	TeamID     int32
	MatchType  int32
	EntryTime  uint32 // unix seconds
	ReadyTime  uint32 // unix seconds, 0 if not yet scheduled
	MatchID    int32
}

// Encode writes the record as a sync datastream.
func (r *MatchEntryRecord) Encode(p *Packet) error {
	if err := p.WriteI32LE(r.CID); err != nil {
		return err
	}
	if err := p.WriteI32LE(r.TeamID); err != nil {
		return err
	}
	if err := p.WriteI32LE(r.MatchType); err != nil {
		return err
	}
	if err := p.WriteU32LE(r.EntryTime); err != nil {
		return err
	}
	if err := p.WriteU32LE(r.ReadyTime); err != nil {
		return err
	}
	return p.WriteI32LE(r.MatchID)
}

// DecodeMatchEntryRecord reads a MatchEntryRecord from p.
func DecodeMatchEntryRecord(p *Packet) (*MatchEntryRecord, error) {
	r := &MatchEntryRecord{}
	var err error
	if r.CID, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode match entry: cid: %w", err)
	}
	if r.TeamID, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode match entry: team id: %w", err)
	}
	if r.MatchType, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode match entry: match type: %w", err)
	}
	if r.EntryTime, err = p.ReadU32LE(); err != nil {
		return nil, fmt.Errorf("decode match entry: entry time: %w", err)
	}
	if r.ReadyTime, err = p.ReadU32LE(); err != nil {
		return nil, fmt.Errorf("decode match entry: ready time: %w", err)
	}
	if r.MatchID, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode match entry: match id: %w", err)
	}
	return r, nil
}

// PvPMatchRecord is the non-persistent sync record for a formed match
// (spec §4.3 PvPMatch).
type PvPMatchRecord struct {
	ID        int32
	Type      int32
	ChannelID int8
	ReadyTime uint32
	Blue      []int32
	Red       []int32
}

// Encode writes the record as a sync datastream.
func (r *PvPMatchRecord) Encode(p *Packet) error {
	if err := p.WriteI32LE(r.ID); err != nil {
		return err
	}
	if err := p.WriteI32LE(r.Type); err != nil {
		return err
	}
	if err := p.WriteU8(uint8(r.ChannelID)); err != nil {
		return err
	}
	if err := p.WriteU32LE(r.ReadyTime); err != nil {
		return err
	}
	if err := writeCIDList(p, r.Blue); err != nil {
		return fmt.Errorf("encode pvp match: blue: %w", err)
	}
	if err := writeCIDList(p, r.Red); err != nil {
		return fmt.Errorf("encode pvp match: red: %w", err)
	}
	return nil
}

// DecodePvPMatchRecord reads a PvPMatchRecord from p.
func DecodePvPMatchRecord(p *Packet) (*PvPMatchRecord, error) {
	r := &PvPMatchRecord{}
	var err error
	if r.ID, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode pvp match: id: %w", err)
	}
	if r.Type, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode pvp match: type: %w", err)
	}
	ch, err := p.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("decode pvp match: channel: %w", err)
	}
	r.ChannelID = int8(ch)
	if r.ReadyTime, err = p.ReadU32LE(); err != nil {
		return nil, fmt.Errorf("decode pvp match: ready time: %w", err)
	}
	if r.Blue, err = readCIDList(p); err != nil {
		return nil, fmt.Errorf("decode pvp match: blue: %w", err)
	}
	if r.Red, err = readCIDList(p); err != nil {
		return nil, fmt.Errorf("decode pvp match: red: %w", err)
	}
	return r, nil
}

func writeCIDList(p *Packet, cids []int32) error {
	if err := p.WriteU16LE(uint16(len(cids))); err != nil {
		return err
	}
	for _, cid := range cids {
		if err := p.WriteI32LE(cid); err != nil {
			return err
		}
	}
	return nil
}

func readCIDList(p *Packet) ([]int32, error) {
	count, err := p.ReadU16LE()
	if err != nil {
		return nil, err
	}
	out := make([]int32, count)
	for i := range out {
		if out[i], err = p.ReadI32LE(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
