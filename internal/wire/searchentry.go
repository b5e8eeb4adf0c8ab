package wire

import "fmt"

// SearchEntryRecord is the non-persistent sync record for a published
// search-board listing (spec §4.3 SearchEntry).
type SearchEntryRecord struct {
	EntryID        int32
	ParentEntryID  int32
	SourceCID      int32
	Type           int32
	ExpirationTime uint32 // unix seconds, 0 means no expiration
	LastAction     uint32 // unix seconds
	Payload        []byte
}

// Encode writes the record as a sync datastream.
func (r *SearchEntryRecord) Encode(p *Packet) error {
	if err := p.WriteI32LE(r.EntryID); err != nil {
		return err
	}
	if err := p.WriteI32LE(r.ParentEntryID); err != nil {
		return err
	}
	if err := p.WriteI32LE(r.SourceCID); err != nil {
		return err
	}
	if err := p.WriteI32LE(r.Type); err != nil {
		return err
	}
	if err := p.WriteU32LE(r.ExpirationTime); err != nil {
		return err
	}
	if err := p.WriteU32LE(r.LastAction); err != nil {
		return err
	}
	if err := p.WriteU16LE(uint16(len(r.Payload))); err != nil {
		return err
	}
	return p.WriteBytes(r.Payload)
}

// DecodeSearchEntryRecord reads a SearchEntryRecord from p.
func DecodeSearchEntryRecord(p *Packet) (*SearchEntryRecord, error) {
	r := &SearchEntryRecord{}
	var err error
	if r.EntryID, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode search entry: entry id: %w", err)
	}
	if r.ParentEntryID, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode search entry: parent entry id: %w", err)
	}
	if r.SourceCID, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode search entry: source cid: %w", err)
	}
	if r.Type, err = p.ReadI32LE(); err != nil {
		return nil, fmt.Errorf("decode search entry: type: %w", err)
	}
	if r.ExpirationTime, err = p.ReadU32LE(); err != nil {
		return nil, fmt.Errorf("decode search entry: expiration: %w", err)
	}
	if r.LastAction, err = p.ReadU32LE(); err != nil {
		return nil, fmt.Errorf("decode search entry: last action: %w", err)
	}
	n, err := p.ReadU16LE()
	if err != nil {
		return nil, fmt.Errorf("decode search entry: payload length: %w", err)
	}
	if r.Payload, err = p.ReadBytes(int(n)); err != nil {
		return nil, fmt.Errorf("decode search entry: payload: %w", err)
	}
	return r, nil
}
