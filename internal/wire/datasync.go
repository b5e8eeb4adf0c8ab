package wire

import "fmt"

// SyncRecord is one record inside a data-sync batch. Persistent types
// travel as a UUID string (the receiver reloads from its own database);
// non-persistent types travel as an opaque datastream the receiver's
// build/load handler understands.
type SyncRecord struct {
	UUID   string // set when the type is persistent
	Stream []byte // set when the type is not persistent
}

// DataSyncBatch is the payload of PacketDataSync (spec §4.7/§6): a type
// name plus the updates and removes queued for it.
type DataSyncBatch struct {
	Type    string
	Updates []SyncRecord
	Removes []SyncRecord
}

// Encode writes the batch using isPersistent to choose between UUID and
// datastream encoding for every record.
func (b *DataSyncBatch) Encode(p *Packet, isPersistent bool) error {
	if err := p.WriteString16(b.Type); err != nil {
		return err
	}
	if err := writeSyncRecords(p, b.Updates, isPersistent); err != nil {
		return fmt.Errorf("encode updates: %w", err)
	}
	if err := writeSyncRecords(p, b.Removes, isPersistent); err != nil {
		return fmt.Errorf("encode removes: %w", err)
	}
	return nil
}

func writeSyncRecords(p *Packet, records []SyncRecord, isPersistent bool) error {
	if err := p.WriteU16LE(uint16(len(records))); err != nil {
		return err
	}
	for _, r := range records {
		if isPersistent {
			if err := p.WriteString16(r.UUID); err != nil {
				return err
			}
		} else {
			if err := p.WriteU16LE(uint16(len(r.Stream))); err != nil {
				return err
			}
			if err := p.WriteBytes(r.Stream); err != nil {
				return err
			}
		}
	}
	return nil
}

// DecodeDataSyncBatch reads a batch. The caller (DataSyncManager) already
// knows whether the named type is persistent by looking it up in its
// registered-types map, so isPersistent is a parameter rather than
// self-describing on the wire.
func DecodeDataSyncBatch(p *Packet, isPersistent bool) (*DataSyncBatch, error) {
	typeName, err := p.ReadString16()
	if err != nil {
		return nil, fmt.Errorf("decode data sync batch: type name: %w", err)
	}
	b := &DataSyncBatch{Type: typeName}

	b.Updates, err = readSyncRecords(p, isPersistent)
	if err != nil {
		return nil, fmt.Errorf("decode data sync batch: updates: %w", err)
	}
	b.Removes, err = readSyncRecords(p, isPersistent)
	if err != nil {
		return nil, fmt.Errorf("decode data sync batch: removes: %w", err)
	}
	return b, nil
}

// PeekDataSyncType reads just the type name from the front of a data-sync
// batch without consuming the rest of the packet, so a caller can resolve
// whether the type is persistent before decoding the full batch.
func PeekDataSyncType(p *Packet) (string, error) {
	cursor := p.Cursor()
	typeName, err := p.ReadString16()
	if err != nil {
		return "", err
	}
	_ = p.Seek(cursor)
	return typeName, nil
}

func readSyncRecords(p *Packet, isPersistent bool) ([]SyncRecord, error) {
	n, err := p.ReadU16LE()
	if err != nil {
		return nil, err
	}
	records := make([]SyncRecord, 0, n)
	for i := 0; i < int(n); i++ {
		var r SyncRecord
		if isPersistent {
			r.UUID, err = p.ReadString16()
		} else {
			var streamLen uint16
			streamLen, err = p.ReadU16LE()
			if err == nil {
				r.Stream, err = p.ReadBytes(int(streamLen))
			}
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, r)
	}
	return records, nil
}
