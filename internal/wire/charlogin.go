package wire

import "fmt"

// CharacterLoginUpdate is the payload of PacketCharacterLogin (spec §6):
// a world-cid plus whichever fields the update-flags bitmask selects.
type CharacterLoginUpdate struct {
	WorldCID int32
	Flags    CharacterLoginFlag

	Status         uint8  // CLFlagStatus: 0 offline, 1 online
	ZoneID         uint32 // CLFlagZone
	ChannelID      int8   // CLFlagChannel
	Message        string // CLFlagMessage
	FriendUnknown  uint8  // CLFlagFriendUnknown
	FriendFlags    uint32 // CLFlagFriendFlags
	PartyID        uint32 // CLFlagPartyInfo
	PartyDemonInfo string // CLFlagPartyDemonInfo
	PartyIcon      uint16 // CLFlagPartyIcon
}

var characterLoginFlagOrder = []CharacterLoginFlag{
	CLFlagStatus, CLFlagZone, CLFlagChannel, CLFlagMessage,
	CLFlagFriendUnknown, CLFlagFriendFlags, CLFlagPartyInfo,
	CLFlagPartyDemonInfo, CLFlagPartyIcon,
}

// Encode writes the update, field ordered by CharacterLoginFlag bit order,
// per spec §6 ("each present field in flag order").
func (u *CharacterLoginUpdate) Encode(p *Packet) error {
	if err := p.WriteI32LE(u.WorldCID); err != nil {
		return err
	}
	if err := p.WriteU8(uint8(u.Flags)); err != nil {
		return err
	}

	for _, flag := range characterLoginFlagOrder {
		if u.Flags&flag == 0 {
			continue
		}
		var err error
		switch flag {
		case CLFlagStatus:
			err = p.WriteU8(u.Status)
		case CLFlagZone:
			err = p.WriteU32LE(u.ZoneID)
		case CLFlagChannel:
			err = p.WriteU8(uint8(u.ChannelID))
		case CLFlagMessage:
			err = p.WriteString16(u.Message)
		case CLFlagFriendUnknown:
			err = p.WriteU8(u.FriendUnknown)
		case CLFlagFriendFlags:
			err = p.WriteU32LE(u.FriendFlags)
		case CLFlagPartyInfo:
			err = p.WriteU32LE(u.PartyID)
		case CLFlagPartyDemonInfo:
			err = p.WriteString16(u.PartyDemonInfo)
		case CLFlagPartyIcon:
			err = p.WriteU16LE(u.PartyIcon)
		}
		if err != nil {
			return fmt.Errorf("encode character login field %d: %w", flag, err)
		}
	}
	return nil
}

// DecodeCharacterLoginUpdate reads a CharacterLoginUpdate from p.
func DecodeCharacterLoginUpdate(p *Packet) (*CharacterLoginUpdate, error) {
	u := &CharacterLoginUpdate{}

	cid, err := p.ReadI32LE()
	if err != nil {
		return nil, fmt.Errorf("decode character login: world cid: %w", err)
	}
	u.WorldCID = cid

	flags, err := p.ReadU8()
	if err != nil {
		return nil, fmt.Errorf("decode character login: flags: %w", err)
	}
	u.Flags = CharacterLoginFlag(flags)

	for _, flag := range characterLoginFlagOrder {
		if u.Flags&flag == 0 {
			continue
		}
		switch flag {
		case CLFlagStatus:
			u.Status, err = p.ReadU8()
		case CLFlagZone:
			u.ZoneID, err = p.ReadU32LE()
		case CLFlagChannel:
			var ch uint8
			ch, err = p.ReadU8()
			u.ChannelID = int8(ch)
		case CLFlagMessage:
			u.Message, err = p.ReadString16()
		case CLFlagFriendUnknown:
			u.FriendUnknown, err = p.ReadU8()
		case CLFlagFriendFlags:
			u.FriendFlags, err = p.ReadU32LE()
		case CLFlagPartyInfo:
			u.PartyID, err = p.ReadU32LE()
		case CLFlagPartyDemonInfo:
			u.PartyDemonInfo, err = p.ReadString16()
		case CLFlagPartyIcon:
			u.PartyIcon, err = p.ReadU16LE()
		}
		if err != nil {
			return nil, fmt.Errorf("decode character login field %d: %w", flag, err)
		}
	}
	return u, nil
}
