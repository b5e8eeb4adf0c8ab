package wire

// Command codes are the identifier space ManagerPacket dispatches on. The
// client-facing opcode catalog itself (skills, movement, chat) is out of
// scope; only the codes the core touches directly are named here.
const (
	// PacketDataSync carries a DataSyncManager replication batch (§4.7/§6).
	PacketDataSync uint16 = 0x5000
	// PacketCharacterLogin carries a CharacterRegistry presence update
	// relayed between channels (§6).
	PacketCharacterLogin uint16 = 0x5001
	// PacketRelay wraps a channel<->world<->channel forwarded packet (§6
	// "Relay envelope").
	PacketRelay uint16 = 0x5002
	// PacketPvPWorld is reserved but unused per spec §9 open questions: the
	// original leaves this path stubbed, and so do we — it must error out
	// rather than invent semantics.
	PacketPvPWorld uint16 = 0x5003
	// PacketChannelAnnounce carries a channel's id announcement to World
	// right after its registration link connects (§4.4 "each channel
	// registers with the world on startup, announcing its channel id").
	PacketChannelAnnounce uint16 = 0x5004

	// Account state-machine operations relayed between tiers (§4.8).
	// AccountRegistry itself lives on World; Lobby authenticates a client
	// and forwards lobby_login, and a channel forwards switch_channel
	// requests and the completion/logout notifications that follow a
	// handoff.
	PacketAccountLobbyLogin     uint16 = 0x5010
	PacketAccountAssignChannel  uint16 = 0x5011
	PacketAccountSwitchChannel  uint16 = 0x5012
	PacketAccountCompleteSwitch uint16 = 0x5013
	PacketAccountLogout         uint16 = 0x5014
	PacketAccountAck            uint16 = 0x5015

	// PacketWebGameSession carries a start/end web-game-session request and
	// its asymmetric lobby/channel notifications (§4.8 supplement; the web
	// client integration itself remains out of scope).
	PacketWebGameSession uint16 = 0x5016

	// PacketGroupRequest/PacketGroupResponse carry a Party/Clan/Team/Match/
	// Search operation forwarded from a channel to World, and its result
	// back (§4.10). The client-facing opcode that triggers each one is out
	// of scope; this is the core's own request shape once a channel has
	// decided to act on a client's command.
	PacketGroupRequest  uint16 = 0x5020
	PacketGroupResponse uint16 = 0x5021
)

// RelayMode selects how a RelayEnvelope's target is encoded.
type RelayMode uint8

const (
	RelayModeFailure RelayMode = iota
	RelayModeAccount
	RelayModeCharacter
	RelayModeCIDs
	RelayModeParty
	RelayModeClan
	RelayModeTeam
)

// CharacterLoginFlag is a bit in the CharacterLogin packet's update-flags
// bitmask (§6).
type CharacterLoginFlag uint8

const (
	CLFlagStatus CharacterLoginFlag = 1 << iota
	CLFlagZone
	CLFlagChannel
	CLFlagMessage
	CLFlagFriendUnknown
	CLFlagFriendFlags
	CLFlagPartyInfo
	CLFlagPartyDemonInfo
	CLFlagPartyIcon
)

// RelatedCharacterMask selects which relationship sets
// CharacterRegistry.RelatedCharacterLogins fans a packet out to (§4.9).
type RelatedCharacterMask uint8

const (
	RelatedFriends RelatedCharacterMask = 1 << iota
	RelatedParty
	RelatedClan
	RelatedTeam
)

// Client-visible failure codes (spec §7), used by group operations to
// report capacity/conflict/state errors back to the originating client.
type FailureCode uint16

const (
	FailureInvalidOrOffline FailureCode = iota + 1
	FailureInParty
	FailureOtherTeam
	FailureLeaderRequired
	FailurePartyFull
	FailureTeamFull
	FailureInvalidTeam
	FailureInvalidTarget
	FailureNoTeam
	FailureNoParty
	FailureGenericError
	FailureNameTaken
	FailureClanFull
	FailureNotInClan
	FailureAlreadyInClan
)
