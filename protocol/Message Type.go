package protocol

// MessageType identifies the purpose of an inner Message. It occupies the
// top 11 bits of the inner header's type_and_size word (see Message.go), so
// valid values fit in [0, 2047].
type MessageType uint16

const (
	MessageTypeBeginMetaExchange MessageType = iota
	MessageTypeEndMetaExchange
	MessageTypeBeginPrimaryKeyExchange
	MessageTypeEndPrimaryKeyExchange
	MessageTypeBeginSecondaryKeyExchange
	MessageTypeEndSecondaryKeyExchange
	MessageTypeBeginAuthentication
	MessageTypeEndAuthentication
	MessageTypeBeginSessionInit
	MessageTypeEndSessionInit

	MessageTypeBeginPrimaryKeyUpdateExchange
	MessageTypeEndPrimaryKeyUpdateExchange
	MessageTypeBeginSecondaryKeyUpdateExchange
	MessageTypeEndSecondaryKeyUpdateExchange
	MessageTypeKeyUpdateReady

	MessageTypeExtenderCommunication
	MessageTypeExtenderUpdate
	MessageTypeNoise

	MessageTypeRelayCreate
	MessageTypeRelayStatus
	MessageTypeRelayData
	MessageTypeRelayDataAck

	messageTypeCount
)

var messageTypeNames = [...]string{
	"BeginMetaExchange", "EndMetaExchange",
	"BeginPrimaryKeyExchange", "EndPrimaryKeyExchange",
	"BeginSecondaryKeyExchange", "EndSecondaryKeyExchange",
	"BeginAuthentication", "EndAuthentication",
	"BeginSessionInit", "EndSessionInit",
	"BeginPrimaryKeyUpdateExchange", "EndPrimaryKeyUpdateExchange",
	"BeginSecondaryKeyUpdateExchange", "EndSecondaryKeyUpdateExchange",
	"KeyUpdateReady",
	"ExtenderCommunication", "ExtenderUpdate", "Noise",
	"RelayCreate", "RelayStatus", "RelayData", "RelayDataAck",
}

func (t MessageType) String() string {
	if int(t) < len(messageTypeNames) {
		return messageTypeNames[t]
	}
	return "Unknown"
}

// Valid reports whether t is a known message type. read() must reject and
// drop frames carrying an unknown type (§4.4).
func (t MessageType) Valid() bool { return t < messageTypeCount }

// IsHandshake reports whether t belongs to the fixed initial handshake
// sequence (§4.5), as opposed to key-update or steady-state traffic.
func (t MessageType) IsHandshake() bool {
	return t <= MessageTypeEndSessionInit
}

// IsKeyUpdate reports whether t belongs to the rekeying sub-protocol.
func (t MessageType) IsKeyUpdate() bool {
	return t >= MessageTypeBeginPrimaryKeyUpdateExchange && t <= MessageTypeKeyUpdateReady
}

// NeverCompressed reports whether payloads of this type must be sent
// uncompressed regardless of size: relay traffic is end-to-end encrypted by
// origin/terminus and opaque to this hop, and noise must remain
// incompressible-looking.
func (t MessageType) NeverCompressed() bool {
	return t == MessageTypeNoise || t == MessageTypeRelayData
}

// HasExtenderUUID reports whether the inner header carries the 16-byte
// extender UUID field.
func (t MessageType) HasExtenderUUID() bool {
	return t == MessageTypeExtenderCommunication
}
