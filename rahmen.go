package rahmen

const errPrefix = "rahmen: "

const (
	// TunMTUDefault is the conventional ethernet MTU. Used when neither a device
	// nor a link MTU is configured explicitly.
	TunMTUDefault = 1500
	// LinkMTUDefault is the wire size budget a fresh configuration carries. It
	// only takes effect once the link side is made the defined one.
	LinkMTUDefault = 1500
	// TunMTUMin is the smallest workable device MTU. Anything below this can not
	// carry an IP packet worth tunneling.
	TunMTUMin = 100
	// TapMTUExtraDefault reserves room for the ethernet header which tap devices
	// deliver as part of the payload.
	TapMTUExtraDefault = 32
	// PayloadAlign is the alignment boundary decrypted payloads should start on.
	PayloadAlign = 4
)

// Per packet wire overhead of the individual framing layers. These never change
// at runtime, they are properties of the wire format.
const (
	socksUDPOverhead = 10 // SOCKS5 UDP relay header: RSV(2) FRAG(1) ATYP(1) IPv4(4) PORT(2)
	streamPrefixSize = 2  // uint16 length prefix on stream transports
	opcodeSize       = 1  // opcode and key id share a single byte
	peerIDSize       = 3  // 24 bit peer id following the opcode

	compressV1HeaderSize = 1 // first generation compression prepends its algorithm marker to every packet
	fragmentHeaderSize   = 4 // uint32 fragmentation header

	packetIDSize     = 4 // 32 bit sequence number
	packetIDLongSize = 8 // sequence number plus 32 bit timestamp
)
