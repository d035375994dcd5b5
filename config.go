package rahmen

import (
	"github.com/pkg/errors"
)

// Proto selects the transport the encrypted link runs over.
type Proto uint8

const (
	ProtoUDP Proto = iota
	ProtoTCPClient
	ProtoTCPServer
)

// IsStream reports whether the transport is stream oriented and therefore
// needs an explicit length prefix per packet.
func (p Proto) IsStream() bool {
	return p == ProtoTCPClient || p == ProtoTCPServer
}

func (p Proto) String() string {
	switch p {
	case ProtoUDP:
		return "udp"
	case ProtoTCPClient:
		return "tcp-client"
	case ProtoTCPServer:
		return "tcp-server"
	}
	return "unknown"
}

// ParseProto maps the configuration surface names onto a Proto.
func ParseProto(name string) (Proto, error) {
	switch name {
	case "udp":
		return ProtoUDP, nil
	case "tcp-client":
		return ProtoTCPClient, nil
	case "tcp-server":
		return ProtoTCPServer, nil
	}
	return ProtoUDP, errors.Errorf("%sunknown protocol '%s' -- valid protocols are 'udp', 'tcp-client' or 'tcp-server'", errPrefix, name)
}

// CompressAlg identifies the compression scheme negotiated for the tunnel
// payload. Only its framing cost matters here, not the transform itself.
type CompressAlg uint8

const (
	CompressNone CompressAlg = iota
	CompressLZO
	CompressLZ4
	CompressStub
	CompressLZ4V2
	CompressStubV2
)

// wireHeader reports whether the algorithm prepends its one byte marker to
// every packet. The second generation schemes swap a payload byte instead and
// cost nothing up front.
func (a CompressAlg) wireHeader() bool {
	switch a {
	case CompressLZO, CompressLZ4, CompressStub:
		return true
	}
	return false
}

func (a CompressAlg) String() string {
	switch a {
	case CompressNone:
		return "none"
	case CompressLZO:
		return "lzo"
	case CompressLZ4:
		return "lz4"
	case CompressStub:
		return "stub"
	case CompressLZ4V2:
		return "lz4-v2"
	case CompressStubV2:
		return "stub-v2"
	}
	return "unknown"
}

// ParseCompressAlg maps the configuration surface names onto a CompressAlg.
func ParseCompressAlg(name string) (CompressAlg, error) {
	switch name {
	case "", "none":
		return CompressNone, nil
	case "lzo":
		return CompressLZO, nil
	case "lz4":
		return CompressLZ4, nil
	case "stub":
		return CompressStub, nil
	case "lz4-v2":
		return CompressLZ4V2, nil
	case "stub-v2":
		return CompressStubV2, nil
	}
	return CompressNone, errors.Errorf("%sunknown compression algorithm '%s'", errPrefix, name)
}

// Capabilities describes what the build of the peer software is able to do.
// What the original line of systems expressed as compile time switches is a
// runtime matter here, so every code path stays present and testable.
type Capabilities struct {
	Compress bool
	Fragment bool
}

// Config is an immutable snapshot of the tunnel options that determine per
// packet overhead. BuildFrame and the overhead calculations only ever read it,
// they never hold onto it past the call.
type Config struct {
	Proto Proto
	// SocksProxy accounts for the SOCKS5 UDP relay header on the link. Stream
	// mode proxies tunnel transparently and add nothing.
	SocksProxy bool

	TLSClient bool
	TLSServer bool
	// SharedSecret is the static pre-shared key mode. It encrypts without an
	// opcode header but still pays the crypto framing cost.
	SharedSecret bool
	// UsePeerID switches the data channel to the long header carrying a
	// 24 bit peer id after the opcode.
	UsePeerID bool
	// Replay enables replay protection, which prepends a packet id to every
	// encrypted packet.
	Replay bool

	Compress CompressAlg
	// Fragment enables the internal fragmentation layer and its fixed header.
	Fragment bool

	// Exactly one of the two MTU values may be defined. BuildFrame treats a
	// violation as a configuration error.
	TunMTUDefined  bool
	TunMTU         int
	LinkMTUDefined bool
	LinkMTU        int

	// TapDevice marks ethernet style devices which deliver their link layer
	// header as tunnel payload.
	TapDevice bool
	// TunMTUExtra overrides the device headroom reserved for that header. When
	// it stays undefined tap devices fall back to TapMTUExtraDefault.
	TunMTUExtraDefined bool
	TunMTUExtra        int

	CipherName string
	AuthName   string

	Caps Capabilities
}

// TLSMode reports whether the connection negotiates its keys instead of using
// a static shared secret.
func (c *Config) TLSMode() bool {
	return c.TLSClient || c.TLSServer
}

// Secured reports whether packets are cryptographically framed at all.
func (c *Config) Secured() bool {
	return c.TLSMode() || c.SharedSecret
}

// tunMTUExtra resolves the effective device side headroom.
func (c *Config) tunMTUExtra() int {
	if c.TunMTUExtraDefined {
		return c.TunMTUExtra
	}
	if c.TapDevice {
		return TapMTUExtraDefault
	}
	return 0
}

// tunMTU resolves the device MTU the payload budget is based on, falling back
// to the conventional default when only a link MTU was configured.
func (c *Config) tunMTU() int {
	if c.TunMTU > 0 {
		return c.TunMTU
	}
	return TunMTUDefault
}

// DefaultConfig returns a snapshot resembling a plain UDP tunnel with an
// AEAD cipher and replay protection, everything else switched off.
func DefaultConfig() *Config {
	return &Config{
		Proto:         ProtoUDP,
		Replay:        true,
		TunMTUDefined: true,
		TunMTU:        TunMTUDefault,
		LinkMTU:       LinkMTUDefault,
		CipherName:    "AES-256-GCM",
		AuthName:      "SHA1",
		Caps: Capabilities{
			Compress: true,
			Fragment: true,
		},
	}
}
