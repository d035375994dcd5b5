package rahmen

import (
	"github.com/pkg/errors"
)

// packetIDLongForm reports whether replay protection must use the long form
// encoding. Outside of negotiated key mode there is no session context to
// disambiguate short ids, and feedback mode ciphers consume the full encoding
// as their IV seed.
func packetIDLongForm(cfg *Config, kt KeyType) bool {
	return !cfg.TLSMode() || kt.Cipher.Mode.Feedback()
}

// linkHeaderSize is the slice of the protocol header attributed to the
// transport path: proxy relay header and stream length prefix.
func linkHeaderSize(cfg *Config) int {
	n := 0
	if cfg.SocksProxy && !cfg.Proto.IsStream() {
		// Stream mode proxies tunnel transparently, only the UDP relay
		// prepends its header to every packet.
		n += socksUDPOverhead
	}
	if cfg.Proto.IsStream() {
		n += streamPrefixSize
	}
	return n
}

// tlsOpcodeSize is the data channel opcode overhead in negotiated key mode.
func tlsOpcodeSize(cfg *Config) int {
	if !cfg.TLSMode() {
		return 0
	}
	if cfg.UsePeerID {
		return opcodeSize + peerIDSize
	}
	return opcodeSize
}

// ProtocolHeaderSize returns the bytes of link overhead in front of the
// tunnel payload: proxy header, stream length prefix, opcode and peer id, and
// the cryptographic framing. All terms are additive.
func ProtocolHeaderSize(kt KeyType, cfg *Config, payloadSize int, estimate bool) int {
	n := linkHeaderSize(cfg)
	n += tlsOpcodeSize(cfg)
	n += CryptoOverhead(kt, cfg.Replay, packetIDLongForm(cfg, kt), payloadSize, estimate)
	return n
}

// PayloadOverhead returns the bytes consumed inside the tunnel payload before
// user data: the device side extra, the compression marker and the
// fragmentation header. The capability flags drop terms the peer build can
// not produce.
func PayloadOverhead(f *Frame, cfg *Config, includeExtraTun bool) int {
	n := 0
	if includeExtraTun {
		n += f.ExtraTun()
	}
	if cfg.Caps.Compress && cfg.Compress.wireHeader() {
		n += compressV1HeaderSize
	}
	if cfg.Caps.Fragment && cfg.Fragment {
		n += fragmentHeaderSize
	}
	return n
}

// PayloadSize returns the packet size the tunnel carries for the configured
// device MTU, payload overhead included.
func PayloadSize(f *Frame, cfg *Config) int {
	return cfg.tunMTU() + PayloadOverhead(f, cfg, true)
}

// OptionsStringLinkMTU computes the on wire MTU announced to the peer for
// option compatibility checks. Without any crypto the payload size is the
// answer. Otherwise the configured cipher is resolved through its overhead
// strategy and a worst case header estimate is added. The estimate runs at
// payload size zero, announcement values must not depend on runtime payload
// lengths.
func OptionsStringLinkMTU(cfg *Config, f *Frame) (int, error) {
	payload := PayloadSize(f, cfg)
	if !cfg.Secured() {
		return payload, nil
	}
	strategy := overheadStrategyFor(cfg.CipherName)
	kt, err := NewKeyType(strategy.Substitute, cfg.AuthName)
	if err != nil {
		return 0, err
	}
	return payload + ProtocolHeaderSize(kt, cfg, 0, true) + strategy.Fixed, nil
}

// compressExtraBuffer is the storage margin for compression runs over
// incompressible data.
func compressExtraBuffer(payload int) int {
	return payload/256 + 16
}

// BuildFrame folds every configured overhead source into a finalized budget.
// This is the constructor connections call once at setup. The passed key type
// is only consulted when the configuration actually encrypts.
func BuildFrame(cfg *Config, kt KeyType, logger Logger) (*Frame, error) {
	if logger == nil {
		logger = dummyLogger{}
	}
	if cfg.TunMTUDefined == cfg.LinkMTUDefined {
		return nil, errors.Errorf("%sexactly one of tun MTU and link MTU must be configured", errPrefix)
	}

	f := &Frame{}
	if cfg.Secured() {
		f.AddToExtraFrame(CryptoOverhead(kt, cfg.Replay, packetIDLongForm(cfg, kt), 0, true))
	}
	f.AddToExtraFrame(tlsOpcodeSize(cfg))
	f.AddToExtraLink(linkHeaderSize(cfg))

	if cfg.Caps.Compress && cfg.Compress != CompressNone {
		// Every algorithm reserves its marker byte up front, the second
		// generation ones swap it into the payload later.
		f.AddToExtraFrame(compressV1HeaderSize)
		f.AddToExtraBuffer(compressExtraBuffer(cfg.tunMTU()))
	}
	if cfg.Caps.Fragment && cfg.Fragment {
		f.AddToExtraFrame(fragmentHeaderSize)
	}
	if extra := cfg.tunMTUExtra(); extra > 0 {
		f.AddToExtraTun(extra)
	}

	f.AlignToExtraFrame()
	f.OrAlignFlags(HeadroomDecrypt | HeadroomReadLink | HeadroomReadStream)
	if cfg.Caps.Fragment && cfg.Fragment {
		f.OrAlignFlags(HeadroomFragment)
	}

	if err := f.Finalize(cfg.TunMTUDefined, cfg.TunMTU, cfg.LinkMTUDefined, cfg.LinkMTU); err != nil {
		return nil, err
	}
	logger.WithFields(map[string]interface{}{
		"frame":   f.String(),
		"keyType": kt.String(),
	}).Debug("Initialized frame parameters")
	return f, nil
}
