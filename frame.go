package rahmen

import (
	"fmt"

	"github.com/pkg/errors"
)

// Headroom markers tag the pipeline stages whose buffers want the payload on
// an alignment boundary. A frame carries the set of stages its alignment
// adjustment applies to, buffer allocation passes the stage it allocates for.
const (
	HeadroomDecrypt uint = 1 << iota
	HeadroomFragment
	HeadroomReadLink
	HeadroomReadStream
)

// Frame is the per connection packet size budget. It is owned by the
// connection that built it, mutated only through its methods and never shared
// across concurrent mutators.
type Frame struct {
	linkMTU        int // static wire size ceiling, fixed by Finalize
	linkMTUDynamic int // active wire size ceiling, the only field that moves after Finalize

	// extraFrame is overhead that is not payload but must fit inside linkMTU,
	// mostly crypto and protocol headers.
	extraFrame int
	// extraBuffer is headroom in the backing storage for in place transforms.
	// It never appears on the wire.
	extraBuffer int
	// extraTun is overhead attributed to the device side of the pipeline, like
	// a link layer header carried as payload.
	extraTun int
	// extraLink is overhead attributed purely to the transport path.
	extraLink int

	alignFlags  uint
	alignAdjust int
}

func (f *Frame) LinkMTU() int        { return f.linkMTU }
func (f *Frame) LinkMTUDynamic() int { return f.linkMTUDynamic }
func (f *Frame) ExtraFrame() int     { return f.extraFrame }
func (f *Frame) ExtraBuffer() int    { return f.extraBuffer }
func (f *Frame) ExtraTun() int       { return f.extraTun }
func (f *Frame) ExtraLink() int      { return f.extraLink }

// TunLinkDelta is the size difference between the device and the wire view of
// a packet.
func (f *Frame) TunLinkDelta() int {
	return f.extraFrame + f.extraTun
}

// TunMTUSize is the device MTU equivalent of the static wire ceiling.
func (f *Frame) TunMTUSize() int {
	return f.linkMTU - f.TunLinkDelta()
}

// TunMTUSizeDynamic is the device MTU equivalent of the active wire ceiling.
func (f *Frame) TunMTUSizeDynamic() int {
	return f.linkMTUDynamic - f.TunLinkDelta()
}

// ExpandedSize is the static wire size ceiling including all overhead.
func (f *Frame) ExpandedSize() int {
	return f.linkMTU
}

// ExpandedSizeDynamic is the active wire size ceiling.
func (f *Frame) ExpandedSizeDynamic() int {
	return f.linkMTUDynamic
}

// ExpandedSizeMin is the smallest wire size the budget may shrink to, the
// minimum workable device MTU seen through the same deltas.
func (f *Frame) ExpandedSizeMin() int {
	return TunMTUMin + f.TunLinkDelta()
}

// PayloadSize is the largest payload the transport path accepts.
func (f *Frame) PayloadSize() int {
	return f.linkMTU - f.extraLink
}

// PayloadSizeDynamic is PayloadSize bounded by the active ceiling.
func (f *Frame) PayloadSizeDynamic() int {
	return f.linkMTUDynamic - f.extraLink
}

// MaxRWSizeTun is the most bytes a single device read or write may move.
func (f *Frame) MaxRWSizeTun() int {
	return f.PayloadSize()
}

// MaxRWSizeLink is the most bytes a single transport read or write may move.
// Reads need room for the transport side overhead on top of the full wire
// size.
func (f *Frame) MaxRWSizeLink() int {
	return f.ExpandedSize() + f.extraLink
}

// HeadroomBase is the worst case prepend budget of the whole pipeline.
func (f *Frame) HeadroomBase() int {
	return f.TunLinkDelta() + f.extraBuffer + f.extraLink
}

// Headroom returns the offset packet payloads start at inside an allocated
// buffer. The offset lands on a PayloadAlign boundary whenever mask intersects
// the frame's align flags.
func (f *Frame) Headroom(mask uint) int {
	offset := f.HeadroomBase()
	adjust := 0
	if mask&f.alignFlags != 0 {
		adjust = f.alignAdjust
	}
	delta := ((PayloadAlign << 24) - (offset + adjust)) & (PayloadAlign - 1)
	return offset + delta
}

// BufSize is the backing storage size needed to hold any packet of this
// budget at any pipeline stage.
func (f *Frame) BufSize() int {
	return f.TunMTUSize() + 2*f.HeadroomBase()
}

// AddToExtraFrame folds protocol or crypto overhead into the budget.
func (f *Frame) AddToExtraFrame(n int) {
	f.extraFrame += n
}

// AddToExtraBuffer grows the in storage headroom.
func (f *Frame) AddToExtraBuffer(n int) {
	f.extraBuffer += n
}

// AddToExtraTun grows the device side overhead.
func (f *Frame) AddToExtraTun(n int) {
	f.extraTun += n
}

// AddToExtraLink grows the transport side overhead.
func (f *Frame) AddToExtraLink(n int) {
	f.extraLink += n
}

// SetAlignAdjust overrides the stripped header size the alignment targets.
func (f *Frame) SetAlignAdjust(n int) {
	f.alignAdjust = n
}

// AlignToExtraFrame positions payloads so the plaintext left after header
// stripping starts on the alignment boundary.
func (f *Frame) AlignToExtraFrame() {
	f.SetAlignAdjust(f.extraFrame + f.extraLink)
}

// OrAlignFlags adds pipeline stages to the set the alignment adjustment
// applies to.
func (f *Frame) OrAlignFlags(mask uint) {
	f.alignFlags |= mask
}

// Finalize fixes the static wire ceiling. Exactly one of the two MTU
// specifications must be given, a device MTU is translated to wire size
// through the overhead accumulated so far. A resulting device MTU below
// TunMTUMin is a configuration error. The active ceiling starts at the static
// one.
func (f *Frame) Finalize(tunMTUDefined bool, tunMTU int, linkMTUDefined bool, linkMTU int) error {
	if tunMTUDefined == linkMTUDefined {
		panic(errPrefix + "exactly one of tun MTU and link MTU must be defined to finalize a frame")
	}
	if tunMTUDefined {
		f.linkMTU = tunMTU + f.TunLinkDelta()
	} else {
		f.linkMTU = linkMTU
	}
	if f.TunMTUSize() < TunMTUMin {
		return errors.Errorf("%stun MTU value (%d) must be at least %d: %s",
			errPrefix, f.TunMTUSize(), TunMTUMin, f.Format("MTU is too small"))
	}
	f.linkMTUDynamic = f.linkMTU
	// Slack for payloads to shift onto their alignment boundary.
	f.extraBuffer += PayloadAlign
	return nil
}

// SubtractExtra moves the frame overhead of src onto the device side of this
// budget. The sum of extraFrame and extraTun is conserved. Used when a layer
// applies its header at a later pipeline stage than the budget assumed, the
// fragmentation engine does this.
func (f *Frame) SubtractExtra(src *Frame) {
	f.extraFrame -= src.extraFrame
	f.extraTun += src.extraFrame
}

// SetMTUFlag steers how SetMTUDynamic interprets its candidate.
type SetMTUFlag uint

const (
	// SetMTUTun marks the candidate as a device side value that needs the tun
	// link delta applied before comparison.
	SetMTUTun SetMTUFlag = 1 << iota
	// SetMTUUpperBound only ever lowers the active ceiling. Discovery
	// feedback uses this so a late larger report can not grow the size back
	// past an established bound.
	SetMTUUpperBound
)

// SetMTUDynamic moves the active wire ceiling. The candidate must not be
// negative. Whatever the flags, the ceiling never leaves the range between
// ExpandedSizeMin and ExpandedSize.
func (f *Frame) SetMTUDynamic(mtu int, flags SetMTUFlag) {
	if mtu < 0 {
		panic(errPrefix + "dynamic MTU candidate must not be negative")
	}
	if flags&SetMTUTun != 0 {
		mtu += f.TunLinkDelta()
	}
	if flags&SetMTUUpperBound == 0 || mtu < f.linkMTUDynamic {
		f.linkMTUDynamic = clampInt(mtu, f.ExpandedSizeMin(), f.ExpandedSize())
	}
}

// Format renders the budget fields with their fixed tags for logs, optionally
// prefixed.
func (f *Frame) Format(prefix string) string {
	if prefix != "" {
		prefix += " "
	}
	return fmt.Sprintf("%s[ L:%d D:%d EF:%d EB:%d ET:%d EL:%d ]",
		prefix, f.linkMTU, f.linkMTUDynamic, f.extraFrame, f.extraBuffer, f.extraTun, f.extraLink)
}

func (f *Frame) String() string {
	return f.Format("")
}

// LogFrame writes the rendered budget to the logger at debug level.
func LogFrame(logger Logger, f *Frame, prefix string) {
	if logger == nil {
		return
	}
	logger.Debug(f.Format(prefix))
}

// clampInt keeps x within [min, max].
func clampInt(x, min, max int) int {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
