package rahmen

import "github.com/pkg/errors"

// Buffer is a fixed capacity packet buffer with explicit headroom. Capacity
// and offsets come from a finalized Frame, so an overrun means the budget was
// computed wrong and surfaces as an error instead of a silent reallocation.
type Buffer struct {
	data   []byte
	offset int
	length int
}

// AllocSockTunBuffer returns a buffer dimensioned for one packet of the given
// budget. tuntap selects the device read size over the transport read size,
// mask places the payload for the pipeline stage the buffer serves.
func AllocSockTunBuffer(f *Frame, tuntap bool, mask uint) *Buffer {
	b := &Buffer{
		data:   make([]byte, f.BufSize()),
		offset: f.Headroom(mask),
	}
	if tuntap {
		b.length = f.MaxRWSizeTun()
	} else {
		b.length = f.MaxRWSizeLink()
	}
	if b.offset+b.length > len(b.data) {
		panic(errPrefix + "allocated buffer can not hold its own read size")
	}
	return b
}

// Bytes returns the occupied payload area.
func (b *Buffer) Bytes() []byte {
	return b.data[b.offset : b.offset+b.length]
}

// Len returns the payload length.
func (b *Buffer) Len() int {
	return b.length
}

// Headroom returns the bytes available in front of the payload.
func (b *Buffer) Headroom() int {
	return b.offset
}

// Cap returns the payload capacity behind the current offset.
func (b *Buffer) Cap() int {
	return len(b.data) - b.offset
}

// Resize sets the payload length within the remaining capacity.
func (b *Buffer) Resize(size int) error {
	if size < 0 || b.offset+size > len(b.data) {
		return errors.Errorf("%sbuffer resize to %d exceeds capacity %d", errPrefix, size, b.Cap())
	}
	b.length = size
	return nil
}

// Prepend claims size bytes of headroom directly in front of the payload and
// returns them for the caller to fill.
func (b *Buffer) Prepend(size int) ([]byte, error) {
	if size < 0 || size > b.offset {
		return nil, errors.Errorf("%sbuffer prepend of %d exceeds headroom %d", errPrefix, size, b.offset)
	}
	b.offset -= size
	b.length += size
	return b.data[b.offset : b.offset+size], nil
}

// Append copies p behind the payload and grows it accordingly.
func (b *Buffer) Append(p []byte) error {
	if b.offset+b.length+len(p) > len(b.data) {
		return errors.Errorf("%sbuffer append of %d bytes exceeds capacity %d", errPrefix, len(p), b.Cap())
	}
	copy(b.data[b.offset+b.length:], p)
	b.length += len(p)
	return nil
}

// Reset empties the payload and restores the given headroom.
func (b *Buffer) Reset(headroom int) error {
	if headroom < 0 || headroom > len(b.data) {
		return errors.Errorf("%sbuffer reset with headroom %d outside of capacity %d", errPrefix, headroom, len(b.data))
	}
	b.offset = headroom
	b.length = 0
	return nil
}
