package rahmen

import (
	"strconv"
	"syscall"

	"github.com/pkg/errors"
)

// MTUDiscoverType selects the kernel's path MTU discovery behavior for a
// socket.
type MTUDiscoverType uint8

const (
	// MTUDiscoverDo prohibits fragmentation, every packet leaves with DF set.
	MTUDiscoverDo MTUDiscoverType = iota
	// MTUDiscoverWant follows per route hints.
	MTUDiscoverWant
	// MTUDiscoverDont never sets DF, discovery stays off.
	MTUDiscoverDont
)

func (t MTUDiscoverType) String() string {
	switch t {
	case MTUDiscoverDo:
		return "yes"
	case MTUDiscoverWant:
		return "maybe"
	case MTUDiscoverDont:
		return "no"
	}
	return "unknown"
}

// Family selects the address family a socket option applies to.
type Family uint8

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	}
	return "unknown"
}

// ErrMTUDiscoverNotSupported is returned on platforms and address families
// missing the socket options for path MTU discovery.
var ErrMTUDiscoverNotSupported = errors.New(errPrefix + "mtu discovery is not supported on this OS")

// TranslateMTUDiscoverTypeName maps the configuration surface names onto a
// discovery type. Anything but the three valid names is a configuration
// error. A platform without discovery support rejects all of them.
func TranslateMTUDiscoverTypeName(name string) (MTUDiscoverType, error) {
	if !mtuDiscoverSupported {
		return MTUDiscoverDont, ErrMTUDiscoverNotSupported
	}
	switch name {
	case "yes":
		return MTUDiscoverDo, nil
	case "maybe":
		return MTUDiscoverWant, nil
	case "no":
		return MTUDiscoverDont, nil
	}
	return MTUDiscoverDont, errors.Errorf("%sinvalid mtu discovery type: '%s' -- valid types are 'yes', 'maybe', or 'no'", errPrefix, name)
}

// DiscoveryEventKind classifies one kernel reported transmission error.
type DiscoveryEventKind uint8

const (
	EventUnknown DiscoveryEventKind = iota
	EventTimeout
	EventMessageTooBig
	EventConnRefused
	EventProtoError
	EventHostUnreachable
	EventNetUnreachable
	EventPermissionDenied
	EventNoInfo
)

// DiscoveryEvent is the classification of a single drained error queue entry.
// PathMTU carries the admissible packet size and is only set for
// EventMessageTooBig.
type DiscoveryEvent struct {
	Kind    DiscoveryEventKind
	PathMTU int
}

// classifyExtendedError maps an error code from the socket error queue onto a
// discovery event. info is the auxiliary value of the notification, for
// oversize reports it holds the path MTU.
func classifyExtendedError(errno syscall.Errno, info uint32) DiscoveryEvent {
	switch errno {
	case syscall.ETIMEDOUT:
		return DiscoveryEvent{Kind: EventTimeout}
	case syscall.EMSGSIZE:
		return DiscoveryEvent{Kind: EventMessageTooBig, PathMTU: int(info)}
	case syscall.ECONNREFUSED:
		return DiscoveryEvent{Kind: EventConnRefused}
	case syscall.EPROTO:
		return DiscoveryEvent{Kind: EventProtoError}
	case syscall.EHOSTUNREACH:
		return DiscoveryEvent{Kind: EventHostUnreachable}
	case syscall.ENETUNREACH:
		return DiscoveryEvent{Kind: EventNetUnreachable}
	case syscall.EACCES:
		return DiscoveryEvent{Kind: EventPermissionDenied}
	}
	return DiscoveryEvent{Kind: EventUnknown}
}

// Token returns the event's tag in the fixed diagnostic vocabulary.
func (e DiscoveryEvent) Token() string {
	switch e.Kind {
	case EventTimeout:
		return "ETIMEDOUT"
	case EventMessageTooBig:
		return "EMSGSIZE Path-MTU=" + strconv.Itoa(e.PathMTU)
	case EventConnRefused:
		return "ECONNREFUSED"
	case EventProtoError:
		return "EPROTO"
	case EventHostUnreachable:
		return "EHOSTUNREACH"
	case EventNetUnreachable:
		return "ENETUNREACH"
	case EventPermissionDenied:
		return "EACCES"
	case EventNoInfo:
		return "NO-INFO"
	}
	return "UNKNOWN"
}
