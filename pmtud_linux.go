// +build linux

package rahmen

import (
	"strconv"
	"strings"
	"syscall"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const mtuDiscoverSupported = true

// pmtudiscOption maps the discovery type onto the kernel's per family option
// values.
func pmtudiscOption(t MTUDiscoverType, family Family) int {
	if family == FamilyIPv6 {
		switch t {
		case MTUDiscoverDo:
			return unix.IPV6_PMTUDISC_DO
		case MTUDiscoverWant:
			return unix.IPV6_PMTUDISC_WANT
		}
		return unix.IPV6_PMTUDISC_DONT
	}
	switch t {
	case MTUDiscoverDo:
		return unix.IP_PMTUDISC_DO
	case MTUDiscoverWant:
		return unix.IP_PMTUDISC_WANT
	}
	return unix.IP_PMTUDISC_DONT
}

// SetMTUDiscoverType applies the discovery behavior to the socket for the
// given address family. A family without the option is a hard error, failure
// to apply the option is only logged and the connection proceeds without
// discovery.
func SetMTUDiscoverType(conn syscall.Conn, t MTUDiscoverType, family Family, logger Logger) error {
	if logger == nil {
		logger = dummyLogger{}
	}
	var level, opt int
	switch family {
	case FamilyIPv4:
		level, opt = unix.IPPROTO_IP, unix.IP_MTU_DISCOVER
	case FamilyIPv6:
		level, opt = unix.IPPROTO_IPV6, unix.IPV6_MTU_DISCOVER
	default:
		return ErrMTUDiscoverNotSupported
	}
	rc, err := conn.SyscallConn()
	if err != nil {
		return errors.Wrap(err, errPrefix+"failed to access raw socket")
	}
	var sockErr error
	if ctrlErr := rc.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), level, opt, pmtudiscOption(t, family))
	}); ctrlErr != nil {
		return errors.Wrap(ctrlErr, errPrefix+"failed to access raw socket")
	}
	if sockErr != nil {
		logger.WithError(sockErr).WithFields(map[string]interface{}{
			"type":   t.String(),
			"family": family.String(),
		}).Warn("Failed to set MTU discovery type on socket")
	}
	return nil
}

// EnableExtendedErrorPassing asks the kernel to queue oversize and
// unreachable notifications on the socket error queue instead of dropping
// them. Best effort, a failure only costs the discovery feedback.
func EnableExtendedErrorPassing(conn syscall.Conn, family Family, logger Logger) error {
	if logger == nil {
		logger = dummyLogger{}
	}
	var level, opt int
	switch family {
	case FamilyIPv4:
		level, opt = unix.IPPROTO_IP, unix.IP_RECVERR
	case FamilyIPv6:
		level, opt = unix.IPPROTO_IPV6, unix.IPV6_RECVERR
	default:
		return ErrMTUDiscoverNotSupported
	}
	rc, err := conn.SyscallConn()
	if err != nil {
		return errors.Wrap(err, errPrefix+"failed to access raw socket")
	}
	var sockErr error
	if ctrlErr := rc.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), level, opt, 1)
	}); ctrlErr != nil {
		return errors.Wrap(ctrlErr, errPrefix+"failed to access raw socket")
	}
	if sockErr != nil {
		logger.WithError(sockErr).Warn("Note: enable extended error passing on TCP/UDP socket failed (IP_RECVERR)")
	}
	return nil
}

// Minimum control payload that holds a complete sock_extended_err.
const sizeofSockExtendedErr = int(unsafe.Sizeof(unix.SockExtendedErr{}))

// processErrQueueMsg inspects the control data of one error queue message. It
// returns the classified event plus the raw tags of unrecognized ancillary
// messages in scan order. Without any extended error the event is NoInfo.
func processErrQueueMsg(msgs []unix.SocketControlMessage) (DiscoveryEvent, []string) {
	var (
		ee     *unix.SockExtendedErr
		extras []string
	)
	for i := range msgs {
		m := &msgs[i]
		switch {
		case m.Header.Level == unix.SOL_IP && m.Header.Type == unix.IP_RECVERR,
			m.Header.Level == unix.SOL_IPV6 && m.Header.Type == unix.IPV6_RECVERR:
			if len(m.Data) >= sizeofSockExtendedErr {
				ee = (*unix.SockExtendedErr)(unsafe.Pointer(&m.Data[0]))
			}
		case m.Header.Level == unix.SOL_IP || m.Header.Level == unix.SOL_IPV6:
			extras = append(extras, "CMSG="+strconv.Itoa(int(m.Header.Type)))
		}
	}
	if ee == nil {
		return DiscoveryEvent{Kind: EventNoInfo}, extras
	}
	return classifyExtendedError(syscall.Errno(ee.Errno), ee.Info), extras
}

// drainState accumulates the outcome of one error queue drain.
type drainState struct {
	tokens []string
	mtu    int
}

// absorb folds the control messages of one queued notification into the
// outcome and reports whether the drain should keep reading. A notification
// without extended error information ends the drain. The admissible size of
// the latest oversize report wins.
func (s *drainState) absorb(msgs []unix.SocketControlMessage) bool {
	ev, extras := processErrQueueMsg(msgs)
	s.tokens = append(s.tokens, extras...)
	s.tokens = append(s.tokens, ev.Token())
	if ev.Kind == EventMessageTooBig {
		s.mtu = ev.PathMTU
	}
	return ev.Kind != EventNoInfo
}

func (s *drainState) diagnostic() string {
	return strings.Join(s.tokens, "|")
}

// DrainErrorQueue reads the socket error queue until it is empty, classifying
// every queued notification. It returns the accumulated diagnostic string and
// the last admissible packet size the kernel reported, zero if none. Callers
// feed that size back through Frame.SetMTUDynamic with SetMTUUpperBound. An
// empty queue is not an error. A message without extended error information
// ends the drain early.
func DrainErrorQueue(conn syscall.Conn, logger Logger) (string, int, error) {
	if logger == nil {
		logger = dummyLogger{}
	}
	rc, err := conn.SyscallConn()
	if err != nil {
		return "", 0, errors.Wrap(err, errPrefix+"failed to access raw socket")
	}
	var state drainState
	if ctrlErr := rc.Control(func(fd uintptr) {
		payload := make([]byte, 512)
		oob := make([]byte, 256)
		for {
			_, oobn, _, _, err := unix.Recvmsg(int(fd), payload, oob, unix.MSG_ERRQUEUE|unix.MSG_DONTWAIT)
			if err != nil {
				// EAGAIN is the regular end of the queue.
				if err != unix.EAGAIN {
					logger.WithError(err).Debug("Stopped draining socket error queue")
				}
				return
			}
			msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
			if err != nil {
				logger.WithError(err).Debug("Failed to parse control messages from error queue")
				return
			}
			if !state.absorb(msgs) {
				return
			}
		}
	}); ctrlErr != nil {
		return "", 0, errors.Wrap(ctrlErr, errPrefix+"failed to access raw socket")
	}
	return state.diagnostic(), state.mtu, nil
}
