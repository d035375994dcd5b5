// +build linux

package rahmen

import (
	"net"
	"syscall"
	"testing"
	"time"
	"unsafe"

	"github.com/phayes/freeport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func recvErrMsg(level, typ int32, ee unix.SockExtendedErr) unix.SocketControlMessage {
	data := make([]byte, sizeofSockExtendedErr)
	*(*unix.SockExtendedErr)(unsafe.Pointer(&data[0])) = ee
	m := unix.SocketControlMessage{Data: data}
	m.Header.Level = level
	m.Header.Type = typ
	return m
}

func TestProcessErrQueueMsg(t *testing.T) {
	ev, extras := processErrQueueMsg([]unix.SocketControlMessage{
		recvErrMsg(unix.SOL_IP, unix.IP_RECVERR, unix.SockExtendedErr{
			Errno:  uint32(syscall.EMSGSIZE),
			Origin: unix.SO_EE_ORIGIN_ICMP,
			Info:   1350,
		}),
	})
	assert.Empty(t, extras)
	assert.Equal(t, EventMessageTooBig, ev.Kind)
	assert.EqualValues(t, 1350, ev.PathMTU)

	// No control data at all means no information, which ends a drain.
	ev, extras = processErrQueueMsg(nil)
	assert.Empty(t, extras)
	assert.Equal(t, EventNoInfo, ev.Kind)

	// Unrecognized ancillary messages surface as raw type tags.
	ttl := unix.SocketControlMessage{Data: []byte{64, 0, 0, 0}}
	ttl.Header.Level = unix.SOL_IP
	ttl.Header.Type = unix.IP_TTL
	ev, extras = processErrQueueMsg([]unix.SocketControlMessage{ttl})
	assert.Equal(t, []string{"CMSG=2"}, extras)
	assert.Equal(t, EventNoInfo, ev.Kind)

	ev, extras = processErrQueueMsg([]unix.SocketControlMessage{
		ttl,
		recvErrMsg(unix.SOL_IP, unix.IP_RECVERR, unix.SockExtendedErr{
			Errno:  uint32(syscall.EHOSTUNREACH),
			Origin: unix.SO_EE_ORIGIN_ICMP,
		}),
	})
	assert.Equal(t, []string{"CMSG=2"}, extras)
	assert.Equal(t, EventHostUnreachable, ev.Kind)

	ev, _ = processErrQueueMsg([]unix.SocketControlMessage{
		recvErrMsg(unix.SOL_IPV6, unix.IPV6_RECVERR, unix.SockExtendedErr{
			Errno:  uint32(syscall.EMSGSIZE),
			Origin: unix.SO_EE_ORIGIN_ICMP6,
			Info:   1280,
		}),
	})
	assert.Equal(t, EventMessageTooBig, ev.Kind)
	assert.EqualValues(t, 1280, ev.PathMTU)

	// A truncated extended error carries no usable information.
	short := unix.SocketControlMessage{Data: []byte{1, 2, 3}}
	short.Header.Level = unix.SOL_IP
	short.Header.Type = unix.IP_RECVERR
	ev, _ = processErrQueueMsg([]unix.SocketControlMessage{short})
	assert.Equal(t, EventNoInfo, ev.Kind)
}

func TestDrainStateAccumulation(t *testing.T) {
	batches := [][]unix.SocketControlMessage{
		{recvErrMsg(unix.SOL_IP, unix.IP_RECVERR, unix.SockExtendedErr{
			Errno:  uint32(syscall.EMSGSIZE),
			Origin: unix.SO_EE_ORIGIN_ICMP,
			Info:   1350,
		})},
		nil,
		{recvErrMsg(unix.SOL_IP, unix.IP_RECVERR, unix.SockExtendedErr{
			Errno:  uint32(syscall.EMSGSIZE),
			Origin: unix.SO_EE_ORIGIN_ICMP,
			Info:   900,
		})},
	}

	var state drainState
	read := 0
	for _, msgs := range batches {
		read++
		if !state.absorb(msgs) {
			break
		}
	}

	// The notification without extended error information ends the drain, the
	// batch behind it is never read.
	assert.Equal(t, 2, read)
	assert.Equal(t, "EMSGSIZE Path-MTU=1350|NO-INFO", state.diagnostic())
	assert.EqualValues(t, 1350, state.mtu)
}

func TestDrainStateLatchesLatestMTU(t *testing.T) {
	var state drainState
	for i, mtu := range []uint32{1400, 1350} {
		keepGoing := state.absorb([]unix.SocketControlMessage{
			recvErrMsg(unix.SOL_IP, unix.IP_RECVERR, unix.SockExtendedErr{
				Errno:  uint32(syscall.EMSGSIZE),
				Origin: unix.SO_EE_ORIGIN_ICMP,
				Info:   mtu,
			}),
		})
		assert.True(t, keepGoing, "[case %d]", i)
	}
	assert.Equal(t, "EMSGSIZE Path-MTU=1400|EMSGSIZE Path-MTU=1350", state.diagnostic())
	assert.EqualValues(t, 1350, state.mtu)
}

func newLocalUDPConn(t *testing.T) *net.UDPConn {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	return conn
}

func getsockoptInt(t *testing.T, conn syscall.Conn, level, opt int) int {
	rc, err := conn.SyscallConn()
	require.NoError(t, err)
	var (
		val    int
		optErr error
	)
	require.NoError(t, rc.Control(func(fd uintptr) {
		val, optErr = unix.GetsockoptInt(int(fd), level, opt)
	}))
	require.NoError(t, optErr)
	return val
}

func TestSetMTUDiscoverType(t *testing.T) {
	conn := newLocalUDPConn(t)
	defer conn.Close()

	require.NoError(t, SetMTUDiscoverType(conn, MTUDiscoverDo, FamilyIPv4, nil))
	assert.EqualValues(t, unix.IP_PMTUDISC_DO, getsockoptInt(t, conn, unix.IPPROTO_IP, unix.IP_MTU_DISCOVER))

	require.NoError(t, SetMTUDiscoverType(conn, MTUDiscoverWant, FamilyIPv4, nil))
	assert.EqualValues(t, unix.IP_PMTUDISC_WANT, getsockoptInt(t, conn, unix.IPPROTO_IP, unix.IP_MTU_DISCOVER))

	require.NoError(t, SetMTUDiscoverType(conn, MTUDiscoverDont, FamilyIPv4, nil))
	assert.EqualValues(t, unix.IP_PMTUDISC_DONT, getsockoptInt(t, conn, unix.IPPROTO_IP, unix.IP_MTU_DISCOVER))

	// The wrong family on a supported platform only costs the discovery.
	require.NoError(t, SetMTUDiscoverType(conn, MTUDiscoverDo, FamilyIPv6, nil))

	assert.Equal(t, ErrMTUDiscoverNotSupported, SetMTUDiscoverType(conn, MTUDiscoverDo, Family(9), nil))
}

func TestEnableExtendedErrorPassing(t *testing.T) {
	conn := newLocalUDPConn(t)
	defer conn.Close()

	require.NoError(t, EnableExtendedErrorPassing(conn, FamilyIPv4, nil))
	assert.EqualValues(t, 1, getsockoptInt(t, conn, unix.IPPROTO_IP, unix.IP_RECVERR))
}

func TestDrainErrorQueueEmpty(t *testing.T) {
	conn := newLocalUDPConn(t)
	defer conn.Close()

	diag, mtu, err := DrainErrorQueue(conn, nil)
	require.NoError(t, err)
	assert.Empty(t, diag)
	assert.EqualValues(t, 0, mtu)
}

func TestDrainErrorQueueConnRefused(t *testing.T) {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, EnableExtendedErrorPassing(conn, FamilyIPv4, nil))

	// Nothing listens on the target port, so the local stack answers with a
	// port unreachable that lands on the error queue.
	var diag string
	for i := 0; i < 40 && diag == ""; i++ {
		conn.Write([]byte("probe"))
		time.Sleep(25 * time.Millisecond)
		d, mtu, err := DrainErrorQueue(conn, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 0, mtu)
		diag = d
	}
	require.NotEmpty(t, diag)
	assert.Contains(t, diag, "ECONNREFUSED")
}
