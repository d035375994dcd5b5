// +build !linux

package rahmen

import "syscall"

const mtuDiscoverSupported = false

// SetMTUDiscoverType is not available on this platform.
func SetMTUDiscoverType(conn syscall.Conn, t MTUDiscoverType, family Family, logger Logger) error {
	return ErrMTUDiscoverNotSupported
}

// EnableExtendedErrorPassing is not available on this platform.
func EnableExtendedErrorPassing(conn syscall.Conn, family Family, logger Logger) error {
	return ErrMTUDiscoverNotSupported
}

// DrainErrorQueue has no error queue to read on this platform.
func DrainErrorQueue(conn syscall.Conn, logger Logger) (string, int, error) {
	return "", 0, ErrMTUDiscoverNotSupported
}
