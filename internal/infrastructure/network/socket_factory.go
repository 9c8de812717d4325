package network

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

func ListenTCP(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return 0, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return 0, err
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return 0, err
	}

	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return 0, err
	}

	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return 0, err
	}

	return fd, nil
}

// ListenPort reports the port a listener is actually bound to, which
// matters when ListenTCP was given port 0.
func ListenPort(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, err
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, fmt.Errorf("unexpected sockaddr type %T", sa)
	}
	return in4.Port, nil
}

// Connect starts a non-blocking IPv4 connect. EINPROGRESS is the normal
// outcome; completion is observed later through a writable event and
// ConnectProbe.
func Connect(ip net.IP, port int) (int, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return 0, fmt.Errorf("not an IPv4 address: %s", ip)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return 0, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return 0, err
	}

	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip4)
	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return 0, err
	}
	return fd, nil
}

// ConnectProbe reports whether a non-blocking connect on fd has finished.
// (false, nil) means still in flight; a failed connect comes back as the
// pending socket error.
func ConnectProbe(fd int) (bool, error) {
	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return false, err
	}
	if soErr != 0 {
		return false, unix.Errno(soErr)
	}
	if _, err := unix.Getpeername(fd); err != nil {
		if err == unix.ENOTCONN || err == unix.EINVAL {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
