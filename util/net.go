package util

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// IsNetworkClosed checks if the given error tells closing of network connection
func IsNetworkClosed(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Err.Error() == "use of closed network connection"
	}
	return false
}

// IsNetworkTimeout checks if the given error is network timeout
func IsNetworkTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ListenReusableUDP opens a UDP socket with SO_REUSEADDR, so that the same address can be bound again right after
// closing or by other subscribers of the same multicast group
func ListenReusableUDP(address string) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, rawConn syscall.RawConn) error {
			var serr error
			if err := rawConn.Control(func(fd uintptr) {
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}); err != nil {
				return err
			}
			return serr
		},
	}
	pconn, err := lc.ListenPacket(context.Background(), "udp4", address)
	if err != nil {
		return nil, err
	}
	return pconn.(*net.UDPConn), nil
}

// TrySetUDPReadBuffer attempts to set socket receive buffer within the range given
//
// Returns the size actually granted by kernel, which may be lower than requested due to net.core.rmem_max
func TrySetUDPReadBuffer(conn *net.UDPConn, max int, min int) (int, error) {
	var err error
	val := max
	for val >= min {
		err = conn.SetReadBuffer(val)
		if err == nil {
			return readSocketBufferSize(conn, val), nil
		}
		if !strings.HasSuffix(err.Error(), "setsockopt: no buffer space available") {
			return -1, err
		}
		val /= 2
	}
	if val != min {
		err = conn.SetReadBuffer(min)
		if err == nil {
			return readSocketBufferSize(conn, min), nil
		}
	}
	return -1, err
}

func readSocketBufferSize(conn *net.UDPConn, fallback int) int {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return fallback
	}
	size := fallback
	_ = rawConn.Control(func(fd uintptr) {
		// kernel reports the doubled value including bookkeeping overhead
		if v, gerr := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF); gerr == nil {
			size = v / 2
		}
	})
	return size
}
