//go:build windows

package ingest

import (
	"net"
	"syscall"
)

// listenConfig sets SO_REUSEADDR so a restarted sniffer can rebind the
// ingest port right away.
func listenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			})
		},
	}
}
