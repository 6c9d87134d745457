//go:build !linux && !windows

package ingest

import "net"

// listenConfig binds without extra socket options.
func listenConfig() net.ListenConfig {
	return net.ListenConfig{}
}
