//go:build !linux

package udp

import "syscall"

func enableBroadcast(network, address string, c syscall.RawConn) error {
	return nil
}
