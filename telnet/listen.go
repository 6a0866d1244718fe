package telnet

import (
	"context"
	"net"
	"syscall"
)

// listenWithReuse binds addr with SO_REUSEADDR so a restarted simulator can
// rebind while old sockets sit in TIME_WAIT. If the socket option cannot be
// applied the plain listener is used instead.
func listenWithReuse(addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}
	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err == nil {
		return listener, nil
	}
	return net.Listen("tcp", addr)
}

func reuseAddrControl(_, _ string, raw syscall.RawConn) error {
	var optErr error
	if err := raw.Control(func(fd uintptr) { optErr = setReuseAddr(fd) }); err != nil {
		return err
	}
	return optErr
}
