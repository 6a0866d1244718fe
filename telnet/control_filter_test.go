package telnet

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func TestControlFilterDropsTwoByteCommands(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	filtered := newControlFilterConn(server)

	chunks := [][]byte{
		{'a', IAC},
		{244, 'b', IAC, IAC, IAC, WILL, OptEcho, IAC, 249, IAC},
		{246, 'c'},
	}
	go func() {
		for _, chunk := range chunks {
			if _, err := client.Write(chunk); err != nil {
				return
			}
		}
		client.Close()
	}()

	_ = server.SetReadDeadline(time.Now().Add(5 * time.Second))
	want := []byte{'a', 'b', IAC, IAC, IAC, WILL, OptEcho, IAC, 249, 'c'}
	got := make([]byte, len(want))
	if _, err := io.ReadFull(filtered, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("filtered % X, want % X", got, want)
	}
	if n, err := filtered.Read(make([]byte, 8)); n != 0 || !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after close, got n=%d err=%v", n, err)
	}
}
