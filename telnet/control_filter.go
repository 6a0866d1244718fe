package telnet

import "net"

const (
	cmdNOP = 241 // first two-byte command ziutek rejects (NOP..EL)
	cmdEL  = 248
)

// controlFilterConn strips two-byte telnet commands (NOP, DM, BRK, IP, AO,
// AYT, EC, EL) from the read side before ziutek sees them. ziutek treats any
// of these as a read error, which would end the session on a client Ctrl-C.
// Option negotiation, subnegotiation, GA and escaped 0xFF pass through. An
// IAC at the end of one read is held until the next read decides it.
type controlFilterConn struct {
	net.Conn
	heldIAC bool
	out     []byte
	buf     []byte
}

func newControlFilterConn(conn net.Conn) *controlFilterConn {
	return &controlFilterConn{Conn: conn}
}

func (c *controlFilterConn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(c.out) == 0 {
		if len(c.buf) < len(p) {
			c.buf = make([]byte, len(p))
		}
		n, err := c.Conn.Read(c.buf[:len(p)])
		c.out = c.filter(c.out[:0], c.buf[:n])
		if err != nil {
			if len(c.out) == 0 {
				return 0, err
			}
			n := copy(p, c.out)
			c.out = c.out[n:]
			return n, err
		}
	}
	n := copy(p, c.out)
	c.out = c.out[n:]
	return n, nil
}

func (c *controlFilterConn) filter(dst, src []byte) []byte {
	for _, b := range src {
		if c.heldIAC {
			c.heldIAC = false
			if b >= cmdNOP && b <= cmdEL {
				continue
			}
			dst = append(dst, IAC, b)
			continue
		}
		if b == IAC {
			c.heldIAC = true
			continue
		}
		dst = append(dst, b)
	}
	return dst
}
