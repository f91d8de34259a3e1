package tcp

import (
	"net"
	"time"

	"github.com/pkg/errors"
)

// Client is a deadline-guarded reader over a single accepted connection.
// Read returns a slice of the internal buffer, valid until the next call.
type Client interface {
	Read() ([]byte, error)
	Write([]byte) error
	Remote() net.Addr
	Close() error
}

type client struct {
	conn    net.Conn
	buff    []byte
	timeout time.Duration
}

func NewClient(conn net.Conn, timeout time.Duration, buffSize int) Client {
	return &client{
		conn:    conn,
		buff:    make([]byte, buffSize),
		timeout: timeout,
	}
}

func (c *client) Read() ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, errors.Wrap(err, "setting read deadline")
	}

	n, err := c.conn.Read(c.buff)

	return c.buff[:n], err
}

func (c *client) Write(b []byte) error {
	_, err := c.conn.Write(b)

	return errors.Wrap(err, "writing to peer")
}

func (c *client) Remote() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *client) Close() error {
	return c.conn.Close()
}
