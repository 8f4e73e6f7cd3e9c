package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

var ErrNotRunning = errors.New("daemon not running")

// Client is a connection to a running daemon
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	sendMu  sync.Mutex
}

// Dial connects to the session's daemon, retrying briefly while it starts.
func Dial(ctx context.Context, sessionID string) (*Client, error) {
	sockPath := SocketPath(sessionID)
	var d net.Dialer
	var conn net.Conn
	var err error
	for i := 0; i < 10; i++ {
		conn, err = d.DialContext(ctx, "unix", sockPath)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Client{conn: conn, scanner: scanner}, nil
}

func (c *Client) Close() error {
	c.send(Message{Type: MsgUnsubscribe})
	return c.conn.Close()
}

// Status asks for a single snapshot.
func (c *Client) Status(ctx context.Context) (StatusPayload, error) {
	if err := c.send(Message{Type: MsgStatus}); err != nil {
		return StatusPayload{}, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
	}
	for {
		msg, err := c.read()
		if err != nil {
			return StatusPayload{}, err
		}
		if msg.Type == MsgStatus {
			var p StatusPayload
			return p, msg.Decode(&p)
		}
		if msg.Type == MsgError {
			return StatusPayload{}, decodeError(msg)
		}
	}
}

// Subscribe calls fn for every status push until ctx is done or the daemon
// hangs up.
func (c *Client) Subscribe(ctx context.Context, clientID string, fn func(StatusPayload)) error {
	if err := c.send(Message{Type: MsgSubscribe, ClientID: clientID}); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { c.conn.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		msg, err := c.read()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		switch msg.Type {
		case MsgStatus:
			var p StatusPayload
			if err := msg.Decode(&p); err == nil {
				fn(p)
			}
		case MsgError:
			return decodeError(msg)
		}
	}
}

// Ping round-trips a keep-alive.
func (c *Client) Ping() error {
	if err := c.send(Message{Type: MsgPing}); err != nil {
		return err
	}
	c.conn.SetReadDeadline(time.Now().Add(time.Second))
	defer c.conn.SetReadDeadline(time.Time{})
	for {
		msg, err := c.read()
		if err != nil {
			return err
		}
		if msg.Type == MsgPong {
			return nil
		}
	}
}

func (c *Client) read() (Message, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Message{}, err
		}
		return Message{}, ErrNotRunning
	}
	var msg Message
	if err := json.Unmarshal(c.scanner.Bytes(), &msg); err != nil {
		return Message{}, fmt.Errorf("malformed frame: %w", err)
	}
	return msg, nil
}

func (c *Client) send(msg Message) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, err = c.conn.Write(append(data, '\n'))
	return err
}

func decodeError(msg Message) error {
	var p ErrorPayload
	if err := msg.Decode(&p); err != nil {
		return errors.New("daemon error")
	}
	return errors.New(p.Message)
}
