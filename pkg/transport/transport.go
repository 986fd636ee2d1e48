// Package transport provides a reliable, ordered, message-framed channel
// between the coordinator and each participant. Every frame is a 4-byte
// big-endian payload length followed by the codec-encoded message.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/absmach/fedavg/pkg/codec"
)

const (
	MaxFrameSize = 64 << 20
	headerSize   = 4
)

var (
	ErrTransport     = errors.New("transport failure")
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	ErrDecode        = errors.New("failed to decode frame")
	ErrClosed        = errors.New("connection closed")

	// expired is used to unblock pending I/O once a context is done.
	expired = time.Unix(1, 0)
)

type Conn interface {
	Send(ctx context.Context, msg codec.Message) error
	Receive(ctx context.Context) (codec.Message, error)
	Close() error
	RemoteAddr() string
}

// deadline arms a socket deadline for the duration of one call. The
// generation keeps a context callback that fires late from expiring the
// deadline of a later call.
type deadline struct {
	mu  sync.Mutex
	gen uint64
	set func(time.Time) error
}

func (d *deadline) arm(ctx context.Context) (func(), error) {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	at, _ := ctx.Deadline()
	err := d.set(at)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		if d.gen == gen {
			_ = d.set(expired)
		}
	})

	return func() {
		stop()
		d.mu.Lock()
		d.gen++
		d.mu.Unlock()
	}, nil
}

type conn struct {
	nc    net.Conn
	codec codec.Codec

	rmu   sync.Mutex
	wmu   sync.Mutex
	read  deadline
	write deadline

	closeOnce sync.Once
	closeErr  error
}

func NewConn(nc net.Conn, c codec.Codec) Conn {
	return &conn{
		nc:    nc,
		codec: c,
		read:  deadline{set: nc.SetReadDeadline},
		write: deadline{set: nc.SetWriteDeadline},
	}
}

func (c *conn) Send(ctx context.Context, msg codec.Message) error {
	payload, err := c.codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", msg.Type, err)
	}
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	frame := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[headerSize:], payload)

	c.wmu.Lock()
	defer c.wmu.Unlock()

	disarm, err := c.write.arm(ctx)
	if err != nil {
		return c.failure(ctx, err)
	}
	defer disarm()

	if _, err := c.nc.Write(frame); err != nil {
		return c.failure(ctx, err)
	}

	return nil
}

func (c *conn) Receive(ctx context.Context) (codec.Message, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	disarm, err := c.read.arm(ctx)
	if err != nil {
		return codec.Message{}, c.failure(ctx, err)
	}
	defer disarm()

	var header [headerSize]byte
	if _, err := io.ReadFull(c.nc, header[:]); err != nil {
		return codec.Message{}, c.failure(ctx, err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		// The stream cannot be resynchronised past an oversized frame.
		return codec.Message{}, errors.Join(ErrTransport, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size))
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(c.nc, payload); err != nil {
		return codec.Message{}, c.failure(ctx, err)
	}

	var msg codec.Message
	if err := c.codec.Unmarshal(payload, &msg); err != nil {
		return codec.Message{}, errors.Join(ErrDecode, err)
	}

	return msg, nil
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.nc.Close()
	})

	return c.closeErr
}

func (c *conn) RemoteAddr() string {
	if addr := c.nc.RemoteAddr(); addr != nil {
		return addr.String()
	}

	return ""
}

func (c *conn) failure(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return errors.Join(ErrTransport, ctx.Err())
	case errors.Is(err, os.ErrDeadlineExceeded) && deadlinePassed(ctx):
		// The socket deadline can fire before the context records it.
		return errors.Join(ErrTransport, context.DeadlineExceeded)
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe):
		return errors.Join(ErrTransport, ErrClosed)
	default:
		return errors.Join(ErrTransport, err)
	}
}

func deadlinePassed(ctx context.Context) bool {
	at, ok := ctx.Deadline()

	return ok && !time.Now().Before(at)
}

type Listener struct {
	ln    net.Listener
	codec codec.Codec
}

func Listen(address string, c codec.Codec) (*Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	return &Listener{ln: ln, codec: c}, nil
}

// Accept blocks until a participant connects or the listener is closed.
func (l *Listener) Accept() (Conn, error) {
	nc, err := l.ln.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}

		return nil, err
	}

	return NewConn(nc, l.codec), nil
}

func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

func (l *Listener) Close() error {
	return l.ln.Close()
}

func Dial(ctx context.Context, address string, c codec.Codec) (Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.Join(ErrTransport, fmt.Errorf("failed to dial %s: %w", address, err))
	}

	return NewConn(nc, c), nil
}

// Pipe returns two connected in-memory endpoints.
func Pipe(c codec.Codec) (Conn, Conn) {
	a, b := net.Pipe()

	return NewConn(a, c), NewConn(b, c)
}
