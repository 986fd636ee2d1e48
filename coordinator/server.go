package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/fedavg/pkg/codec"
	"github.com/absmach/fedavg/pkg/transport"
)

const defaultHandshakeTimeout = 10 * time.Second

// Server accepts participant connections and runs the registration
// handshake on each of them.
type Server struct {
	agg              *Aggregator
	handshakeTimeout time.Duration
	logger           *slog.Logger
	wg               sync.WaitGroup
}

func NewServer(agg *Aggregator, handshakeTimeout time.Duration, logger *slog.Logger) *Server {
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}

	return &Server{
		agg:              agg,
		handshakeTimeout: handshakeTimeout,
		logger:           logger,
	}
}

// Serve accepts connections until ctx is done or the listener fails.
func (s *Server) Serve(ctx context.Context, ln *transport.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()
	defer s.wg.Wait()

	s.logger.Info("accepting participants", slog.String("address", ln.Addr()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, transport.ErrClosed) && ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("failed to accept participant: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.Handshake(ctx, conn); err != nil {
				s.logger.Warn("registration rejected",
					slog.String("remote_addr", conn.RemoteAddr()),
					slog.Any("error", err),
				)
			}
		}()
	}
}

// Handshake waits for a register message and admits the participant. A
// rejected participant is told why before its connection is closed.
func (s *Server) Handshake(ctx context.Context, conn transport.Conn) error {
	hctx, cancel := context.WithTimeout(ctx, s.handshakeTimeout)
	defer cancel()

	msg, err := conn.Receive(hctx)
	if err != nil {
		_ = conn.Close()

		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	if msg.Type != codec.Register {
		return s.reject(hctx, conn, fmt.Errorf("%w: expected %s, got %s", ErrHandshake, codec.Register, msg.Type))
	}

	var info codec.Info
	if msg.Info != nil {
		info = *msg.Info
	}

	if _, err := s.agg.Admit(msg.ParticipantID, conn, info); err != nil {
		if errors.Is(err, transport.ErrTransport) {
			_ = conn.Close()

			return err
		}

		return s.reject(hctx, conn, err)
	}

	return nil
}

func (s *Server) reject(ctx context.Context, conn transport.Conn, reason error) error {
	if err := conn.Send(ctx, codec.NewRejected(reason.Error())); err != nil {
		reason = errors.Join(reason, err)
	}
	_ = conn.Close()

	return reason
}
