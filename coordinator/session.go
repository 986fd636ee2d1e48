package coordinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/absmach/fedavg/pkg/codec"
	"github.com/absmach/fedavg/pkg/transport"
	"github.com/google/uuid"
)

type State uint8

const (
	Connecting State = iota
	Registered
	AwaitingUpdate
	UpdateReceived
	Done
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Registered:
		return "registered"
	case AwaitingUpdate:
		return "awaiting_update"
	case UpdateReceived:
		return "update_received"
	case Done:
		return "done"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Disconnected is reachable from every state except itself.
var transitions = map[State][]State{
	Connecting:     {Registered},
	Registered:     {AwaitingUpdate, Done},
	AwaitingUpdate: {UpdateReceived},
	UpdateReceived: {AwaitingUpdate, Done},
	Done:           {},
}

func (s State) canTransition(to State) bool {
	if s == Disconnected {
		return false
	}
	if to == Disconnected {
		return true
	}
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}

	return false
}

// Session is the coordinator's view of one connected participant.
type Session struct {
	id          string
	handle      string
	conn        transport.Conn
	info        codec.Info
	connectedAt time.Time

	mu            sync.Mutex
	state         State
	lastSeenRound int
	reason        error
}

type SessionInfo struct {
	ID            string    `json:"id"`
	Handle        string    `json:"handle"`
	State         string    `json:"state"`
	LastSeenRound int       `json:"last_seen_round"`
	Samples       int       `json:"n_samples,omitempty"`
	RemoteAddr    string    `json:"remote_addr,omitempty"`
	ConnectedAt   time.Time `json:"connected_at"`
	Reason        string    `json:"reason,omitempty"`
}

func newSession(id string, conn transport.Conn, info codec.Info) *Session {
	return &Session{
		id:          id,
		handle:      uuid.NewString(),
		conn:        conn,
		info:        info,
		connectedAt: time.Now(),
		state:       Connecting,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Handle() string {
	return s.handle
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) LastSeenRound() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastSeenRound
}

func (s *Session) transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transitionLocked(to)
}

func (s *Session) transitionLocked(to State) error {
	if !s.state.canTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	s.state = to

	return nil
}

// accept records a valid update for round; it fails unless the session is
// awaiting an update.
func (s *Session) accept(round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transitionLocked(UpdateReceived); err != nil {
		return err
	}
	s.lastSeenRound = round

	return nil
}

// drop moves the session to Disconnected and closes its connection. It
// reports false when the session was already disconnected.
func (s *Session) drop(reason error) bool {
	s.mu.Lock()
	if s.state == Disconnected {
		s.mu.Unlock()

		return false
	}
	s.state = Disconnected
	s.reason = reason
	s.mu.Unlock()

	_ = s.conn.Close()

	return true
}

func (s *Session) in(states ...State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range states {
		if s.state == st {
			return true
		}
	}

	return false
}

func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := SessionInfo{
		ID:            s.id,
		Handle:        s.handle,
		State:         s.state.String(),
		LastSeenRound: s.lastSeenRound,
		Samples:       s.info.Samples,
		RemoteAddr:    s.conn.RemoteAddr(),
		ConnectedAt:   s.connectedAt,
	}
	if s.reason != nil {
		info.Reason = s.reason.Error()
	}

	return info
}
