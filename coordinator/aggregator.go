package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/absmach/fedavg/pkg/codec"
	"github.com/absmach/fedavg/pkg/fl"
	"github.com/absmach/fedavg/pkg/transport"
)

const (
	defaultSendTimeout = 10 * time.Second
	eventBuffer        = 64
)

type AggregatorConfig struct {
	// Quota is the number of identities admitted into the run.
	Quota int
	// Dimension of the model. Zero means it is taken from the first
	// registration that declares one.
	Dimension   int
	SendTimeout time.Duration
}

type event struct {
	session *Session
	msg     codec.Message
	err     error
}

// Aggregator owns the sessions of a run and the current global model.
// Apart from Admit, its methods are called from the coordination path only.
type Aggregator struct {
	logger      *slog.Logger
	fedavg      fl.Aggregator
	quota       int
	sendTimeout time.Duration

	mu       sync.RWMutex
	dim      int
	sessions map[string]*Session
	order    []string
	closed   bool
	changed  chan struct{}
	model    fl.GlobalModel

	events chan event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAggregator(cfg AggregatorConfig, logger *slog.Logger) *Aggregator {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Aggregator{
		logger:      logger,
		fedavg:      fl.NewFedAvgAggregator(),
		quota:       cfg.Quota,
		sendTimeout: cfg.SendTimeout,
		dim:         cfg.Dimension,
		sessions:    make(map[string]*Session),
		changed:     make(chan struct{}),
		events:      make(chan event, eventBuffer),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Admit registers a participant identity and acknowledges it. Identities are
// never admitted twice in a run, including identities that were dropped.
func (a *Aggregator) Admit(id string, conn transport.Conn, info codec.Info) (*Session, error) {
	s, err := a.reserve(id, conn, info)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(a.ctx, a.sendTimeout)
	defer cancel()
	if err := conn.Send(ctx, codec.Message{Type: codec.Registered, ParticipantID: id}); err != nil {
		a.release(s)

		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		s.drop(ErrAggregatorClosed)

		return nil, ErrAggregatorClosed
	}
	if err := s.transition(Registered); err != nil {
		return nil, err
	}
	a.notifyLocked()

	a.wg.Add(1)
	go a.read(s)

	a.logger.Info("participant registered",
		slog.String("participant_id", id),
		slog.String("handle", s.handle),
		slog.Int("samples", info.Samples),
		slog.String("remote_addr", conn.RemoteAddr()),
	)

	return s, nil
}

func (a *Aggregator) reserve(id string, conn transport.Conn, info codec.Info) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case a.closed:
		return nil, ErrAggregatorClosed
	case id == "":
		return nil, fmt.Errorf("%w: missing participant id", ErrHandshake)
	}
	if _, ok := a.sessions[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentity, id)
	}
	if a.connectedLocked() >= a.quota {
		return nil, fmt.Errorf("%w: %d participants", ErrSessionFull, a.quota)
	}
	if info.Dimension > 0 {
		if a.dim == 0 {
			a.dim = info.Dimension
		}
		if info.Dimension != a.dim {
			return nil, fmt.Errorf("%w: participant declared %d, run uses %d", fl.ErrDimensionMismatch, info.Dimension, a.dim)
		}
	}

	s := newSession(id, conn, info)
	a.sessions[id] = s
	a.order = append(a.order, id)

	return s, nil
}

// release forgets a session whose acknowledgement could not be delivered.
func (a *Aggregator) release(s *Session) {
	s.drop(transport.ErrTransport)

	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.sessions, s.id)
	for i, id := range a.order {
		if id == s.id {
			a.order = append(a.order[:i], a.order[i+1:]...)

			break
		}
	}
}

// connectedLocked counts the sessions holding a quota slot. Dropped sessions
// stay in the map so their identity is refused, but free their slot.
func (a *Aggregator) connectedLocked() int {
	n := 0
	for _, s := range a.sessions {
		if !s.in(Disconnected) {
			n++
		}
	}

	return n
}

func (a *Aggregator) notifyLocked() {
	close(a.changed)
	a.changed = make(chan struct{})
}

// WaitForParticipants blocks until n participants are registered and
// connected, the deadline elapses or ctx is done.
func (a *Aggregator) WaitForParticipants(ctx context.Context, n int, deadline time.Duration) error {
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	for {
		a.mu.RLock()
		changed := a.changed
		a.mu.RUnlock()

		registered := a.count(Registered)
		if registered >= n {
			return nil
		}

		select {
		case <-changed:
		case <-timer.C:
			return fmt.Errorf("%w: %d of %d registered", ErrRegistrationDeadline, a.count(Registered), n)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *Aggregator) Dimension() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.dim
}

// BroadcastRound sends the round's global model to every session that is
// ready for a new round and returns how many sends succeeded. Sessions whose
// send fails are disconnected, not retried.
func (a *Aggregator) BroadcastRound(ctx context.Context, round int, model fl.GlobalModel) int {
	model = model.Clone()
	model.Round = round
	msg := codec.NewTrain(model)

	var sent atomic.Int64
	err := a.fanOut(a.snapshot(Registered, UpdateReceived), func(s *Session) error {
		if err := s.transition(AwaitingUpdate); err != nil {
			return err
		}
		if err := a.send(ctx, s, msg); err != nil {
			a.disconnect(s, err)

			return err
		}
		sent.Add(1)

		return nil
	})
	if err != nil {
		a.logger.WarnContext(ctx, "round broadcast incomplete", slog.Int("round", round), slog.Any("error", err))
	}

	a.logger.InfoContext(ctx, "round broadcast",
		slog.Int("round", round),
		slog.Int64("participants", sent.Load()),
	)

	return int(sent.Load())
}

// CollectUpdates waits until every session awaiting an update for round
// delivered a valid one or the timeout elapses. Sessions still pending at the
// timeout are dropped. Updates are returned in arrival order.
func (a *Aggregator) CollectUpdates(ctx context.Context, round int, timeout time.Duration) ([]fl.ModelUpdate, error) {
	pending := make(map[string]*Session)
	for _, s := range a.snapshot(AwaitingUpdate) {
		pending[s.id] = s
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	dim := a.Dimension()
	updates := make([]fl.ModelUpdate, 0, len(pending))
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return updates, ctx.Err()
		case <-timer.C:
			for _, s := range pending {
				a.timeout(ctx, s, round)
			}

			return updates, nil
		case ev := <-a.events:
			if ev.err != nil {
				delete(pending, ev.session.id)

				continue
			}
			if _, ok := pending[ev.session.id]; !ok || ev.msg.Type != codec.Update {
				a.discard(ctx, ev, round)

				continue
			}

			update, err := a.validateUpdate(ev, dim, round)
			if err != nil {
				a.logger.WarnContext(ctx, "discarded update",
					slog.String("participant_id", ev.session.id),
					slog.Int("round", round),
					slog.Any("error", err),
				)

				continue
			}
			if err := ev.session.accept(round); err != nil {
				delete(pending, ev.session.id)

				continue
			}
			delete(pending, ev.session.id)
			updates = append(updates, update)
		}
	}

	return updates, nil
}

func (a *Aggregator) validateUpdate(ev event, dim, round int) (fl.ModelUpdate, error) {
	if ev.msg.Update == nil {
		return fl.ModelUpdate{}, fmt.Errorf("%w: missing update payload", fl.ErrMalformedUpdate)
	}

	update := *ev.msg.Update
	switch update.ParticipantID {
	case "":
		update.ParticipantID = ev.session.id
	case ev.session.id:
	default:
		return fl.ModelUpdate{}, fmt.Errorf("%w: update for %q sent by %q", fl.ErrMalformedUpdate, update.ParticipantID, ev.session.id)
	}
	if err := update.Validate(dim, round); err != nil {
		return fl.ModelUpdate{}, err
	}

	return update, nil
}

// Aggregate combines the updates of a round into the next global model.
func (a *Aggregator) Aggregate(updates []fl.ModelUpdate) (fl.GlobalModel, error) {
	if len(updates) == 0 {
		return fl.GlobalModel{}, fl.ErrEmptyRound
	}

	dim := a.Dimension()
	for _, u := range updates {
		if len(u.Parameters) != dim {
			return fl.GlobalModel{}, fmt.Errorf("%w: %s sent %d parameters, want %d", fl.ErrDimensionMismatch, u.ParticipantID, len(u.Parameters), dim)
		}
	}

	return a.fedavg.Aggregate(updates[0].Round, updates)
}

// EvaluateGlobal asks the round's contributors to score model on their
// held-out data. Participants that do not answer before the timeout are left
// out of the result but stay in the run.
func (a *Aggregator) EvaluateGlobal(ctx context.Context, round int, model fl.GlobalModel, timeout time.Duration) ([]fl.Evaluation, error) {
	model = model.Clone()
	model.Round = round
	msg := codec.NewEvaluate(model)

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
	)
	err := a.fanOut(a.snapshot(UpdateReceived), func(s *Session) error {
		if err := a.send(ctx, s, msg); err != nil {
			a.disconnect(s, err)

			return err
		}
		mu.Lock()
		pending[s.id] = struct{}{}
		mu.Unlock()

		return nil
	})
	if err != nil {
		a.logger.WarnContext(ctx, "evaluation request incomplete", slog.Int("round", round), slog.Any("error", err))
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	evaluations := make([]fl.Evaluation, 0, len(pending))
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return evaluations, ctx.Err()
		case <-timer.C:
			a.logger.WarnContext(ctx, "evaluation timed out",
				slog.Int("round", round),
				slog.Int("missing", len(pending)),
			)

			return evaluations, nil
		case ev := <-a.events:
			if ev.err != nil {
				delete(pending, ev.session.id)

				continue
			}
			if _, ok := pending[ev.session.id]; !ok || ev.msg.Type != codec.Evaluation {
				a.discard(ctx, ev, round)

				continue
			}

			e := ev.msg.Evaluation
			if e == nil || e.Round != round || math.IsNaN(e.Accuracy) || e.Accuracy < 0 || e.Accuracy > 1 {
				a.logger.WarnContext(ctx, "discarded evaluation",
					slog.String("participant_id", ev.session.id),
					slog.Int("round", round),
				)

				continue
			}
			delete(pending, ev.session.id)
			evaluations = append(evaluations, fl.Evaluation{
				ParticipantID: ev.session.id,
				Round:         round,
				Accuracy:      e.Accuracy,
			})
		}
	}

	return evaluations, nil
}

// Publish replaces the current global model.
func (a *Aggregator) Publish(model fl.GlobalModel) {
	model = model.Clone()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.model = model
}

func (a *Aggregator) Model() fl.GlobalModel {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.model.Clone()
}

// Finish sends the final model to every remaining participant.
func (a *Aggregator) Finish(ctx context.Context, model fl.GlobalModel) int {
	msg := codec.NewDone(model.Clone())

	var done atomic.Int64
	err := a.fanOut(a.snapshot(Registered, UpdateReceived), func(s *Session) error {
		if err := a.send(ctx, s, msg); err != nil {
			a.disconnect(s, err)

			return err
		}
		if err := s.transition(Done); err != nil {
			return err
		}
		done.Add(1)

		return nil
	})
	if err != nil {
		a.logger.WarnContext(ctx, "final model not delivered to every participant", slog.Any("error", err))
	}

	return int(done.Load())
}

// fanOut runs fn for every session concurrently and joins the failures,
// each tagged with its participant id. A failure does not stop the others.
func (a *Aggregator) fanOut(sessions []*Session, fn func(*Session) error) error {
	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := fn(s); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", s.id, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Close disconnects every session and waits for their readers to exit.
func (a *Aggregator) Close() error {
	a.mu.Lock()
	a.closed = true
	sessions := make([]*Session, 0, len(a.sessions))
	for _, s := range a.sessions {
		sessions = append(sessions, s)
	}
	a.mu.Unlock()

	a.cancel()
	for _, s := range sessions {
		s.drop(ErrAggregatorClosed)
	}
	a.wg.Wait()

	return nil
}

// Sessions lists every admitted session in admission order.
func (a *Aggregator) Sessions() []SessionInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(a.order))
	for _, id := range a.order {
		infos = append(infos, a.sessions[id].Info())
	}

	return infos
}

// Active returns the number of sessions that are still connected.
func (a *Aggregator) Active() int {
	return len(a.snapshot(Registered, AwaitingUpdate, UpdateReceived, Done))
}

func (a *Aggregator) count(states ...State) int {
	return len(a.snapshot(states...))
}

func (a *Aggregator) snapshot(states ...State) []*Session {
	a.mu.RLock()
	defer a.mu.RUnlock()

	sessions := make([]*Session, 0, len(a.order))
	for _, id := range a.order {
		if s := a.sessions[id]; s.in(states...) {
			sessions = append(sessions, s)
		}
	}

	return sessions
}

func (a *Aggregator) send(ctx context.Context, s *Session, msg codec.Message) error {
	ctx, cancel := context.WithTimeout(ctx, a.sendTimeout)
	defer cancel()

	return s.conn.Send(ctx, msg)
}

func (a *Aggregator) disconnect(s *Session, err error) {
	if s.drop(err) {
		a.logger.Warn("participant disconnected",
			slog.String("participant_id", s.id),
			slog.Any("error", err),
		)
	}
}

func (a *Aggregator) timeout(ctx context.Context, s *Session, round int) {
	if s.drop(ErrParticipantTimeout) {
		a.logger.WarnContext(ctx, "participant dropped",
			slog.String("participant_id", s.id),
			slog.Int("round", round),
			slog.Any("error", ErrParticipantTimeout),
		)
	}
}

func (a *Aggregator) discard(ctx context.Context, ev event, round int) {
	a.logger.DebugContext(ctx, "discarded stale message",
		slog.String("participant_id", ev.session.id),
		slog.String("type", string(ev.msg.Type)),
		slog.Int("message_round", ev.msg.Round),
		slog.Int("round", round),
	)
}

// read forwards the messages of a session to the coordination path and
// answers keepalives on its own.
func (a *Aggregator) read(s *Session) {
	defer a.wg.Done()

	for {
		msg, err := s.conn.Receive(a.ctx)
		switch {
		case errors.Is(err, transport.ErrDecode):
			a.logger.Warn("discarded undecodable message",
				slog.String("participant_id", s.id),
				slog.Any("error", err),
			)

			continue
		case err != nil:
			a.disconnect(s, err)
			a.emit(event{session: s, err: err})

			return
		}

		if msg.Type == codec.Ping {
			if err := a.send(a.ctx, s, codec.Message{Type: codec.Pong}); err != nil {
				a.disconnect(s, err)
			}

			continue
		}

		if !a.emit(event{session: s, msg: msg}) {
			return
		}
	}
}

func (a *Aggregator) emit(ev event) bool {
	select {
	case a.events <- ev:
		return true
	case <-a.ctx.Done():
		return false
	}
}
