package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/absmach/fedavg/pkg/errors"
	"github.com/absmach/fedavg/pkg/fl"
)

var _ HistoryRepository = (*sequenced)(nil)

// sequenced enforces that rounds are appended exactly once and without gaps,
// starting at round 1.
type sequenced struct {
	mu   sync.Mutex
	repo HistoryRepository
}

func Sequenced(repo HistoryRepository) HistoryRepository {
	return &sequenced{repo: repo}
}

func (s *sequenced) Append(ctx context.Context, rec fl.RoundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Round <= 0 {
		return fmt.Errorf("%w: round %d", errors.ErrInvalidData, rec.Round)
	}

	last, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}

	switch next := int(last) + 1; {
	case rec.Round < next:
		return fmt.Errorf("%w: round %d", errors.ErrEntityExists, rec.Round)
	case rec.Round > next:
		return fmt.Errorf("%w: got round %d, want %d", errors.ErrOutOfOrder, rec.Round, next)
	}

	return s.repo.Append(ctx, rec)
}

func (s *sequenced) Get(ctx context.Context, round int) (fl.RoundRecord, error) {
	return s.repo.Get(ctx, round)
}

func (s *sequenced) List(ctx context.Context, offset, limit uint64) ([]fl.RoundRecord, uint64, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *sequenced) Count(ctx context.Context) (uint64, error) {
	return s.repo.Count(ctx)
}
