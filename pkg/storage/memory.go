package storage

import (
	"context"
	"sync"

	"github.com/absmach/fedavg/pkg/errors"
	"github.com/absmach/fedavg/pkg/fl"
)

type inMemoryHistory struct {
	sync.RWMutex

	records []fl.RoundRecord
}

func NewInMemoryHistory() HistoryRepository {
	return &inMemoryHistory{
		records: make([]fl.RoundRecord, 0),
	}
}

func (s *inMemoryHistory) Append(_ context.Context, rec fl.RoundRecord) error {
	s.Lock()
	defer s.Unlock()

	s.records = append(s.records, rec.Clone())

	return nil
}

func (s *inMemoryHistory) Get(_ context.Context, round int) (fl.RoundRecord, error) {
	s.RLock()
	defer s.RUnlock()

	for _, rec := range s.records {
		if rec.Round == round {
			return rec.Clone(), nil
		}
	}

	return fl.RoundRecord{}, errors.ErrNotFound
}

func (s *inMemoryHistory) List(_ context.Context, offset, limit uint64) ([]fl.RoundRecord, uint64, error) {
	s.RLock()
	defer s.RUnlock()

	total := uint64(len(s.records))
	if offset >= total {
		return []fl.RoundRecord{}, total, nil
	}

	end := min(offset+limit, total)
	result := make([]fl.RoundRecord, 0, end-offset)
	for _, rec := range s.records[offset:end] {
		result = append(result, rec.Clone())
	}

	return result, total, nil
}

func (s *inMemoryHistory) Count(_ context.Context) (uint64, error) {
	s.RLock()
	defer s.RUnlock()

	return uint64(len(s.records)), nil
}
