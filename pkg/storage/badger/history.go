package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/absmach/fedavg/pkg/fl"
)

// History keeps the round records of one run. Keys zero-pad the round
// number so iteration order matches round order.
type History struct {
	db     *Database
	prefix []byte
}

func NewHistoryRepository(db *Database, runID string) *History {
	return &History{
		db:     db,
		prefix: []byte("fedavg/runs/" + runID + "/rounds/"),
	}
}

func (r *History) key(round int) []byte {
	return fmt.Appendf(append([]byte(nil), r.prefix...), "%010d", round)
}

func (r *History) Append(_ context.Context, rec fl.RoundRecord) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode round %d: %w", rec.Round, err)
	}

	return r.db.insert(r.key(rec.Round), val)
}

func (r *History) Get(_ context.Context, round int) (fl.RoundRecord, error) {
	val, err := r.db.lookup(r.key(round))
	if err != nil {
		return fl.RoundRecord{}, err
	}

	return decode(val)
}

func (r *History) List(_ context.Context, offset, limit uint64) ([]fl.RoundRecord, uint64, error) {
	values, total, err := r.db.page(r.prefix, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	records := make([]fl.RoundRecord, 0, len(values))
	for _, val := range values {
		rec, err := decode(val)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}

	return records, total, nil
}

func (r *History) Count(_ context.Context) (uint64, error) {
	return r.db.count(r.prefix)
}

func decode(val []byte) (fl.RoundRecord, error) {
	var rec fl.RoundRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return fl.RoundRecord{}, fmt.Errorf("failed to decode round record: %w", err)
	}

	return rec, nil
}
