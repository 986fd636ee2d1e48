// Package file persists round history as one JSON document per round.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	"github.com/absmach/fedavg/pkg/fl"
)

var ErrInvalidRunID = errors.New("invalid run id")

type History struct {
	mu  sync.RWMutex
	dir string
}

func NewHistoryRepository(root, runID string) (*History, error) {
	id := sanitizeRunID(runID)
	if id == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}

	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create rounds directory: %w", err)
	}

	return &History{dir: dir}, nil
}

func (h *History) Append(_ context.Context, rec fl.RoundRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal round record: %w", err)
	}

	// Written through a temporary file so readers never see a partial record.
	tmp, err := os.CreateTemp(h.dir, ".round-*")
	if err != nil {
		return fmt.Errorf("failed to create round file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()

		return fmt.Errorf("failed to write round file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write round file: %w", err)
	}

	if err := os.Rename(tmp.Name(), h.path(rec.Round)); err != nil {
		return fmt.Errorf("failed to commit round file: %w", err)
	}

	return nil
}

func (h *History) Get(_ context.Context, round int) (fl.RoundRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.read(h.path(round))
}

func (h *History) List(_ context.Context, offset, limit uint64) ([]fl.RoundRecord, uint64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names, err := h.names()
	if err != nil {
		return nil, 0, err
	}

	total := uint64(len(names))
	if offset >= total {
		return []fl.RoundRecord{}, total, nil
	}

	end := min(offset+limit, total)
	records := make([]fl.RoundRecord, 0, end-offset)
	for _, name := range names[offset:end] {
		rec, err := h.read(filepath.Join(h.dir, name))
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}

	return records, total, nil
}

func (h *History) Count(_ context.Context) (uint64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names, err := h.names()
	if err != nil {
		return 0, err
	}

	return uint64(len(names)), nil
}

func (h *History) path(round int) string {
	return filepath.Join(h.dir, fmt.Sprintf("round_%06d.json", round))
}

// names returns the round files in round order; the zero padded file names
// make lexical order match numeric order.
func (h *History) names() ([]string, error) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read rounds directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var round int
		if _, err := fmt.Sscanf(entry.Name(), "round_%d.json", &round); err == nil {
			names = append(names, entry.Name())
		}
	}

	return names, nil
}

func (h *History) read(path string) (fl.RoundRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fl.RoundRecord{}, pkgerrors.ErrNotFound
		}

		return fl.RoundRecord{}, fmt.Errorf("failed to read round file: %w", err)
	}

	var rec fl.RoundRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fl.RoundRecord{}, fmt.Errorf("failed to unmarshal round record: %w", err)
	}

	return rec, nil
}

// sanitizeRunID keeps only characters that are safe in a single path element.
func sanitizeRunID(runID string) string {
	var b strings.Builder
	for _, r := range runID {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}

	return b.String()
}
