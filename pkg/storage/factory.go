package storage

import (
	"fmt"
	"io"

	"github.com/absmach/fedavg/pkg/storage/badger"
	"github.com/absmach/fedavg/pkg/storage/file"
)

type Config struct {
	Type string `env:"COORDINATOR_STORAGE_TYPE" envDefault:"memory"`

	FileDir string `env:"COORDINATOR_FILE_DIR" envDefault:"./data/rounds"`

	BadgerPath string `env:"COORDINATOR_BADGER_PATH" envDefault:"./data/badger"`
}

type Repositories struct {
	History HistoryRepository
	// Closer releases the underlying persistent storage.
	// It is nil for the in-memory backend.
	Closer io.Closer
}

// NewRepositories opens the configured backend with round history scoped to
// runID, so that several runs can share the same store.
func NewRepositories(cfg Config, runID string) (*Repositories, error) {
	switch cfg.Type {
	case "badger":
		return newBadgerRepositories(cfg, runID)
	case "file":
		return newFileRepositories(cfg, runID)
	case "memory", "":
		return &Repositories{History: Sequenced(NewInMemoryHistory())}, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func newBadgerRepositories(cfg Config, runID string) (*Repositories, error) {
	db, err := badger.NewDatabase(cfg.BadgerPath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		History: Sequenced(badger.NewHistoryRepository(db, runID)),
		Closer:  db,
	}, nil
}

func newFileRepositories(cfg Config, runID string) (*Repositories, error) {
	repo, err := file.NewHistoryRepository(cfg.FileDir, runID)
	if err != nil {
		return nil, err
	}

	return &Repositories{History: Sequenced(repo)}, nil
}
