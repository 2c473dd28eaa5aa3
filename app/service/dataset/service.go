package dataset

import (
	"fmt"
	"log/slog"
	"moobot/app/config"
	"moobot/app/util/mylog"
	"os"

	"github.com/samber/do"
)

type Service struct {
	table   *Table
	loadErr error
}

// New loads the configured dataset. A load failure is logged and leaves the
// service with an empty table.
func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	table, err := Load(cfg.Dataset.Path)
	if err != nil {
		slog.Warn("Failed to load dataset, continuing with an empty table",
			"path", cfg.Dataset.Path,
			"error", err,
			mylog.TelegramKey, true)

		return &Service{table: Empty(), loadErr: err}, nil
	}

	slog.Info("Dataset loaded",
		"path", cfg.Dataset.Path,
		"rows", table.Len(),
		"cows", len(table.cows))

	return &Service{table: table}, nil
}

func NewFromTable(table *Table) *Service {
	return &Service{table: table}
}

func Load(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

func (s *Service) Table() *Table {
	return s.table
}

// LoadError is the startup failure, if the table was replaced by an empty one.
func (s *Service) LoadError() error {
	return s.loadErr
}
