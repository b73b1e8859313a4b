package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tasklane/internal/common"
	"tasklane/internal/domain/repository"
)

const ExportFilename = "tasks_export.xlsx"

// ExportFile is a fully materialized download artifact. Files are small
// enough to buffer whole; there is no streaming path.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

type TransferService struct {
	db       *sql.DB
	taskRepo repository.TaskRepository
}

func NewTransferService(db *sql.DB, taskRepo repository.TaskRepository) *TransferService {
	return &TransferService{db: db, taskRepo: taskRepo}
}

// Import parses a tabular file and inserts every row as a task owned by
// ownerID. Malformed cells are defaulted per column, never skipped and
// never row-fatal; the only failure modes are a rejected file (bad
// extension, empty) or an unexpected error, which rolls back the whole
// batch. Returns the number of rows queued in the committed batch.
func (s *TransferService) Import(ctx context.Context, ownerID, filename string, data []byte) (int, error) {
	rows, err := decodeTabular(filename, data)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("the file is empty: %w", common.ErrBadRequest)
	}

	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start import: %v: %w", err, common.ErrImport)
	}
	defer tx.Rollback() // no-op after a successful commit

	count := 0
	for _, row := range rows {
		task := taskFromRow(row, ownerID, now)
		if err := s.taskRepo.Insert(ctx, tx, task); err != nil {
			return 0, fmt.Errorf("server failed to process file: %v: %w", err, common.ErrImport)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("server failed to commit import: %v: %w", err, common.ErrImport)
	}
	return count, nil
}

// Export materializes all of ownerID's tasks into a spreadsheet,
// preserving repository return order.
func (s *TransferService) Export(ctx context.Context, ownerID string) (*ExportFile, error) {
	tasks, err := s.taskRepo.ListByOwner(ctx, ownerID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no tasks found to export: %w", common.ErrNotFound)
	}

	data, err := encodeWorkbook(tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to build export file: %w", err)
	}
	return &ExportFile{
		Name:        ExportFilename,
		ContentType: xlsxContentType,
		Data:        data,
	}, nil
}
