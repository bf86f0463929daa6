package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shrinkray/compression-backend/internal/compression/domain"
	"github.com/shrinkray/compression-backend/pkg/database"
)

// HistoryEntry is a persisted per-file compression outcome
type HistoryEntry struct {
	ID             string              `db:"id" json:"id"`
	JobID          string              `db:"job_id" json:"job_id"`
	FileName       string              `db:"file_name" json:"file_name"`
	Category       domain.FileCategory `db:"category" json:"category"`
	OriginalSize   int64               `db:"original_size" json:"original_size"`
	CompressedSize int64               `db:"compressed_size" json:"compressed_size"`
	Reduction      float64             `db:"reduction" json:"reduction"`
	Success        bool                `db:"success" json:"success"`
	Error          string              `db:"error" json:"error,omitempty"`
	DurationMS     int64               `db:"duration_ms" json:"duration_ms"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
}

// HistoryStats aggregates saved bytes across all recorded compressions
type HistoryStats struct {
	TotalFiles           int64   `db:"total_files" json:"total_files"`
	TotalOriginalBytes   int64   `db:"total_original_bytes" json:"total_original_bytes"`
	TotalCompressedBytes int64   `db:"total_compressed_bytes" json:"total_compressed_bytes"`
	AverageReduction     float64 `db:"average_reduction" json:"average_reduction"`
}

// HistoryRepository handles compression history persistence
type HistoryRepository struct {
	db *database.DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record persists the outcome of one file's compression
func (r *HistoryRepository) Record(ctx context.Context, result domain.CompressedResult) error {
	var compressedSize int64
	if result.Compressed != nil {
		compressedSize = result.Compressed.Size
	}

	query := `
		INSERT INTO compression_history (id, job_id, file_name, category, original_size,
		                                 compressed_size, reduction, success, error, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		uuid.New().String(),
		result.JobID,
		result.Original.Name,
		result.Category,
		result.Original.Size,
		compressedSize,
		result.Reduction,
		result.Success,
		result.Error,
		result.Duration.Milliseconds(),
	)
	return err
}

// HistoryFilter contains filter options for history listings
type HistoryFilter struct {
	JobID    string
	Category domain.FileCategory
	Success  *bool
}

// List lists history entries with pagination and filtering, newest first
func (r *HistoryRepository) List(ctx context.Context, filter *HistoryFilter, page, perPage int) ([]*HistoryEntry, int64, error) {
	args := []interface{}{}
	argIndex := 1

	countQuery := `SELECT COUNT(*) FROM compression_history WHERE 1=1`
	query := `
		SELECT id, job_id, file_name, category, original_size, compressed_size,
		       reduction, success, error, duration_ms, created_at
		FROM compression_history
		WHERE 1=1
	`

	if filter != nil {
		if filter.JobID != "" {
			clause := fmt.Sprintf(` AND job_id = $%d`, argIndex)
			countQuery += clause
			query += clause
			args = append(args, filter.JobID)
			argIndex++
		}
		if filter.Category != "" {
			clause := fmt.Sprintf(` AND category = $%d`, argIndex)
			countQuery += clause
			query += clause
			args = append(args, filter.Category)
			argIndex++
		}
		if filter.Success != nil {
			clause := fmt.Sprintf(` AND success = $%d`, argIndex)
			countQuery += clause
			query += clause
			args = append(args, *filter.Success)
			argIndex++
		}
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_at DESC`
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, argIndex, argIndex+1)
	args = append(args, perPage, (page-1)*perPage)

	var entries []*HistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// Stats returns aggregate savings across all successful compressions
func (r *HistoryRepository) Stats(ctx context.Context) (*HistoryStats, error) {
	query := `
		SELECT COUNT(*) AS total_files,
		       COALESCE(SUM(original_size), 0) AS total_original_bytes,
		       COALESCE(SUM(compressed_size), 0) AS total_compressed_bytes,
		       COALESCE(AVG(reduction), 0) AS average_reduction
		FROM compression_history
		WHERE success = true
	`

	var stats HistoryStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, err
	}
	return &stats, nil
}
