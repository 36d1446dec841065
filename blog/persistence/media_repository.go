package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dfryer1193/inkblog/blog/domain"
	"github.com/dfryer1193/inkblog/shared/db"
)

var _ domain.MediaRepository = (*SQLiteMediaRepository)(nil)

// SQLiteMediaRepository implements domain.MediaRepository with file content on disk
// and metadata in SQLite
type SQLiteMediaRepository struct {
	db  *sql.DB
	dir string
}

// NewMediaRepository creates a repository storing files under dir
func NewMediaRepository(sqlDB *sql.DB, dir string) *SQLiteMediaRepository {
	return &SQLiteMediaRepository{
		db:  sqlDB,
		dir: dir,
	}
}

// Dir returns the directory media files are written to
func (r *SQLiteMediaRepository) Dir() string {
	return r.dir
}

const upsertMediaQuery = `
	INSERT INTO media (name, original_name, hash, content_type, size, updated_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		original_name = excluded.original_name,
		hash = excluded.hash,
		content_type = excluded.content_type,
		size = excluded.size,
		updated_at = excluded.updated_at,
		created_at = COALESCE(media.created_at, excluded.created_at)
`

// SaveMedia saves a file to both filesystem and database within a transaction
func (r *SQLiteMediaRepository) SaveMedia(ctx context.Context, m *domain.Media) error {
	if m == nil {
		return fmt.Errorf("media cannot be nil")
	}

	if m.Name == "" || filepath.Base(m.Name) != m.Name {
		return fmt.Errorf("invalid media name %q", m.Name)
	}

	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		var updatedAt any
		if !m.UpdatedAt.IsZero() {
			updatedAt = m.UpdatedAt
		}

		executor := db.GetExecutor(txCtx, r.db)
		_, err := executor.ExecContext(txCtx, upsertMediaQuery,
			m.Name,
			m.OriginalName,
			m.Hash,
			m.ContentType,
			m.Size,
			updatedAt,
			m.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert media record: %w", err)
		}

		// A failed write rolls back the record
		if err := os.MkdirAll(r.dir, 0755); err != nil {
			return fmt.Errorf("failed to create media directory: %w", err)
		}

		if err := os.WriteFile(filepath.Join(r.dir, m.Name), m.Content, 0644); err != nil {
			return fmt.Errorf("failed to write media file: %w", err)
		}

		return nil
	})
}

const selectMediaColumns = `SELECT name, original_name, hash, content_type, size, updated_at, created_at FROM media`

// GetMedia retrieves a single media record by name
func (r *SQLiteMediaRepository) GetMedia(ctx context.Context, name string) (*domain.Media, error) {
	if name == "" {
		return nil, fmt.Errorf("media name cannot be empty")
	}

	row := db.GetExecutor(ctx, r.db).QueryRowContext(ctx, selectMediaColumns+` WHERE name = ?`, name)
	return scanMedia(row, name)
}

// FindByHash returns the oldest media record whose content hash matches
func (r *SQLiteMediaRepository) FindByHash(ctx context.Context, hash string) (*domain.Media, error) {
	row := db.GetExecutor(ctx, r.db).QueryRowContext(ctx, selectMediaColumns+` WHERE hash = ? ORDER BY created_at ASC LIMIT 1`, hash)
	return scanMedia(row, hash)
}

func scanMedia(row *sql.Row, lookup string) (*domain.Media, error) {
	var mr mediaRow
	err := row.Scan(
		&mr.Name,
		&mr.OriginalName,
		&mr.Hash,
		&mr.ContentType,
		&mr.Size,
		&mr.UpdatedAt,
		&mr.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrMediaNotFound, lookup)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media: %w", err)
	}
	return mr.toDomain(), nil
}

// ListMedia returns media records ordered by creation time descending
func (r *SQLiteMediaRepository) ListMedia(ctx context.Context, limit, offset int) ([]*domain.Media, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, selectMediaColumns+` ORDER BY created_at DESC, name ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	defer rows.Close()

	media := make([]*domain.Media, 0)
	for rows.Next() {
		var mr mediaRow
		err := rows.Scan(
			&mr.Name,
			&mr.OriginalName,
			&mr.Hash,
			&mr.ContentType,
			&mr.Size,
			&mr.UpdatedAt,
			&mr.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media row: %w", err)
		}
		media = append(media, mr.toDomain())
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating media rows: %w", err)
	}

	return media, nil
}

const deleteMediaQuery = `
	DELETE FROM media WHERE name = ?
`

// DeleteMedia removes a file from both filesystem and database within a transaction
func (r *SQLiteMediaRepository) DeleteMedia(ctx context.Context, name string) error {
	if name == "" || filepath.Base(name) != name {
		return fmt.Errorf("invalid media name %q", name)
	}

	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)
		res, err := executor.ExecContext(txCtx, deleteMediaQuery, name)
		if err != nil {
			return fmt.Errorf("failed to delete media record: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", domain.ErrMediaNotFound, name)
		}

		if err := os.Remove(filepath.Join(r.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove media file: %w", err)
		}

		return nil
	})
}

// mediaRow is used to scan database rows with nullable timestamps
type mediaRow struct {
	Name         string       `db:"name"`
	OriginalName string       `db:"original_name"`
	Hash         string       `db:"hash"`
	ContentType  string       `db:"content_type"`
	Size         int64        `db:"size"`
	UpdatedAt    sql.NullTime `db:"updated_at"`
	CreatedAt    sql.NullTime `db:"created_at"`
}

func (mr *mediaRow) toDomain() *domain.Media {
	m := &domain.Media{
		Name:         mr.Name,
		OriginalName: mr.OriginalName,
		Hash:         mr.Hash,
		ContentType:  mr.ContentType,
		Size:         mr.Size,
	}

	if mr.UpdatedAt.Valid {
		m.UpdatedAt = mr.UpdatedAt.Time
	}
	if mr.CreatedAt.Valid {
		m.CreatedAt = mr.CreatedAt.Time
	}

	return m
}
