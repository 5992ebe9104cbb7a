package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mocraimer/chrome-spaces/internal/domain/entity"
	"github.com/mocraimer/chrome-spaces/internal/domain/repository"
	"github.com/mocraimer/chrome-spaces/internal/logging"
)

type archiveRepo struct {
	db *sql.DB
}

// NewArchiveRepository creates the SQLite-backed closed-space archive.
func NewArchiveRepository(db *sql.DB) repository.ArchiveRepository {
	return &archiveRepo{db: db}
}

// Save inserts or updates an archived space.
func (r *archiveRepo) Save(ctx context.Context, archived *entity.ArchivedSpace) error {
	if archived == nil {
		return errors.New("archived space cannot be nil")
	}
	if err := archived.Space.Validate(); err != nil {
		return err
	}

	urlsJSON, err := json.Marshal(archived.Space.URLs)
	if err != nil {
		return fmt.Errorf("marshal urls: %w", err)
	}

	logging.FromContext(ctx).Debug().
		Str("space_id", string(archived.Space.ID)).
		Msg("archiving space record")

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO archived_spaces (id, name, urls, last_modified, archived_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			urls = excluded.urls,
			last_modified = excluded.last_modified,
			archived_at = excluded.archived_at`,
		string(archived.Space.ID), archived.Space.Name, string(urlsJSON),
		archived.Space.LastModified.UTC(), archived.ArchivedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("archive space %s: %w", archived.Space.ID, err)
	}
	return nil
}

// FindByID returns the archived record, or nil when the id is unknown.
func (r *archiveRepo) FindByID(ctx context.Context, id entity.SpaceID) (*entity.ArchivedSpace, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, urls, last_modified, archived_at
		FROM archived_spaces WHERE id = ?`, string(id))

	archived, err := scanArchived(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return archived, err
}

// FindAll returns all archived spaces ordered by LastModified descending.
func (r *archiveRepo) FindAll(ctx context.Context) ([]*entity.ArchivedSpace, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, urls, last_modified, archived_at
		FROM archived_spaces ORDER BY last_modified DESC`)
	if err != nil {
		return nil, fmt.Errorf("query archived spaces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var archived []*entity.ArchivedSpace
	for rows.Next() {
		a, err := scanArchived(rows)
		if err != nil {
			logging.FromContext(ctx).Warn().Err(err).Msg("skipping corrupted archive record")
			continue
		}
		archived = append(archived, a)
	}
	return archived, rows.Err()
}

// Delete removes an archived space.
func (r *archiveRepo) Delete(ctx context.Context, id entity.SpaceID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM archived_spaces WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete archived space %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return entity.ErrSpaceNotFound
	}
	return nil
}

// EvictOldest deletes the oldest-LastModified entries until at most keepCount remain.
func (r *archiveRepo) EvictOldest(ctx context.Context, keepCount int) (int64, error) {
	if keepCount < 0 {
		keepCount = 0
	}

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM archived_spaces WHERE id NOT IN (
			SELECT id FROM archived_spaces
			ORDER BY last_modified DESC
			LIMIT ?
		)`, keepCount)
	if err != nil {
		return 0, fmt.Errorf("evict archived spaces: %w", err)
	}

	evicted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if evicted > 0 {
		logging.FromContext(ctx).Info().
			Int64("evicted", evicted).
			Int("keep_count", keepCount).
			Msg("evicted oldest archived spaces")
	}
	return evicted, nil
}

// Count returns the number of archived spaces.
func (r *archiveRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archived_spaces`).Scan(&count)
	return count, err
}

func scanArchived(row rowScanner) (*entity.ArchivedSpace, error) {
	var a entity.ArchivedSpace
	var id, urlsJSON string
	if err := row.Scan(&id, &a.Space.Name, &urlsJSON, &a.Space.LastModified, &a.ArchivedAt); err != nil {
		return nil, err
	}
	a.Space.ID = entity.SpaceID(id)
	if err := json.Unmarshal([]byte(urlsJSON), &a.Space.URLs); err != nil {
		return nil, fmt.Errorf("unmarshal urls for archived space %s: %w", id, err)
	}
	return &a, nil
}
