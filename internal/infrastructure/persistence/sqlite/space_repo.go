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

type spaceRepo struct {
	db *sql.DB
}

// NewSpaceRepository creates the SQLite-backed store for active spaces.
func NewSpaceRepository(db *sql.DB) repository.SpaceRepository {
	return &spaceRepo{db: db}
}

// Save inserts or updates a space record.
func (r *spaceRepo) Save(ctx context.Context, space *entity.Space) error {
	if space == nil {
		return errors.New("space cannot be nil")
	}
	if err := space.Validate(); err != nil {
		return err
	}

	urlsJSON, err := json.Marshal(space.URLs)
	if err != nil {
		return fmt.Errorf("marshal urls: %w", err)
	}

	logging.FromContext(ctx).Debug().
		Str("space_id", string(space.ID)).
		Int("url_count", len(space.URLs)).
		Msg("saving space record")

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO spaces (id, name, urls, last_modified)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			urls = excluded.urls,
			last_modified = excluded.last_modified`,
		string(space.ID), space.Name, string(urlsJSON), space.LastModified.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save space %s: %w", space.ID, err)
	}
	return nil
}

// FindByID returns the stored record, or nil when the id is unknown.
func (r *spaceRepo) FindByID(ctx context.Context, id entity.SpaceID) (*entity.Space, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, urls, last_modified FROM spaces WHERE id = ?`, string(id))

	space, err := scanSpace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return space, err
}

// FindAll returns every active space record.
func (r *spaceRepo) FindAll(ctx context.Context) ([]*entity.Space, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, urls, last_modified FROM spaces ORDER BY last_modified DESC`)
	if err != nil {
		return nil, fmt.Errorf("query spaces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var spaces []*entity.Space
	for rows.Next() {
		space, err := scanSpace(rows)
		if err != nil {
			logging.FromContext(ctx).Warn().Err(err).Msg("skipping corrupted space record")
			continue
		}
		spaces = append(spaces, space)
	}
	return spaces, rows.Err()
}

// Delete removes a space record. Deleting an unknown id is not an error.
func (r *spaceRepo) Delete(ctx context.Context, id entity.SpaceID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM spaces WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete space %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpace(row rowScanner) (*entity.Space, error) {
	var space entity.Space
	var id, urlsJSON string
	if err := row.Scan(&id, &space.Name, &urlsJSON, &space.LastModified); err != nil {
		return nil, err
	}
	space.ID = entity.SpaceID(id)
	if err := json.Unmarshal([]byte(urlsJSON), &space.URLs); err != nil {
		return nil, fmt.Errorf("unmarshal urls for space %s: %w", id, err)
	}
	return &space, nil
}
