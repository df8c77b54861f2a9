package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mearth/photosync/internal/apierr"
	"github.com/mearth/photosync/internal/model"
)

const photoColumns = `id, original_file_name, storage_key, description, uploaded_at`

// Postgres is the pgx-backed Index implementation.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Index = (*Postgres)(nil)

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the photos table if it does not exist. Full migration
// tooling is owned by the deployment, not by the service.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS photos (
			id                 uuid PRIMARY KEY,
			original_file_name text        NOT NULL,
			storage_key        text        NOT NULL UNIQUE,
			description        text,
			uploaded_at        timestamptz NOT NULL
		)`
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure photos schema: %w", err)
	}
	return nil
}

func (p *Postgres) Create(ctx context.Context, photo *model.Photo) error {
	const query = `
		INSERT INTO photos (id, original_file_name, storage_key, description, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := p.pool.Exec(ctx, query,
		photo.ID, photo.OriginalFileName, photo.StorageKey, photo.Description, photo.UploadedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return fmt.Errorf("%w: %s", apierr.ErrDuplicateObject, photo.ID)
		}
		return fmt.Errorf("failed to insert photo: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*model.Photo, error) {
	query := fmt.Sprintf(`SELECT %s FROM photos WHERE id = $1`, photoColumns)

	photo := &model.Photo{}
	err := p.pool.QueryRow(ctx, query, id).Scan(
		&photo.ID, &photo.OriginalFileName, &photo.StorageKey, &photo.Description, &photo.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", apierr.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	return photo, nil
}

func (p *Postgres) List(ctx context.Context) ([]model.Photo, error) {
	query := fmt.Sprintf(`SELECT %s FROM photos ORDER BY original_file_name ASC`, photoColumns)

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	photos := make([]model.Photo, 0)
	for rows.Next() {
		var photo model.Photo
		if err := rows.Scan(
			&photo.ID, &photo.OriginalFileName, &photo.StorageKey, &photo.Description, &photo.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read photos: %w", err)
	}
	return photos, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", apierr.ErrNotFound, id)
	}
	return nil
}
