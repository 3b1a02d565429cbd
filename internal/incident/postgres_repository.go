package incident

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/safewalk/safewalk/internal/geo"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL report repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create stores a new report.
func (r *PostgresRepository) Create(ctx context.Context, report *Report) error {
	query := `
		INSERT INTO incident_reports (
			id, user_id, type, description, lat, lon, photo_url, audio_url, created_at
		) VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)
	`

	_, err := r.pool.Exec(ctx, query,
		report.ID,
		report.UserID,
		string(report.Type),
		report.Description,
		report.Location.Lat,
		report.Location.Lon,
		report.PhotoURL,
		report.AudioURL,
		report.CreatedAt,
	)
	return err
}

// Get retrieves a report by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Report, error) {
	query := `
		SELECT
			id, COALESCE(user_id, ''), type, description, lat, lon,
			COALESCE(photo_url, ''), COALESCE(audio_url, ''), created_at
		FROM incident_reports
		WHERE id = $1
	`

	report, err := scanReport(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return report, nil
}

// FindRecent returns reports inside box created at or after since.
func (r *PostgresRepository) FindRecent(ctx context.Context, since time.Time, box geo.BoundingBox) ([]Report, error) {
	query := `
		SELECT
			id, COALESCE(user_id, ''), type, description, lat, lon,
			COALESCE(photo_url, ''), COALESCE(audio_url, ''), created_at
		FROM incident_reports
		WHERE created_at >= $1
			AND lat BETWEEN $2 AND $3
			AND lon BETWEEN $4 AND $5
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, since, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}

	return reports, rows.Err()
}

func scanReport(row pgx.Row) (*Report, error) {
	var (
		report Report
		typ    string
	)
	err := row.Scan(
		&report.ID,
		&report.UserID,
		&typ,
		&report.Description,
		&report.Location.Lat,
		&report.Location.Lon,
		&report.PhotoURL,
		&report.AudioURL,
		&report.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	report.Type = Type(typ)
	return &report, nil
}

var _ Repository = (*PostgresRepository)(nil)
