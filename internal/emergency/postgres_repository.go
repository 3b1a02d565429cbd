package emergency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL emergency repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Contacts returns the user's trusted contacts in saved order.
func (r *PostgresRepository) Contacts(ctx context.Context, userID string) ([]Contact, error) {
	query := `
		SELECT type, value
		FROM trusted_contacts
		WHERE user_id = $1
		ORDER BY position
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []Contact{}
	for rows.Next() {
		var (
			c   Contact
			typ string
		)
		if err := rows.Scan(&typ, &c.Value); err != nil {
			return nil, err
		}
		c.Type = ContactType(typ)
		contacts = append(contacts, c)
	}

	return contacts, rows.Err()
}

// ReplaceContacts replaces the user's trusted contacts in one transaction.
func (r *PostgresRepository) ReplaceContacts(ctx context.Context, userID string, contacts []Contact) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `DELETE FROM trusted_contacts WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete contacts: %w", err)
	}

	if len(contacts) > 0 {
		rows := make([][]any, len(contacts))
		for i, c := range contacts {
			rows[i] = []any{userID, i, string(c.Type), c.Value}
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"trusted_contacts"},
			[]string{"user_id", "position", "type", "value"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("insert contacts: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// CreateAlert stores a new alert. The contact list is stored as a snapshot.
func (r *PostgresRepository) CreateAlert(ctx context.Context, alert *Alert) error {
	contacts, err := json.Marshal(alert.Contacts)
	if err != nil {
		return fmt.Errorf("encoding contacts: %w", err)
	}

	query := `
		INSERT INTO panic_alerts (
			id, user_id, lat, lon, message, audio_url, contacts, created_at
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
	`

	_, err = r.pool.Exec(ctx, query,
		alert.ID,
		alert.UserID,
		alert.Location.Lat,
		alert.Location.Lon,
		alert.Message,
		alert.AudioURL,
		contacts,
		alert.CreatedAt,
	)
	return err
}

// GetAlert retrieves an alert by ID.
func (r *PostgresRepository) GetAlert(ctx context.Context, id string) (*Alert, error) {
	query := `
		SELECT id, user_id, lat, lon, message, COALESCE(audio_url, ''), contacts, created_at
		FROM panic_alerts
		WHERE id = $1
	`

	var (
		alert    Alert
		contacts []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&alert.ID,
		&alert.UserID,
		&alert.Location.Lat,
		&alert.Location.Lon,
		&alert.Message,
		&alert.AudioURL,
		&contacts,
		&alert.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(contacts, &alert.Contacts); err != nil {
		return nil, fmt.Errorf("decoding contacts: %w", err)
	}
	return &alert, nil
}

var _ Repository = (*PostgresRepository)(nil)
