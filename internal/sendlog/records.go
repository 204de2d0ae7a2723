package sendlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	pkgerrors "dripline/pkg/errors"
)

// SendRecord is the durable row written after a drip message is queued.
// The Redis marker is the fast path; these rows survive cache eviction.
type SendRecord struct {
	ID         string    `json:"id" db:"id"`
	CampaignID string    `json:"campaign_id" db:"campaign_id"`
	MemberID   string    `json:"member_id" db:"member_id"`
	Email      string    `json:"email" db:"email"`
	MessageID  string    `json:"message_id" db:"message_id"`
	SentAt     time.Time `json:"sent_at" db:"sent_at"`
}

type RecordRepository interface {
	RecordSend(ctx context.Context, rec *SendRecord) error
	WasSent(ctx context.Context, campaignID, memberID string) (bool, error)
	CountSent(ctx context.Context, campaignID string) (int, error)
}

type PostgresRecordRepository struct {
	db *sql.DB
}

func NewPostgresRecordRepository(db *sql.DB) *PostgresRecordRepository {
	return &PostgresRecordRepository{db: db}
}

func (r *PostgresRecordRepository) RecordSend(ctx context.Context, rec *SendRecord) error {
	query := `
		INSERT INTO send_log (id, campaign_id, member_id, email, message_id, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.CampaignID, rec.MemberID, rec.Email, rec.MessageID, rec.SentAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				return pkgerrors.ErrConflict.WithCause(err).WithDetail("message_id", rec.MessageID)
			case "23503":
				return pkgerrors.ErrNotFound.WithCause(err).WithDetail("campaign_id", rec.CampaignID)
			}
		}
		return fmt.Errorf("failed to record send: %w", err)
	}

	return nil
}

func (r *PostgresRecordRepository) WasSent(ctx context.Context, campaignID, memberID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM send_log WHERE campaign_id = $1 AND member_id = $2)`

	var sent bool
	if err := r.db.QueryRowContext(ctx, query, campaignID, memberID).Scan(&sent); err != nil {
		return false, fmt.Errorf("failed to check send log: %w", err)
	}

	return sent, nil
}

func (r *PostgresRecordRepository) CountSent(ctx context.Context, campaignID string) (int, error) {
	query := `SELECT COUNT(*) FROM send_log WHERE campaign_id = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, campaignID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sends: %w", err)
	}

	return count, nil
}
