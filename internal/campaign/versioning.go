package campaign

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type CampaignVersion struct {
	ID           string    `json:"id"`
	CampaignID   string    `json:"campaign_id"`
	CampaignData string    `json:"campaign_data"`
	Version      int       `json:"version"`
	ChangedBy    string    `json:"changed_by,omitempty"`
	ChangeReason string    `json:"change_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type AuditLog struct {
	ID           string                 `json:"id"`
	CampaignID   *string                `json:"campaign_id,omitempty"`
	EntityType   string                 `json:"entity_type"`
	Action       string                 `json:"action"`
	OldValue     map[string]interface{} `json:"old_value,omitempty"`
	NewValue     map[string]interface{} `json:"new_value,omitempty"`
	ChangedBy    string                 `json:"changed_by"`
	ChangeReason string                 `json:"change_reason,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

type VersioningRepository interface {
	CreateVersion(ctx context.Context, version *CampaignVersion) error
	GetVersions(ctx context.Context, campaignID string) ([]CampaignVersion, error)
	GetVersion(ctx context.Context, campaignID string, version int) (*CampaignVersion, error)
	CreateAuditLog(ctx context.Context, log *AuditLog) error
	GetAuditLogs(ctx context.Context, campaignID *string, entityType string, limit int) ([]AuditLog, error)
	GetNextVersion(ctx context.Context, campaignID string) (int, error)
}

type postgresVersioningRepository struct {
	db *sql.DB
}

func NewVersioningRepository(db *sql.DB) VersioningRepository {
	return &postgresVersioningRepository{db: db}
}

func (r *postgresVersioningRepository) CreateVersion(ctx context.Context, version *CampaignVersion) error {
	if version.ID == "" {
		version.ID = uuid.New().String()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO campaign_versions (id, campaign_id, campaign_data, version, changed_by, change_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		version.ID, version.CampaignID, version.CampaignData,
		version.Version, version.ChangedBy, version.ChangeReason, version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign version: %w", err)
	}

	return nil
}

func (r *postgresVersioningRepository) GetVersions(ctx context.Context, campaignID string) ([]CampaignVersion, error) {
	query := `
		SELECT id, campaign_id, campaign_data, version, changed_by, change_reason, created_at
		FROM campaign_versions
		WHERE campaign_id = $1
		ORDER BY version DESC
	`

	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()

	var versions []CampaignVersion
	for rows.Next() {
		var v CampaignVersion
		if err := rows.Scan(
			&v.ID, &v.CampaignID, &v.CampaignData,
			&v.Version, &v.ChangedBy, &v.ChangeReason, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}

	return versions, nil
}

func (r *postgresVersioningRepository) GetVersion(ctx context.Context, campaignID string, version int) (*CampaignVersion, error) {
	query := `
		SELECT id, campaign_id, campaign_data, version, changed_by, change_reason, created_at
		FROM campaign_versions
		WHERE campaign_id = $1 AND version = $2
	`

	var v CampaignVersion
	err := r.db.QueryRowContext(ctx, query, campaignID, version).Scan(
		&v.ID, &v.CampaignID, &v.CampaignData,
		&v.Version, &v.ChangedBy, &v.ChangeReason, &v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	return &v, nil
}

func (r *postgresVersioningRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}

	var oldValueJSON, newValueJSON []byte
	var err error

	if log.OldValue != nil {
		oldValueJSON, err = json.Marshal(log.OldValue)
		if err != nil {
			return fmt.Errorf("failed to marshal old value: %w", err)
		}
	}

	if log.NewValue != nil {
		newValueJSON, err = json.Marshal(log.NewValue)
		if err != nil {
			return fmt.Errorf("failed to marshal new value: %w", err)
		}
	}

	query := `
		INSERT INTO campaign_audit_logs (id, campaign_id, entity_type, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID, log.CampaignID, log.EntityType, log.Action,
		oldValueJSON, newValueJSON, log.ChangedBy, log.ChangeReason, log.IPAddress, log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

func (r *postgresVersioningRepository) GetAuditLogs(ctx context.Context, campaignID *string, entityType string, limit int) ([]AuditLog, error) {
	var query string
	var args []interface{}

	if campaignID != nil {
		query = `
			SELECT id, campaign_id, entity_type, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp
			FROM campaign_audit_logs
			WHERE campaign_id = $1
			ORDER BY timestamp DESC
			LIMIT $2
		`
		args = []interface{}{*campaignID, limit}
	} else if entityType != "" {
		query = `
			SELECT id, campaign_id, entity_type, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp
			FROM campaign_audit_logs
			WHERE entity_type = $1
			ORDER BY timestamp DESC
			LIMIT $2
		`
		args = []interface{}{entityType, limit}
	} else {
		query = `
			SELECT id, campaign_id, entity_type, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp
			FROM campaign_audit_logs
			ORDER BY timestamp DESC
			LIMIT $1
		`
		args = []interface{}{limit}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		var oldValueJSON, newValueJSON []byte
		var campaignIDPtr *string

		if err := rows.Scan(
			&log.ID, &campaignIDPtr, &log.EntityType, &log.Action,
			&oldValueJSON, &newValueJSON, &log.ChangedBy, &log.ChangeReason, &log.IPAddress, &log.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		log.CampaignID = campaignIDPtr

		if len(oldValueJSON) > 0 {
			if err := json.Unmarshal(oldValueJSON, &log.OldValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal old value: %w", err)
			}
		}

		if len(newValueJSON) > 0 {
			if err := json.Unmarshal(newValueJSON, &log.NewValue); err != nil {
				return nil, fmt.Errorf("failed to unmarshal new value: %w", err)
			}
		}

		logs = append(logs, log)
	}

	return logs, nil
}

func (r *postgresVersioningRepository) GetNextVersion(ctx context.Context, campaignID string) (int, error) {
	query := `SELECT COALESCE(MAX(version), 0) + 1 FROM campaign_versions WHERE campaign_id = $1`

	var version int
	err := r.db.QueryRowContext(ctx, query, campaignID).Scan(&version)
	if err != nil {
		return 1, nil
	}

	return version, nil
}

func campaignToJSON(c *Campaign) (string, error) {
	jsonData, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}
