package campaign

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	pkgerrors "dripline/pkg/errors"
)

type Repository interface {
	CreateCampaign(ctx context.Context, c *Campaign) error
	ListCampaigns(ctx context.Context, enabledOnly bool) ([]Campaign, error)
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
	UpdateCampaign(ctx context.Context, c *Campaign) error
	DeleteCampaign(ctx context.Context, id string) error

	CreateRule(ctx context.Context, rule *CampaignRule) error
	ListRules(ctx context.Context, campaignID string) ([]CampaignRule, error)
	GetRule(ctx context.Context, id string) (*CampaignRule, error)
	UpdateRule(ctx context.Context, rule *CampaignRule) error
	DeleteRule(ctx context.Context, id string) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateCampaign(ctx context.Context, c *Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO campaigns (id, name, enabled, from_email, from_email_name, reply_to, subject_template, body_template, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Enabled, c.FromEmail, c.FromEmailName,
		c.ReplyTo, c.SubjectTemplate, c.BodyTemplate, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" {
				return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("campaign with name '%s' already exists", c.Name))
			}
		}
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint") {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("campaign with name '%s' already exists", c.Name))
		}
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	query := `
		SELECT id, name, enabled, from_email, from_email_name, reply_to, subject_template, body_template, created_at, updated_at
		FROM campaigns
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	var c Campaign
	err := row.Scan(
		&c.ID, &c.Name, &c.Enabled, &c.FromEmail, &c.FromEmailName,
		&c.ReplyTo, &c.SubjectTemplate, &c.BodyTemplate, &c.CreatedAt, &c.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("campaign not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	rules, err := r.ListRules(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Rules = rules

	return &c, nil
}

func (r *PostgresRepository) ListCampaigns(ctx context.Context, enabledOnly bool) ([]Campaign, error) {
	query := `
		SELECT id, name, enabled, from_email, from_email_name, reply_to, subject_template, body_template, created_at, updated_at
		FROM campaigns
	`
	if enabledOnly {
		query += ` WHERE enabled = true`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []Campaign
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		var c Campaign
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Enabled, &c.FromEmail, &c.FromEmailName,
			&c.ReplyTo, &c.SubjectTemplate, &c.BodyTemplate, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, nil
}

func (r *PostgresRepository) UpdateCampaign(ctx context.Context, c *Campaign) error {
	c.UpdatedAt = time.Now()

	query := `
		UPDATE campaigns
		SET name = $1, enabled = $2, from_email = $3, from_email_name = $4, reply_to = $5, subject_template = $6, body_template = $7, updated_at = $8
		WHERE id = $9
	`

	res, err := r.db.ExecContext(ctx, query,
		c.Name, c.Enabled, c.FromEmail, c.FromEmailName,
		c.ReplyTo, c.SubjectTemplate, c.BodyTemplate, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("campaign not found")
	}

	return nil
}

// DeleteCampaign removes the campaign; the rules go with it through the
// foreign key cascade.
func (r *PostgresRepository) DeleteCampaign(ctx context.Context, id string) error {
	query := `DELETE FROM campaigns WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("campaign not found")
	}

	return nil
}

func (r *PostgresRepository) CreateRule(ctx context.Context, rule *CampaignRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	query := `
		INSERT INTO campaign_rules (id, campaign_id, method, field_name, lookup, raw_value, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		rule.ID, rule.CampaignID, rule.Method, rule.FieldName,
		rule.Lookup, rule.RawValue, rule.Position, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23503" {
				return pkgerrors.ErrNotFound.WithCause(err).WithDetail("campaign_id", rule.CampaignID)
			}
		}
		return fmt.Errorf("failed to create rule: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListRules(ctx context.Context, campaignID string) ([]CampaignRule, error) {
	query := `
		SELECT id, campaign_id, method, field_name, lookup, raw_value, position, created_at, updated_at
		FROM campaign_rules
		WHERE campaign_id = $1
		ORDER BY position ASC, created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var out []CampaignRule
	for rows.Next() {
		var rule CampaignRule
		if err := rows.Scan(
			&rule.ID, &rule.CampaignID, &rule.Method, &rule.FieldName,
			&rule.Lookup, &rule.RawValue, &rule.Position, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		out = append(out, rule)
	}

	return out, nil
}

func (r *PostgresRepository) GetRule(ctx context.Context, id string) (*CampaignRule, error) {
	query := `
		SELECT id, campaign_id, method, field_name, lookup, raw_value, position, created_at, updated_at
		FROM campaign_rules
		WHERE id = $1
	`

	var rule CampaignRule
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rule.ID, &rule.CampaignID, &rule.Method, &rule.FieldName,
		&rule.Lookup, &rule.RawValue, &rule.Position, &rule.CreatedAt, &rule.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return &rule, nil
}

func (r *PostgresRepository) UpdateRule(ctx context.Context, rule *CampaignRule) error {
	rule.UpdatedAt = time.Now()

	query := `
		UPDATE campaign_rules
		SET method = $1, field_name = $2, lookup = $3, raw_value = $4, position = $5, updated_at = $6
		WHERE id = $7
	`

	res, err := r.db.ExecContext(ctx, query,
		rule.Method, rule.FieldName, rule.Lookup,
		rule.RawValue, rule.Position, rule.UpdatedAt, rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("rule not found")
	}

	return nil
}

func (r *PostgresRepository) DeleteRule(ctx context.Context, id string) error {
	query := `DELETE FROM campaign_rules WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("rule not found")
	}

	return nil
}
