package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/tullo/wordguard/internal/database"
	"github.com/tullo/wordguard/internal/models"
)

type TemplateRepository struct {
	db *database.DB
}

func NewTemplateRepository(db *database.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// List returns a chat's templates ordered by template ID.
func (r *TemplateRepository) List(ctx context.Context, chatID int64) ([]models.Template, error) {
	query := `SELECT chat_id, template_id, template_text FROM message_templates WHERE chat_id = ? ORDER BY template_id`

	templates := []models.Template{}
	if err := r.db.SelectContext(ctx, &templates, r.db.Rebind(query), chatID); err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

// Add stores a template under the next free ID and returns that ID.
func (r *TemplateRepository) Add(ctx context.Context, chatID int64, text string) (int, error) {
	query := `
		INSERT INTO message_templates (chat_id, template_id, template_text)
		SELECT CAST(? AS BIGINT), COALESCE(MAX(template_id), 0) + 1, CAST(? AS TEXT)
		FROM message_templates
		WHERE chat_id = ?
		RETURNING template_id
	`
	var id int
	if err := r.db.QueryRowxContext(ctx, r.db.Rebind(query), chatID, text, chatID).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to add template: %w", err)
	}
	return id, nil
}

// Remove deletes a template and renumbers the rest in the same transaction.
// It reports false when no template had that ID.
func (r *TemplateRepository) Remove(ctx context.Context, chatID int64, templateID int) (bool, error) {
	removed := false
	err := r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM message_templates WHERE chat_id = ? AND template_id = ?`), chatID, templateID)
		if err != nil {
			return fmt.Errorf("failed to remove template: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return nil
		}
		removed = true
		return renumber(ctx, tx, chatID)
	})
	return removed, err
}

// Renumber rewrites a chat's template IDs to 1..n preserving their order.
func (r *TemplateRepository) Renumber(ctx context.Context, chatID int64) error {
	return r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		return renumber(ctx, tx, chatID)
	})
}

// renumber walks IDs in ascending order; each target is at most its source, so no
// intermediate state violates UNIQUE(chat_id, template_id).
func renumber(ctx context.Context, tx *sqlx.Tx, chatID int64) error {
	var ids []int
	if err := tx.SelectContext(ctx, &ids, tx.Rebind(`SELECT template_id FROM message_templates WHERE chat_id = ? ORDER BY template_id`), chatID); err != nil {
		return fmt.Errorf("failed to read template ids: %w", err)
	}

	for i, id := range ids {
		next := i + 1
		if id == next {
			continue
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE message_templates SET template_id = ? WHERE chat_id = ? AND template_id = ?`), next, chatID, id); err != nil {
			return fmt.Errorf("failed to renumber template %d: %w", id, err)
		}
	}
	return nil
}
