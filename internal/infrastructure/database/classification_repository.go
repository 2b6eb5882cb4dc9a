package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
)

// ClassificationRuleRepository loads field_classification_rules
type ClassificationRuleRepository struct {
	db *pgxpool.Pool
}

// NewClassificationRuleRepository creates a new PostgreSQL rule repository
func NewClassificationRuleRepository(db *pgxpool.Pool) *ClassificationRuleRepository {
	return &ClassificationRuleRepository{db: db}
}

func (r *ClassificationRuleRepository) ListRules(ctx context.Context) ([]access.ClassificationRule, error) {
	query := `
		SELECT field_name, entity_type, sensitivity
		FROM field_classification_rules
		WHERE is_active
		ORDER BY field_name, entity_type`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, wrapError(err, "classification rule", "list classification rules")
	}
	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (access.ClassificationRule, error) {
		var (
			rule        access.ClassificationRule
			sensitivity string
		)
		err := row.Scan(&rule.FieldName, &rule.EntityType, &sensitivity)
		rule.Sensitivity = access.SensitivityLevel(sensitivity)
		return rule, err
	})
	if err != nil {
		return nil, wrapError(err, "classification rule", "list classification rules")
	}
	return rules, nil
}
