package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
)

// RelationshipRepository reads business_relationships
type RelationshipRepository struct {
	db *pgxpool.Pool
}

// NewRelationshipRepository creates a new PostgreSQL relationship repository
func NewRelationshipRepository(db *pgxpool.Pool) *RelationshipRepository {
	return &RelationshipRepository{db: db}
}

// FindActiveRelationship returns the oldest active relationship between a and
// b in either direction, or nil when there is none
func (r *RelationshipRepository) FindActiveRelationship(ctx context.Context, a, b uuid.UUID) (*access.BusinessRelationship, error) {
	query := `
		SELECT id, company_a_id, company_b_id, relationship_type, established_at, verified, is_active
		FROM business_relationships
		WHERE is_active
		  AND ((company_a_id = $1 AND company_b_id = $2) OR (company_a_id = $2 AND company_b_id = $1))
		ORDER BY established_at
		LIMIT 1`

	var (
		rel     access.BusinessRelationship
		relType string
	)
	err := r.db.QueryRow(ctx, query, a, b).Scan(
		&rel.ID,
		&rel.CompanyAID,
		&rel.CompanyBID,
		&relType,
		&rel.EstablishedAt,
		&rel.Verified,
		&rel.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapError(err, "relationship", "find relationship")
	}
	rel.Type = access.RelationshipType(relType)
	return &rel, nil
}

// TransactionRepository reads completed purchase orders
type TransactionRepository struct {
	db *pgxpool.Pool
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) TransactionStats(ctx context.Context, sellerID, buyerID uuid.UUID) (access.TransactionStats, error) {
	query := `
		SELECT COUNT(*), MAX(completed_at)
		FROM purchase_orders
		WHERE seller_company_id = $1 AND buyer_company_id = $2 AND status = 'completed'`

	var (
		stats access.TransactionStats
		last  *time.Time
	)
	if err := r.db.QueryRow(ctx, query, sellerID, buyerID).Scan(&stats.Count, &last); err != nil {
		return access.TransactionStats{}, wrapError(err, "transaction", "read transaction stats")
	}
	stats.LastTransactionAt = last
	return stats, nil
}

// HasCommonCounterparty reports whether some third company has a completed
// order with both a and b, in any direction
func (r *TransactionRepository) HasCommonCounterparty(ctx context.Context, a, b uuid.UUID) (bool, error) {
	query := `
		WITH counterparties AS (
			SELECT seller_company_id AS party, buyer_company_id AS other
			FROM purchase_orders WHERE status = 'completed'
			UNION
			SELECT buyer_company_id, seller_company_id
			FROM purchase_orders WHERE status = 'completed'
		)
		SELECT EXISTS (
			SELECT 1
			FROM counterparties ca
			JOIN counterparties cb ON ca.other = cb.other
			WHERE ca.party = $1 AND cb.party = $2
			  AND ca.other <> $1 AND ca.other <> $2
		)`

	var found bool
	if err := r.db.QueryRow(ctx, query, a, b).Scan(&found); err != nil {
		return false, wrapError(err, "transaction", "check common counterparty")
	}
	return found, nil
}
