package accesscontrol

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
	"github.com/davidleathers/dependable-access-control/internal/domain/errors"
)

const hoursPerDay = 24

// RelationshipChecker derives a trust score between two companies from, in
// order, a recorded relationship, their transaction history, or a shared
// trading partner. It only reads.
type RelationshipChecker struct {
	logger        *zap.Logger
	relationships access.RelationshipRepository
	transactions  access.TransactionRepository
	cache         RelationshipCache
	metrics       MetricsRecorder
	policy        access.RelationshipPolicy
	clock         access.Clock
}

// NewRelationshipChecker creates a checker. cache and metrics may be nil.
func NewRelationshipChecker(
	logger *zap.Logger,
	relationships access.RelationshipRepository,
	transactions access.TransactionRepository,
	cache RelationshipCache,
	metrics MetricsRecorder,
	policy access.RelationshipPolicy,
	clock access.Clock,
) *RelationshipChecker {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &RelationshipChecker{
		logger:        logger.With(zap.String("component", "relationship_checker")),
		relationships: relationships,
		transactions:  transactions,
		cache:         cache,
		metrics:       metrics,
		policy:        policy,
		clock:         clock,
	}
}

// Check returns the relationship between a and b. The first source that
// yields a relationship wins.
func (c *RelationshipChecker) Check(ctx context.Context, a, b uuid.UUID) (access.RelationshipResult, error) {
	if a == b {
		return access.RelationshipResult{
			Exists:   true,
			Type:     access.RelationshipSameCompany,
			Strength: 1.0,
			Evidence: access.RelationshipEvidence{Source: access.EvidenceSameCompany},
		}, nil
	}

	if c.cache != nil {
		cached, err := c.cache.Get(ctx, a, b)
		if err != nil {
			c.logger.Debug("relationship cache read failed", zap.Error(err))
		} else if cached != nil {
			c.metrics.RecordRelationshipCheck(ctx, cached.Evidence.Source, true)
			return *cached, nil
		}
	}

	result, err := c.resolve(ctx, a, b)
	if err != nil {
		return access.RelationshipResult{}, err
	}
	c.metrics.RecordRelationshipCheck(ctx, result.Evidence.Source, false)

	if c.cache != nil {
		if err := c.cache.Set(ctx, a, b, result); err != nil {
			c.logger.Debug("relationship cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

func (c *RelationshipChecker) resolve(ctx context.Context, a, b uuid.UUID) (access.RelationshipResult, error) {
	rel, err := c.relationships.FindActiveRelationship(ctx, a, b)
	if err != nil {
		return access.RelationshipResult{}, errors.NewInternalError("failed to load business relationship").WithCause(err)
	}
	if rel != nil {
		return c.direct(rel), nil
	}

	ab, err := c.transactions.TransactionStats(ctx, a, b)
	if err != nil {
		return access.RelationshipResult{}, errors.NewInternalError("failed to load transaction history").WithCause(err)
	}
	ba, err := c.transactions.TransactionStats(ctx, b, a)
	if err != nil {
		return access.RelationshipResult{}, errors.NewInternalError("failed to load transaction history").WithCause(err)
	}
	if stats := ab.Merge(ba); stats.Count > 0 {
		return c.fromTransactions(stats), nil
	}

	shared, err := c.transactions.HasCommonCounterparty(ctx, a, b)
	if err != nil {
		return access.RelationshipResult{}, errors.NewInternalError("failed to load supply chain").WithCause(err)
	}
	if shared {
		return access.RelationshipResult{
			Exists:   true,
			Type:     access.RelationshipIndirectSupplyChain,
			Strength: access.Clamp01(c.policy.MultiHopStrength),
			Evidence: access.RelationshipEvidence{Source: access.EvidenceMultiHop},
		}, nil
	}

	return access.NoRelationship(), nil
}

func (c *RelationshipChecker) direct(rel *access.BusinessRelationship) access.RelationshipResult {
	ageDays := daysSince(c.clock.Now(), rel.EstablishedAt)

	strength := c.policy.BaseStrengthFor(rel.Type)
	if c.policy.AgeBonusFullDays > 0 {
		strength += math.Min(float64(ageDays)/float64(c.policy.AgeBonusFullDays), 1) * c.policy.MaxAgeBonus
	}
	if rel.Verified {
		strength += c.policy.VerificationBonus
	}

	id := rel.ID
	return access.RelationshipResult{
		Exists:   true,
		Type:     rel.Type,
		Strength: access.Clamp01(strength),
		Evidence: access.RelationshipEvidence{
			Source:         access.EvidenceDirect,
			RelationshipID: &id,
			AgeDays:        ageDays,
			Verified:       rel.Verified,
		},
	}
}

func (c *RelationshipChecker) fromTransactions(stats access.TransactionStats) access.RelationshipResult {
	strength := c.policy.TransactionBase + c.policy.FrequencyBonus(stats.Count)
	if stats.LastTransactionAt != nil {
		strength += c.policy.RecencyBonus(daysSince(c.clock.Now(), *stats.LastTransactionAt))
	}

	return access.RelationshipResult{
		Exists:   true,
		Type:     access.RelationshipTransactionHistory,
		Strength: access.Clamp01(strength),
		Evidence: access.RelationshipEvidence{
			Source:            access.EvidenceTransactionHistory,
			TransactionCount:  stats.Count,
			LastTransactionAt: stats.LastTransactionAt,
		},
	}
}

// GetRelationshipPermissions maps relationship strength onto coarse
// capability flags without running a full evaluation
func (c *RelationshipChecker) GetRelationshipPermissions(ctx context.Context, a, b uuid.UUID) (access.RelationshipCapabilities, error) {
	rel, err := c.Check(ctx, a, b)
	if err != nil {
		return access.RelationshipCapabilities{}, err
	}

	s := rel.Strength
	caps := access.RelationshipCapabilities{
		Relationship:             rel,
		CanAccessBasicInfo:       s >= c.policy.BasicInfoThreshold,
		CanAccessFinancialData:   s >= c.policy.FinancialThreshold,
		CanAccessOperationalData: s >= c.policy.OperationalThreshold,
		CanAccessStrategicData:   s >= c.policy.StrategicThreshold,
		MaxSensitivity:           access.SensitivityPublic,
	}
	switch {
	case s >= c.policy.ConfidentialCapAt:
		caps.MaxSensitivity = access.SensitivityConfidential
	case s >= c.policy.InternalCapAt:
		caps.MaxSensitivity = access.SensitivityInternal
	}
	return caps, nil
}

// daysSince counts whole days, never negative
func daysSince(now, then time.Time) int {
	d := int(now.Sub(then).Hours() / hoursPerDay)
	if d < 0 {
		return 0
	}
	return d
}
