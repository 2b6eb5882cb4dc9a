package classification

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
)

const defaultNameCacheSize = 4096

// FieldClassifier assigns a sensitivity level to payload fields by running
// an ordered rule chain. The chain is fixed at construction; the classifier
// holds no store handle and is safe for concurrent use.
type FieldClassifier struct {
	rules  []Rule
	names  *lru.Cache[string, access.SensitivityLevel]
	logger *zap.Logger
}

// Option configures a FieldClassifier
type Option func(*FieldClassifier)

// WithRules replaces the standard rule chain
func WithRules(rules ...Rule) Option {
	return func(c *FieldClassifier) {
		c.rules = rules
	}
}

// WithLogger sets the logger used to report rule failures
func WithLogger(logger *zap.Logger) Option {
	return func(c *FieldClassifier) {
		c.logger = logger
	}
}

// WithNameCacheSize sets the size of the name-resolution memo
func WithNameCacheSize(size int) Option {
	return func(c *FieldClassifier) {
		if size > 0 {
			c.names, _ = lru.New[string, access.SensitivityLevel](size)
		}
	}
}

// NewFieldClassifier builds a classifier from configured store rules
func NewFieldClassifier(configured []access.ClassificationRule, opts ...Option) *FieldClassifier {
	names, _ := lru.New[string, access.SensitivityLevel](defaultNameCacheSize)
	c := &FieldClassifier{
		rules:  DefaultRules(configured),
		names:  names,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the sensitivity of one field. A rule that panics makes
// the field internal.
func (c *FieldClassifier) Classify(name string, value any, entityType string) (level access.SensitivityLevel) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("field classification failed, defaulting to internal",
				zap.String("field", name),
				zap.String("entity_type", entityType),
				zap.Any("panic", r),
			)
			level = access.SensitivityInternal
		}
	}()

	key := ruleKey(name, entityType)
	if cached, ok := c.names.Get(key); ok {
		return cached
	}

	f := Field{Name: name, Value: value, EntityType: entityType}
	valueSeen := false
	for _, rule := range c.rules {
		if rule.Kind() == RuleContent {
			valueSeen = true
		}
		if got, ok := rule.Match(f); ok && got.IsValid() {
			// Outcomes reached before any content rule depend on the name only.
			if !valueSeen {
				c.names.Add(key, got)
			}
			return got
		}
	}
	return access.SensitivityInternal
}

// ClassifyFields classifies every key of data
func (c *FieldClassifier) ClassifyFields(data map[string]any, entityType string) map[string]access.SensitivityLevel {
	out := make(map[string]access.SensitivityLevel, len(data))
	for name, value := range data {
		out[name] = c.Classify(name, value, entityType)
	}
	return out
}

// Summary reports how a field map is spread across tiers
type Summary struct {
	TotalFields int                                  `json:"total_fields"`
	Counts      map[access.SensitivityLevel]int      `json:"counts"`
	Ratios      map[access.SensitivityLevel]float64  `json:"ratios"`
	Fields      map[access.SensitivityLevel][]string `json:"fields"`
}

// Summarize is a diagnostic view of a classification result
func Summarize(fields map[string]access.SensitivityLevel) Summary {
	s := Summary{
		TotalFields: len(fields),
		Counts:      make(map[access.SensitivityLevel]int, len(access.AllSensitivityLevels)),
		Ratios:      make(map[access.SensitivityLevel]float64, len(access.AllSensitivityLevels)),
		Fields:      make(map[access.SensitivityLevel][]string, len(access.AllSensitivityLevels)),
	}
	for _, level := range access.AllSensitivityLevels {
		s.Counts[level] = 0
		s.Ratios[level] = 0
	}
	for name, level := range fields {
		s.Counts[level]++
		s.Fields[level] = append(s.Fields[level], name)
	}
	for level, names := range s.Fields {
		sort.Strings(names)
		if s.TotalFields > 0 {
			s.Ratios[level] = float64(s.Counts[level]) / float64(s.TotalFields)
		}
	}
	return s
}
