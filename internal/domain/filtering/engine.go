package filtering

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
	"github.com/davidleathers/dependable-access-control/internal/domain/classification"
	"github.com/davidleathers/dependable-access-control/internal/domain/errors"
)

// Markers added to an entity collapsed to its minimal representation
const (
	MarkerFiltered = "_filtered"
	MarkerReason   = "_reason"

	ReasonRestrictedEntity = "Entity contains restricted data"
)

// minimalEntityFields survive an entity-level collapse
var minimalEntityFields = []string{"id", "name", "type", "status"}

// Options describe who is asking for which entity
type Options struct {
	EntityType         string
	RequesterCompanyID uuid.UUID
	TargetCompanyID    uuid.UUID
	RequestedFields    []string
}

func (o Options) crossCompany() bool {
	return o.TargetCompanyID != uuid.Nil && o.TargetCompanyID != o.RequesterCompanyID
}

// DataFilterEngine redacts payloads according to an access decision
type DataFilterEngine struct {
	classifier *classification.FieldClassifier
	analyzer   *classification.SensitivityAnalyzer
	logger     *zap.Logger
}

// NewDataFilterEngine creates a new filter engine
func NewDataFilterEngine(classifier *classification.FieldClassifier, analyzer *classification.SensitivityAnalyzer, logger *zap.Logger) *DataFilterEngine {
	return &DataFilterEngine{
		classifier: classifier,
		analyzer:   analyzer,
		logger:     logger.With(zap.String("component", "data_filter_engine")),
	}
}

// Filter applies the decision's strategy to a map, a slice of maps, or a
// []any of maps. Payloads are returned untouched when the decision needs no
// filtering. Input maps are never modified.
func (e *DataFilterEngine) Filter(payload any, decision *access.AccessDecision, opts Options) (any, []*access.DataFilterContext, error) {
	if decision == nil || !decision.RequiresFiltering() {
		return payload, nil, nil
	}

	switch p := payload.(type) {
	case nil:
		return nil, nil, nil
	case map[string]any:
		fc := e.filterItem(p, decision, opts)
		return fc.FilteredData, []*access.DataFilterContext{fc}, nil
	case []map[string]any:
		out := make([]map[string]any, 0, len(p))
		contexts := make([]*access.DataFilterContext, 0, len(p))
		for _, item := range p {
			fc := e.filterItem(item, decision, opts)
			out = append(out, fc.FilteredData)
			contexts = append(contexts, fc)
		}
		return out, contexts, nil
	case []any:
		out := make([]any, 0, len(p))
		contexts := make([]*access.DataFilterContext, 0, len(p))
		for i, raw := range p {
			item, ok := raw.(map[string]any)
			if !ok {
				return nil, nil, errors.NewValidationError("UNSUPPORTED_PAYLOAD",
					fmt.Sprintf("payload element %d is %T, expected an object", i, raw))
			}
			fc := e.filterItem(item, decision, opts)
			out = append(out, fc.FilteredData)
			contexts = append(contexts, fc)
		}
		return out, contexts, nil
	}
	return nil, nil, errors.NewValidationError("UNSUPPORTED_PAYLOAD",
		fmt.Sprintf("cannot filter payload of type %T", payload))
}

func (e *DataFilterEngine) filterItem(item map[string]any, decision *access.AccessDecision, opts Options) *access.DataFilterContext {
	fc := access.NewDataFilterContext(item, opts.RequestedFields)

	var changed bool
	switch decision.FilteringStrategy {
	case access.FilteringEntityLevel:
		fc.FilteredData, changed = e.entityLevel(fc, decision, opts)
	case access.FilteringAggregationOnly:
		fc.FilteredData, changed = e.aggregationOnly(fc, opts)
	default:
		fc.FilteredData, changed = e.fieldLevel(fc, decision, opts)
	}

	fc.AllowedFields = sortedKeys(fc.FilteredData)
	fc.FilteredFields = lo.Without(sortedKeys(item), fc.AllowedFields...)
	fc.FilteringApplied = changed || len(fc.FilteredFields) > 0

	if fc.FilteringApplied {
		e.logger.Debug("payload filtered",
			zap.String("strategy", decision.FilteringStrategy.String()),
			zap.String("entity_type", opts.EntityType),
			zap.Strings("filtered_fields", fc.FilteredFields),
			zap.Float64("filtering_ratio", fc.FilteringRatio()),
		)
	}
	return fc
}

func (e *DataFilterEngine) fieldLevel(fc *access.DataFilterContext, decision *access.AccessDecision, opts Options) (map[string]any, bool) {
	out := make(map[string]any, len(fc.OriginalData))
	cross := opts.crossCompany()
	changed := false

	for name, value := range fc.OriginalData {
		if !isRequested(name, opts.RequestedFields) {
			continue
		}
		level := e.classifier.Classify(name, value, opts.EntityType)
		fc.FieldSensitivity[name] = level

		if level == access.SensitivityPublic {
			out[name] = value
			continue
		}
		if lo.Contains(decision.FilteredFields, name) {
			continue
		}
		if cross && level.IsSensitive() {
			continue
		}
		if isFinancialField(name) && !level.AtMost(access.SensitivityConfidential) {
			continue
		}
		if isPersonalField(name) && !level.AtMost(access.SensitivityInternal) {
			continue
		}

		var kept any
		switch level {
		case access.SensitivityConfidential:
			kept = transformConfidential(name, value)
		case access.SensitivityRestricted:
			kept = transformRestricted(value)
		default:
			kept = value
		}
		if !sameScalar(kept, value) {
			changed = true
		}
		out[name] = kept
	}
	return out, changed
}

func (e *DataFilterEngine) entityLevel(fc *access.DataFilterContext, decision *access.AccessDecision, opts Options) (map[string]any, bool) {
	fields := e.classifier.ClassifyFields(fc.OriginalData, opts.EntityType)
	overall := e.analyzer.CalculateEntitySensitivity(fields)

	if !opts.crossCompany() || overall != access.SensitivityRestricted {
		return e.fieldLevel(fc, decision, opts)
	}

	for name, level := range fields {
		fc.FieldSensitivity[name] = level
	}
	out := make(map[string]any, len(minimalEntityFields)+2)
	for _, name := range minimalEntityFields {
		if v, ok := fc.OriginalData[name]; ok {
			out[name] = v
		}
	}
	out[MarkerFiltered] = true
	out[MarkerReason] = ReasonRestrictedEntity
	return out, true
}

func (e *DataFilterEngine) aggregationOnly(fc *access.DataFilterContext, opts Options) (map[string]any, bool) {
	out := make(map[string]any)
	for name, value := range fc.OriginalData {
		if !isRequested(name, opts.RequestedFields) {
			continue
		}
		fc.FieldSensitivity[name] = e.classifier.Classify(name, value, opts.EntityType)

		if d, ok := toDecimal(value); ok {
			out[name] = bucket(d)
			continue
		}
		s, ok := value.(string)
		if !ok {
			continue
		}
		if isBucketLabel(s) {
			out[name] = s
			continue
		}
		if isCountLikeField(name) {
			if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil {
				out[name] = bucket(d)
			}
		}
	}
	return out, true
}

func isRequested(name string, requested []string) bool {
	return len(requested) == 0 || lo.Contains(requested, name)
}

func sortedKeys(m map[string]any) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

// sameScalar compares kept and original values without panicking on
// uncomparable types such as nested maps.
func sameScalar(a, b any) bool {
	defer func() { _ = recover() }()
	return a == b
}
