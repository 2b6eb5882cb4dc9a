package classification

import (
	"regexp"
	"strings"

	"github.com/davidleathers/dependable-access-control/internal/domain/access"
	"github.com/davidleathers/dependable-access-control/internal/domain/values"
)

// RuleKind tags each classification rule variant
type RuleKind string

const (
	RuleOverride   RuleKind = "override"
	RuleConfigured RuleKind = "configured"
	RulePattern    RuleKind = "pattern"
	RuleContent    RuleKind = "content"
	RuleEntity     RuleKind = "entity"
	RuleDefault    RuleKind = "default"
)

// Field is the input to a classification rule
type Field struct {
	Name       string
	Value      any
	EntityType string
}

// Rule classifies a field or declines. Only RuleContent rules may look at
// the value; every other kind must depend on the name and entity type alone.
type Rule interface {
	Kind() RuleKind
	Match(f Field) (access.SensitivityLevel, bool)
}

// OverrideRule is a static field-name table that beats every other rule
type OverrideRule struct {
	Table map[string]access.SensitivityLevel
}

func (OverrideRule) Kind() RuleKind { return RuleOverride }

func (r OverrideRule) Match(f Field) (access.SensitivityLevel, bool) {
	level, ok := r.Table[normalizeName(f.Name)]
	return level, ok
}

// ConfiguredRule resolves store-configured rules, exact entity type first
// and then the wildcard entry for the field
type ConfiguredRule struct {
	byKey map[string]access.SensitivityLevel
}

// NewConfiguredRule indexes rules by field and entity type. Later duplicates
// replace earlier ones.
func NewConfiguredRule(rules []access.ClassificationRule) ConfiguredRule {
	byKey := make(map[string]access.SensitivityLevel, len(rules))
	for _, r := range rules {
		if !r.Sensitivity.IsValid() {
			continue
		}
		entity := r.EntityType
		if entity == "" {
			entity = access.WildcardEntity
		}
		byKey[ruleKey(r.FieldName, entity)] = r.Sensitivity
	}
	return ConfiguredRule{byKey: byKey}
}

func (ConfiguredRule) Kind() RuleKind { return RuleConfigured }

func (r ConfiguredRule) Match(f Field) (access.SensitivityLevel, bool) {
	if level, ok := r.byKey[ruleKey(f.Name, f.EntityType)]; ok {
		return level, true
	}
	level, ok := r.byKey[ruleKey(f.Name, access.WildcardEntity)]
	return level, ok
}

// PatternRule matches field names against per-tier expressions, most
// sensitive tier first
type PatternRule struct {
	Tiers []PatternTier
}

// PatternTier binds name expressions to a sensitivity level
type PatternTier struct {
	Level    access.SensitivityLevel
	Patterns []*regexp.Regexp
}

func (PatternRule) Kind() RuleKind { return RulePattern }

func (r PatternRule) Match(f Field) (access.SensitivityLevel, bool) {
	name := normalizeName(f.Name)
	for _, tier := range r.Tiers {
		for _, p := range tier.Patterns {
			if p.MatchString(name) {
				return tier.Level, true
			}
		}
	}
	return "", false
}

// ContentRule inspects string values for sensitive content
type ContentRule struct {
	LongNumericID     *regexp.Regexp
	SensitiveKeywords []string
}

func (ContentRule) Kind() RuleKind { return RuleContent }

func (r ContentRule) Match(f Field) (access.SensitivityLevel, bool) {
	s, ok := f.Value.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	switch {
	case r.LongNumericID != nil && r.LongNumericID.MatchString(s):
		return access.SensitivityRestricted, true
	case values.IsEmailAddress(s), values.LooksLikePhoneNumber(s), values.IsCurrencyAmount(s):
		return access.SensitivityConfidential, true
	}

	lower := strings.ToLower(s)
	for _, kw := range r.SensitiveKeywords {
		if strings.Contains(lower, kw) {
			return access.SensitivityConfidential, true
		}
	}
	return "", false
}

// EntityRule is a static per-entity-type field table
type EntityRule struct {
	Table map[string]map[string]access.SensitivityLevel
}

func (EntityRule) Kind() RuleKind { return RuleEntity }

func (r EntityRule) Match(f Field) (access.SensitivityLevel, bool) {
	fields, ok := r.Table[strings.ToLower(f.EntityType)]
	if !ok {
		return "", false
	}
	level, ok := fields[normalizeName(f.Name)]
	return level, ok
}

// DefaultRule always matches
type DefaultRule struct {
	Level access.SensitivityLevel
}

func (DefaultRule) Kind() RuleKind { return RuleDefault }

func (r DefaultRule) Match(Field) (access.SensitivityLevel, bool) {
	return r.Level, true
}

// DefaultRules returns the standard rule chain with the configured rules in
// second position
func DefaultRules(configured []access.ClassificationRule) []Rule {
	return []Rule{
		OverrideRule{Table: fieldOverrides},
		NewConfiguredRule(configured),
		PatternRule{Tiers: namePatterns},
		ContentRule{
			LongNumericID:     longNumericIDRegex,
			SensitiveKeywords: sensitiveKeywords,
		},
		EntityRule{Table: entityFieldTable},
		DefaultRule{Level: access.SensitivityInternal},
	}
}

var (
	fieldOverrides = map[string]access.SensitivityLevel{
		"po_number":      access.SensitivityInternal,
		"order_number":   access.SensitivityInternal,
		"public_notes":   access.SensitivityPublic,
		"public_email":   access.SensitivityPublic,
		"company_name":   access.SensitivityPublic,
		"product_name":   access.SensitivityPublic,
		"list_price":     access.SensitivityPublic,
		"website":        access.SensitivityPublic,
		"contact_person": access.SensitivityInternal,
	}

	namePatterns = []PatternTier{
		{
			Level: access.SensitivityRestricted,
			Patterns: compile(
				`tax_?id`, `^ssn$`, `social_security`, `bank_?account`, `account_number`,
				`routing_number`, `iban`, `swift`, `secret`, `password`, `api_?key`,
				`token`, `salary`, `credit_card`, `card_number`, `cvv`,
			),
		},
		{
			Level: access.SensitivityConfidential,
			Patterns: compile(
				`price`, `cost`, `margin`, `discount`, `email`, `contact`, `phone`,
				`payment_terms`, `credit_limit`, `revenue`, `profit`, `budget`,
				`amount`, `total`, `invoice`, `address`,
			),
		},
		{
			Level: access.SensitivityInternal,
			Patterns: compile(
				`quantity`, `^qty`, `inventory`, `stock`, `delivery`, `shipping`,
				`schedule`, `forecast`, `notes`, `employee`, `warehouse`, `lead_time`,
			),
		},
		{
			Level: access.SensitivityPublic,
			Patterns: compile(
				`^id$`, `^name$`, `^type$`, `^status$`, `^description$`, `^industry$`,
				`^country$`, `^city$`, `^created_at$`, `^updated_at$`, `^category$`,
				`^title$`, `^logo`, `^sku$`,
			),
		},
	}

	longNumericIDRegex = regexp.MustCompile(`^\d{9,}$`)

	sensitiveKeywords = []string{"confidential", "proprietary", "do not share", "private", "internal only"}

	entityFieldTable = map[string]map[string]access.SensitivityLevel{
		"company": {
			"tax_id":          access.SensitivityRestricted,
			"bank_details":    access.SensitivityRestricted,
			"annual_turnover": access.SensitivityConfidential,
			"employee_count":  access.SensitivityInternal,
			"founded_year":    access.SensitivityPublic,
			"certifications":  access.SensitivityPublic,
		},
		"purchase_order": {
			"line_items":   access.SensitivityInternal,
			"terms":        access.SensitivityConfidential,
			"approved_by":  access.SensitivityInternal,
			"requested_by": access.SensitivityInternal,
		},
		"product": {
			"specifications": access.SensitivityPublic,
			"unit":           access.SensitivityPublic,
			"supplier_code":  access.SensitivityInternal,
			"formula":        access.SensitivityRestricted,
		},
		"supplier": {
			"rating":         access.SensitivityInternal,
			"certifications": access.SensitivityPublic,
			"bank_details":   access.SensitivityRestricted,
		},
	}
)

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func ruleKey(field, entity string) string {
	return normalizeName(field) + "\x00" + strings.ToLower(entity)
}
