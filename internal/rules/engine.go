package rules

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"organ/internal/language"
	"organ/internal/logging"
	"organ/internal/media"
	"organ/internal/store"
)

// RuleSource provides enabled rules matching a media-type/backend pair in
// priority order. Implemented by *store.Store.
type RuleSource interface {
	RulesFor(ctx context.Context, mediaType media.Type, backend media.Backend) ([]*store.Rule, error)
}

// Engine matches recognition results against routing rules.
type Engine struct {
	source RuleSource
	logger *slog.Logger
}

// NewEngine constructs a rule matching engine.
func NewEngine(source RuleSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		source: source,
		logger: logger.With(logging.String(logging.FieldComponent, "rules")),
	}
}

// Match selects the first enabled rule whose filters accept the result's
// media type and backend and whose every condition evaluates true. Rules
// are checked in ascending priority order. A result without media info, or
// no matching rule, yields nil without error.
func (e *Engine) Match(ctx context.Context, result *media.RecognitionResult, backend media.Backend) (*store.Rule, error) {
	if !result.Recognized() {
		return nil, nil
	}

	rules, err := e.source.RulesFor(ctx, result.Info.MediaType, backend)
	if err != nil {
		return nil, err
	}

	for _, rule := range rules {
		if !rule.AppliesTo(result.Info.MediaType, backend) {
			continue
		}
		if EvaluateRule(rule, result) {
			e.logger.Debug("rule matched",
				logging.String(logging.FieldRuleID, rule.ID),
				logging.String("rule_name", rule.Name),
				logging.String(logging.FieldFile, result.File.Name),
			)
			return rule, nil
		}
	}
	return nil, nil
}

// EvaluateRule reports whether every condition of the rule holds for the
// result. An empty condition list matches unconditionally.
func EvaluateRule(rule *store.Rule, result *media.RecognitionResult) bool {
	if rule == nil || !result.Recognized() {
		return false
	}
	for _, condition := range rule.Conditions {
		if !evaluateCondition(condition, result) {
			return false
		}
	}
	return true
}

func evaluateCondition(condition store.RuleCondition, result *media.RecognitionResult) bool {
	fieldValue, ok := resolveField(condition.Field, result)
	if !ok {
		return false
	}

	switch condition.Operator {
	case "equals":
		return opEquals(fieldValue, condition.Value)
	case "contains":
		return opContains(fieldValue, condition.Value)
	case "in":
		return opIn(fieldValue, condition.Value)
	case "matches":
		return opMatches(fieldValue, condition.Value)
	case "between":
		return opBetween(fieldValue, condition.Value)
	case "gte":
		return opGTE(fieldValue, condition.Value)
	case "lte":
		return opLTE(fieldValue, condition.Value)
	default:
		return false
	}
}

// resolveField maps a symbolic condition field to a value from the result.
// The second return is false when the field has no value, which fails the
// condition.
func resolveField(field string, result *media.RecognitionResult) (any, bool) {
	info := result.Info
	catalog := info.Catalog

	switch field {
	case "genre":
		if catalog == nil || len(catalog.GenreIDs) == 0 {
			return nil, false
		}
		names := make([]string, 0, len(catalog.GenreIDs))
		for _, id := range catalog.GenreIDs {
			if name, ok := genreNames[id]; ok {
				names = append(names, name)
			} else {
				names = append(names, strconv.FormatInt(id, 10))
			}
		}
		return names, true
	case "country":
		if catalog == nil || len(catalog.OriginCountry) == 0 {
			return nil, false
		}
		return catalog.OriginCountry, true
	case "language":
		if catalog == nil || catalog.OriginalLanguage == "" {
			return nil, false
		}
		// catalogs report 639-1 or 639-2 depending on endpoint
		return language.ToISO2(catalog.OriginalLanguage), true
	case "year", "year_range":
		if info.Year == 0 {
			return nil, false
		}
		return info.Year, true
	case "keyword":
		return result.File.Name, true
	case "title":
		if info.Title == "" {
			return nil, false
		}
		return info.Title, true
	default:
		// network, rating, and anything else unresolved fail closed.
		return nil, false
	}
}

func opEquals(fieldValue, expected any) bool {
	if s, ok := fieldValue.(string); ok {
		return strings.EqualFold(s, toString(expected))
	}
	if f, ok := toFloat(fieldValue); ok {
		if e, ok := toFloat(expected); ok {
			return f == e
		}
		return false
	}
	return false
}

func opContains(fieldValue, search any) bool {
	needle := strings.ToLower(toString(search))
	if needle == "" {
		return false
	}
	switch v := fieldValue.(type) {
	case []string:
		for _, item := range v {
			if strings.Contains(strings.ToLower(item), needle) {
				return true
			}
		}
		return false
	case string:
		return strings.Contains(strings.ToLower(v), needle)
	default:
		return false
	}
}

func opIn(fieldValue, allowed any) bool {
	allowedSet := make(map[string]struct{})
	switch v := allowed.(type) {
	case []any:
		for _, item := range v {
			allowedSet[strings.ToLower(toString(item))] = struct{}{}
		}
	case []string:
		for _, item := range v {
			allowedSet[strings.ToLower(item)] = struct{}{}
		}
	default:
		allowedSet[strings.ToLower(toString(allowed))] = struct{}{}
	}

	switch v := fieldValue.(type) {
	case []string:
		for _, item := range v {
			if _, ok := allowedSet[strings.ToLower(item)]; ok {
				return true
			}
		}
		return false
	default:
		_, ok := allowedSet[strings.ToLower(toString(fieldValue))]
		return ok
	}
}

func opMatches(fieldValue, pattern any) bool {
	re, err := regexp.Compile("(?i)" + toString(pattern))
	if err != nil {
		// Invalid patterns fail closed.
		return false
	}
	switch v := fieldValue.(type) {
	case []string:
		for _, item := range v {
			if re.MatchString(item) {
				return true
			}
		}
		return false
	default:
		return re.MatchString(toString(fieldValue))
	}
}

func opBetween(fieldValue, rangeValue any) bool {
	bounds, ok := rangeValue.([]any)
	if !ok || len(bounds) != 2 {
		return false
	}
	value, ok := toFloat(fieldValue)
	if !ok {
		return false
	}
	low, okLow := toFloat(bounds[0])
	high, okHigh := toFloat(bounds[1])
	if !okLow || !okHigh {
		return false
	}
	return low <= value && value <= high
}

func opGTE(fieldValue, threshold any) bool {
	value, okValue := toFloat(fieldValue)
	limit, okLimit := toFloat(threshold)
	return okValue && okLimit && value >= limit
}

func opLTE(fieldValue, threshold any) bool {
	value, okValue := toFloat(fieldValue)
	limit, okLimit := toFloat(threshold)
	return okValue && okLimit && value <= limit
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
