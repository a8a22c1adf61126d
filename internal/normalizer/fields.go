package normalizer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/winbalf/retail-data-pipeline/internal/normalizer/domain"
)

// Field coercion shared by every source variant. Retailer APIs are
// loose about numeric types (strings, floats, ints), so each helper
// accepts any of them and fails with ErrMalformedRecord otherwise.

func requireString(raw domain.RawRecord, field string) (string, error) {
	value, ok := raw[field]
	if !ok || value == nil {
		return "", missingField(field)
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", value))
	if s == "" {
		return "", missingField(field)
	}
	return s, nil
}

func optionalString(raw domain.RawRecord, field string) string {
	value, ok := raw[field]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", value))
}

func requireInt(raw domain.RawRecord, field string) (int64, error) {
	value, ok := raw[field]
	if !ok || value == nil {
		return 0, missingField(field)
	}
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, badField(field, value)
		}
		return int64(v), nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, badField(field, value)
		}
		return parsed, nil
	default:
		return 0, badField(field, value)
	}
}

func requireFloat(raw domain.RawRecord, field string) (float64, error) {
	value, ok := raw[field]
	if !ok || value == nil {
		return 0, missingField(field)
	}
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, badField(field, value)
		}
		return parsed, nil
	default:
		return 0, badField(field, value)
	}
}

func requireTime(raw domain.RawRecord, field string) (time.Time, error) {
	value, err := requireString(raw, field)
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, badField(field, value)
}

func missingField(field string) error {
	return fmt.Errorf("%w: missing field %q", domain.ErrMalformedRecord, field)
}

func badField(field string, value any) error {
	return fmt.Errorf("%w: field %q has invalid value %v", domain.ErrMalformedRecord, field, value)
}
