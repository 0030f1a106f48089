package api

import (
	"net/url"
	"strconv"
	"time"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

const dateLayout = "2006-01-02"

func queryInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.Invalid(key, "must be an integer")
	}
	return n, nil
}

// parseTime accepts RFC 3339 timestamps or plain dates.
func parseTime(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	return time.Time{}, models.Invalid(field, "want RFC 3339 or YYYY-MM-DD")
}

func queryTime(q url.Values, key string) (time.Time, error) {
	return parseTime(key, q.Get(key))
}

// optionalTime returns nil for an empty value.
func optionalTime(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := parseTime(field, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryBool(q url.Values, key string) (*bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, models.Invalid(key, "must be true or false")
	}
	return &b, nil
}
