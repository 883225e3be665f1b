// Package types holds column types shared by models and request payloads.
package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	MinScore      = 1
	MaxScore      = 5
	maxCategories = 10
	maxCategory   = 32
)

// Ratings maps a category such as "food" or "delivery" to a 1..5 score. It
// is stored as a jsonb object.
type Ratings map[string]int

// Normalize lowercases and trims category names.
func (r Ratings) Normalize() Ratings {
	out := make(Ratings, len(r))
	for k, v := range r {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

// Validate returns the offending category and a reason.
func (r Ratings) Validate() (string, error) {
	if len(r) == 0 {
		return "", errors.New("at least one rating is required")
	}
	if len(r) > maxCategories {
		return "", fmt.Errorf("at most %d rating categories", maxCategories)
	}
	for k, v := range r {
		if k == "" || len(k) > maxCategory {
			return k, errors.New("rating category must be 1 to 32 bytes")
		}
		if v < MinScore || v > MaxScore {
			return k, fmt.Errorf("ratings must be between %d and %d", MinScore, MaxScore)
		}
	}
	return "", nil
}

func (r Ratings) Value() (driver.Value, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]int(r))
}

func (r *Ratings) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("ratings: cannot scan %T", src)
	}
	m := map[string]int{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("ratings: %w", err)
	}
	*r = m
	return nil
}
