package paste

import (
	"fmt"
	"time"
)

// Expiration is a lifetime choice offered to creators.
type Expiration string

const (
	Hour  Expiration = "1h"
	Day   Expiration = "1d"
	Week  Expiration = "1w"
	Month Expiration = "1m"
	Never Expiration = "never"
)

// DefaultExpiration applies when the creator does not choose.
const DefaultExpiration = Day

// Choice pairs an Expiration with its display label.
type Choice struct {
	Value Expiration
	Label string
}

var choices = []struct {
	Choice
	ttl time.Duration
}{
	{Choice{Hour, "1 hour"}, time.Hour},
	{Choice{Day, "1 day"}, 24 * time.Hour},
	{Choice{Week, "1 week"}, 7 * 24 * time.Hour},
	{Choice{Month, "1 month"}, 30 * 24 * time.Hour},
	{Choice{Never, "Never"}, 0},
}

// Expirations lists the choices in display order.
func Expirations() []Choice {
	out := make([]Choice, 0, len(choices))
	for _, c := range choices {
		out = append(out, c.Choice)
	}
	return out
}

// ParseExpiration validates a choice. An empty string selects the default.
func ParseExpiration(s string) (Expiration, error) {
	if s == "" {
		return DefaultExpiration, nil
	}
	for _, c := range choices {
		if string(c.Value) == s {
			return c.Value, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidExpiration, s)
}

// TTL returns the lifetime; zero for Never.
func (e Expiration) TTL() time.Duration {
	for _, c := range choices {
		if c.Value == e {
			return c.ttl
		}
	}
	return 0
}

// Deadline returns the absolute expiry for a paste created at now, or the
// zero time when the paste never expires.
func (e Expiration) Deadline(now time.Time) time.Time {
	ttl := e.TTL()
	if ttl == 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func (e Expiration) valid() bool {
	for _, c := range choices {
		if c.Value == e {
			return true
		}
	}
	return false
}
