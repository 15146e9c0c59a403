package poller

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyLinear      Strategy = "linear"
	StrategyExponential Strategy = "exponential"
)

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyFixed, StrategyLinear, StrategyExponential:
		return st, nil
	case "":
		return StrategyFixed, nil
	default:
		return "", fmt.Errorf("unknown backoff strategy %q", s)
	}
}

// Delay returns how long to sleep before poll number attempt (1-based).
func (c Config) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var d time.Duration
	switch c.Strategy {
	case StrategyLinear:
		d = c.Interval * time.Duration(attempt)
	case StrategyExponential:
		f := c.Factor
		if f <= 1 {
			f = 2
		}
		d = time.Duration(float64(c.Interval) * math.Pow(f, float64(attempt-1)))
	default:
		return c.Interval
	}
	if c.MaxInterval > 0 && (d > c.MaxInterval || d <= 0) {
		return c.MaxInterval
	}
	return d
}
