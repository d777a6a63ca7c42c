package attrstore

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultSensorPatterns lists CBF metadata items stored as sensors rather than attributes
var DefaultSensorPatterns = []string{"flags_xeng_raw", "eq_coef_*"}

// SensorMatcher classifies metadata names by glob patterns
type SensorMatcher struct {
	patterns []string
	globs    []glob.Glob
}

// NewSensorMatcher compiles the patterns, or DefaultSensorPatterns if none given
func NewSensorMatcher(patterns []string) (*SensorMatcher, error) {
	if len(patterns) == 0 {
		patterns = DefaultSensorPatterns
	}
	matcher := &SensorMatcher{
		patterns: patterns,
		globs:    make([]glob.Glob, 0, len(patterns)),
	}
	for i, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("[%d] '%s': %w", i, pattern, err)
		}
		matcher.globs = append(matcher.globs, g)
	}
	return matcher, nil
}

// IsSensor checks whether the name matches any of the patterns
func (matcher *SensorMatcher) IsSensor(name string) bool {
	for _, g := range matcher.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (matcher *SensorMatcher) String() string {
	return strings.Join(matcher.patterns, ", ")
}
