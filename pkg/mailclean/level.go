package mailclean

import (
	"fmt"
	"strings"
)

// Level selects how aggressively messages are cleaned. Levels are totally
// ordered: every stage enabled at a level is also enabled at the levels
// above it.
type Level string

const (
	// LevelMinimal converts markup and normalizes whitespace only.
	LevelMinimal Level = "minimal"
	// LevelStandard also removes signatures, footers and boilerplate.
	LevelStandard Level = "standard"
	// LevelAggressive also strips quoted replies and forwarded history.
	LevelAggressive Level = "aggressive"
)

// Levels lists every level in ascending order.
var Levels = []Level{LevelMinimal, LevelStandard, LevelAggressive}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if l.rank() < 0 {
		return "", fmt.Errorf("%w: %q (want minimal, standard or aggressive)", ErrInvalidLevel, s)
	}
	return l, nil
}

func (l Level) rank() int {
	switch l {
	case LevelMinimal:
		return 0
	case LevelStandard:
		return 1
	case LevelAggressive:
		return 2
	default:
		return -1
	}
}

// AtLeast reports whether l is the same as or above other.
func (l Level) AtLeast(other Level) bool {
	return l.rank() >= other.rank() && other.rank() >= 0
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	return l.rank() >= 0
}

func (l Level) String() string {
	return string(l)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLevel, string(l))
	}
	return []byte(l), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Stages is the set of cleaning stages a level enables.
type Stages struct {
	ConvertMarkup      bool `json:"convert_markup"`
	MinimalNormalize   bool `json:"minimal_normalize"`
	RemoveSignatures   bool `json:"remove_signatures"`
	RemoveBoilerplate  bool `json:"remove_boilerplate"`
	RemoveFingerprints bool `json:"remove_fingerprints"`
	StripQuotes        bool `json:"strip_quotes"`
	FinalNormalize     bool `json:"final_normalize"`
}

// StagesFor returns the stages enabled at level l.
func StagesFor(l Level) Stages {
	return Stages{
		ConvertMarkup:      true,
		MinimalNormalize:   true,
		RemoveSignatures:   l.AtLeast(LevelStandard),
		RemoveBoilerplate:  l.AtLeast(LevelStandard),
		RemoveFingerprints: l.AtLeast(LevelStandard),
		StripQuotes:        l.AtLeast(LevelAggressive),
		FinalNormalize:     true,
	}
}

// Includes reports whether every stage enabled in other is enabled in s.
func (s Stages) Includes(other Stages) bool {
	pairs := [][2]bool{
		{s.ConvertMarkup, other.ConvertMarkup},
		{s.MinimalNormalize, other.MinimalNormalize},
		{s.RemoveSignatures, other.RemoveSignatures},
		{s.RemoveBoilerplate, other.RemoveBoilerplate},
		{s.RemoveFingerprints, other.RemoveFingerprints},
		{s.StripQuotes, other.StripQuotes},
		{s.FinalNormalize, other.FinalNormalize},
	}
	for _, p := range pairs {
		if p[1] && !p[0] {
			return false
		}
	}
	return true
}
