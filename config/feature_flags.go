package config

import (
	"errors"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// ══════════════════════════════════════════════════════════════════════════════
// FEATURE FLAGS
// Every flag can be overridden with FEATURE_<NAME>: true/false or a rollout
// percentage 0-100.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// Lessons unlock strictly in catalog order.
	FeatureSequentialUnlock = "lessons.sequential_unlock"

	// Progress events are projected into the user's activity feed.
	FeatureActivityFeed = "activity.feed"

	// Every domain event is logged.
	FeatureEventLog = "events.log"
)

var (
	ErrFeatureNotFound       = errors.New("feature not found")
	ErrInvalidRolloutPercent = errors.New("rollout percent must be 0-100")
)

// Feature is the state of one flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent is the share of users (0-100) the flag is on for.
	RolloutPercent int
}

// FeatureContext carries what a partial rollout is decided on.
type FeatureContext struct {
	UserID string
}

var defaultFeatures = []Feature{
	{Name: FeatureSequentialUnlock, Description: "Require lessons to be completed in order"},
	{Name: FeatureActivityFeed, Description: "Record completions, level-ups and streaks in the activity feed", Enabled: true, RolloutPercent: 100},
	{Name: FeatureEventLog, Description: "Log every domain event"},
}

// FeatureFlags is a concurrency-safe flag set.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]Feature
}

// LoadFeatureFlags starts from the defaults and applies environment overrides.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]Feature, len(defaultFeatures))}
	for _, f := range defaultFeatures {
		if raw := os.Getenv(featureNameToEnvKey(f.Name)); raw != "" {
			if percent, ok := parseRollout(raw); ok {
				f.RolloutPercent = percent
				f.Enabled = percent > 0
			}
		}
		ff.features[f.Name] = f
	}
	return ff
}

// parseRollout accepts "true"/"false" and percentages. Anything else is ignored.
func parseRollout(raw string) (int, bool) {
	if b, err := strconv.ParseBool(raw); err == nil {
		if b {
			return 100, true
		}
		return 0, true
	}
	p, err := strconv.Atoi(raw)
	if err != nil || p < 0 || p > 100 {
		return 0, false
	}
	return p, true
}

// "lessons.sequential_unlock" -> "FEATURE_LESSONS_SEQUENTIAL_UNLOCK"
func featureNameToEnvKey(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

// IsEnabled evaluates the flag. A partial rollout without a user is off.
func (ff *FeatureFlags) IsEnabled(name string, fctx *FeatureContext) bool {
	ff.mu.RLock()
	f, ok := ff.features[name]
	ff.mu.RUnlock()

	switch {
	case !ok || !f.Enabled:
		return false
	case f.RolloutPercent >= 100:
		return true
	case fctx == nil || fctx.UserID == "":
		return false
	}

	// A user always lands in the same bucket.
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte(fctx.UserID))
	return int(h.Sum32()%100) < f.RolloutPercent
}

// SetRolloutPercent changes the rollout share; 0 turns the flag off.
func (ff *FeatureFlags) SetRolloutPercent(name string, percent int) error {
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	f, ok := ff.features[name]
	if !ok {
		return ErrFeatureNotFound
	}
	f.RolloutPercent = percent
	f.Enabled = percent > 0
	ff.features[name] = f
	return nil
}

func (ff *FeatureFlags) EnableFeature(name string) error  { return ff.SetRolloutPercent(name, 100) }
func (ff *FeatureFlags) DisableFeature(name string) error { return ff.SetRolloutPercent(name, 0) }

// GetAllFeatures returns a copy of every flag.
func (ff *FeatureFlags) GetAllFeatures() map[string]Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make(map[string]Feature, len(ff.features))
	for k, v := range ff.features {
		out[k] = v
	}
	return out
}
