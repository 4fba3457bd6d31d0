package pattern

import (
	"fmt"
	"strings"
	"sync"

	"github.com/frontscan/pkg/model"
	"github.com/frontscan/pkg/utils"
)

// Classification defaults.
const (
	// DefaultMinConfidence is the confidence below which a candidate is not
	// reported as a leak.
	DefaultMinConfidence = 0.6

	// DefaultFeatureThresholdRatio scales the active feature count into the
	// confidence denominator.
	DefaultFeatureThresholdRatio = 0.25

	// LargeLeakSize triggers the "large leak" remark in descriptions.
	LargeLeakSize int64 = 100 * 1024
)

// Options tunes the classifier.
type Options struct {
	MinConfidence         float64
	FeatureThresholdRatio float64
	MinSeverity           model.Severity
	EnabledPatterns       []model.LeakPattern // empty means all patterns
}

// DefaultOptions returns the default classification options.
func DefaultOptions() Options {
	return Options{
		MinConfidence:         DefaultMinConfidence,
		FeatureThresholdRatio: DefaultFeatureThresholdRatio,
		MinSeverity:           model.SeverityLow,
	}
}

// Match is the outcome of classifying one object.
type Match struct {
	Pattern           model.LeakPattern
	Severity          model.Severity
	Description       string
	FixSuggestion     string
	Confidence        float64
	MatchedFeatureIDs []string
}

// Stats aggregates classification counters. Counters live on the classifier
// instance, so sessions that need isolated numbers create their own
// classifier.
type Stats struct {
	TotalLeaksFound int
	ByPattern       map[model.LeakPattern]int
	BySeverity      map[model.Severity]int
	ByFramework     map[string]int
	ByFeature       map[string]int
}

func newStats() Stats {
	return Stats{
		ByPattern:   make(map[model.LeakPattern]int),
		BySeverity:  make(map[model.Severity]int),
		ByFramework: make(map[string]int),
		ByFeature:   make(map[string]int),
	}
}

// Classifier evaluates the feature registry against leak candidates.
type Classifier struct {
	features []*Feature
	opts     Options
	logger   utils.Logger

	mu    sync.Mutex
	stats Stats
}

// NewClassifier creates a classifier over the default feature registry.
func NewClassifier(logger utils.Logger, opts Options) *Classifier {
	return NewClassifierWithFeatures(logger, opts, DefaultFeatures())
}

// NewClassifierWithFeatures creates a classifier over a custom registry.
func NewClassifierWithFeatures(logger utils.Logger, opts Options, features []*Feature) *Classifier {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	if opts.MinConfidence == 0 {
		opts.MinConfidence = DefaultMinConfidence
	}
	if opts.FeatureThresholdRatio == 0 {
		opts.FeatureThresholdRatio = DefaultFeatureThresholdRatio
	}
	return &Classifier{
		features: features,
		opts:     opts,
		logger:   logger,
		stats:    newStats(),
	}
}

// IdentifyLeakPattern classifies one object. The second return is false when
// no feature matched or confidence fell below the floor; stats counters only
// move on a positive classification.
func (c *Classifier) IdentifyLeakPattern(obj *model.MemoryObject, ctx *DetectContext) (*Match, bool) {
	if ctx == nil {
		ctx = &DetectContext{}
	}

	active := c.activeFeatures(ctx.Framework)
	if len(active) == 0 {
		return nil, false
	}

	var matched []*Feature
	for _, f := range active {
		if c.safeDetect(f, obj, ctx) {
			matched = append(matched, f)
		}
	}
	if len(matched) == 0 {
		return nil, false
	}

	denominator := float64(len(active)) * c.opts.FeatureThresholdRatio
	if denominator < 1 {
		denominator = 1
	}
	confidence := float64(len(matched)) / denominator
	if confidence > 1 {
		confidence = 1
	}
	if confidence < c.opts.MinConfidence {
		c.logger.Debug("object %s below confidence floor: %.2f < %.2f", obj.ID, confidence, c.opts.MinConfidence)
		return nil, false
	}

	winner, subset := winningPattern(matched)

	match := &Match{
		Pattern:           winner,
		Severity:          maxFeatureSeverity(matched),
		Description:       buildDescription(subset[0], obj),
		FixSuggestion:     joinSuggestions(subset),
		Confidence:        confidence,
		MatchedFeatureIDs: featureIDs(matched),
	}

	c.recordMatch(match, ctx.Framework)
	return match, true
}

// AnalyzeLeakPatterns re-runs classification over every leak in a result,
// overwriting pattern fields on a match and leaving non-matching leaks
// untouched. The leak count never changes.
func (c *Classifier) AnalyzeLeakPatterns(result *model.DetectionResult, ctx *DetectContext) *model.DetectionResult {
	for _, leak := range result.Leaks {
		match, ok := c.IdentifyLeakPattern(leak.Object, ctx)
		if !ok {
			continue
		}
		leak.Pattern = match.Pattern
		leak.Severity = match.Severity
		leak.Description = match.Description
		leak.FixSuggestion = match.FixSuggestion
		if leak.Details == nil {
			leak.Details = make(map[string]interface{})
		}
		leak.Details["confidence"] = match.Confidence
		leak.Details["matched_feature_ids"] = match.MatchedFeatureIDs
	}
	return result
}

// Stats returns a copy of the counters.
func (c *Classifier) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := newStats()
	out.TotalLeaksFound = c.stats.TotalLeaksFound
	for k, v := range c.stats.ByPattern {
		out.ByPattern[k] = v
	}
	for k, v := range c.stats.BySeverity {
		out.BySeverity[k] = v
	}
	for k, v := range c.stats.ByFramework {
		out.ByFramework[k] = v
	}
	for k, v := range c.stats.ByFeature {
		out.ByFeature[k] = v
	}
	return out
}

// ResetStats zeroes the counters.
func (c *Classifier) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = newStats()
}

func (c *Classifier) activeFeatures(framework string) []*Feature {
	enabled := map[model.LeakPattern]bool{}
	for _, p := range c.opts.EnabledPatterns {
		enabled[p] = true
	}

	var active []*Feature
	for _, f := range c.features {
		if len(enabled) > 0 && !enabled[f.Pattern] {
			continue
		}
		if !f.AppliesTo(framework) {
			continue
		}
		if f.Severity < c.opts.MinSeverity {
			continue
		}
		active = append(active, f)
	}
	return active
}

// safeDetect evaluates one feature; a panicking detector logs and reads as a
// non-match so one bad feature cannot abort the batch.
func (c *Classifier) safeDetect(f *Feature, obj *model.MemoryObject, ctx *DetectContext) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("feature %s panicked on object %s: %v", f.ID, obj.ID, r)
			matched = false
		}
	}()
	return f.Detect(obj, ctx)
}

func (c *Classifier) recordMatch(m *Match, framework string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.TotalLeaksFound++
	c.stats.ByPattern[m.Pattern]++
	c.stats.BySeverity[m.Severity]++
	if framework != "" {
		c.stats.ByFramework[framework]++
	}
	for _, id := range m.MatchedFeatureIDs {
		c.stats.ByFeature[id]++
	}
}

// winningPattern picks the most frequent pattern among matched features,
// first-seen order breaking ties, and returns the matching subset.
func winningPattern(matched []*Feature) (model.LeakPattern, []*Feature) {
	counts := make(map[model.LeakPattern]int)
	var order []model.LeakPattern
	for _, f := range matched {
		if counts[f.Pattern] == 0 {
			order = append(order, f.Pattern)
		}
		counts[f.Pattern]++
	}

	winner := order[0]
	for _, p := range order {
		if counts[p] > counts[winner] {
			winner = p
		}
	}

	var subset []*Feature
	for _, f := range matched {
		if f.Pattern == winner {
			subset = append(subset, f)
		}
	}
	return winner, subset
}

func maxFeatureSeverity(matched []*Feature) model.Severity {
	max := matched[0].Severity
	for _, f := range matched[1:] {
		if f.Severity > max {
			max = f.Severity
		}
	}
	return max
}

func buildDescription(first *Feature, obj *model.MemoryObject) string {
	desc := first.Description
	if obj.ComponentName != "" {
		desc = fmt.Sprintf("%s (component: %s)", desc, obj.ComponentName)
	}
	if obj.Size > LargeLeakSize {
		desc = fmt.Sprintf("%s; large leak: %d bytes retained", desc, obj.Size)
	}
	return desc
}

func joinSuggestions(subset []*Feature) string {
	seen := make(map[string]bool)
	var lines []string
	for _, f := range subset {
		if f.FixSuggestion == "" || seen[f.FixSuggestion] {
			continue
		}
		seen[f.FixSuggestion] = true
		lines = append(lines, f.FixSuggestion)
	}
	return strings.Join(lines, "\n")
}

func featureIDs(features []*Feature) []string {
	ids := make([]string, 0, len(features))
	for _, f := range features {
		ids = append(ids, f.ID)
	}
	return ids
}
