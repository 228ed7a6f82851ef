// Package risk computes per-message crisis risk assessments. Scoring is pure
// and deterministic given the same message and progression history; it never
// fails on malformed input.
package risk

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Damatnic/ASTRAL-CORE-V2-sub004/pkg/logging"
)

var scorerTracer = otel.Tracer("crisis/risk-scorer")

// Level is the ordinal risk classification.
type Level int

const (
	LevelMinimal Level = iota
	LevelLow
	LevelModerate
	LevelHigh
	LevelCritical
	LevelEmergency
)

func (l Level) String() string {
	switch l {
	case LevelMinimal:
		return "MINIMAL"
	case LevelLow:
		return "LOW"
	case LevelModerate:
		return "MODERATE"
	case LevelHigh:
		return "HIGH"
	case LevelCritical:
		return "CRITICAL"
	case LevelEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// InterventionLevel recommends the kind of help to engage.
type InterventionLevel string

const (
	InterventionSelfHelp     InterventionLevel = "SELF_HELP"
	InterventionPeerSupport  InterventionLevel = "PEER_SUPPORT"
	InterventionProfessional InterventionLevel = "PROFESSIONAL"
	InterventionCrisisTeam   InterventionLevel = "CRISIS_TEAM"
	InterventionEmergency    InterventionLevel = "EMERGENCY"
)

// Breakdown holds the four weighted component scores.
type Breakdown struct {
	BaseRisk        float64 `json:"base_risk"`
	SentimentRisk   float64 `json:"sentiment_risk"`
	BehavioralRisk  float64 `json:"behavioral_risk"`
	ProgressionRisk float64 `json:"progression_risk"`
}

// Assessment is the ephemeral result of scoring one message.
type Assessment struct {
	Score             float64           `json:"score"`
	Breakdown         Breakdown         `json:"breakdown"`
	Level             Level             `json:"level"`
	Confidence        float64           `json:"confidence"`
	ImmediateAction   bool              `json:"immediate_action"`
	Intervention      InterventionLevel `json:"intervention"`
	RiskFactors       []string          `json:"risk_factors"`
	ProtectiveFactors []string          `json:"protective_factors"`
	EmergencyTerms    int               `json:"emergency_terms"`
	Latency           time.Duration     `json:"latency"`
}

// Signals carries optional upstream analysis inputs. A nil Sentiment means
// the scorer derives a lexical sentiment from the message itself.
type Signals struct {
	Sentiment          *float64 // -1..1, more negative is worse
	EmotionalIntensity float64  // 0..1
	ImmediateRisk      bool
	BaseConfidence     float64
}

// Context is the per-session scoring context supplied by the session manager.
type Context struct {
	Progression *Progression
	Signals     *Signals
}

// Scorer turns message text plus session context into an Assessment.
type Scorer struct {
	logger *logging.Logger
}

// NewScorer creates a risk scorer.
func NewScorer(logger *logging.Logger) *Scorer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scorer{logger: logger}
}

const (
	minScore = 1.0
	maxScore = 10.0

	weightBase        = 0.40
	weightSentiment   = 0.25
	weightBehavioral  = 0.20
	weightProgression = 0.15
)

// Score assesses one message. Empty or whitespace-only input yields a
// low-confidence MINIMAL assessment rather than an error. As a side effect
// the session's progression window is updated with the new score.
func (s *Scorer) Score(ctx context.Context, message string, sc *Context) *Assessment {
	start := time.Now()
	_, span := scorerTracer.Start(ctx, "risk.score")
	defer span.End()

	if sc == nil {
		sc = &Context{}
	}

	message = strings.TrimSpace(message)
	if message == "" {
		a := &Assessment{
			Score:        minScore,
			Breakdown:    Breakdown{BaseRisk: minScore, SentimentRisk: minScore, BehavioralRisk: minScore},
			Level:        LevelMinimal,
			Confidence:   0.2,
			Intervention: InterventionSelfHelp,
			Latency:      time.Since(start),
		}
		s.pushProgression(sc, a.Score, start)
		return a
	}

	factors := newFactorSet()
	protective := newFactorSet()

	emergencyMatches := matchAll(emergencyPatterns, message)
	for _, m := range emergencyMatches {
		factors.add(m.label)
	}

	sentiment := s.sentimentSignal(message, sc.Signals)

	base := s.baseRisk(message, sentiment, len(emergencyMatches), factors)
	sentRisk := s.sentimentRisk(message, sentiment, sc.Signals, factors)
	behavioral := s.behavioralRisk(message, sc.Progression, factors, protective)

	prog := 0.0
	if sc.Progression.Len() >= 2 {
		prog = progressionRisk(sc.Progression.Trend())
	}

	// Weighted positive sum first, clamped; negative progression is applied
	// additively afterward so improvement can pull the total down but cannot
	// be weighted away.
	total := weightBase*base + weightSentiment*sentRisk + weightBehavioral*behavioral + weightProgression*math.Max(0, prog)
	total = clamp(total)
	if prog < 0 {
		total = clamp(total + prog)
	}
	if len(emergencyMatches) > 0 && total < base {
		total = base
	}
	total = math.Round(total*10) / 10

	level := classify(total)
	if len(emergencyMatches) > 0 {
		level = LevelEmergency
	}

	immediateRisk := sc.Signals != nil && sc.Signals.ImmediateRisk
	a := &Assessment{
		Score: total,
		Breakdown: Breakdown{
			BaseRisk:        round1(base),
			SentimentRisk:   round1(sentRisk),
			BehavioralRisk:  round1(behavioral),
			ProgressionRisk: round1(prog),
		},
		Level:             level,
		Confidence:        s.confidence(sc.Signals, factors.len(), len(emergencyMatches) > 0),
		ImmediateAction:   total >= 8 || len(emergencyMatches) > 0 || immediateRisk,
		Intervention:      intervention(total, len(emergencyMatches) > 0),
		RiskFactors:       factors.sorted(),
		ProtectiveFactors: protective.sorted(),
		EmergencyTerms:    len(emergencyMatches),
		Latency:           time.Since(start),
	}

	s.pushProgression(sc, a.Score, start)

	span.SetAttributes(
		attribute.Float64("risk.score", a.Score),
		attribute.String("risk.level", a.Level.String()),
		attribute.Bool("risk.immediate_action", a.ImmediateAction),
	)
	if a.Level >= LevelHigh {
		s.logger.Info("elevated risk detected",
			"score", a.Score,
			"level", a.Level.String(),
			"factors", a.RiskFactors,
		)
	}
	return a
}

func (s *Scorer) pushProgression(sc *Context, score float64, at time.Time) {
	if sc.Progression != nil {
		sc.Progression.Push(score, at)
	}
}

// baseRisk is keyword driven: emergency terms force >= 9 (10 when two or more
// distinct terms match), otherwise weighted crisis terms plus a direct mapping
// of the negative sentiment signal.
func (s *Scorer) baseRisk(message string, sentiment float64, emergencyCount int, factors *factorSet) float64 {
	if emergencyCount >= 2 {
		return maxScore
	}
	if emergencyCount == 1 {
		return 9.0
	}

	base := minScore
	for _, m := range matchAll(crisisPatterns, message) {
		base += m.weight
		factors.add(m.label)
	}
	base += 3.5 * math.Max(0, -sentiment)
	return clamp(base)
}

// sentimentRisk maps the -1..1 sentiment signal onto the scoring scale and
// amplifies it with emotional intensity and cognitive distortion markers.
func (s *Scorer) sentimentRisk(message string, sentiment float64, sig *Signals, factors *factorSet) float64 {
	risk := 5.5 - 4.5*sentiment

	var distortion float64
	for name, patterns := range distortionPatterns {
		if len(matchAll(patterns, message)) > 0 {
			distortion += 0.8
			factors.add(name)
		}
	}
	risk += math.Min(distortion, 3.0)

	intensity := emotionalIntensity(message)
	if sig != nil && sig.EmotionalIntensity > intensity {
		intensity = sig.EmotionalIntensity
	}
	risk += 1.5 * intensity

	return clamp(risk)
}

// behavioralRisk starts at a baseline of 3 with additive bumps for planning,
// finality, isolation, and fragmented or rapid messaging, minus adjustments
// for future orientation, support, and hope.
func (s *Scorer) behavioralRisk(message string, prog *Progression, factors, protective *factorSet) float64 {
	risk := 3.0

	if m := matchAll(planningPatterns, message); len(m) > 0 {
		risk += 1.5
		factors.add(m[0].label)
	}
	if m := matchAll(finalityPatterns, message); len(m) > 0 {
		risk += 1.5
		factors.add(m[0].label)
	}
	if m := matchAll(isolationPatterns, message); len(m) > 0 {
		risk += 1.0
		factors.add(m[0].label)
	}
	if fragmented(message) {
		risk += 0.5
		factors.add("fragmented_communication")
	}
	if prog.RapidMessaging() {
		risk += 0.5
		factors.add("rapid_messaging")
	}

	if m := matchAll(futurePatterns, message); len(m) > 0 {
		risk -= 1.0
		protective.add(m[0].label)
	}
	if m := matchAll(supportPatterns, message); len(m) > 0 {
		risk -= 1.0
		protective.add(m[0].label)
	}
	if m := matchAll(hopePatterns, message); len(m) > 0 {
		risk -= 1.0
		protective.add(m[0].label)
	}

	return clamp(risk)
}

// sentimentSignal prefers the upstream signal and falls back to a lexical
// estimate over the message tokens.
func (s *Scorer) sentimentSignal(message string, sig *Signals) float64 {
	if sig != nil && sig.Sentiment != nil {
		return math.Max(-1, math.Min(1, *sig.Sentiment))
	}

	var pos, neg int
	for _, token := range strings.Fields(strings.ToLower(message)) {
		token = strings.Trim(token, ".,!?;:'\"()")
		if _, ok := negativeTokens[token]; ok {
			neg++
		}
		if _, ok := positiveTokens[token]; ok {
			pos++
		}
	}
	return math.Max(-1, math.Min(1, 0.5*float64(pos-neg)))
}

func (s *Scorer) confidence(sig *Signals, indicatorCount int, emergency bool) float64 {
	conf := 0.5
	if sig != nil && sig.BaseConfidence > 0 {
		conf = sig.BaseConfidence
	}
	conf += 0.05 * float64(indicatorCount)
	if emergency {
		conf = math.Max(conf+0.1, 0.95)
	}
	return math.Min(conf, 1.0)
}

// classify applies the inclusive lower-bound thresholds.
func classify(score float64) Level {
	switch {
	case score >= 9:
		return LevelEmergency
	case score >= 8:
		return LevelCritical
	case score >= 6.5:
		return LevelHigh
	case score >= 4.5:
		return LevelModerate
	case score >= 2.5:
		return LevelLow
	default:
		return LevelMinimal
	}
}

func intervention(score float64, emergency bool) InterventionLevel {
	switch {
	case emergency || score >= 9:
		return InterventionEmergency
	case score >= 7:
		return InterventionCrisisTeam
	case score >= 5:
		return InterventionProfessional
	case score >= 3:
		return InterventionPeerSupport
	default:
		return InterventionSelfHelp
	}
}

// emotionalIntensity estimates 0..1 intensity from punctuation and casing.
func emotionalIntensity(message string) float64 {
	exclaims := strings.Count(message, "!")
	var upper, letters int
	for _, r := range message {
		if r >= 'A' && r <= 'Z' {
			upper++
		}
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			letters++
		}
	}
	capsRatio := 0.0
	if letters > 8 {
		capsRatio = float64(upper) / float64(letters)
	}
	intensity := 0.2*float64(exclaims) + capsRatio
	return math.Min(intensity, 1.0)
}

// fragmented reports very short or punctuation-heavy messages.
func fragmented(message string) bool {
	words := strings.Fields(message)
	if len(words) <= 2 {
		return true
	}
	var punct int
	for _, r := range message {
		if strings.ContainsRune(".!?…", r) {
			punct++
		}
	}
	return punct > len(words)
}

func clamp(v float64) float64 {
	return math.Max(minScore, math.Min(maxScore, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// factorSet deduplicates factor labels while preserving a stable output order.
type factorSet struct {
	seen map[string]struct{}
}

func newFactorSet() *factorSet {
	return &factorSet{seen: make(map[string]struct{})}
}

func (f *factorSet) add(label string) {
	f.seen[label] = struct{}{}
}

func (f *factorSet) len() int { return len(f.seen) }

func (f *factorSet) sorted() []string {
	if len(f.seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(f.seen))
	for label := range f.seen {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}
