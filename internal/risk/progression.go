package risk

import "time"

// Trend classifies how a session's risk scores are moving.
type Trend string

const (
	TrendImproving         Trend = "IMPROVING"
	TrendStable            Trend = "STABLE"
	TrendWorsening         Trend = "WORSENING"
	TrendRapidlyEscalating Trend = "RAPIDLY_ESCALATING"
)

const progressionWindow = 10

// Progression is the rolling per-session score history used for the
// progression component. Created on the first assessment, discarded when the
// session ends. Not safe for concurrent use; the session manager serializes
// access per session.
type Progression struct {
	scores    []float64
	intervals []time.Duration
	lastAt    time.Time
	trend     Trend
	peak      float64
	sum       float64
	count     int
}

// NewProgression creates an empty progression window.
func NewProgression() *Progression {
	return &Progression{trend: TrendStable}
}

// Push appends a score, recomputes the trend, and caps the window at 10
// entries. Inter-arrival intervals are tracked for rapid-messaging detection.
func (p *Progression) Push(score float64, at time.Time) {
	if !p.lastAt.IsZero() {
		interval := at.Sub(p.lastAt)
		p.intervals = append(p.intervals, interval)
		if len(p.intervals) > progressionWindow {
			p.intervals = p.intervals[1:]
		}
	}
	p.lastAt = at

	p.scores = append(p.scores, score)
	if len(p.scores) > progressionWindow {
		p.scores = p.scores[1:]
	}
	p.sum += score
	p.count++
	if score > p.peak {
		p.peak = score
	}
	p.trend = p.computeTrend()
}

// Len returns the number of scores currently in the window.
func (p *Progression) Len() int {
	if p == nil {
		return 0
	}
	return len(p.scores)
}

// Trend returns the current trend classification.
func (p *Progression) Trend() Trend {
	if p == nil || len(p.scores) == 0 {
		return TrendStable
	}
	return p.trend
}

// Peak returns the highest score observed for the session.
func (p *Progression) Peak() float64 {
	if p == nil {
		return 0
	}
	return p.peak
}

// Mean returns the running mean over all scores ever pushed.
func (p *Progression) Mean() float64 {
	if p == nil || p.count == 0 {
		return 0
	}
	return p.sum / float64(p.count)
}

// RapidMessaging reports whether the seeker is sending messages in quick
// bursts, one of the behavioral fragmentation signals.
func (p *Progression) RapidMessaging() bool {
	if p == nil || len(p.intervals) < 2 {
		return false
	}
	var total time.Duration
	for _, iv := range p.intervals {
		total += iv
	}
	return total/time.Duration(len(p.intervals)) < 10*time.Second
}

func (p *Progression) computeTrend() Trend {
	n := len(p.scores)
	if n < 2 {
		return TrendStable
	}
	recent := p.scores[n-1] - p.scores[n-2]
	overall := p.scores[n-1] - p.scores[0]

	switch {
	case recent >= 2 || (overall >= 3 && recent > 0):
		return TrendRapidlyEscalating
	case recent >= 1 || overall >= 1:
		return TrendWorsening
	case recent <= -1 || overall <= -1:
		return TrendImproving
	default:
		return TrendStable
	}
}

// progressionRisk maps a trend onto the scoring scale. Only meaningful when
// at least two prior scores exist; the caller guards that.
func progressionRisk(trend Trend) float64 {
	switch trend {
	case TrendRapidlyEscalating:
		return 8.0
	case TrendWorsening:
		return 5.0
	case TrendImproving:
		return -2.0
	default:
		return 0.5
	}
}
