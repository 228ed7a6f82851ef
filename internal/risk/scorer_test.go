package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScorer_EmergencyKeywords(t *testing.T) {
	scorer := NewScorer(nil)

	tests := []struct {
		name    string
		message string
	}{
		{"kill myself", "I want to kill myself right now"},
		{"suicide", "I keep thinking about suicide"},
		{"end my life", "I am going to end my life"},
		{"want to die", "I just want to die"},
		{"better off dead", "everyone would be better off dead without me"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := scorer.Score(context.Background(), tt.message, &Context{Progression: NewProgression()})
			assert.Equal(t, LevelEmergency, a.Level)
			assert.Equal(t, 5, int(a.Level))
			assert.GreaterOrEqual(t, a.Confidence, 0.95)
			assert.True(t, a.ImmediateAction)
			assert.Equal(t, InterventionEmergency, a.Intervention)
			assert.GreaterOrEqual(t, a.Score, 9.0)
		})
	}
}

func TestScorer_MultipleEmergencyTermsForceTen(t *testing.T) {
	scorer := NewScorer(nil)
	a := scorer.Score(context.Background(), "I want to die and I am going to kill myself", &Context{})
	assert.Equal(t, 10.0, a.Score)
	assert.Equal(t, LevelEmergency, a.Level)
}

func TestScorer_PanicAttackIsHighNotEmergency(t *testing.T) {
	scorer := NewScorer(nil)
	a := scorer.Score(context.Background(), "I am having a panic attack", &Context{Progression: NewProgression()})

	assert.Equal(t, LevelHigh, a.Level)
	assert.Equal(t, 3, int(a.Level))
	assert.GreaterOrEqual(t, a.Score, 6.5)
	assert.Less(t, a.Score, 8.0)
	assert.Zero(t, a.EmergencyTerms)
	assert.Contains(t, a.RiskFactors, "acute_panic")
}

func TestScorer_EmptyMessageYieldsMinimal(t *testing.T) {
	scorer := NewScorer(nil)

	for _, message := range []string{"", "   ", "\n\t"} {
		a := scorer.Score(context.Background(), message, &Context{})
		assert.Equal(t, LevelMinimal, a.Level)
		assert.Equal(t, 1.0, a.Score)
		assert.LessOrEqual(t, a.Confidence, 0.3)
		assert.False(t, a.ImmediateAction)
	}
}

func TestScorer_ProtectiveFactorsLowerBehavioralRisk(t *testing.T) {
	scorer := NewScorer(nil)

	bare := scorer.Score(context.Background(), "I feel sad today", &Context{})
	supported := scorer.Score(context.Background(), "I feel sad today but I talked to my therapist and I am hopeful about tomorrow", &Context{})

	assert.Less(t, supported.Breakdown.BehavioralRisk, bare.Breakdown.BehavioralRisk)
	assert.Contains(t, supported.ProtectiveFactors, "support_network")
	assert.Contains(t, supported.ProtectiveFactors, "future_orientation")
	assert.Contains(t, supported.ProtectiveFactors, "hope_marker")
}

func TestScorer_DeterministicForIdenticalInput(t *testing.T) {
	scorer := NewScorer(nil)

	first := scorer.Score(context.Background(), "I feel hopeless and alone", &Context{})
	second := scorer.Score(context.Background(), "I feel hopeless and alone", &Context{})

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Level, second.Level)
	assert.Equal(t, first.Breakdown, second.Breakdown)
	assert.Equal(t, first.RiskFactors, second.RiskFactors)
}

func TestScorer_EscalatingConversation(t *testing.T) {
	scorer := NewScorer(nil)
	sc := &Context{Progression: NewProgression()}

	messages := []string{
		"feeling a bit down",
		"things are getting worse",
		"I feel hopeless and alone",
		"I can't take this anymore",
		"I have a plan. I'm going to do it tonight.",
	}

	var last *Assessment
	for _, msg := range messages {
		last = scorer.Score(context.Background(), msg, sc)
	}

	require.NotNil(t, last)
	assert.Equal(t, LevelEmergency, last.Level)
	assert.Greater(t, last.Breakdown.ProgressionRisk, 0.0)
	assert.Equal(t, TrendRapidlyEscalating, sc.Progression.Trend())
	assert.True(t, last.ImmediateAction)
}

func TestScorer_ImprovingConversationPullsScoreDown(t *testing.T) {
	scorer := NewScorer(nil)
	sc := &Context{Progression: NewProgression()}

	scorer.Score(context.Background(), "I am having a panic attack", sc)
	scorer.Score(context.Background(), "I still feel awful and hopeless", sc)
	scorer.Score(context.Background(), "thank you, I am feeling better now", sc)
	a := scorer.Score(context.Background(), "I am feeling better and hopeful, grateful for the help", sc)

	assert.Negative(t, a.Breakdown.ProgressionRisk)
	assert.LessOrEqual(t, a.Level, LevelLow)
}

func TestScorer_UpstreamSignalsOverrideLexicalSentiment(t *testing.T) {
	scorer := NewScorer(nil)
	negative := -0.9

	withSignal := scorer.Score(context.Background(), "everything is okay I guess", &Context{
		Signals: &Signals{Sentiment: &negative, ImmediateRisk: true},
	})
	without := scorer.Score(context.Background(), "everything is okay I guess", &Context{})

	assert.Greater(t, withSignal.Breakdown.SentimentRisk, without.Breakdown.SentimentRisk)
	assert.True(t, withSignal.ImmediateAction)
}

func TestClassifyThresholds(t *testing.T) {
	tests := []struct {
		score float64
		want  Level
	}{
		{1.0, LevelMinimal},
		{2.4, LevelMinimal},
		{2.5, LevelLow},
		{4.4, LevelLow},
		{4.5, LevelModerate},
		{6.4, LevelModerate},
		{6.5, LevelHigh},
		{7.9, LevelHigh},
		{8.0, LevelCritical},
		{8.9, LevelCritical},
		{9.0, LevelEmergency},
		{10.0, LevelEmergency},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.score), "score %.1f", tt.score)
	}
}

func TestInterventionLevels(t *testing.T) {
	assert.Equal(t, InterventionEmergency, intervention(9.2, false))
	assert.Equal(t, InterventionEmergency, intervention(4.0, true))
	assert.Equal(t, InterventionCrisisTeam, intervention(7.5, false))
	assert.Equal(t, InterventionProfessional, intervention(5.0, false))
	assert.Equal(t, InterventionPeerSupport, intervention(3.5, false))
	assert.Equal(t, InterventionSelfHelp, intervention(1.5, false))
}
