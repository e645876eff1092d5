package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio-radar/internal/config"
	"portfolio-radar/internal/models"
)

func newTestValidator(t *testing.T) *SanityValidator {
	t.Helper()
	v, err := NewSanityValidator(config.ValidationConfig{}, zap.NewNop())
	require.NoError(t, err)
	return v
}

func TestNewSanityValidatorRejectsBadPattern(t *testing.T) {
	_, err := NewSanityValidator(config.ValidationConfig{
		TextReplacements: []config.TextReplacement{{Pattern: `((`, Replacement: "x"}},
	}, zap.NewNop())
	assert.Error(t, err)
}

func TestIsCompleted(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name     string
		score    models.ProjectScore
		expected bool
	}{
		{"status keyword english", models.ProjectScore{StatusLabel: "Completed"}, true},
		{"status keyword german", models.ProjectScore{StatusLabel: "Erfolgreich abgeschlossen"}, true},
		{"all milestones reached", models.ProjectScore{MilestonesTotal: 3, MilestonesCompleted: 3}, true},
		{"full progress", models.ProjectScore{ProgressPercent: 100}, true},
		{"active project", models.ProjectScore{StatusLabel: "In progress", ProgressPercent: 40}, false},
		{"empty", models.ProjectScore{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, v.IsCompleted(&tc.score))
		})
	}
}

func TestValidateAndFixCompletedProject(t *testing.T) {
	v := newTestValidator(t)

	score := models.ProjectScore{
		ProjectID:   "P-1",
		ProjectName: "Rollout [CRITICAL]",
		StatusLabel: "abgeschlossen",
		Urgency:     models.NewScoreValue(4, "deadline pressure"),
		Importance:  models.NewScoreValue(4, "strategic"),
		Complexity:  models.NewScoreValue(3, "moderate"),
		Risk:        models.NewScoreValue(5, "high risk"),
		DataQuality: models.NewScoreValue(4, "good data"),
		IsCritical:  true,
		Summary:     "Immediate escalation to management required, urgent need for action.",
	}

	result := v.ValidateAndFix(&score)

	assert.Equal(t, 1, score.Risk.Value)
	assert.Contains(t, score.Risk.Reasoning, "Original value: 5/5")
	assert.Equal(t, 1, score.Urgency.Value)
	assert.Contains(t, score.Urgency.Reasoning, "Original value: 4/5")
	assert.False(t, score.IsCritical)
	assert.Equal(t, "Rollout", score.ProjectName)

	// Escalation language is rewritten for the retrospective.
	assert.NotContains(t, strings.ToLower(score.Summary), "immediate escalation")
	assert.NotContains(t, strings.ToLower(score.Summary), "urgent need for action")
	assert.Contains(t, score.Summary, "lessons learned")

	assert.NotEmpty(t, result.Corrections)
	assert.False(t, result.HasDataError)
}

func TestValidateAndFixCompletedLowScoresUntouched(t *testing.T) {
	v := newTestValidator(t)

	score := models.ProjectScore{
		ProjectName: "Archive",
		StatusLabel: "closed",
		Urgency:     models.NewScoreValue(1, "done"),
		Risk:        models.NewScoreValue(1, "done"),
		DataQuality: models.NewScoreValue(4, "fine"),
	}

	result := v.ValidateAndFix(&score)

	assert.Equal(t, "done", score.Urgency.Reasoning)
	assert.Equal(t, "done", score.Risk.Reasoning)
	assert.Empty(t, result.Corrections)
}

func TestValidateAndFixMilestoneContradiction(t *testing.T) {
	v := newTestValidator(t)

	score := models.ProjectScore{
		ProjectName:         "Phantom Finish",
		StatusLabel:         "completed",
		MilestonesTotal:     5,
		MilestonesCompleted: 0,
		ProgressPercent:     100,
		ActualEffortHours:   120,
		DataQuality:         models.NewScoreValue(4, "looked fine"),
	}

	result := v.ValidateAndFix(&score)

	assert.True(t, result.HasDataError)
	require.NotEmpty(t, result.Warnings)
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, DataErrorMarker) {
			found = true
			assert.Contains(t, w, "0 of 5 milestones")
		}
	}
	assert.True(t, found, "expected a DATA ERROR warning")
	assert.Equal(t, models.MinScore, score.DataQuality.Value)
	assert.Contains(t, score.DataQuality.Reasoning, "0/5")
}

func TestValidateAndFixStagnantProject(t *testing.T) {
	v := newTestValidator(t)

	score := models.ProjectScore{
		ProjectName:        "Sleeper",
		StatusLabel:        "In progress",
		ProgressPercent:    0,
		PlannedEffortHours: 40,
		Urgency:            models.NewScoreValue(2, "quiet"),
		Risk:               models.NewScoreValue(2, "quiet"),
		DataQuality:        models.NewScoreValue(3, "ok"),
	}

	result := v.ValidateAndFix(&score)

	assert.True(t, score.IsCritical)
	assert.GreaterOrEqual(t, score.Urgency.Value, 4)
	assert.GreaterOrEqual(t, score.Risk.Value, 4)
	assert.Contains(t, score.Urgency.Reasoning, "Originally: 2/5")
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "without progress")
}

func TestValidateAndFixPlanningPhaseNotEscalated(t *testing.T) {
	v := newTestValidator(t)

	score := models.ProjectScore{
		ProjectName:        "Greenfield",
		StatusLabel:        "In Planung",
		ProgressPercent:    0,
		PlannedEffortHours: 200,
		Urgency:            models.NewScoreValue(2, "early"),
		Risk:               models.NewScoreValue(2, "early"),
		DataQuality:        models.NewScoreValue(3, "ok"),
	}

	v.ValidateAndFix(&score)

	assert.False(t, score.IsCritical)
	assert.Equal(t, 2, score.Urgency.Value)
	assert.Equal(t, 2, score.Risk.Value)
}

func TestValidateAndFixNoPlanNoEscalation(t *testing.T) {
	v := newTestValidator(t)

	// Nothing planned, nothing booked: there is no plan to be behind on.
	score := models.ProjectScore{
		ProjectName: "Idea Stub",
		StatusLabel: "In progress",
		Urgency:     models.NewScoreValue(2, "idea"),
		Risk:        models.NewScoreValue(2, "idea"),
		DataQuality: models.NewScoreValue(3, "ok"),
	}

	v.ValidateAndFix(&score)

	assert.False(t, score.IsCritical)
	assert.Equal(t, 2, score.Urgency.Value)
}

func TestValidateAndFixSoftStagnation(t *testing.T) {
	v := newTestValidator(t)

	t.Run("below ten percent becomes critical", func(t *testing.T) {
		score := models.ProjectScore{
			ProjectName:       "Slow Starter",
			StatusLabel:       "In progress",
			ProgressPercent:   5,
			MilestonesTotal:   4,
			ActualEffortHours: 10,
			DataQuality:       models.NewScoreValue(3, "ok"),
		}
		result := v.ValidateAndFix(&score)
		assert.True(t, score.IsCritical)
		assert.NotEmpty(t, result.Warnings)
	})

	t.Run("above ten percent warns only", func(t *testing.T) {
		score := models.ProjectScore{
			ProjectName:       "Mid Starter",
			StatusLabel:       "In progress",
			ProgressPercent:   15,
			MilestonesTotal:   4,
			ActualEffortHours: 10,
			DataQuality:       models.NewScoreValue(3, "ok"),
		}
		result := v.ValidateAndFix(&score)
		assert.False(t, score.IsCritical)
		assert.NotEmpty(t, result.Warnings)
	})
}

func TestDataQualityWarnings(t *testing.T) {
	v := newTestValidator(t)

	score := models.ProjectScore{
		ProjectName:         "Sparse",
		StatusLabel:         "In progress",
		ProgressPercent:     30,
		MilestonesTotal:     2,
		MilestonesCompleted: 1,
		DataQuality:         models.NewScoreValue(2, "thin"),
	}

	result := v.ValidateAndFix(&score)

	joined := strings.Join(result.Warnings, "\n")
	assert.Contains(t, joined, "no effort booked")
	assert.Contains(t, joined, "Limited data quality")
}

func TestValidateAndFixDelayedMilestonesNearCompletion(t *testing.T) {
	v := newTestValidator(t)

	score := models.ProjectScore{
		ProjectName:         "Almost There",
		StatusLabel:         "In progress",
		ProgressPercent:     95,
		MilestonesTotal:     6,
		MilestonesCompleted: 4,
		MilestonesDelayed:   2,
		ActualEffortHours:   300,
		PlannedEffortHours:  280,
		DataQuality:         models.NewScoreValue(4, "ok"),
	}

	result := v.ValidateAndFix(&score)

	joined := strings.Join(result.Warnings, "\n")
	assert.Contains(t, joined, "2 milestone(s) delayed")
}

func TestHasDataMismatch(t *testing.T) {
	v := newTestValidator(t)

	assert.True(t, v.HasDataMismatch(&models.ProjectScore{
		StatusLabel: "completed", MilestonesTotal: 3, MilestonesCompleted: 0,
		ProgressPercent: 100, ActualEffortHours: 50,
	}))
	assert.True(t, v.HasDataMismatch(&models.ProjectScore{
		StatusLabel: "completed", PlannedEffortHours: 100, ProgressPercent: 100,
	}))
	assert.False(t, v.HasDataMismatch(&models.ProjectScore{
		StatusLabel: "completed", ProgressPercent: 100,
		MilestonesTotal: 3, MilestonesCompleted: 3, ActualEffortHours: 50,
	}))
	assert.False(t, v.HasDataMismatch(&models.ProjectScore{
		StatusLabel: "In progress", ProgressPercent: 20,
	}))
}

func TestProjectLabel(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name     string
		score    models.ProjectScore
		expected string
	}{
		{
			"data error wins over completed",
			models.ProjectScore{StatusLabel: "completed", MilestonesTotal: 3, ProgressPercent: 100},
			LabelDataError,
		},
		{
			"clean completion",
			models.ProjectScore{StatusLabel: "completed", ProgressPercent: 100, ActualEffortHours: 10},
			LabelReview,
		},
		{
			"critical",
			models.ProjectScore{StatusLabel: "In progress", ProgressPercent: 10, IsCritical: true},
			LabelCritical,
		},
		{
			"at risk",
			models.ProjectScore{StatusLabel: "In progress", ProgressPercent: 10, Risk: models.NewScoreValue(4, "")},
			LabelAtRisk,
		},
		{
			"time critical",
			models.ProjectScore{StatusLabel: "In progress", ProgressPercent: 10, Urgency: models.NewScoreValue(5, "")},
			LabelTimeCritical,
		},
		{
			"standard",
			models.ProjectScore{StatusLabel: "In progress", ProgressPercent: 10},
			LabelStandard,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, v.ProjectLabel(&tc.score))
		})
	}
}

func TestValidatePortfolioScoresPrefixesWarnings(t *testing.T) {
	v := newTestValidator(t)

	scores := []models.ProjectScore{
		{
			ProjectName:         "Phantom",
			StatusLabel:         "completed",
			MilestonesTotal:     2,
			MilestonesCompleted: 0,
			ProgressPercent:     100,
			ActualEffortHours:   10,
			DataQuality:         models.NewScoreValue(4, "ok"),
		},
		{
			ProjectName:         "Clean",
			StatusLabel:         "In progress",
			ProgressPercent:     50,
			MilestonesTotal:     2,
			MilestonesCompleted: 1,
			ActualEffortHours:   20,
			PlannedEffortHours:  40,
			DataQuality:         models.NewScoreValue(4, "ok"),
		},
	}

	validated, warnings := v.ValidatePortfolioScores(scores)

	require.Len(t, validated, 2)
	require.NotEmpty(t, warnings)
	for _, w := range warnings {
		assert.True(t, strings.HasPrefix(w, "[Phantom]"), "warning %q should carry its project prefix", w)
	}
}

func TestNormalizeQuotes(t *testing.T) {
	assert.Equal(t, `The "alpha" phase slipped.`, normalizeQuotes("The 'alpha' phase slipped."))
	assert.Equal(t, `He said "done".`, normalizeQuotes("He said “done”."))
	assert.Equal(t, "it's fine", normalizeQuotes("it's fine"))
}
