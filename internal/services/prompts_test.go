package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"portfolio-radar/internal/models"
)

func TestFormatProjectForPromptAlwaysLeadsWithIdentity(t *testing.T) {
	text := FormatProjectForPrompt(&models.NormalizedProject{
		ID:   "p1",
		Name: "Alpha",
	})

	assert.Contains(t, text, "### Project: Alpha (ID: p1)")
	// Absent facts are omitted entirely rather than rendered empty.
	assert.NotContains(t, text, "Milestones")
	assert.NotContains(t, text, "Status:")
}

func TestFormatProjectForPromptIncludesPresentFacts(t *testing.T) {
	text := FormatProjectForPrompt(&models.NormalizedProject{
		ID:                    "p1",
		Name:                  "Alpha",
		StatusLabel:           "At Risk",
		StatusColor:           models.StatusYellow,
		PlannedEffortHours:    100,
		ActualEffortHours:     150,
		ProgressPercent:       40,
		MilestonesTotal:       4,
		MilestonesCompleted:   1,
		MilestonesDelayed:     2,
		ProblemSummary:        "Vendor delivery slipped twice.",
		IsPotentiallyCritical: true,
		CriticalityReasons:    []string{"2 milestone(s) delayed"},
	})

	assert.Contains(t, text, "Status: At Risk (yellow)")
	assert.Contains(t, text, "Planned effort: 100h, actual effort: 150h")
	assert.Contains(t, text, "Milestones: 1/4 completed, 2 delayed")
	assert.Contains(t, text, "Known problems: Vendor delivery slipped twice.")
	assert.Contains(t, text, "Heuristic flags: 2 milestone(s) delayed")
}

func TestBuildScoringPromptContainsEveryProject(t *testing.T) {
	prompt := BuildScoringPrompt([]models.NormalizedProject{
		{ID: "p1", Name: "Alpha"},
		{ID: "p2", Name: "Beta"},
	})

	assert.Contains(t, prompt, "(ID: p1)")
	assert.Contains(t, prompt, "(ID: p2)")
	assert.Contains(t, prompt, `"projects"`)
	assert.Contains(t, prompt, "data_quality")
}

func TestBuildPortfolioPrompt(t *testing.T) {
	prompt := BuildPortfolioPrompt("Digital", []models.ProjectScore{
		{
			ProjectID:   "p1",
			ProjectName: "Alpha",
			Urgency:     models.NewScoreValue(5, ""),
			Importance:  models.NewScoreValue(4, ""),
			Complexity:  models.NewScoreValue(3, ""),
			Risk:        models.NewScoreValue(4, ""),
			DataQuality: models.NewScoreValue(4, ""),
			IsCritical:  true,
			Summary:     "Needs attention.",
		},
	})

	assert.Contains(t, prompt, `portfolio "Digital"`)
	assert.Contains(t, prompt, "Alpha (ID: p1) [CRITICAL]")
	assert.Contains(t, prompt, "Scores: U=5, I=4, C=3, R=4, DQ=4")
	assert.Contains(t, prompt, "Summary: Needs attention.")
	assert.Contains(t, prompt, "executive_summary")
}
