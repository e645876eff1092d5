package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-radar/internal/config"
	"portfolio-radar/internal/models"
)

func newTestReporter(t *testing.T) *ReportService {
	t.Helper()
	return NewReportService(config.ProcessingConfig{OutputDir: t.TempDir()}, newTestValidator(t))
}

func sampleAnalysis() *models.PortfolioAnalysis {
	analysis := &models.PortfolioAnalysis{
		PortfolioID:      "PF-1",
		PortfolioName:    "Digital Portfolio",
		RunID:            "run-123",
		ExecutiveSummary: "One project needs attention.",
		RiskClusters:     []string{"shared vendor dependency"},
		Recommendations:  []string{"re-plan the rollout"},
		DataWarnings:     []string{"[Beta] DATA ERROR: project marked as completed but 0 of 2 milestones reached"},
		ProjectScores: []models.ProjectScore{
			{
				ProjectID:   "p1",
				ProjectName: "Alpha",
				Urgency:     models.NewScoreValue(5, "deadline in two weeks"),
				Importance:  models.NewScoreValue(4, "board visibility"),
				Complexity:  models.NewScoreValue(3, "three teams involved"),
				Risk:        models.NewScoreValue(4, "vendor unstable"),
				DataQuality: models.NewScoreValue(4, "complete data"),
				IsCritical:  true,
				Summary:     "Needs attention now.",
				StatusLabel: "In progress",
				OwnerName:   "J. Lead",
			},
			{
				ProjectID:         "p2",
				ProjectName:       "Beta",
				Urgency:           models.NewScoreValue(1, "done"),
				Importance:        models.NewScoreValue(2, "minor"),
				Complexity:        models.NewScoreValue(2, "small"),
				Risk:              models.NewScoreValue(1, "done"),
				DataQuality:       models.NewScoreValue(3, "some gaps"),
				Summary:           "Wrapped up.",
				StatusLabel:       "Completed",
				ActualEffortHours: 80,
				ProgressPercent:   100,
			},
		},
	}
	analysis.ComputeStatistics()
	return analysis
}

func TestRenderMarkdown(t *testing.T) {
	reporter := newTestReporter(t)

	md := reporter.RenderMarkdown(sampleAnalysis())

	assert.Contains(t, md, "# Portfolio Report: Digital Portfolio")
	assert.Contains(t, md, "## Executive Summary")
	assert.Contains(t, md, "One project needs attention.")
	assert.Contains(t, md, "## Priority Ranking")
	assert.Contains(t, md, "| 1 | Alpha | Critical |")
	assert.Contains(t, md, "### Alpha")
	assert.Contains(t, md, "Lead: J. Lead")
	assert.Contains(t, md, "- Urgency 5/5: deadline in two weeks")
	assert.Contains(t, md, "## Risk Clusters")
	assert.Contains(t, md, "## Data Warnings")
	assert.Contains(t, md, "DATA ERROR")

	// Alpha outranks Beta and appears first in the ranking table.
	assert.Less(t, strings.Index(md, "| 1 | Alpha"), strings.Index(md, "| 2 | Beta"))
}

func TestRenderMarkdownLabels(t *testing.T) {
	reporter := newTestReporter(t)
	md := reporter.RenderMarkdown(sampleAnalysis())

	// Beta is cleanly completed and labeled for retrospective review.
	assert.Contains(t, md, "| Beta | Review / Lessons Learned |")
}

func TestSaveAnalysisWritesBothFiles(t *testing.T) {
	reporter := newTestReporter(t)

	jsonPath, err := reporter.SaveAnalysis(sampleAnalysis())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(jsonPath, ".json"))
}

func TestRankedScoresFallbackWithoutRanking(t *testing.T) {
	reporter := newTestReporter(t)

	analysis := sampleAnalysis()
	analysis.PriorityRanking = nil

	ranked := reporter.rankedScores(analysis)
	require.Len(t, ranked, 2)
	assert.Equal(t, "Alpha", ranked[0].ProjectName)
}
