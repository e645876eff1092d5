package services

import (
	"fmt"
	"strings"

	"portfolio-radar/internal/models"
)

const systemPrompt = `You are an experienced portfolio manager assessing business projects.
You always respond with a single valid JSON object and nothing else - no
markdown fences, no commentary before or after the JSON.`

const scoringPromptTemplate = `Assess each of the following projects on five dimensions, each scored
from 1 (very low) to 5 (very high):

- urgency: time pressure until consequences materialize (deadlines, delays)
- importance: strategic weight and KPI relevance
- complexity: technical and organizational complexity
- risk: technical, financial and schedule risks
- data_quality: completeness and clarity of the available project data

Project data:

%s

Respond with a JSON object of this exact shape:
{
  "projects": [
    {
      "project_id": "...",
      "project_name": "...",
      "urgency": {"value": 3, "reasoning": "..."},
      "importance": {"value": 3, "reasoning": "..."},
      "complexity": {"value": 3, "reasoning": "..."},
      "risk": {"value": 3, "reasoning": "..."},
      "data_quality": {"value": 3, "reasoning": "..."},
      "is_critical": false,
      "summary": "one or two sentences",
      "detailed_analysis": "three to five sentences covering problems, causes and impact"
    }
  ]
}

Include every project exactly once, keyed by its project_id.`

const portfolioPromptTemplate = `Based on the following per-project assessments for portfolio "%s",
write a portfolio-level analysis.

%s

Respond with a JSON object of this exact shape:
{
  "executive_summary": "management-ready summary, five to eight sentences",
  "risk_clusters": ["pattern shared by several projects", "..."],
  "recommendations": ["actionable recommendation", "..."]
}`

// FormatProjectForPrompt renders one project's facts for the scoring
// prompt. Identifier and name always lead so the response can be
// re-associated; everything else is included only when present.
func FormatProjectForPrompt(p *models.NormalizedProject) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### Project: %s (ID: %s)\n", p.Name, p.ID)

	if p.TypeName != "" {
		fmt.Fprintf(&b, "- Type: %s\n", p.TypeName)
	}
	if p.PriorityName != "" {
		fmt.Fprintf(&b, "- Priority: %s\n", p.PriorityName)
	}
	if p.DepartmentName != "" {
		fmt.Fprintf(&b, "- Department: %s\n", p.DepartmentName)
	}
	if p.CustomerName != "" {
		fmt.Fprintf(&b, "- Customer: %s\n", p.CustomerName)
	}
	if p.OwnerName != "" {
		fmt.Fprintf(&b, "- Project lead: %s\n", p.OwnerName)
	}
	if p.StatusLabel != "" {
		fmt.Fprintf(&b, "- Status: %s (%s)\n", p.StatusLabel, p.StatusColor)
	}

	if p.PlannedEffortHours > 0 || p.ActualEffortHours > 0 {
		fmt.Fprintf(&b, "- Planned effort: %.0fh, actual effort: %.0fh\n",
			p.PlannedEffortHours, p.ActualEffortHours)
		if p.EffortDeviationPercent != 0 {
			fmt.Fprintf(&b, "- Effort deviation: %+.1f%%\n", p.EffortDeviationPercent)
		}
	}
	if p.ProgressPercent > 0 {
		fmt.Fprintf(&b, "- Progress: %.0f%%\n", p.ProgressPercent)
	}
	if p.StartDate != nil {
		fmt.Fprintf(&b, "- Start date: %s\n", p.StartDate.Format("2006-01-02"))
	}
	if p.EndDatePlanned != nil {
		fmt.Fprintf(&b, "- Planned end: %s\n", p.EndDatePlanned.Format("2006-01-02"))
	}
	if p.DelayDays != 0 {
		fmt.Fprintf(&b, "- Schedule delay: %d days\n", p.DelayDays)
	}
	if p.MilestonesTotal > 0 {
		fmt.Fprintf(&b, "- Milestones: %d/%d completed, %d delayed\n",
			p.MilestonesCompleted, p.MilestonesTotal, p.MilestonesDelayed)
	}

	if p.StatusText != "" {
		fmt.Fprintf(&b, "- Status report: %s\n", p.StatusText)
	}
	if p.ScopeSummary != "" {
		fmt.Fprintf(&b, "- Scope: %s\n", p.ScopeSummary)
	}
	if p.ProblemSummary != "" {
		fmt.Fprintf(&b, "- Known problems: %s\n", p.ProblemSummary)
	}
	if p.ObjectiveSummary != "" {
		fmt.Fprintf(&b, "- Objectives: %s\n", p.ObjectiveSummary)
	}

	if p.IsPotentiallyCritical && len(p.CriticalityReasons) > 0 {
		fmt.Fprintf(&b, "- Heuristic flags: %s\n", strings.Join(p.CriticalityReasons, "; "))
	}

	return b.String()
}

// BuildScoringPrompt renders the batch scoring prompt for a set of projects.
func BuildScoringPrompt(projects []models.NormalizedProject) string {
	parts := make([]string, len(projects))
	for i := range projects {
		parts[i] = FormatProjectForPrompt(&projects[i])
	}
	return fmt.Sprintf(scoringPromptTemplate, strings.Join(parts, "\n"))
}

// FormatScoresForPortfolioPrompt renders validated scores as input for
// the portfolio-level summary call.
func FormatScoresForPortfolioPrompt(scores []models.ProjectScore) string {
	var b strings.Builder
	for i := range scores {
		s := &scores[i]
		marker := ""
		if s.IsCritical {
			marker = " [CRITICAL]"
		}
		fmt.Fprintf(&b, "### %s (ID: %s)%s\n", s.ProjectName, s.ProjectID, marker)
		fmt.Fprintf(&b, "Scores: U=%d, I=%d, C=%d, R=%d, DQ=%d\n",
			s.Urgency.Value, s.Importance.Value, s.Complexity.Value,
			s.Risk.Value, s.DataQuality.Value)
		switch {
		case s.DetailedAnalysis != "":
			fmt.Fprintf(&b, "Analysis: %s\n", s.DetailedAnalysis)
		case s.Summary != "":
			fmt.Fprintf(&b, "Summary: %s\n", s.Summary)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// BuildPortfolioPrompt renders the phase-two portfolio analysis prompt.
func BuildPortfolioPrompt(portfolioName string, scores []models.ProjectScore) string {
	return fmt.Sprintf(portfolioPromptTemplate, portfolioName, FormatScoresForPortfolioPrompt(scores))
}
