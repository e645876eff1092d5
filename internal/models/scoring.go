package models

import "sort"

// Score scale boundaries. Every dimension is scored 1 (very low) to 5 (very high).
const (
	MinScore = 1
	MaxScore = 5
	MidScore = 3
)

// DefaultReasoning is the sentinel used when the model omits a reasoning string.
const DefaultReasoning = "No reasoning provided"

// ScoreValue is a single scored dimension with its reasoning.
// Values outside [1,5] are clamped on construction, not rejected.
type ScoreValue struct {
	Value     int    `json:"value"`
	Reasoning string `json:"reasoning"`
}

// NewScoreValue builds a ScoreValue, clamping the value into [1,5] and
// substituting the default reasoning when none is given.
func NewScoreValue(value int, reasoning string) ScoreValue {
	if value < MinScore {
		value = MinScore
	}
	if value > MaxScore {
		value = MaxScore
	}
	if reasoning == "" {
		reasoning = DefaultReasoning
	}
	return ScoreValue{Value: value, Reasoning: reasoning}
}

// ProjectScore is the complete five-dimension assessment for one project.
//
// Dimensions: Urgency (time pressure), Importance (strategic weight),
// Complexity (technical/organizational), Risk, DataQuality (how complete
// and clear the underlying data was).
type ProjectScore struct {
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`

	Urgency     ScoreValue `json:"urgency"`
	Importance  ScoreValue `json:"importance"`
	Complexity  ScoreValue `json:"complexity"`
	Risk        ScoreValue `json:"risk"`
	DataQuality ScoreValue `json:"data_quality"`

	IsCritical       bool   `json:"is_critical"`
	Summary          string `json:"summary"`
	DetailedAnalysis string `json:"detailed_analysis"`

	// Enrichment fields copied from the normalized project for reporting
	// and validation. Filled by the analyzer before validation runs.
	ProgressPercent       float64  `json:"progress_percent"`
	OwnerName             string   `json:"owner_name,omitempty"`
	StatusColor           string   `json:"status_color"`
	StatusLabel           string   `json:"status_label,omitempty"`
	MilestonesTotal       int      `json:"milestones_total"`
	MilestonesCompleted   int      `json:"milestones_completed"`
	MilestonesDelayed     int      `json:"milestones_delayed"`
	PlannedEffortHours    float64  `json:"planned_effort_hours"`
	ActualEffortHours     float64  `json:"actual_effort_hours"`
	HasStatusMismatch     bool     `json:"has_status_mismatch"`
	StatusMismatchReasons []string `json:"status_mismatch_reasons,omitempty"`
}

// AverageScore is the mean of the four assessment dimensions
// (DataQuality is a confidence measure, not an assessment, and is excluded).
func (p *ProjectScore) AverageScore() float64 {
	return float64(p.Urgency.Value+p.Importance.Value+p.Complexity.Value+p.Risk.Value) / 4.0
}

// PriorityScore is the ranking key: urgency and importance carry double
// weight, risk adds up to 30%, and data quality scales the whole score
// down as confidence drops.
func (p *ProjectScore) PriorityScore() float64 {
	base := float64(p.Urgency.Value*2+p.Importance.Value*2) / 4.0
	riskFactor := float64(p.Risk.Value) / 5.0
	confidence := float64(p.DataQuality.Value) / 5.0
	return base * (1 + riskFactor*0.3) * confidence
}

// PortfolioAnalysis is the aggregated result of a full analysis run.
type PortfolioAnalysis struct {
	PortfolioID   string `json:"portfolio_id"`
	PortfolioName string `json:"portfolio_name"`
	RunID         string `json:"run_id,omitempty"`

	ProjectScores []ProjectScore `json:"project_scores"`

	ExecutiveSummary string   `json:"executive_summary"`
	CriticalProjects []string `json:"critical_projects"`
	PriorityRanking  []string `json:"priority_ranking"`
	RiskClusters     []string `json:"risk_clusters,omitempty"`
	Recommendations  []string `json:"recommendations,omitempty"`

	AvgUrgency     float64 `json:"avg_urgency"`
	AvgImportance  float64 `json:"avg_importance"`
	AvgComplexity  float64 `json:"avg_complexity"`
	AvgRisk        float64 `json:"avg_risk"`
	AvgDataQuality float64 `json:"avg_data_quality"`

	// Warnings accumulated by the consistency validator, prefixed with
	// the project name they belong to.
	DataWarnings []string `json:"data_warnings,omitempty"`
}

// ComputeStatistics recomputes every derived field (averages, critical
// project list, priority ranking) from the current score list. Derived
// fields are never set independently; call this after any change to
// ProjectScores. The ranking sort is stable, so ties keep input order.
func (a *PortfolioAnalysis) ComputeStatistics() {
	if len(a.ProjectScores) == 0 {
		return
	}

	n := float64(len(a.ProjectScores))
	var u, i, c, r, dq int
	for idx := range a.ProjectScores {
		p := &a.ProjectScores[idx]
		u += p.Urgency.Value
		i += p.Importance.Value
		c += p.Complexity.Value
		r += p.Risk.Value
		dq += p.DataQuality.Value
	}
	a.AvgUrgency = float64(u) / n
	a.AvgImportance = float64(i) / n
	a.AvgComplexity = float64(c) / n
	a.AvgRisk = float64(r) / n
	a.AvgDataQuality = float64(dq) / n

	a.CriticalProjects = a.CriticalProjects[:0]
	for _, p := range a.ProjectScores {
		if p.IsCritical {
			a.CriticalProjects = append(a.CriticalProjects, p.ProjectID)
		}
	}

	ranked := make([]ProjectScore, len(a.ProjectScores))
	copy(ranked, a.ProjectScores)
	sort.SliceStable(ranked, func(x, y int) bool {
		return ranked[x].PriorityScore() > ranked[y].PriorityScore()
	})
	a.PriorityRanking = make([]string, len(ranked))
	for idx, p := range ranked {
		a.PriorityRanking[idx] = p.ProjectID
	}
}
