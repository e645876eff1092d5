package models

import "time"

// StatusColor is the standardized traffic light for a project status.
type StatusColor string

const (
	StatusGreen  StatusColor = "green"
	StatusYellow StatusColor = "yellow"
	StatusRed    StatusColor = "red"
	StatusGray   StatusColor = "gray"
)

// MilestoneStatus describes where a milestone currently stands.
type MilestoneStatus string

const (
	MilestoneCompleted  MilestoneStatus = "completed"
	MilestoneOnTrack    MilestoneStatus = "on_track"
	MilestoneAtRisk     MilestoneStatus = "at_risk"
	MilestoneDelayed    MilestoneStatus = "delayed"
	MilestoneNotStarted MilestoneStatus = "not_started"
)

// NormalizedMilestone is a cleaned-up milestone with derived status.
type NormalizedMilestone struct {
	Name         string          `json:"name"`
	PlannedDate  *time.Time      `json:"planned_date,omitempty"`
	ActualDate   *time.Time      `json:"actual_date,omitempty"`
	ForecastDate *time.Time      `json:"forecast_date,omitempty"`
	Status       MilestoneStatus `json:"status"`
	DelayDays    int             `json:"delay_days"`
	Description  string          `json:"description,omitempty"`
}

// NormalizedProject is the cleaned project representation the scoring
// pipeline consumes. All lookups (status, priority, type, department,
// customer) are resolved to display names.
type NormalizedProject struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PortfolioID string `json:"portfolio_id,omitempty"`

	OwnerName      string `json:"owner_name,omitempty"`
	DepartmentName string `json:"department_name,omitempty"`
	CustomerName   string `json:"customer_name,omitempty"`
	TypeName       string `json:"type_name,omitempty"`
	PriorityName   string `json:"priority_name,omitempty"`

	StatusLabel string      `json:"status_label,omitempty"`
	StatusColor StatusColor `json:"status_color"`

	PlannedEffortHours      float64 `json:"planned_effort_hours"`
	ActualEffortHours       float64 `json:"actual_effort_hours"`
	ForecastEffortHours     float64 `json:"forecast_effort_hours"`
	EffortDeviationPercent  float64 `json:"effort_deviation_percent"`
	ProgressPercent         float64 `json:"progress_percent"`

	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDatePlanned  *time.Time `json:"end_date_planned,omitempty"`
	EndDateForecast *time.Time `json:"end_date_forecast,omitempty"`
	DelayDays       int        `json:"delay_days"`

	Milestones          []NormalizedMilestone `json:"milestones,omitempty"`
	MilestonesTotal     int                   `json:"milestones_total"`
	MilestonesCompleted int                   `json:"milestones_completed"`
	MilestonesDelayed   int                   `json:"milestones_delayed"`

	StatusText       string `json:"status_text,omitempty"`
	ScopeSummary     string `json:"scope_summary,omitempty"`
	ProblemSummary   string `json:"problem_summary,omitempty"`
	ObjectiveSummary string `json:"objective_summary,omitempty"`

	IsPotentiallyCritical bool     `json:"is_potentially_critical"`
	CriticalityReasons    []string `json:"criticality_reasons,omitempty"`

	HasStatusMismatch     bool     `json:"has_status_mismatch"`
	StatusMismatchReasons []string `json:"status_mismatch_reasons,omitempty"`

	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// ProjectsPerStatus counts projects sharing one status label.
type ProjectsPerStatus struct {
	StatusLabel string      `json:"status_label"`
	StatusColor StatusColor `json:"status_color"`
	Count       int         `json:"count"`
}

// NormalizedPortfolio bundles all normalized projects with aggregates.
type NormalizedPortfolio struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerName   string `json:"owner_name,omitempty"`

	Projects []NormalizedProject `json:"projects"`

	ProjectsPerStatus []ProjectsPerStatus `json:"projects_per_status,omitempty"`
	TotalProjects     int                 `json:"total_projects"`

	TotalPlannedEffortHours  float64 `json:"total_planned_effort_hours"`
	TotalActualEffortHours   float64 `json:"total_actual_effort_hours"`
	TotalForecastEffortHours float64 `json:"total_forecast_effort_hours"`

	CriticalProjectsCount int      `json:"critical_projects_count"`
	CriticalProjectIDs    []string `json:"critical_project_ids,omitempty"`

	AnalysisTimestamp time.Time `json:"analysis_timestamp"`
}
