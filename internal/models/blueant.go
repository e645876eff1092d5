package models

import "time"

// Raw payload shapes returned by the BlueAnt REST API. Only the fields
// the normalizer consumes are mapped; everything else is ignored on
// decode.

// BlueAntPortfolio is a raw portfolio record.
type BlueAntPortfolio struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerName   string `json:"ownerName,omitempty"`
}

// BlueAntStatusRef is the embedded status object some API versions
// return instead of a bare status ID.
type BlueAntStatusRef struct {
	ID    string `json:"id,omitempty"`
	Text  string `json:"text,omitempty"`
	Color string `json:"color,omitempty"`
}

// BlueAntProject is a raw project record.
type BlueAntProject struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Number      string `json:"number,omitempty"`
	Description string `json:"description,omitempty"`

	Status       *BlueAntStatusRef `json:"status,omitempty"`
	StatusID     string            `json:"statusId,omitempty"`
	TypeID       string            `json:"typeId,omitempty"`
	PriorityID   string            `json:"priorityId,omitempty"`
	DepartmentID string            `json:"departmentId,omitempty"`
	OwnerName    string            `json:"projectLeaderName,omitempty"`
	ClientID     string            `json:"clientId,omitempty"`
	PortfolioID  string            `json:"portfolioId,omitempty"`

	StatusMemo     string `json:"statusMemo,omitempty"`
	SubjectMemo    string `json:"subjectMemo,omitempty"`
	ProblemMemo    string `json:"problemMemo,omitempty"`
	ObjectiveMemo  string `json:"objectiveMemo,omitempty"`
	ConclusionMemo string `json:"conclusionMemo,omitempty"`

	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`

	ProgressPercent float64 `json:"progressPercent,omitempty"`

	UpdatedAt *time.Time `json:"updateDate,omitempty"`
}

// BlueAntPlanningEntry is one row of a project plan. Milestones are
// planning entries flagged as such; everything else contributes effort.
type BlueAntPlanningEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`

	IsMilestone bool   `json:"isMilestone,omitempty"`
	Status      string `json:"status,omitempty"`

	PlannedEffortHours  float64 `json:"plannedEffort,omitempty"`
	ActualEffortHours   float64 `json:"actualEffort,omitempty"`
	ForecastEffortHours float64 `json:"forecastEffort,omitempty"`

	PlannedDate  *time.Time `json:"plannedDate,omitempty"`
	ActualDate   *time.Time `json:"actualDate,omitempty"`
	ForecastDate *time.Time `json:"forecastDate,omitempty"`

	ProgressPercent float64 `json:"progressPercent,omitempty"`
}

// BlueAntMasterdataItem is one entry of a masterdata lookup table
// (statuses, priorities, types, departments, customers).
type BlueAntMasterdataItem struct {
	ID    string `json:"id"`
	Text  string `json:"text,omitempty"`
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
}

// DisplayName prefers the text field over name, matching the API quirk
// that older masterdata endpoints populate one or the other.
func (m BlueAntMasterdataItem) DisplayName() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Name
}

// BlueAntMasterdata bundles every lookup table the normalizer needs.
type BlueAntMasterdata struct {
	Statuses    []BlueAntMasterdataItem `json:"statuses"`
	Priorities  []BlueAntMasterdataItem `json:"priorities"`
	Types       []BlueAntMasterdataItem `json:"types"`
	Departments []BlueAntMasterdataItem `json:"departments"`
	Customers   []BlueAntMasterdataItem `json:"customers"`
}
