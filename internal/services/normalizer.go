package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"portfolio-radar/internal/models"
)

// Text cleanup limits for memo fields.
const (
	maxTextLength        = 2000
	maxMilestoneDescLen  = 500
	milestoneAtRiskDays  = 7
	criticalDeviationPct = 20
	criticalDelayDays    = 14
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

var htmlEntityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// Keyword sets for deriving a status from free-text memos when neither
// the embedded status object nor the masterdata lookup yields one. The
// source system is bilingual, so both languages are covered. Order
// matters: completion beats critical beats at-risk.
var (
	memoCompletionKeywords = []string{
		"erfolgreich abgeschlossen", "abgeschlossen", "completed",
		"fertiggestellt", "beendet", "finished", "closed",
	}
	memoCriticalKeywords = []string{
		"kritisch", "critical", "blockiert", "blocked", "stopped",
		"massive probleme", "erhebliche verzögerung", "gestoppt",
	}
	memoRiskKeywords = []string{
		"verzögerung", "delay", "risiko", "risk", "probleme",
		"schwierigkeiten", "issues", "herausforderung",
	}
	memoPlanningKeywords = []string{
		"prephase", "startphase", "planungsphase", "vorbereitung",
		"planning phase", "initialisierung",
	}
	memoActiveKeywords = []string{
		"in bearbeitung", "in progress", "läuft", "aktiv",
		"durchführung", "umsetzung",
	}
)

// Normalizer transforms raw BlueAnt payloads into the cleaned structures
// the scoring pipeline consumes: lookup IDs resolved to names, memos
// stripped of markup, planning entries aggregated into effort and
// milestone metrics, and criticality heuristics derived.
type Normalizer struct {
	statuses    map[string]models.BlueAntMasterdataItem
	priorities  map[string]models.BlueAntMasterdataItem
	types       map[string]models.BlueAntMasterdataItem
	departments map[string]models.BlueAntMasterdataItem
	customers   map[string]models.BlueAntMasterdataItem

	logger *zap.Logger
	now    func() time.Time
}

// NewNormalizer builds a normalizer over the given masterdata tables.
func NewNormalizer(masterdata models.BlueAntMasterdata, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		statuses:    indexMasterdata(masterdata.Statuses),
		priorities:  indexMasterdata(masterdata.Priorities),
		types:       indexMasterdata(masterdata.Types),
		departments: indexMasterdata(masterdata.Departments),
		customers:   indexMasterdata(masterdata.Customers),
		logger:      logger,
		now:         time.Now,
	}
}

func indexMasterdata(items []models.BlueAntMasterdataItem) map[string]models.BlueAntMasterdataItem {
	m := make(map[string]models.BlueAntMasterdataItem, len(items))
	for _, item := range items {
		m[item.ID] = item
	}
	return m
}

// CleanText strips HTML tags, decodes common entities, collapses
// whitespace and truncates to maxLength.
func CleanText(text string, maxLength int) string {
	if text == "" {
		return ""
	}

	text = htmlTagPattern.ReplaceAllString(text, " ")
	text = htmlEntityReplacer.Replace(text)
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))

	if len(text) > maxLength {
		text = text[:maxLength-3] + "..."
	}
	return text
}

// MapStatusColor maps a raw color string (names or hex values) onto the
// standardized traffic light.
func MapStatusColor(color string) models.StatusColor {
	if color == "" {
		return models.StatusGray
	}
	c := strings.ToLower(color)

	switch {
	case containsAny(c, "green", "grün", "#00", "#0f", "#2e"):
		return models.StatusGreen
	case containsAny(c, "yellow", "gelb", "orange", "#ff", "#f0"):
		return models.StatusYellow
	case containsAny(c, "red", "rot", "#f00", "#e00", "#d00"):
		return models.StatusRed
	}
	return models.StatusGray
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// statusInfo resolves a project's status label and color, trying the
// embedded status object, then the masterdata lookup, then keyword
// matching over the status memo.
func (n *Normalizer) statusInfo(project *models.BlueAntProject) (string, models.StatusColor) {
	if project.Status != nil && project.Status.Text != "" {
		return project.Status.Text, MapStatusColor(project.Status.Color)
	}

	if project.StatusID != "" {
		if status, ok := n.statuses[project.StatusID]; ok {
			return status.DisplayName(), MapStatusColor(status.Color)
		}
	}

	if project.StatusMemo != "" {
		label, color := deriveStatusFromMemo(project.StatusMemo)
		if label != "" {
			n.logger.Info("derived status from memo",
				zap.String("project", project.Name),
				zap.String("status", label))
			return label, color
		}
	}

	return "", models.StatusGray
}

// deriveStatusFromMemo guesses a project state from free-text memo
// content when no structured status is available.
func deriveStatusFromMemo(memo string) (string, models.StatusColor) {
	m := strings.ToLower(memo)

	switch {
	case containsAny(m, memoCompletionKeywords...):
		return "Completed", models.StatusGreen
	case containsAny(m, memoCriticalKeywords...):
		return "Critical", models.StatusRed
	case containsAny(m, memoRiskKeywords...):
		return "At Risk", models.StatusYellow
	case containsAny(m, memoPlanningKeywords...):
		return "In Planning", models.StatusGray
	case containsAny(m, memoActiveKeywords...):
		return "In Progress", models.StatusGreen
	}

	return "", models.StatusGray
}

// milestoneStatus derives where a milestone stands from its status text,
// dates and progress relative to the reference time.
func milestoneStatus(entry *models.BlueAntPlanningEntry, ref time.Time) models.MilestoneStatus {
	if strings.Contains(strings.ToLower(entry.Status), "complet") {
		return models.MilestoneCompleted
	}
	if entry.ActualDate != nil {
		return models.MilestoneCompleted
	}
	if entry.ProgressPercent >= 100 {
		return models.MilestoneCompleted
	}

	planned := entry.PlannedDate
	if planned == nil {
		planned = entry.ForecastDate
	}
	if planned == nil {
		return models.MilestoneNotStarted
	}

	switch {
	case planned.Before(ref):
		return models.MilestoneDelayed
	case entry.ProgressPercent == 0:
		return models.MilestoneNotStarted
	case planned.Sub(ref) < milestoneAtRiskDays*24*time.Hour:
		return models.MilestoneAtRisk
	default:
		return models.MilestoneOnTrack
	}
}

// normalizeMilestone converts one milestone-flagged planning entry.
func (n *Normalizer) normalizeMilestone(entry *models.BlueAntPlanningEntry) models.NormalizedMilestone {
	name := entry.Name
	if name == "" {
		name = fmt.Sprintf("Milestone %s", entry.ID)
	}

	planned := entry.PlannedDate
	if planned == nil {
		planned = entry.ForecastDate
	}

	delayDays := 0
	if planned != nil {
		comparison := n.now()
		if entry.ActualDate != nil {
			comparison = *entry.ActualDate
		}
		delayDays = int(comparison.Sub(*planned).Hours() / 24)
	}

	return models.NormalizedMilestone{
		Name:         name,
		PlannedDate:  planned,
		ActualDate:   entry.ActualDate,
		ForecastDate: entry.ForecastDate,
		Status:       milestoneStatus(entry, n.now()),
		DelayDays:    delayDays,
		Description:  CleanText(entry.Description, maxMilestoneDescLen),
	}
}

// NormalizeProject transforms a raw project and its planning entries
// into the cleaned representation.
func (n *Normalizer) NormalizeProject(project *models.BlueAntProject, entries []models.BlueAntPlanningEntry) models.NormalizedProject {
	statusLabel, statusColor := n.statusInfo(project)

	var plannedEffort, actualEffort, forecastEffort float64
	for i := range entries {
		plannedEffort += entries[i].PlannedEffortHours
		actualEffort += entries[i].ActualEffortHours
		forecastEffort += entries[i].ForecastEffortHours
	}
	if forecastEffort == 0 {
		forecastEffort = actualEffort
	}

	effortDeviation := 0.0
	if plannedEffort > 0 {
		effortDeviation = (actualEffort - plannedEffort) / plannedEffort * 100
	}

	progress := n.deriveProgress(project, entries, plannedEffort, actualEffort)

	milestones := n.extractMilestones(entries)
	milestonesCompleted, milestonesDelayed := 0, 0
	for _, m := range milestones {
		switch m.Status {
		case models.MilestoneCompleted:
			milestonesCompleted++
		case models.MilestoneDelayed:
			milestonesDelayed++
		}
	}

	delayDays := 0
	if project.End != nil && project.End.Before(n.now()) {
		delayDays = int(n.now().Sub(*project.End).Hours() / 24)
	}

	isCritical, criticalityReasons := deriveCriticality(statusColor, effortDeviation, milestonesDelayed, delayDays)

	hasMismatch, mismatchReasons := detectStatusMismatch(statusLabel, progress, len(milestones), milestonesCompleted, actualEffort, plannedEffort)

	return models.NormalizedProject{
		ID:          project.ID,
		Name:        strings.TrimSpace(project.Name),
		PortfolioID: project.PortfolioID,

		OwnerName:      project.OwnerName,
		DepartmentName: n.lookupName(n.departments, project.DepartmentID),
		CustomerName:   n.lookupName(n.customers, project.ClientID),
		TypeName:       n.lookupName(n.types, project.TypeID),
		PriorityName:   n.lookupName(n.priorities, project.PriorityID),

		StatusLabel: statusLabel,
		StatusColor: statusColor,

		PlannedEffortHours:     plannedEffort,
		ActualEffortHours:      actualEffort,
		ForecastEffortHours:    forecastEffort,
		EffortDeviationPercent: effortDeviation,
		ProgressPercent:        progress,

		StartDate:       project.Start,
		EndDatePlanned:  project.End,
		EndDateForecast: project.End,
		DelayDays:       delayDays,

		Milestones:          milestones,
		MilestonesTotal:     len(milestones),
		MilestonesCompleted: milestonesCompleted,
		MilestonesDelayed:   milestonesDelayed,

		StatusText:       CleanText(project.StatusMemo, maxTextLength),
		ScopeSummary:     CleanText(firstNonEmpty(project.SubjectMemo, project.Description), maxTextLength),
		ProblemSummary:   CleanText(project.ProblemMemo, maxTextLength),
		ObjectiveSummary: CleanText(project.ObjectiveMemo, maxTextLength),

		IsPotentiallyCritical: isCritical,
		CriticalityReasons:    criticalityReasons,

		HasStatusMismatch:     hasMismatch,
		StatusMismatchReasons: mismatchReasons,

		LastUpdated: project.UpdatedAt,
	}
}

// deriveProgress prefers the project's own progress figure, then the
// mean over planning entries, then the actual/planned effort ratio.
func (n *Normalizer) deriveProgress(project *models.BlueAntProject, entries []models.BlueAntPlanningEntry, plannedEffort, actualEffort float64) float64 {
	progress := project.ProgressPercent

	if progress == 0 {
		var sum float64
		var count int
		for i := range entries {
			if entries[i].IsMilestone || entries[i].ProgressPercent == 0 {
				continue
			}
			sum += entries[i].ProgressPercent
			count++
		}
		if count > 0 {
			progress = sum / float64(count)
		}
	}

	if progress == 0 && plannedEffort > 0 {
		progress = actualEffort / plannedEffort * 100
	}

	if progress > 100 {
		progress = 100
	}
	return progress
}

func (n *Normalizer) extractMilestones(entries []models.BlueAntPlanningEntry) []models.NormalizedMilestone {
	var milestones []models.NormalizedMilestone
	for i := range entries {
		if !entries[i].IsMilestone {
			continue
		}
		milestones = append(milestones, n.normalizeMilestone(&entries[i]))
	}
	return milestones
}

// deriveCriticality applies the pre-scoring heuristics: a red status, an
// effort overrun beyond 20%, any delayed milestone or a schedule slip
// beyond two weeks each flag the project for the model's attention.
func deriveCriticality(color models.StatusColor, effortDeviation float64, milestonesDelayed, delayDays int) (bool, []string) {
	var reasons []string

	if color == models.StatusRed {
		reasons = append(reasons, "status is red")
	}
	if effortDeviation > criticalDeviationPct {
		reasons = append(reasons, fmt.Sprintf("effort overrun: %.0f%%", effortDeviation))
	}
	if milestonesDelayed > 0 {
		reasons = append(reasons, fmt.Sprintf("%d milestone(s) delayed", milestonesDelayed))
	}
	if delayDays > criticalDelayDays {
		reasons = append(reasons, fmt.Sprintf("schedule delay: %d days", delayDays))
	}

	return len(reasons) > 0, reasons
}

// detectStatusMismatch flags projects whose reported completion is
// contradicted by their own metrics, so both the prompt and the
// validator can see the contradiction.
func detectStatusMismatch(statusLabel string, progress float64, milestonesTotal, milestonesCompleted int, actualEffort, plannedEffort float64) (bool, []string) {
	label := strings.ToLower(statusLabel)
	completed := false
	for _, kw := range DefaultCompletedKeywords {
		if strings.Contains(label, kw) {
			completed = true
			break
		}
	}
	if !completed {
		return false, nil
	}

	var reasons []string
	if milestonesTotal > 0 && milestonesCompleted == 0 {
		reasons = append(reasons, fmt.Sprintf("status completed but 0 of %d milestones reached", milestonesTotal))
	}
	if progress == 0 {
		reasons = append(reasons, "status completed but progress is 0%")
	}
	if actualEffort == 0 && plannedEffort > 0 {
		reasons = append(reasons, "status completed but no effort booked")
	}

	return len(reasons) > 0, reasons
}

func (n *Normalizer) lookupName(table map[string]models.BlueAntMasterdataItem, id string) string {
	if id == "" {
		return ""
	}
	if item, ok := table[id]; ok {
		return item.DisplayName()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// NormalizePortfolio bundles normalized projects with portfolio-level
// aggregates. Per-status counts are sorted by count descending, ties by
// label, so output is deterministic.
func (n *Normalizer) NormalizePortfolio(portfolio *models.BlueAntPortfolio, projects []models.NormalizedProject) models.NormalizedPortfolio {
	type statusKey struct {
		label string
		color models.StatusColor
	}
	counts := make(map[statusKey]int)

	var totalPlanned, totalActual, totalForecast float64
	var criticalIDs []string

	for i := range projects {
		p := &projects[i]
		label := p.StatusLabel
		if label == "" {
			label = "Unknown"
		}
		counts[statusKey{label: label, color: p.StatusColor}]++

		totalPlanned += p.PlannedEffortHours
		totalActual += p.ActualEffortHours
		totalForecast += p.ForecastEffortHours

		if p.IsPotentiallyCritical {
			criticalIDs = append(criticalIDs, p.ID)
		}
	}

	perStatus := make([]models.ProjectsPerStatus, 0, len(counts))
	for key, count := range counts {
		perStatus = append(perStatus, models.ProjectsPerStatus{
			StatusLabel: key.label,
			StatusColor: key.color,
			Count:       count,
		})
	}
	sort.Slice(perStatus, func(i, j int) bool {
		if perStatus[i].Count != perStatus[j].Count {
			return perStatus[i].Count > perStatus[j].Count
		}
		return perStatus[i].StatusLabel < perStatus[j].StatusLabel
	})

	return models.NormalizedPortfolio{
		ID:          portfolio.ID,
		Name:        portfolio.Name,
		Description: CleanText(portfolio.Description, maxTextLength),
		OwnerName:   portfolio.OwnerName,

		Projects: projects,

		ProjectsPerStatus: perStatus,
		TotalProjects:     len(projects),

		TotalPlannedEffortHours:  totalPlanned,
		TotalActualEffortHours:   totalActual,
		TotalForecastEffortHours: totalForecast,

		CriticalProjectsCount: len(criticalIDs),
		CriticalProjectIDs:    criticalIDs,

		AnalysisTimestamp: n.now(),
	}
}
