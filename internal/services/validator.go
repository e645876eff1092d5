package services

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"portfolio-radar/internal/config"
	"portfolio-radar/internal/models"
)

// DataErrorMarker prefixes warnings that signal a hard contradiction in
// the upstream data, as opposed to an ordinary quality warning. Reports
// must surface these differently: the project's own status cannot be
// trusted, not just its scores.
const DataErrorMarker = "DATA ERROR"

// Display labels derived from the validated facts. Exactly one applies
// per project.
const (
	LabelDataError    = "Data Error"
	LabelReview       = "Review / Lessons Learned"
	LabelCritical     = "Critical"
	LabelAtRisk       = "At Risk"
	LabelTimeCritical = "Time-Critical"
	LabelStandard     = "Standard"
)

// DefaultCompletedKeywords marks a status label as "completed". The set
// is bilingual because the source system is operated in German while the
// model answers in English.
var DefaultCompletedKeywords = []string{
	"abgeschlossen", "completed", "fertig", "beendet",
	"closed", "done", "finished", "100%", "erledigt",
	"erfolgreich abgeschlossen", "erfolgreich beendet",
}

// DefaultPlanningKeywords marks a status label as a planning phase, in
// which stagnation is expected and never escalated.
var DefaultPlanningKeywords = []string{
	"planung", "planning", "vorbereitung", "preparation", "prephase",
}

// defaultTextReplacements rewrites escalation phrasing into
// retrospective-neutral language for completed projects. Order matters:
// more specific phrases first.
var defaultTextReplacements = []config.TextReplacement{
	{Pattern: `(?i)immediate\s+escalation(?:\s+to\s+(?:the\s+)?(?:senior\s+)?management)?`, Replacement: "retrospective review by management"},
	{Pattern: `(?i)immediate\s+action\s+(?:is\s+)?required`, Replacement: "was completed successfully"},
	{Pattern: `(?i)immediate\s+(?:management\s+)?intervention`, Replacement: "successful project delivery"},
	{Pattern: `(?i)daily\s+status(?:\s+reports?)?`, Replacement: "final documentation"},
	{Pattern: `(?i)weekly\s+steering(?:\s+committee)?\s+(?:meetings?|reviews?)`, Replacement: "project closure review"},
	{Pattern: `(?i)crisis\s+manager`, Replacement: "project lead"},
	{Pattern: `(?i)urgent\s+need\s+for\s+action`, Replacement: "lessons learned"},
	{Pattern: `(?i)\[?CRITICAL\]?`, Replacement: "completed"},
}

// projectNameTagPattern strips tag markers the model sometimes appends
// to project names, like "[CRITICAL]" or "[DATA ERROR]".
var projectNameTagPattern = regexp.MustCompile(`(?i)\s*\[(?:CRITICAL|DATA[- ]?ERROR|COMPLETED|RISK|TIME[- ]?CRITICAL)\]\s*`)

// singleQuoteWrapPattern matches 'quoted' segments to rewrite with
// double quotes.
var singleQuoteWrapPattern = regexp.MustCompile(`(^|[\s(\[{"])'([^'\n]{1,120}?)'([\s)\]}.,;!?]|$)`)

var multiSpacePattern = regexp.MustCompile(`\s{2,}`)

var curlyQuoteReplacer = strings.NewReplacer(
	"‚", `"`, "‘", `"`, "’", `"`, "“", `"`, "”", `"`,
)

// ValidationResult is the outcome of validating one project score.
type ValidationResult struct {
	Score        *models.ProjectScore
	Warnings     []string
	Corrections  []string
	HasDataError bool
}

type compiledReplacement struct {
	pattern     *regexp.Regexp
	replacement string
}

// SanityValidator enforces logical consistency between a project's
// lifecycle facts and its generated scores. It implements a fixed truth
// table: completed projects cannot be urgent, risky or critical;
// stagnant projects must be; contradictory data is flagged loudly.
//
// The validator holds no mutable state and is safe to use concurrently.
type SanityValidator struct {
	completedKeywords []string
	planningKeywords  []string
	replacements      []compiledReplacement
	rules             []func(*ValidationResult)
	logger            *zap.Logger
}

// NewSanityValidator builds a validator from the given configuration.
// Empty keyword or replacement lists fall back to the built-in defaults.
func NewSanityValidator(cfg config.ValidationConfig, logger *zap.Logger) (*SanityValidator, error) {
	completed := cfg.CompletedKeywords
	if len(completed) == 0 {
		completed = DefaultCompletedKeywords
	}
	planning := cfg.PlanningKeywords
	if len(planning) == 0 {
		planning = DefaultPlanningKeywords
	}
	rawReplacements := cfg.TextReplacements
	if len(rawReplacements) == 0 {
		rawReplacements = defaultTextReplacements
	}

	replacements := make([]compiledReplacement, 0, len(rawReplacements))
	for _, r := range rawReplacements {
		pattern, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid text replacement pattern %q: %w", r.Pattern, err)
		}
		replacements = append(replacements, compiledReplacement{pattern: pattern, replacement: r.Replacement})
	}

	v := &SanityValidator{
		completedKeywords: completed,
		planningKeywords:  planning,
		replacements:      replacements,
		logger:            logger,
	}

	// Rule pipeline, folded left to right over the result. Later rules
	// see the mutations of earlier ones.
	v.rules = []func(*ValidationResult){
		v.sanitizeProjectName,
		v.normalizeTextFields,
		v.applyStatusRules,
		v.applyDataQualityChecks,
		v.validateMilestoneConsistency,
	}

	return v, nil
}

// ValidateAndFix applies every rule to the given score, mutating it in
// place, and reports the warnings and corrections. The project is never
// dropped or replaced, only corrected and annotated.
func (v *SanityValidator) ValidateAndFix(score *models.ProjectScore) ValidationResult {
	result := ValidationResult{Score: score}

	for _, rule := range v.rules {
		rule(&result)
	}

	if len(result.Corrections) > 0 {
		v.logger.Info("validator corrected project",
			zap.String("project", score.ProjectName),
			zap.Strings("corrections", result.Corrections))
	}
	if len(result.Warnings) > 0 {
		v.logger.Warn("data warnings for project",
			zap.String("project", score.ProjectName),
			zap.Strings("warnings", result.Warnings))
	}

	return result
}

// ValidatePortfolioScores validates every score in a portfolio and
// collects all warnings, each prefixed with its project name.
func (v *SanityValidator) ValidatePortfolioScores(scores []models.ProjectScore) ([]models.ProjectScore, []string) {
	var allWarnings []string
	for i := range scores {
		result := v.ValidateAndFix(&scores[i])
		for _, warning := range result.Warnings {
			allWarnings = append(allWarnings, fmt.Sprintf("[%s] %s", scores[i].ProjectName, warning))
		}
	}
	return scores, allWarnings
}

// IsCompleted judges whether a project counts as completed: a matching
// status keyword, all milestones reached, or 100% progress.
func (v *SanityValidator) IsCompleted(score *models.ProjectScore) bool {
	if score.StatusLabel != "" {
		label := strings.ToLower(score.StatusLabel)
		for _, keyword := range v.completedKeywords {
			if strings.Contains(label, keyword) {
				return true
			}
		}
	}

	if score.MilestonesTotal > 0 && score.MilestonesCompleted >= score.MilestonesTotal {
		return true
	}

	return score.ProgressPercent >= 100
}

func (v *SanityValidator) isPlanning(score *models.ProjectScore) bool {
	if score.StatusLabel == "" {
		return false
	}
	label := strings.ToLower(score.StatusLabel)
	for _, keyword := range v.planningKeywords {
		if strings.Contains(label, keyword) {
			return true
		}
	}
	return false
}

func (v *SanityValidator) sanitizeProjectName(result *ValidationResult) {
	name := result.Score.ProjectName
	cleaned := projectNameTagPattern.ReplaceAllString(name, " ")
	cleaned = strings.TrimSpace(multiSpacePattern.ReplaceAllString(cleaned, " "))

	if cleaned != name {
		result.Score.ProjectName = cleaned
		result.Corrections = append(result.Corrections, "project name sanitized")
	}
}

func (v *SanityValidator) normalizeTextFields(result *ValidationResult) {
	if normalized := normalizeQuotes(result.Score.Summary); normalized != result.Score.Summary {
		result.Score.Summary = normalized
		result.Corrections = append(result.Corrections, "summary quotes normalized")
	}
	if normalized := normalizeQuotes(result.Score.DetailedAnalysis); normalized != result.Score.DetailedAnalysis {
		result.Score.DetailedAnalysis = normalized
		result.Corrections = append(result.Corrections, "detailed_analysis quotes normalized")
	}
}

func normalizeQuotes(text string) string {
	if text == "" {
		return text
	}
	normalized := singleQuoteWrapPattern.ReplaceAllString(text, `$1"$2"$3`)
	return curlyQuoteReplacer.Replace(normalized)
}

// applyStatusRules dispatches between the completed-project truth table
// and the stagnation check; the two are mutually exclusive.
func (v *SanityValidator) applyStatusRules(result *ValidationResult) {
	if v.IsCompleted(result.Score) {
		v.applyCompletedRules(result)
	} else {
		v.checkStagnantProject(result)
	}
}

// applyCompletedRules enforces the truth table for completed projects:
// risk and urgency are historical at best, criticality is impossible,
// and escalation language has no place in a retrospective.
func (v *SanityValidator) applyCompletedRules(result *ValidationResult) {
	score := result.Score

	if score.Risk.Value > 1 {
		original := score.Risk.Value
		score.Risk = models.NewScoreValue(1, fmt.Sprintf(
			"Project completed - risk assessment is historical. (Original value: %d/5, retrospective analysis)", original))
		result.Corrections = append(result.Corrections, fmt.Sprintf("Risk %d→1 (completed)", original))
	}

	if score.IsCritical {
		score.IsCritical = false
		result.Corrections = append(result.Corrections, "is_critical→false (completed)")
	}

	if score.Urgency.Value > 1 {
		original := score.Urgency.Value
		score.Urgency = models.NewScoreValue(1, fmt.Sprintf(
			"Project completed - no active urgency. (Original value: %d/5)", original))
		result.Corrections = append(result.Corrections, fmt.Sprintf("Urgency %d→1 (completed)", original))
	}

	if sanitized := v.sanitizeCompletedText(score.Summary); sanitized != score.Summary {
		score.Summary = sanitized
		result.Corrections = append(result.Corrections, "summary text sanitized")
	}
	if sanitized := v.sanitizeCompletedText(score.DetailedAnalysis); sanitized != score.DetailedAnalysis {
		score.DetailedAnalysis = sanitized
		result.Corrections = append(result.Corrections, "detailed analysis sanitized")
	}
}

// sanitizeCompletedText applies the ordered phrase substitutions that
// turn escalation language into retrospective language.
func (v *SanityValidator) sanitizeCompletedText(text string) string {
	if text == "" {
		return text
	}
	for _, r := range v.replacements {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return text
}

// checkStagnantProject escalates projects that show no movement at all.
// Planning-phase projects are exempt: nothing has been supposed to move
// yet.
func (v *SanityValidator) checkStagnantProject(result *ValidationResult) {
	score := result.Score

	if v.isPlanning(score) {
		return
	}

	if score.ProgressPercent == 0 && score.MilestonesCompleted == 0 {
		// Only meaningful when the project actually has a plan to be
		// behind on.
		if score.MilestonesTotal == 0 && score.PlannedEffortHours == 0 {
			return
		}

		if !score.IsCritical {
			score.IsCritical = true
			result.Corrections = append(result.Corrections, "is_critical→true (stagnant: 0% progress, 0 milestones)")
		}

		if score.Urgency.Value < 4 {
			original := score.Urgency.Value
			score.Urgency = models.NewScoreValue(4, fmt.Sprintf(
				"Project is stagnating without progress - urgency raised. (Originally: %d/5)", original))
			result.Corrections = append(result.Corrections, fmt.Sprintf("Urgency %d→4 (stagnant project)", original))
		}

		if score.Risk.Value < 4 {
			original := score.Risk.Value
			score.Risk = models.NewScoreValue(4, fmt.Sprintf(
				"Elevated risk due to missing project progress. (Originally: %d/5)", original))
			result.Corrections = append(result.Corrections, fmt.Sprintf("Risk %d→4 (stagnant project)", original))
		}

		result.Warnings = append(result.Warnings,
			"Project without progress: 0% complete, no milestones reached")
		return
	}

	// Softer variant: milestones exist, none reached, little progress.
	if score.MilestonesTotal > 0 && score.MilestonesCompleted == 0 && score.ProgressPercent < 20 {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"No milestones reached at %.0f%% progress", score.ProgressPercent))

		if !score.IsCritical && score.ProgressPercent < 10 {
			score.IsCritical = true
			result.Corrections = append(result.Corrections, "is_critical→true (no milestones, <10% progress)")
		}
	}
}

// applyDataQualityChecks records warnings about missing or unusable
// data. These fire for every project regardless of lifecycle state.
func (v *SanityValidator) applyDataQualityChecks(result *ValidationResult) {
	score := result.Score

	if score.ActualEffortHours == 0 && !v.IsCompleted(score) {
		result.Warnings = append(result.Warnings,
			"Incomplete data basis: no effort booked")
	}

	if score.PlannedEffortHours == 0 && score.ActualEffortHours > 0 {
		result.Warnings = append(result.Warnings,
			"No planned effort recorded: deviation cannot be computed")
	}

	if score.DataQuality.Value <= 2 {
		result.Warnings = append(result.Warnings,
			"Limited data quality: interpret assessment with caution")
	}
}

// validateMilestoneConsistency detects the hard contradiction of a
// "completed" project that never reached a single milestone. The
// completion label itself is untrustworthy in that case, so the warning
// carries the DATA ERROR marker and data quality drops to the floor.
func (v *SanityValidator) validateMilestoneConsistency(result *ValidationResult) {
	score := result.Score

	if v.IsCompleted(score) && score.MilestonesTotal > 0 && score.MilestonesCompleted == 0 {
		result.HasDataError = true
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"%s: project marked as completed but 0 of %d milestones reached",
			DataErrorMarker, score.MilestonesTotal))

		score.DataQuality = models.NewScoreValue(1, fmt.Sprintf(
			"Critical data inconsistency: project status \"completed\" contradicts milestone completion (0/%d)",
			score.MilestonesTotal))
		result.Corrections = append(result.Corrections, "DataQuality→1 (milestone inconsistency)")
	}

	if score.ProgressPercent >= 90 && score.MilestonesDelayed > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"Project %.0f%% complete but %d milestone(s) delayed",
			score.ProgressPercent, score.MilestonesDelayed))
	}
}

// HasDataMismatch reports whether a project's completion label is
// contradicted by its underlying facts: no milestones reached, no
// progress, or no booked effort despite a plan.
func (v *SanityValidator) HasDataMismatch(score *models.ProjectScore) bool {
	if !v.IsCompleted(score) {
		return false
	}

	if score.MilestonesTotal > 0 && score.MilestonesCompleted == 0 {
		return true
	}
	if score.ProgressPercent == 0 {
		return true
	}
	if score.ActualEffortHours == 0 && score.PlannedEffortHours > 0 {
		return true
	}

	return false
}

// ProjectLabel derives the single display label for a project. Priority
// order: data contradiction, completed, critical, risky, time-critical,
// standard.
func (v *SanityValidator) ProjectLabel(score *models.ProjectScore) string {
	if v.IsCompleted(score) {
		if v.HasDataMismatch(score) {
			return LabelDataError
		}
		return LabelReview
	}

	if score.IsCritical {
		return LabelCritical
	}
	if score.Risk.Value >= 4 {
		return LabelAtRisk
	}
	if score.Urgency.Value >= 4 {
		return LabelTimeCritical
	}

	return LabelStandard
}
