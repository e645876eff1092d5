package services

import (
	"fmt"
	"sort"
	"strings"

	"portfolio-radar/internal/config"
	"portfolio-radar/internal/helpers"
	"portfolio-radar/internal/models"
)

// ReportService renders an analysis to the terminal and to files.
type ReportService struct {
	cfg       config.ProcessingConfig
	validator *SanityValidator
}

// NewReportService creates a new report service.
func NewReportService(cfg config.ProcessingConfig, validator *SanityValidator) *ReportService {
	return &ReportService{cfg: cfg, validator: validator}
}

// DisplayAnalysis prints the analysis summary to the terminal.
func (s *ReportService) DisplayAnalysis(analysis *models.PortfolioAnalysis) {
	helpers.PrintTitle("Portfolio Analysis: %s", analysis.PortfolioName)
	helpers.PrintInfo("Run: %s", analysis.RunID)
	helpers.PrintSeparator()

	helpers.PrintInfo("Executive Summary:")
	helpers.PrintInfo("%s", analysis.ExecutiveSummary)
	helpers.PrintSeparator()

	helpers.PrintInfo("Average scores: urgency %.1f | importance %.1f | complexity %.1f | risk %.1f | data quality %.1f",
		analysis.AvgUrgency, analysis.AvgImportance, analysis.AvgComplexity,
		analysis.AvgRisk, analysis.AvgDataQuality)
	helpers.PrintSeparator()

	ranked := s.rankedScores(analysis)
	for i, score := range ranked {
		label := s.validator.ProjectLabel(&score)
		line := fmt.Sprintf("%2d. %s [%s] priority %.2f (U%d I%d C%d R%d DQ%d)",
			i+1, score.ProjectName, label, score.PriorityScore(),
			score.Urgency.Value, score.Importance.Value, score.Complexity.Value,
			score.Risk.Value, score.DataQuality.Value)

		switch label {
		case LabelCritical, LabelDataError:
			helpers.PrintCritical("%s", line)
		case LabelAtRisk, LabelTimeCritical:
			helpers.PrintWarning("%s", line)
		default:
			helpers.PrintInfo("%s", line)
		}
	}

	if len(analysis.RiskClusters) > 0 {
		helpers.PrintSeparator()
		helpers.PrintInfo("Risk clusters:")
		for _, cluster := range analysis.RiskClusters {
			helpers.PrintInfo("  • %s", cluster)
		}
	}

	if len(analysis.Recommendations) > 0 {
		helpers.PrintSeparator()
		helpers.PrintInfo("Recommendations:")
		for _, rec := range analysis.Recommendations {
			helpers.PrintInfo("  • %s", rec)
		}
	}

	if len(analysis.DataWarnings) > 0 {
		helpers.PrintSeparator()
		helpers.PrintWarning("Data warnings (%d):", len(analysis.DataWarnings))
		for _, warning := range analysis.DataWarnings {
			helpers.PrintWarning("  %s", warning)
		}
	}
}

// SaveAnalysis writes the analysis as JSON plus a markdown report and
// returns the JSON path.
func (s *ReportService) SaveAnalysis(analysis *models.PortfolioAnalysis) (string, error) {
	if err := helpers.EnsureDir(s.cfg.OutputDir); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	jsonFilename := helpers.GenerateOutputFilename("portfolio-analysis", "json")
	jsonPath := helpers.GetOutputPath(s.cfg.OutputDir, jsonFilename)
	if err := helpers.SaveJSON(analysis, jsonPath); err != nil {
		return "", fmt.Errorf("failed to save analysis: %w", err)
	}
	helpers.PrintSuccess("Saved analysis to: %s", jsonPath)

	mdFilename := helpers.GenerateOutputFilename("portfolio-report", "md")
	mdPath := helpers.GetOutputPath(s.cfg.OutputDir, mdFilename)
	if err := helpers.SaveText(s.RenderMarkdown(analysis), mdPath); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	helpers.PrintSuccess("Saved report to: %s", mdPath)

	return jsonPath, nil
}

// SaveNormalizedPortfolio writes the normalized snapshot for later
// offline re-scoring.
func (s *ReportService) SaveNormalizedPortfolio(portfolio *models.NormalizedPortfolio) (string, error) {
	if err := helpers.EnsureDir(s.cfg.OutputDir); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := helpers.GenerateOutputFilename("normalized-portfolio", "json")
	path := helpers.GetOutputPath(s.cfg.OutputDir, filename)
	if err := helpers.SaveJSON(portfolio, path); err != nil {
		return "", fmt.Errorf("failed to save normalized portfolio: %w", err)
	}
	helpers.PrintSuccess("Saved normalized portfolio to: %s", path)

	return path, nil
}

// RenderMarkdown renders the management report.
func (s *ReportService) RenderMarkdown(analysis *models.PortfolioAnalysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Portfolio Report: %s\n\n", analysis.PortfolioName)
	if analysis.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`\n\n", analysis.RunID)
	}

	b.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&b, "%s\n\n", analysis.ExecutiveSummary)

	b.WriteString("## Portfolio Scores\n\n")
	fmt.Fprintf(&b, "| Dimension | Average |\n|---|---|\n")
	fmt.Fprintf(&b, "| Urgency | %.1f |\n", analysis.AvgUrgency)
	fmt.Fprintf(&b, "| Importance | %.1f |\n", analysis.AvgImportance)
	fmt.Fprintf(&b, "| Complexity | %.1f |\n", analysis.AvgComplexity)
	fmt.Fprintf(&b, "| Risk | %.1f |\n", analysis.AvgRisk)
	fmt.Fprintf(&b, "| Data Quality | %.1f |\n\n", analysis.AvgDataQuality)

	b.WriteString("## Priority Ranking\n\n")
	b.WriteString("| # | Project | Label | Priority | U | I | C | R | DQ |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|---|\n")
	for i, score := range s.rankedScores(analysis) {
		fmt.Fprintf(&b, "| %d | %s | %s | %.2f | %d | %d | %d | %d | %d |\n",
			i+1, score.ProjectName, s.validator.ProjectLabel(&score), score.PriorityScore(),
			score.Urgency.Value, score.Importance.Value, score.Complexity.Value,
			score.Risk.Value, score.DataQuality.Value)
	}
	b.WriteString("\n")

	b.WriteString("## Project Details\n\n")
	for i := range analysis.ProjectScores {
		score := &analysis.ProjectScores[i]
		fmt.Fprintf(&b, "### %s\n\n", score.ProjectName)
		fmt.Fprintf(&b, "Label: %s", s.validator.ProjectLabel(score))
		if score.OwnerName != "" {
			fmt.Fprintf(&b, " · Lead: %s", score.OwnerName)
		}
		if score.StatusLabel != "" {
			fmt.Fprintf(&b, " · Status: %s", score.StatusLabel)
		}
		b.WriteString("\n\n")

		if score.Summary != "" {
			fmt.Fprintf(&b, "%s\n\n", score.Summary)
		}
		if score.DetailedAnalysis != "" && score.DetailedAnalysis != score.Summary {
			fmt.Fprintf(&b, "%s\n\n", score.DetailedAnalysis)
		}

		fmt.Fprintf(&b, "- Urgency %d/5: %s\n", score.Urgency.Value, score.Urgency.Reasoning)
		fmt.Fprintf(&b, "- Importance %d/5: %s\n", score.Importance.Value, score.Importance.Reasoning)
		fmt.Fprintf(&b, "- Complexity %d/5: %s\n", score.Complexity.Value, score.Complexity.Reasoning)
		fmt.Fprintf(&b, "- Risk %d/5: %s\n", score.Risk.Value, score.Risk.Reasoning)
		fmt.Fprintf(&b, "- Data quality %d/5: %s\n\n", score.DataQuality.Value, score.DataQuality.Reasoning)
	}

	if len(analysis.RiskClusters) > 0 {
		b.WriteString("## Risk Clusters\n\n")
		for _, cluster := range analysis.RiskClusters {
			fmt.Fprintf(&b, "- %s\n", cluster)
		}
		b.WriteString("\n")
	}

	if len(analysis.Recommendations) > 0 {
		b.WriteString("## Recommendations\n\n")
		for _, rec := range analysis.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
		b.WriteString("\n")
	}

	if len(analysis.DataWarnings) > 0 {
		b.WriteString("## Data Warnings\n\n")
		for _, warning := range analysis.DataWarnings {
			fmt.Fprintf(&b, "- %s\n", warning)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// rankedScores orders the scores by the precomputed priority ranking,
// falling back to a direct sort when the ranking is absent.
func (s *ReportService) rankedScores(analysis *models.PortfolioAnalysis) []models.ProjectScore {
	ranked := make([]models.ProjectScore, len(analysis.ProjectScores))
	copy(ranked, analysis.ProjectScores)

	if len(analysis.PriorityRanking) == len(ranked) {
		position := make(map[string]int, len(analysis.PriorityRanking))
		for i, id := range analysis.PriorityRanking {
			position[id] = i
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return position[ranked[i].ProjectID] < position[ranked[j].ProjectID]
		})
		return ranked
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PriorityScore() > ranked[j].PriorityScore()
	})
	return ranked
}
