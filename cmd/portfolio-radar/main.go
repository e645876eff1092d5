package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"portfolio-radar/internal/config"
	"portfolio-radar/internal/helpers"
	"portfolio-radar/internal/models"
	"portfolio-radar/internal/repositories"
	"portfolio-radar/internal/services"
)

var (
	configFile string
	verbose    bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "portfolio-radar",
		Short: "Portfolio Radar - AI-assisted project portfolio assessment",
		Long: `Portfolio Radar fetches a project portfolio from BlueAnt, scores every
project on urgency, importance, complexity, risk and data quality using
an LLM, validates the scores for logical consistency and produces a
management-ready report.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Analyze command
	var analyzeCmd = &cobra.Command{
		Use:   "analyze <portfolio-id>",
		Short: "Run the full analysis pipeline for a portfolio",
		Long:  "Fetch, normalize, score and validate a portfolio, then write the JSON and markdown reports",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}
	rootCmd.AddCommand(analyzeCmd)

	// Preview command
	var previewCmd = &cobra.Command{
		Use:   "preview <portfolio-id>",
		Short: "Fetch and normalize a portfolio without scoring it",
		Long:  "Show what the scoring pipeline would see and save the normalized snapshot for offline re-scoring",
		Args:  cobra.ExactArgs(1),
		RunE:  runPreview,
	}
	rootCmd.AddCommand(previewCmd)

	// Score-file command
	var scoreFileCmd = &cobra.Command{
		Use:   "score-file <normalized.json>",
		Short: "Score a previously saved normalized portfolio",
		Long:  "Run scoring and validation over a normalized snapshot produced by the preview command",
		Args:  cobra.ExactArgs(1),
		RunE:  runScoreFile,
	}
	rootCmd.AddCommand(scoreFileCmd)

	// Portfolios command
	var portfoliosCmd = &cobra.Command{
		Use:   "portfolios [name]",
		Short: "List portfolios, optionally filtered by name",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPortfolios,
	}
	rootCmd.AddCommand(portfoliosCmd)

	if err := rootCmd.Execute(); err != nil {
		helpers.PrintError("Error: %v", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stderr"}
	if verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return logCfg.Build()
}

// bootstrap loads the config and wires the full service graph.
func bootstrap() (*config.Config, *services.Analyzer, *services.ReportService, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	client, err := services.NewChatClient(&cfg.LLM, logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	repo := repositories.NewBlueAntRepository(&cfg.BlueAnt, logger)
	analyzer, err := services.NewAnalyzer(repo, client, cfg, logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	validator, err := services.NewSanityValidator(cfg.Validation, logger)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	reporter := services.NewReportService(cfg.Processing, validator)

	return cfg, analyzer, reporter, logger, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	portfolioID := args[0]

	cfg, analyzer, reporter, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	helpers.PrintTitle("Analyzing Portfolio %s", portfolioID)
	helpers.PrintInfo("Provider: %s, model: %s", cfg.LLM.Provider, cfg.LLM.Model)

	analysis, err := analyzer.Analyze(cmd.Context(), portfolioID)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	reporter.DisplayAnalysis(analysis)

	if _, err := reporter.SaveAnalysis(analysis); err != nil {
		return err
	}

	helpers.PrintSuccess("Analysis completed successfully!")
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	portfolioID := args[0]

	_, analyzer, reporter, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	helpers.PrintTitle("Previewing Portfolio %s", portfolioID)

	portfolio, err := analyzer.FetchNormalizedPortfolio(cmd.Context(), portfolioID)
	if err != nil {
		return fmt.Errorf("preview failed: %w", err)
	}

	displayNormalizedPortfolio(portfolio)

	if _, err := reporter.SaveNormalizedPortfolio(portfolio); err != nil {
		return err
	}
	return nil
}

func runScoreFile(cmd *cobra.Command, args []string) error {
	inputFile := args[0]

	_, analyzer, reporter, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	helpers.PrintTitle("Scoring Normalized Portfolio")
	helpers.PrintInfo("Input file: %s", inputFile)

	var portfolio models.NormalizedPortfolio
	if err := helpers.LoadJSON(inputFile, &portfolio); err != nil {
		return fmt.Errorf("failed to load normalized portfolio: %w", err)
	}

	analysis, err := analyzer.AnalyzeNormalized(cmd.Context(), &portfolio)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	reporter.DisplayAnalysis(analysis)

	if _, err := reporter.SaveAnalysis(analysis); err != nil {
		return err
	}

	helpers.PrintSuccess("Scoring completed successfully!")
	return nil
}

func runPortfolios(cmd *cobra.Command, args []string) error {
	cfg, _, _, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	repo := repositories.NewBlueAntRepository(&cfg.BlueAnt, logger)

	var portfolios []models.BlueAntPortfolio
	if len(args) == 1 {
		portfolios, err = repo.SearchPortfolios(cmd.Context(), args[0])
	} else {
		portfolios, err = repo.GetAllPortfolios(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("failed to list portfolios: %w", err)
	}

	if len(portfolios) == 0 {
		helpers.PrintInfo("No portfolios found")
		return nil
	}

	helpers.PrintTitle("Portfolios")
	for _, p := range portfolios {
		helpers.PrintInfo("%s  %s", p.ID, p.Name)
	}
	return nil
}

func displayNormalizedPortfolio(portfolio *models.NormalizedPortfolio) {
	helpers.PrintInfo("Portfolio: %s (%d projects)", portfolio.Name, portfolio.TotalProjects)
	helpers.PrintInfo("Total effort: %.0fh planned, %.0fh actual",
		portfolio.TotalPlannedEffortHours, portfolio.TotalActualEffortHours)

	if len(portfolio.ProjectsPerStatus) > 0 {
		helpers.PrintSeparator()
		for _, status := range portfolio.ProjectsPerStatus {
			helpers.PrintInfo("%3d × %s", status.Count, status.StatusLabel)
		}
	}

	if portfolio.CriticalProjectsCount > 0 {
		helpers.PrintSeparator()
		helpers.PrintWarning("%d project(s) flagged by heuristics:", portfolio.CriticalProjectsCount)
		for _, p := range portfolio.Projects {
			if !p.IsPotentiallyCritical {
				continue
			}
			helpers.PrintWarning("  %s: %v", p.Name, p.CriticalityReasons)
		}
	}
}
