package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio-radar/internal/config"
	"portfolio-radar/internal/models"
)

// Concurrent planning entry fetches per portfolio.
const planningFetchConcurrency = 4

// PortfolioFetcher is the data source the analyzer reads from.
type PortfolioFetcher interface {
	GetPortfolio(ctx context.Context, portfolioID string) (*models.BlueAntPortfolio, error)
	GetPortfolioProjects(ctx context.Context, portfolioID string) ([]models.BlueAntProject, error)
	GetProjectPlanningEntries(ctx context.Context, projectID string) ([]models.BlueAntPlanningEntry, error)
	GetMasterdata(ctx context.Context) (*models.BlueAntMasterdata, error)
}

// Analyzer orchestrates the full pipeline: fetch raw portfolio data,
// normalize it, score every project (phase one), validate the scores
// for consistency, and produce the portfolio-level analysis (phase two).
type Analyzer struct {
	fetcher   PortfolioFetcher
	client    ChatClient
	scoring   *ScoringService
	validator *SanityValidator
	cfg       *config.Config
	logger    *zap.Logger
}

// NewAnalyzer wires the pipeline from its collaborators.
func NewAnalyzer(fetcher PortfolioFetcher, client ChatClient, cfg *config.Config, logger *zap.Logger) (*Analyzer, error) {
	validator, err := NewSanityValidator(cfg.Validation, logger)
	if err != nil {
		return nil, fmt.Errorf("building validator: %w", err)
	}

	return &Analyzer{
		fetcher:   fetcher,
		client:    client,
		scoring:   NewScoringService(client, cfg.Analysis, logger),
		validator: validator,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// FetchNormalizedPortfolio fetches and normalizes a portfolio without
// running any scoring. The portfolio entity, project list and masterdata
// load concurrently; planning entries follow per project.
func (a *Analyzer) FetchNormalizedPortfolio(ctx context.Context, portfolioID string) (*models.NormalizedPortfolio, error) {
	var (
		portfolio  *models.BlueAntPortfolio
		projects   []models.BlueAntProject
		masterdata *models.BlueAntMasterdata
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		portfolio, err = a.fetcher.GetPortfolio(gctx, portfolioID)
		return err
	})
	g.Go(func() error {
		var err error
		projects, err = a.fetcher.GetPortfolioProjects(gctx, portfolioID)
		return err
	})
	g.Go(func() error {
		var err error
		masterdata, err = a.fetcher.GetMasterdata(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching portfolio %s: %w", portfolioID, err)
	}

	a.logger.Info("fetched portfolio",
		zap.String("portfolio", portfolio.Name),
		zap.Int("projects", len(projects)),
		zap.Int("statuses", len(masterdata.Statuses)),
		zap.Int("priorities", len(masterdata.Priorities)),
		zap.Int("departments", len(masterdata.Departments)))

	normalizer := NewNormalizer(*masterdata, a.logger)

	entriesByProject := make([][]models.BlueAntPlanningEntry, len(projects))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(planningFetchConcurrency)
	for i := range projects {
		i := i
		eg.Go(func() error {
			entries, err := a.fetcher.GetProjectPlanningEntries(egctx, projects[i].ID)
			if err != nil {
				// The project is still analyzable from its own fields;
				// only effort and milestone metrics are lost.
				a.logger.Warn("failed to fetch planning entries",
					zap.String("project_id", projects[i].ID),
					zap.Error(err))
				return nil
			}
			entriesByProject[i] = entries
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	normalized := make([]models.NormalizedProject, 0, len(projects))
	for i := range projects {
		normalized = append(normalized, normalizer.NormalizeProject(&projects[i], entriesByProject[i]))
	}

	result := normalizer.NormalizePortfolio(portfolio, normalized)
	a.logger.Info("normalized portfolio",
		zap.Int("projects", result.TotalProjects),
		zap.Int("critical", result.CriticalProjectsCount))

	return &result, nil
}

// Analyze runs the full pipeline for a portfolio ID.
func (a *Analyzer) Analyze(ctx context.Context, portfolioID string) (*models.PortfolioAnalysis, error) {
	portfolio, err := a.FetchNormalizedPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeNormalized(ctx, portfolio)
}

// AnalyzeNormalized runs scoring, validation and the portfolio-level
// analysis over an already normalized portfolio. Useful when the
// normalized snapshot was saved earlier and is re-scored offline.
func (a *Analyzer) AnalyzeNormalized(ctx context.Context, portfolio *models.NormalizedPortfolio) (*models.PortfolioAnalysis, error) {
	a.logger.Info("starting full analysis",
		zap.String("portfolio", portfolio.Name),
		zap.Int("projects", len(portfolio.Projects)),
		zap.String("model", a.client.Name()))

	// Phase 1: per-project scoring.
	scores, err := a.scoring.ScorePortfolio(ctx, portfolio.Projects)
	if err != nil {
		return nil, fmt.Errorf("scoring portfolio %s: %w", portfolio.ID, err)
	}

	// Enrichment must precede validation: the validator reasons over
	// progress, milestones and effort, which only the normalized data has.
	enrichScores(scores, portfolio)

	// Phase 1.5: consistency validation, single-threaded over all scores.
	validated, warnings := a.validator.ValidatePortfolioScores(scores)
	a.logger.Info("validation complete", zap.Int("warnings", len(warnings)))

	// Phase 2: portfolio-level summary over the validated scores.
	analysis := a.buildPortfolioAnalysis(ctx, portfolio, validated)
	analysis.DataWarnings = warnings
	analysis.RunID = uuid.NewString()
	analysis.ComputeStatistics()

	a.logger.Info("analysis complete",
		zap.String("run_id", analysis.RunID),
		zap.Int("critical_projects", len(analysis.CriticalProjects)),
		zap.Int("data_warnings", len(analysis.DataWarnings)))

	return analysis, nil
}

// enrichScores copies reporting and validation facts from the normalized
// projects onto the scores, matched by project ID.
func enrichScores(scores []models.ProjectScore, portfolio *models.NormalizedPortfolio) {
	byID := make(map[string]*models.NormalizedProject, len(portfolio.Projects))
	for i := range portfolio.Projects {
		byID[portfolio.Projects[i].ID] = &portfolio.Projects[i]
	}

	for i := range scores {
		normalized, ok := byID[scores[i].ProjectID]
		if !ok {
			continue
		}
		scores[i].ProgressPercent = normalized.ProgressPercent
		scores[i].OwnerName = normalized.OwnerName
		scores[i].StatusColor = string(normalized.StatusColor)
		scores[i].StatusLabel = normalized.StatusLabel
		scores[i].MilestonesTotal = normalized.MilestonesTotal
		scores[i].MilestonesCompleted = normalized.MilestonesCompleted
		scores[i].MilestonesDelayed = normalized.MilestonesDelayed
		scores[i].PlannedEffortHours = normalized.PlannedEffortHours
		scores[i].ActualEffortHours = normalized.ActualEffortHours
		scores[i].HasStatusMismatch = normalized.HasStatusMismatch
		scores[i].StatusMismatchReasons = normalized.StatusMismatchReasons
	}
}

// buildPortfolioAnalysis performs the phase-two model call. The call is
// best effort: the per-project scores are already complete at this
// point, so on any failure the analysis falls back to a locally
// generated summary instead of failing the run.
//
// Critical projects and the priority ranking are always derived from the
// validated scores via ComputeStatistics, never taken from the model.
func (a *Analyzer) buildPortfolioAnalysis(ctx context.Context, portfolio *models.NormalizedPortfolio, scores []models.ProjectScore) *models.PortfolioAnalysis {
	analysis := &models.PortfolioAnalysis{
		PortfolioID:   portfolio.ID,
		PortfolioName: portfolio.Name,
		ProjectScores: scores,
	}

	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: BuildPortfolioPrompt(portfolio.Name, scores)},
	}

	text, err := a.client.Complete(ctx, messages, a.cfg.Analysis.Temperature)
	if err == nil {
		var record map[string]interface{}
		record, err = ExtractJSON(text)
		if err == nil {
			analysis.ExecutiveSummary = stringValue(record, "executive_summary")
			analysis.RiskClusters = stringSlice(record, "risk_clusters")
			analysis.Recommendations = stringSlice(record, "recommendations")
		}
	}
	if err != nil {
		a.logger.Warn("portfolio-level analysis failed, using local summary", zap.Error(err))
	}

	if analysis.ExecutiveSummary == "" {
		analysis.ExecutiveSummary = localExecutiveSummary(portfolio, scores)
	}

	return analysis
}

// localExecutiveSummary composes a plain statistical summary when the
// model cannot provide one.
func localExecutiveSummary(portfolio *models.NormalizedPortfolio, scores []models.ProjectScore) string {
	critical := 0
	var priority float64
	for i := range scores {
		if scores[i].IsCritical {
			critical++
		}
		priority += scores[i].PriorityScore()
	}
	avgPriority := 0.0
	if len(scores) > 0 {
		avgPriority = priority / float64(len(scores))
	}

	return fmt.Sprintf(
		"Portfolio %q comprises %d projects, of which %d are currently rated critical. "+
			"The average priority score across the portfolio is %.1f. "+
			"This summary was generated from the assessment data because the portfolio-level analysis was unavailable.",
		portfolio.Name, len(scores), critical, avgPriority)
}

func stringValue(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

func stringSlice(m map[string]interface{}, key string) []string {
	raw, _ := m[key].([]interface{})
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, el := range raw {
		if s, ok := el.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
