package services

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio-radar/internal/config"
	"portfolio-radar/internal/models"
)

// Reasoning strings used on sentinel fallback scores.
const (
	fallbackReasoning            = "Parsing error"
	fallbackDataQualityReasoning = "Analysis failed for this project"
	fallbackSummary              = "The analysis for this project could not be completed"
)

// ScoringService drives phase one: it partitions the portfolio into
// batches, sends each batch to the model, extracts score vectors from
// the responses and guarantees one vector per input project.
type ScoringService struct {
	client ChatClient
	cfg    config.AnalysisConfig
	logger *zap.Logger
}

// NewScoringService creates a new scoring orchestrator.
func NewScoringService(client ChatClient, cfg config.AnalysisConfig, logger *zap.Logger) *ScoringService {
	return &ScoringService{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// ScorePortfolio scores every project, batch by batch. Batches run
// concurrently up to the configured limit; input order is preserved in
// the result. A batch whose retries are exhausted fails the whole call -
// that is the only way a project can be lost, and it loses the run, not
// the project.
func (s *ScoringService) ScorePortfolio(ctx context.Context, projects []models.NormalizedProject) ([]models.ProjectScore, error) {
	if len(projects) == 0 {
		return nil, nil
	}

	batches := partitionProjects(projects, s.cfg.BatchSize)
	results := make([][]models.ProjectScore, len(batches))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i := range batches {
		i := i
		batch := batches[i]
		g.Go(func() error {
			s.logger.Info("scoring batch",
				zap.Int("batch", i+1),
				zap.Int("batches", len(batches)),
				zap.Int("projects", len(batch)),
				zap.String("model", s.client.Name()))

			scores, err := s.scoreBatch(ctx, batch)
			if err != nil {
				return fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
			}
			results[i] = scores
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]models.ProjectScore, 0, len(projects))
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// retryState carries the explicit retry loop state: how often we have
// asked and what went wrong last time.
type retryState struct {
	attempt int
	lastErr error
}

// temperatureFor escalates the sampling temperature per retry so a
// structurally broken response is not reproduced verbatim.
func (s *ScoringService) temperatureFor(attempt int) float64 {
	t := s.cfg.Temperature + float64(attempt)*s.cfg.TemperatureStep
	if t > s.cfg.MaxTemperature {
		t = s.cfg.MaxTemperature
	}
	return t
}

// scoreBatch performs one batch request including the extraction retry
// loop. Only extraction failures are retried; transport errors propagate
// immediately since there is no response text to recover from.
func (s *ScoringService) scoreBatch(ctx context.Context, batch []models.NormalizedProject) ([]models.ProjectScore, error) {
	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: BuildScoringPrompt(batch)},
	}

	var state retryState
	for state.attempt = 0; state.attempt <= s.cfg.MaxExtractionRetries; state.attempt++ {
		if state.attempt > 0 {
			s.logger.Warn("retrying batch after extraction failure",
				zap.Int("attempt", state.attempt+1),
				zap.Error(state.lastErr))
		}

		text, err := s.client.Complete(ctx, messages, s.temperatureFor(state.attempt))
		if err != nil {
			return nil, err
		}

		record, err := ExtractJSON(text)
		if err != nil {
			state.lastErr = err
			continue
		}

		rawProjects, ok := record["projects"].([]interface{})
		if !ok {
			state.lastErr = &ExtractionError{
				Stage:     "shape",
				Attempted: truncate(text, attemptedSnippetLimit),
				Err:       fmt.Errorf("response object has no projects array"),
			}
			continue
		}

		return s.mapBatchRecords(rawProjects, batch), nil
	}

	return nil, fmt.Errorf("extraction failed after %d attempts: %w", state.attempt, state.lastErr)
}

// mapBatchRecords re-associates the model's project records with the
// batch input by project_id and fills every gap with a sentinel score,
// so the output always has exactly one vector per input project.
func (s *ScoringService) mapBatchRecords(raw []interface{}, batch []models.NormalizedProject) []models.ProjectScore {
	byID := make(map[string]map[string]interface{}, len(raw))
	matched := 0
	for _, el := range raw {
		m, ok := el.(map[string]interface{})
		if !ok {
			continue
		}
		id := stringField(m, "project_id", "")
		if id != "" {
			byID[id] = m
		}
	}

	scores := make([]models.ProjectScore, 0, len(batch))
	for i := range batch {
		project := &batch[i]
		m, ok := byID[project.ID]
		if !ok {
			s.logger.Warn("project missing from batch response, substituting sentinel score",
				zap.String("project_id", project.ID),
				zap.String("project_name", project.Name))
			scores = append(scores, sentinelScore(project.ID, project.Name))
			continue
		}
		matched++
		score := parseProjectScore(m)
		// The input is authoritative for identity; the model only echoes it.
		score.ProjectID = project.ID
		score.ProjectName = project.Name
		scores = append(scores, score)
	}

	if extra := len(byID) - matched; extra > 0 {
		s.logger.Debug("dropping unmatched records from batch response", zap.Int("count", extra))
	}
	return scores
}

// parseProjectScore maps one extracted record to a ProjectScore.
// Missing or malformed optional fields take their documented defaults;
// mapping never fails outright.
func parseProjectScore(m map[string]interface{}) models.ProjectScore {
	return models.ProjectScore{
		ProjectID:        stringField(m, "project_id", "unknown"),
		ProjectName:      stringField(m, "project_name", "Unknown"),
		Urgency:          scoreField(m, "urgency"),
		Importance:       scoreField(m, "importance"),
		Complexity:       scoreField(m, "complexity"),
		Risk:             scoreField(m, "risk"),
		DataQuality:      scoreField(m, "data_quality"),
		IsCritical:       boolField(m, "is_critical"),
		Summary:          stringField(m, "summary", ""),
		DetailedAnalysis: stringField(m, "detailed_analysis", ""),
	}
}

// sentinelScore is the defined fallback for a project whose record could
// not be recovered: mid assessment scores, lowest data quality, never
// critical.
func sentinelScore(id, name string) models.ProjectScore {
	return models.ProjectScore{
		ProjectID:        id,
		ProjectName:      name,
		Urgency:          models.NewScoreValue(models.MidScore, fallbackReasoning),
		Importance:       models.NewScoreValue(models.MidScore, fallbackReasoning),
		Complexity:       models.NewScoreValue(models.MidScore, fallbackReasoning),
		Risk:             models.NewScoreValue(models.MidScore, fallbackReasoning),
		DataQuality:      models.NewScoreValue(models.MinScore, fallbackDataQualityReasoning),
		IsCritical:       false,
		Summary:          fallbackSummary,
		DetailedAnalysis: fallbackSummary,
	}
}

func partitionProjects(projects []models.NormalizedProject, size int) [][]models.NormalizedProject {
	if size < 1 {
		size = 1
	}
	var batches [][]models.NormalizedProject
	for start := 0; start < len(projects); start += size {
		end := start + size
		if end > len(projects) {
			end = len(projects)
		}
		batches = append(batches, projects[start:end])
	}
	return batches
}

func stringField(m map[string]interface{}, key, def string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return def
}

func boolField(m map[string]interface{}, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func intField(m map[string]interface{}, key string, def int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// scoreField reads a nested {"value": n, "reasoning": "…"} object,
// clamping the value and defaulting both fields when absent.
func scoreField(m map[string]interface{}, key string) models.ScoreValue {
	nested, _ := m[key].(map[string]interface{})
	if nested == nil {
		return models.NewScoreValue(models.MidScore, "")
	}
	value := intField(nested, "value", models.MidScore)
	reasoning := stringField(nested, "reasoning", "")
	return models.NewScoreValue(value, reasoning)
}
