package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio-radar/internal/config"
	"portfolio-radar/internal/models"
)

// fakeChatClient replays canned responses and records every call.
type fakeChatClient struct {
	mu           sync.Mutex
	responses    []string
	errs         []error
	calls        int
	temperatures []float64
}

func (f *fakeChatClient) Complete(_ context.Context, _ []Message, temperature float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.calls
	f.calls++
	f.temperatures = append(f.temperatures, temperature)

	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func (f *fakeChatClient) Name() string { return "fake/model" }

func testAnalysisConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		BatchSize:            10,
		MaxExtractionRetries: 2,
		Temperature:          0.7,
		TemperatureStep:      0.15,
		MaxTemperature:       1.0,
		Concurrency:          2,
	}
}

func testProjects(n int) []models.NormalizedProject {
	projects := make([]models.NormalizedProject, n)
	for i := range projects {
		projects[i] = models.NormalizedProject{
			ID:   fmt.Sprintf("p%d", i+1),
			Name: fmt.Sprintf("Project %d", i+1),
		}
	}
	return projects
}

func scoredRecord(id string, urgency int) string {
	return fmt.Sprintf(`{
		"project_id": %q,
		"project_name": "Project %s",
		"urgency": {"value": %d, "reasoning": "deadline"},
		"importance": {"value": 4, "reasoning": "strategic"},
		"complexity": {"value": 2, "reasoning": "small"},
		"risk": {"value": 3, "reasoning": "normal"},
		"data_quality": {"value": 4, "reasoning": "good"},
		"is_critical": false,
		"summary": "fine",
		"detailed_analysis": "all fine"
	}`, id, id, urgency)
}

func TestScorePortfolioEmptyInput(t *testing.T) {
	svc := NewScoringService(&fakeChatClient{}, testAnalysisConfig(), zap.NewNop())

	scores, err := svc.ScorePortfolio(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, scores)
}

func TestScorePortfolioHappyPath(t *testing.T) {
	client := &fakeChatClient{responses: []string{
		fmt.Sprintf(`{"projects": [%s, %s]}`, scoredRecord("p1", 5), scoredRecord("p2", 2)),
	}}
	svc := NewScoringService(client, testAnalysisConfig(), zap.NewNop())

	scores, err := svc.ScorePortfolio(context.Background(), testProjects(2))
	require.NoError(t, err)
	require.Len(t, scores, 2)

	assert.Equal(t, "p1", scores[0].ProjectID)
	assert.Equal(t, 5, scores[0].Urgency.Value)
	assert.Equal(t, "p2", scores[1].ProjectID)
	assert.Equal(t, 2, scores[1].Urgency.Value)
	assert.Equal(t, 1, client.calls)
}

func TestScorePortfolioSentinelForMissingRecord(t *testing.T) {
	// The model answers for p1 only; p2 must still come back, as the
	// defined fallback score.
	client := &fakeChatClient{responses: []string{
		fmt.Sprintf(`{"projects": [%s]}`, scoredRecord("p1", 4)),
	}}
	svc := NewScoringService(client, testAnalysisConfig(), zap.NewNop())

	scores, err := svc.ScorePortfolio(context.Background(), testProjects(2))
	require.NoError(t, err)
	require.Len(t, scores, 2)

	fallback := scores[1]
	assert.Equal(t, "p2", fallback.ProjectID)
	assert.Equal(t, "Project 2", fallback.ProjectName)
	assert.Equal(t, models.MidScore, fallback.Urgency.Value)
	assert.Equal(t, models.MidScore, fallback.Risk.Value)
	assert.Equal(t, models.MinScore, fallback.DataQuality.Value)
	assert.False(t, fallback.IsCritical)
	assert.Equal(t, fallbackReasoning, fallback.Urgency.Reasoning)
	assert.Equal(t, fallbackSummary, fallback.Summary)
}

func TestScorePortfolioIgnoresUnknownRecords(t *testing.T) {
	client := &fakeChatClient{responses: []string{
		fmt.Sprintf(`{"projects": [%s, %s]}`, scoredRecord("p1", 4), scoredRecord("ghost", 5)),
	}}
	svc := NewScoringService(client, testAnalysisConfig(), zap.NewNop())

	scores, err := svc.ScorePortfolio(context.Background(), testProjects(1))
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, "p1", scores[0].ProjectID)
}

func TestScorePortfolioRetriesWithEscalatingTemperature(t *testing.T) {
	client := &fakeChatClient{responses: []string{
		"this is not json at all",
		`{"wrong_key": []}`,
		fmt.Sprintf(`{"projects": [%s]}`, scoredRecord("p1", 3)),
	}}
	svc := NewScoringService(client, testAnalysisConfig(), zap.NewNop())

	scores, err := svc.ScorePortfolio(context.Background(), testProjects(1))
	require.NoError(t, err)
	require.Len(t, scores, 1)

	require.Equal(t, 3, client.calls)
	assert.InDelta(t, 0.70, client.temperatures[0], 1e-9)
	assert.InDelta(t, 0.85, client.temperatures[1], 1e-9)
	assert.InDelta(t, 1.00, client.temperatures[2], 1e-9)
}

func TestScorePortfolioTemperatureCapped(t *testing.T) {
	svc := NewScoringService(&fakeChatClient{}, config.AnalysisConfig{
		Temperature:     0.9,
		TemperatureStep: 0.2,
		MaxTemperature:  1.0,
	}, zap.NewNop())

	assert.InDelta(t, 0.9, svc.temperatureFor(0), 1e-9)
	assert.InDelta(t, 1.0, svc.temperatureFor(1), 1e-9)
	assert.InDelta(t, 1.0, svc.temperatureFor(5), 1e-9)
}

func TestScorePortfolioExhaustsRetries(t *testing.T) {
	client := &fakeChatClient{responses: []string{"garbage", "garbage", "garbage"}}
	svc := NewScoringService(client, testAnalysisConfig(), zap.NewNop())

	_, err := svc.ScorePortfolio(context.Background(), testProjects(1))
	require.Error(t, err)
	assert.True(t, IsExtractionError(err))
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, client.calls)
}

func TestScorePortfolioTransportErrorNotRetried(t *testing.T) {
	client := &fakeChatClient{
		errs: []error{&TransportError{StatusCode: 429, Message: "rate limited"}},
	}
	svc := NewScoringService(client, testAnalysisConfig(), zap.NewNop())

	_, err := svc.ScorePortfolio(context.Background(), testProjects(1))
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 429, transportErr.StatusCode)
	assert.Equal(t, 1, client.calls)
}

func TestScorePortfolioBatchingPreservesOrder(t *testing.T) {
	cfg := testAnalysisConfig()
	cfg.BatchSize = 2
	cfg.Concurrency = 1

	// With concurrency 1 batches run in submission order: p1/p2 first,
	// then p3.
	client := &fakeChatClient{responses: []string{
		fmt.Sprintf(`{"projects": [%s, %s]}`, scoredRecord("p2", 2), scoredRecord("p1", 1)),
		fmt.Sprintf(`{"projects": [%s]}`, scoredRecord("p3", 3)),
	}}
	svc := NewScoringService(client, cfg, zap.NewNop())

	scores, err := svc.ScorePortfolio(context.Background(), testProjects(3))
	require.NoError(t, err)
	require.Len(t, scores, 3)

	// Output order follows the input even when the model reorders records.
	assert.Equal(t, []string{"p1", "p2", "p3"}, []string{scores[0].ProjectID, scores[1].ProjectID, scores[2].ProjectID})
	assert.Equal(t, 2, client.calls)
}

func TestPartitionProjects(t *testing.T) {
	assert.Len(t, partitionProjects(testProjects(10), 3), 4)
	assert.Len(t, partitionProjects(testProjects(9), 3), 3)
	assert.Len(t, partitionProjects(testProjects(1), 10), 1)
	assert.Nil(t, partitionProjects(nil, 3))
	// A nonsensical batch size degrades to one project per batch.
	assert.Len(t, partitionProjects(testProjects(3), 0), 3)
}

func TestParseProjectScoreDefaults(t *testing.T) {
	score := parseProjectScore(map[string]interface{}{
		"project_id": "x",
		"urgency":    map[string]interface{}{"value": float64(9), "reasoning": "over eager"},
		"risk":       map[string]interface{}{"value": "4"},
	})

	// Out-of-range values clamp, string numbers parse, absent dimensions
	// take the middle score.
	assert.Equal(t, models.MaxScore, score.Urgency.Value)
	assert.Equal(t, 4, score.Risk.Value)
	assert.Equal(t, models.DefaultReasoning, score.Risk.Reasoning)
	assert.Equal(t, models.MidScore, score.Importance.Value)
	assert.False(t, score.IsCritical)
}
