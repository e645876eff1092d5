package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio-radar/internal/config"
	"portfolio-radar/internal/models"
)

// APIError is a non-2xx answer from the BlueAnt API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("BlueAnt API returned status %d: %s", e.StatusCode, e.Body)
}

// BlueAntRepository handles BlueAnt REST API interactions.
type BlueAntRepository struct {
	config *config.BlueAntConfig
	client *http.Client
	logger *zap.Logger
}

// NewBlueAntRepository creates a new BlueAnt repository.
func NewBlueAntRepository(blueantConfig *config.BlueAntConfig, logger *zap.Logger) *BlueAntRepository {
	return &BlueAntRepository{
		config: blueantConfig,
		client: &http.Client{
			Timeout: time.Duration(blueantConfig.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}
}

// get performs an authenticated GET request and returns the raw body.
func (r *BlueAntRepository) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := strings.TrimRight(r.config.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// The API accepts both header variants depending on version.
	req.Header.Set("Authorization", "Bearer "+r.config.APIToken)
	req.Header.Set("BA-Authorization", r.config.APIToken)
	req.Header.Set("Accept", "application/json")

	r.logger.Debug("BlueAnt API request", zap.String("path", path))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

// unmarshalList decodes either a bare JSON array or an object wrapping
// the array under one of the given keys. BlueAnt versions differ here.
func unmarshalList[T any](data []byte, wrapperKeys ...string) []T {
	var bare []T
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil
	}
	for _, key := range wrapperKeys {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		var list []T
		if err := json.Unmarshal(raw, &list); err == nil {
			return list
		}
	}
	return nil
}

// GetPortfolio fetches one portfolio by ID.
func (r *BlueAntRepository) GetPortfolio(ctx context.Context, portfolioID string) (*models.BlueAntPortfolio, error) {
	body, err := r.get(ctx, "/v1/portfolios/"+portfolioID, nil)
	if err != nil {
		return nil, err
	}

	var wrapped struct {
		Portfolio *models.BlueAntPortfolio `json:"portfolio"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Portfolio != nil {
		return wrapped.Portfolio, nil
	}

	var portfolio models.BlueAntPortfolio
	if err := json.Unmarshal(body, &portfolio); err != nil {
		return nil, fmt.Errorf("failed to decode portfolio: %w", err)
	}
	return &portfolio, nil
}

// GetAllPortfolios fetches every portfolio visible to the token.
func (r *BlueAntRepository) GetAllPortfolios(ctx context.Context) ([]models.BlueAntPortfolio, error) {
	body, err := r.get(ctx, "/v1/portfolios", nil)
	if err != nil {
		return nil, err
	}
	return unmarshalList[models.BlueAntPortfolio](body, "portfolios", "items"), nil
}

// SearchPortfolios filters all portfolios by case-insensitive name match.
func (r *BlueAntRepository) SearchPortfolios(ctx context.Context, name string) ([]models.BlueAntPortfolio, error) {
	portfolios, err := r.GetAllPortfolios(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(name)
	var matches []models.BlueAntPortfolio
	for _, p := range portfolios {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

// GetPortfolioProjects fetches all projects of a portfolio, including
// their memo fields.
func (r *BlueAntRepository) GetPortfolioProjects(ctx context.Context, portfolioID string) ([]models.BlueAntProject, error) {
	query := url.Values{}
	query.Set("portfolioId", portfolioID)
	query.Set("includeMemoFields", "true")

	body, err := r.get(ctx, "/v1/projects", query)
	if err != nil {
		return nil, err
	}
	return unmarshalList[models.BlueAntProject](body, "projects", "items"), nil
}

// GetProjectPlanningEntries fetches a project's plan rows.
func (r *BlueAntRepository) GetProjectPlanningEntries(ctx context.Context, projectID string) ([]models.BlueAntPlanningEntry, error) {
	body, err := r.get(ctx, "/v1/projects/"+projectID+"/planningentries", nil)
	if err != nil {
		return nil, err
	}
	return unmarshalList[models.BlueAntPlanningEntry](body, "entries", "items"), nil
}

// GetMasterdata fetches all lookup tables concurrently. A failing table
// is logged and left empty; the affected lookups then simply resolve to
// nothing instead of failing the whole analysis.
func (r *BlueAntRepository) GetMasterdata(ctx context.Context) (*models.BlueAntMasterdata, error) {
	var masterdata models.BlueAntMasterdata

	g, gctx := errgroup.WithContext(ctx)
	fetch := func(path string, target *[]models.BlueAntMasterdataItem) func() error {
		return func() error {
			body, err := r.get(gctx, path, nil)
			if err != nil {
				r.logger.Warn("masterdata fetch failed",
					zap.String("path", path),
					zap.Error(err))
				return nil
			}
			*target = unmarshalList[models.BlueAntMasterdataItem](body, "items")
			return nil
		}
	}

	g.Go(fetch("/v1/masterdata/projects/statuses", &masterdata.Statuses))
	g.Go(fetch("/v1/masterdata/projects/priorities", &masterdata.Priorities))
	g.Go(fetch("/v1/masterdata/projects/types", &masterdata.Types))
	g.Go(fetch("/v1/masterdata/departments", &masterdata.Departments))
	g.Go(fetch("/v1/masterdata/customers", &masterdata.Customers))

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &masterdata, nil
}
