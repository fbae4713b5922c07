package clients

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"booking-server/internal/engine"

	"go.uber.org/zap"
)

var _ engine.QuoteAPIClient = (*HTTPQuoteAPIClient)(nil)

// HTTPQuoteAPIClient ходит в pricing-service за полным ценовым разложением.
type HTTPQuoteAPIClient struct {
	baseURL           string
	httpClient        *http.Client
	interServiceToken string
	logger            *zap.Logger
}

func NewHTTPQuoteAPIClient(baseURL, interServiceToken string, timeout time.Duration, logger *zap.Logger) *HTTPQuoteAPIClient {
	return &HTTPQuoteAPIClient{
		baseURL:           strings.TrimSuffix(baseURL, "/"),
		httpClient:        newHTTPClient(timeout),
		interServiceToken: interServiceToken,
		logger:            logger.Named("HTTPQuoteAPIClient"),
	}
}

// EstimateQuote запрашивает расчёт котировки.
func (c *HTTPQuoteAPIClient) EstimateQuote(ctx context.Context, req engine.QuoteEstimateRequest) (*engine.QuoteEstimateResponse, error) {
	log := c.logger.With(zap.Int64("artistID", req.ArtistID), zap.Int64("serviceID", req.ServiceID))
	log.Debug("Requesting quote estimate from pricing service")

	url := c.baseURL + "/internal/quotes/estimate"
	var resp engine.QuoteEstimateResponse
	if _, err := doJSON(ctx, c.httpClient, http.MethodPost, url, c.interServiceToken, req, &resp); err != nil {
		log.Error("Failed to fetch quote estimate", zap.Error(err))
		return nil, fmt.Errorf("pricing service request failed: %w", err)
	}
	return &resp, nil
}
