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

var _ engine.AvailabilityClient = (*HTTPAvailabilityClient)(nil)

// HTTPAvailabilityClient ходит в calendar-service за занятыми датами
// исполнителя.
type HTTPAvailabilityClient struct {
	baseURL           string
	httpClient        *http.Client
	interServiceToken string
	logger            *zap.Logger
}

func NewHTTPAvailabilityClient(baseURL, interServiceToken string, timeout time.Duration, logger *zap.Logger) *HTTPAvailabilityClient {
	return &HTTPAvailabilityClient{
		baseURL:           strings.TrimSuffix(baseURL, "/"),
		httpClient:        newHTTPClient(timeout),
		interServiceToken: interServiceToken,
		logger:            logger.Named("HTTPAvailabilityClient"),
	}
}

// GetUnavailableDates возвращает список ISO-дат, когда исполнитель занят.
func (c *HTTPAvailabilityClient) GetUnavailableDates(ctx context.Context, artistID int64) ([]string, error) {
	log := c.logger.With(zap.Int64("artistID", artistID))
	log.Debug("Requesting unavailable dates from calendar service")

	url := fmt.Sprintf("%s/internal/artists/%d/unavailable-dates", c.baseURL, artistID)
	var payload struct {
		Dates []string `json:"dates"`
	}
	if _, err := doJSON(ctx, c.httpClient, http.MethodGet, url, c.interServiceToken, nil, &payload); err != nil {
		log.Error("Failed to fetch unavailable dates", zap.Error(err))
		return nil, fmt.Errorf("calendar service request failed: %w", err)
	}
	return payload.Dates, nil
}
