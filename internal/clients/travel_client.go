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

var _ engine.TravelClient = (*HTTPTravelClient)(nil)

// HTTPTravelClient ходит в geo-service за дистанцией между локациями.
type HTTPTravelClient struct {
	baseURL           string
	httpClient        *http.Client
	interServiceToken string
	logger            *zap.Logger
}

func NewHTTPTravelClient(baseURL, interServiceToken string, timeout time.Duration, logger *zap.Logger) *HTTPTravelClient {
	return &HTTPTravelClient{
		baseURL:           strings.TrimSuffix(baseURL, "/"),
		httpClient:        newHTTPClient(timeout),
		interServiceToken: interServiceToken,
		logger:            logger.Named("HTTPTravelClient"),
	}
}

// GetDistanceKm возвращает дистанцию в километрах между origin и destination.
// Если geo-service не смог разрезолвить адреса, возвращается (nil, nil) -
// это штатный исход, а не ошибка.
func (c *HTTPTravelClient) GetDistanceKm(ctx context.Context, origin, destination string) (*float64, error) {
	log := c.logger.With(zap.String("origin", origin), zap.String("destination", destination))
	log.Debug("Requesting travel distance from geo service")

	requestBody := struct {
		Origin      string `json:"origin"`
		Destination string `json:"destination"`
	}{Origin: origin, Destination: destination}

	var payload struct {
		DistanceKm *float64 `json:"distance_km"`
		Resolved   bool     `json:"resolved"`
	}
	url := c.baseURL + "/internal/distance"
	status, err := doJSON(ctx, c.httpClient, http.MethodPost, url, c.interServiceToken, requestBody, &payload)
	if err != nil {
		if status == http.StatusUnprocessableEntity {
			// Адрес не распознан - дистанции нет, это не фейл расчёта.
			log.Debug("Geo service could not resolve addresses")
			return nil, nil
		}
		log.Error("Failed to fetch travel distance", zap.Error(err))
		return nil, fmt.Errorf("geo service request failed: %w", err)
	}
	if !payload.Resolved {
		return nil, nil
	}
	return payload.DistanceKm, nil
}
