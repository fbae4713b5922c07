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

var _ engine.CatalogClient = (*HTTPCatalogClient)(nil)

// HTTPCatalogClient ходит в catalog-service за метаданными сервисов и
// техническими райдерами.
type HTTPCatalogClient struct {
	baseURL           string
	httpClient        *http.Client
	interServiceToken string
	logger            *zap.Logger
}

func NewHTTPCatalogClient(baseURL, interServiceToken string, timeout time.Duration, logger *zap.Logger) *HTTPCatalogClient {
	return &HTTPCatalogClient{
		baseURL:           strings.TrimSuffix(baseURL, "/"),
		httpClient:        newHTTPClient(timeout),
		interServiceToken: interServiceToken,
		logger:            logger.Named("HTTPCatalogClient"),
	}
}

// GetService возвращает метаданные сервиса; (nil, nil), если сервис не найден.
func (c *HTTPCatalogClient) GetService(ctx context.Context, serviceID int64) (*engine.ServiceInfo, error) {
	log := c.logger.With(zap.Int64("serviceID", serviceID))
	log.Debug("Requesting service info from catalog service")

	url := fmt.Sprintf("%s/internal/services/%d", c.baseURL, serviceID)
	var info engine.ServiceInfo
	status, err := doJSON(ctx, c.httpClient, http.MethodGet, url, c.interServiceToken, nil, &info)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, nil
		}
		log.Error("Failed to fetch service info", zap.Error(err))
		return nil, fmt.Errorf("catalog service request failed: %w", err)
	}
	return &info, nil
}

// GetRiderSpec возвращает райдер сервиса; отсутствие райдера - (nil, nil).
func (c *HTTPCatalogClient) GetRiderSpec(ctx context.Context, serviceID int64) (*engine.RiderSpec, error) {
	log := c.logger.With(zap.Int64("serviceID", serviceID))
	log.Debug("Requesting rider spec from catalog service")

	url := fmt.Sprintf("%s/internal/services/%d/rider", c.baseURL, serviceID)
	var spec engine.RiderSpec
	status, err := doJSON(ctx, c.httpClient, http.MethodGet, url, c.interServiceToken, nil, &spec)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, nil
		}
		log.Error("Failed to fetch rider spec", zap.Error(err))
		return nil, fmt.Errorf("catalog service request failed: %w", err)
	}
	return &spec, nil
}
