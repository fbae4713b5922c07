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

var _ engine.SoundPricingClient = (*HTTPSoundPricingClient)(nil)

// HTTPSoundPricingClient ходит в sound-service поставщиков звука: сперва
// прайсбук, затем прямой расчёт.
type HTTPSoundPricingClient struct {
	baseURL           string
	httpClient        *http.Client
	interServiceToken string
	logger            *zap.Logger
}

func NewHTTPSoundPricingClient(baseURL, interServiceToken string, timeout time.Duration, logger *zap.Logger) *HTTPSoundPricingClient {
	return &HTTPSoundPricingClient{
		baseURL:           strings.TrimSuffix(baseURL, "/"),
		httpClient:        newHTTPClient(timeout),
		interServiceToken: interServiceToken,
		logger:            logger.Named("HTTPSoundPricingClient"),
	}
}

// PricebookEstimate достаёт оценку из прайсбука поставщика.
func (c *HTTPSoundPricingClient) PricebookEstimate(ctx context.Context, serviceID int64, payload engine.SoundEstimatePayload) (*engine.SoundEstimate, error) {
	return c.estimate(ctx, serviceID, "pricebook-estimate", payload)
}

// CalculateEstimate запускает прямой расчёт стоимости звука.
func (c *HTTPSoundPricingClient) CalculateEstimate(ctx context.Context, serviceID int64, payload engine.SoundEstimatePayload) (*engine.SoundEstimate, error) {
	return c.estimate(ctx, serviceID, "calculate-estimate", payload)
}

func (c *HTTPSoundPricingClient) estimate(ctx context.Context, serviceID int64, endpoint string, payload engine.SoundEstimatePayload) (*engine.SoundEstimate, error) {
	log := c.logger.With(zap.Int64("serviceID", serviceID), zap.String("endpoint", endpoint))
	log.Debug("Requesting sound estimate")

	url := fmt.Sprintf("%s/internal/sound-services/%d/%s", c.baseURL, serviceID, endpoint)
	var estimate engine.SoundEstimate
	status, err := doJSON(ctx, c.httpClient, http.MethodPost, url, c.interServiceToken, payload, &estimate)
	if err != nil {
		if status == http.StatusNotFound {
			// Нет прайсбука/калькулятора у этого поставщика.
			return nil, nil
		}
		log.Warn("Sound estimate request failed", zap.Error(err))
		return nil, fmt.Errorf("sound service request failed: %w", err)
	}
	return &estimate, nil
}
