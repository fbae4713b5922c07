package clients

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"booking-server/internal/engine"
	"booking-server/internal/models"

	"go.uber.org/zap"
)

var _ engine.BookingAPIClient = (*HTTPBookingAPIClient)(nil)

// HTTPBookingAPIClient ходит в booking-api: черновики, сабмит заявки и
// системные сообщения в чат заявки.
type HTTPBookingAPIClient struct {
	baseURL           string
	httpClient        *http.Client
	interServiceToken string
	logger            *zap.Logger
}

func NewHTTPBookingAPIClient(baseURL, interServiceToken string, timeout time.Duration, logger *zap.Logger) *HTTPBookingAPIClient {
	return &HTTPBookingAPIClient{
		baseURL:           strings.TrimSuffix(baseURL, "/"),
		httpClient:        newHTTPClient(timeout),
		interServiceToken: interServiceToken,
		logger:            logger.Named("HTTPBookingAPIClient"),
	}
}

// CreateDraft создаёт черновик заявки и возвращает его requestId.
func (c *HTTPBookingAPIClient) CreateDraft(ctx context.Context, payload models.BookingPayload) (string, error) {
	log := c.logger.With(zap.Int64("artistID", payload.ArtistID), zap.Int64("serviceID", payload.ServiceID))
	log.Debug("Creating booking draft")

	url := c.baseURL + "/internal/booking-requests"
	var resp struct {
		RequestID string `json:"request_id"`
	}
	if _, err := doJSON(ctx, c.httpClient, http.MethodPost, url, c.interServiceToken, payload, &resp); err != nil {
		log.Error("Failed to create booking draft", zap.Error(err))
		return "", fmt.Errorf("booking api request failed: %w", err)
	}
	if resp.RequestID == "" {
		return "", fmt.Errorf("booking api returned empty request id")
	}
	return resp.RequestID, nil
}

// UpdateDraft перезаписывает существующий черновик.
func (c *HTTPBookingAPIClient) UpdateDraft(ctx context.Context, requestID string, payload models.BookingPayload) error {
	log := c.logger.With(zap.String("requestID", requestID))
	log.Debug("Updating booking draft")

	url := fmt.Sprintf("%s/internal/booking-requests/%s", c.baseURL, requestID)
	status, err := doJSON(ctx, c.httpClient, http.MethodPut, url, c.interServiceToken, payload, nil)
	if err != nil {
		if status == http.StatusNotFound {
			return fmt.Errorf("%w: booking request %s", models.ErrNotFound, requestID)
		}
		log.Error("Failed to update booking draft", zap.Error(err))
		return fmt.Errorf("booking api request failed: %w", err)
	}
	return nil
}

// Submit переводит заявку в pending_quote.
func (c *HTTPBookingAPIClient) Submit(ctx context.Context, requestID string, payload models.BookingPayload) error {
	log := c.logger.With(zap.String("requestID", requestID))
	log.Debug("Submitting booking request")

	url := fmt.Sprintf("%s/internal/booking-requests/%s/submit", c.baseURL, requestID)
	status, err := doJSON(ctx, c.httpClient, http.MethodPost, url, c.interServiceToken, payload, nil)
	if err != nil {
		if status == http.StatusNotFound {
			return fmt.Errorf("%w: booking request %s", models.ErrNotFound, requestID)
		}
		log.Error("Failed to submit booking request", zap.Error(err))
		return fmt.Errorf("booking api request failed: %w", err)
	}
	return nil
}

// PostSystemMessage постит сопроводительное сообщение в чат заявки.
func (c *HTTPBookingAPIClient) PostSystemMessage(ctx context.Context, requestID, content string) error {
	log := c.logger.With(zap.String("requestID", requestID))
	log.Debug("Posting system message to booking request")

	requestBody := struct {
		Content string `json:"content"`
		Type    string `json:"type"`
	}{Content: content, Type: "system"}

	url := fmt.Sprintf("%s/internal/booking-requests/%s/messages", c.baseURL, requestID)
	if _, err := doJSON(ctx, c.httpClient, http.MethodPost, url, c.interServiceToken, requestBody, nil); err != nil {
		log.Warn("Failed to post system message", zap.Error(err))
		return fmt.Errorf("booking api request failed: %w", err)
	}
	return nil
}
