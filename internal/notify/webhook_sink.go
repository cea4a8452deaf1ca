package notify

import (
	"context"
	"fmt"
	"time"

	"flexi-posture/common/config"
	"flexi-posture/internal/posture"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookSink POSTs alerts to a push gateway
type WebhookSink struct {
	httpClient *resty.Client
	url        string
	deviceID   string
	logger     *zap.Logger
}

// NewWebhookSink retries on transport errors and 5xx responses
func NewWebhookSink(cfg *config.WebhookConfig, deviceID string, logger *zap.Logger) *WebhookSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &WebhookSink{
		httpClient: client,
		url:        cfg.URL,
		deviceID:   deviceID,
		logger:     logger,
	}
}

func (s *WebhookSink) Notify(ctx context.Context, alert posture.Alert) error {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(alertMessage{DeviceID: s.deviceID, Alert: alert}).
		Post(s.url)
	if err != nil {
		return wrapErr("webhook", fmt.Errorf("failed to call push gateway: %w", err))
	}
	if resp.IsError() {
		s.logger.Error("Push gateway returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return wrapErr("webhook", fmt.Errorf("push gateway error: status %d", resp.StatusCode()))
	}

	s.logger.Debug("Alert pushed", zap.String("kind", alert.Kind), zap.Int("status_code", resp.StatusCode()))
	return nil
}
