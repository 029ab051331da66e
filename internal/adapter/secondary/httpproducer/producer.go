package httpproducer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ruudy-sib/outbound/internal/config"
	"github.com/ruudy-sib/outbound/internal/domain"
	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/port/secondary"
)

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 512

// Producer implements secondary.Transport by POSTing the JSON wire message
// to an HTTP broker endpoint.
type Producer struct {
	endpoint string
	clientID string
	client   *http.Client
	logger   *zap.Logger
}

// NewProducer creates an HTTP transport posting to cfg.HTTPBrokerURL.
func NewProducer(cfg *config.Config, clientID string, logger *zap.Logger) secondary.Transport {
	client := &http.Client{
		Timeout: cfg.SendTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	logger.Info("http producer initialized",
		zap.String("endpoint", cfg.HTTPBrokerURL),
		zap.Duration("timeout", client.Timeout),
	)

	return &Producer{
		endpoint: strings.TrimSpace(cfg.HTTPBrokerURL),
		clientID: clientID,
		client:   client,
		logger:   logger.Named("http-producer"),
	}
}

// Name identifies the transport.
func (p *Producer) Name() string {
	return "http"
}

// Connect validates the endpoint. Requests open connections on demand.
func (p *Producer) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	u, err := url.Parse(p.endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: invalid http broker url %q", domain.ErrFatalTransport, p.endpoint)
	}
	return nil
}

// Send posts the wire message. A 2xx response means the broker took it.
func (p *Producer) Send(ctx context.Context, msg *entity.OutboundMessage) error {
	body, err := json.Marshal(msg.ToWire())
	if err != nil {
		return fmt.Errorf("%w: encoding message %s: %v", domain.ErrTransportRejected, msg.MessageID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: creating http request: %v", domain.ErrFatalTransport, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", msg.MessageID)
	req.Header.Set("User-Agent", "outbound/"+p.clientID)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: executing http request to %q: %v", domain.ErrConnectionLost, p.endpoint, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}

	p.logger.Debug("message produced via http",
		zap.String("message_id", msg.MessageID),
		zap.String("to", msg.Destination),
		zap.Int("status_code", resp.StatusCode),
	)

	return nil
}

// statusError classifies a non-2xx response.
func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := fmt.Sprintf("http request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrFatalTransport, detail)
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrConnectionLost, detail)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: %s", domain.ErrTransportRejected, detail)
	default:
		return fmt.Errorf("%w: %s", domain.ErrConnectionLost, detail)
	}
}

// Closed returns nil: there is no long-lived connection to lose.
func (p *Producer) Closed() <-chan error {
	return nil
}

// Close releases idle connections.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.CloseIdleConnections()
	}
	return nil
}
