package httpproducer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ruudy-sib/outbound/internal/config"
	"github.com/ruudy-sib/outbound/internal/domain"
	"github.com/ruudy-sib/outbound/internal/domain/entity"
)

func newTestProducer(url string) *Producer {
	cfg := &config.Config{HTTPBrokerURL: url, SendTimeout: 2 * time.Second}
	return NewProducer(cfg, "frontend-go-1a2b", zap.NewNop()).(*Producer)
}

func testMessage() *entity.OutboundMessage {
	return &entity.OutboundMessage{
		Destination: "work-queue-requests",
		MessageID:   "frontend-go-1a2b/0",
		Payload:     []byte(`{"message_id":"frontend-go-1a2b/0","test":"data"}`),
	}
}

func TestProducer_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type: application/json, got %s", r.Header.Get("Content-Type"))
		}
		if got := r.Header.Get("Idempotency-Key"); got != "frontend-go-1a2b/0" {
			t.Errorf("expected Idempotency-Key frontend-go-1a2b/0, got %s", got)
		}

		raw, _ := io.ReadAll(r.Body)
		var wire entity.WireMessage
		if err := json.Unmarshal(raw, &wire); err != nil {
			t.Errorf("body is not a wire message: %v", err)
		}
		if wire.To != "work-queue-requests" || wire.MessageID != "frontend-go-1a2b/0" {
			t.Errorf("unexpected wire message %+v", wire)
		}
		if wire.Body != `{"message_id":"frontend-go-1a2b/0","test":"data"}` {
			t.Errorf("unexpected body %s", wire.Body)
		}

		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	producer := newTestProducer(server.URL)
	defer producer.Close()

	if err := producer.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	if err := producer.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProducer_Send_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrFatalTransport},
		{http.StatusForbidden, domain.ErrFatalTransport},
		{http.StatusBadRequest, domain.ErrTransportRejected},
		{http.StatusRequestEntityTooLarge, domain.ErrTransportRejected},
		{http.StatusTooManyRequests, domain.ErrConnectionLost},
		{http.StatusInternalServerError, domain.ErrConnectionLost},
		{http.StatusServiceUnavailable, domain.ErrConnectionLost},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			producer := newTestProducer(server.URL)
			defer producer.Close()

			err := producer.Send(context.Background(), testMessage())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestProducer_Send_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	producer := newTestProducer(url)
	defer producer.Close()

	err := producer.Send(context.Background(), testMessage())
	if !errors.Is(err, domain.ErrConnectionLost) {
		t.Fatalf("expected ErrConnectionLost, got %v", err)
	}
}

func TestProducer_Connect_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "rabbit:5672", "ftp://broker/x"} {
		producer := newTestProducer(raw)
		err := producer.Connect(context.Background())
		if !errors.Is(err, domain.ErrFatalTransport) {
			t.Fatalf("%q: expected ErrFatalTransport, got %v", raw, err)
		}
	}
}

func TestProducer_Close(t *testing.T) {
	producer := newTestProducer("http://broker")

	if producer.Closed() != nil {
		t.Fatal("expected nil closed channel")
	}
	if err := producer.Close(); err != nil {
		t.Fatalf("unexpected error closing producer: %v", err)
	}
}
