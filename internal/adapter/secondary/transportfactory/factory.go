package transportfactory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ruudy-sib/outbound/internal/adapter/secondary/amqptransport"
	"github.com/ruudy-sib/outbound/internal/adapter/secondary/httpproducer"
	"github.com/ruudy-sib/outbound/internal/adapter/secondary/kafkaproducer"
	"github.com/ruudy-sib/outbound/internal/config"
	"github.com/ruudy-sib/outbound/internal/domain"
	"github.com/ruudy-sib/outbound/internal/domain/valueobject"
	"github.com/ruudy-sib/outbound/internal/port/secondary"
)

// New creates the broker transport selected by cfg.BrokerTransport.
func New(cfg *config.Config, identity valueobject.ClientIdentity, logger *zap.Logger) (secondary.Transport, error) {
	logger = logger.Named("transport-factory")

	var transport secondary.Transport
	switch cfg.BrokerTransport {
	case config.TransportAMQP, "":
		transport = amqptransport.New(cfg, identity, logger)
	case config.TransportKafka:
		transport = kafkaproducer.NewProducer(cfg, identity.String(), logger)
	case config.TransportHTTP:
		transport = httpproducer.NewProducer(cfg, identity.String(), logger)
	default:
		return nil, fmt.Errorf("%w: unknown broker transport %q", domain.ErrConfiguration, cfg.BrokerTransport)
	}

	logger.Debug("transport selected", zap.String("transport", transport.Name()))
	return transport, nil
}
