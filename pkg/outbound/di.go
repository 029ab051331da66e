package outbound

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"
)

// DIParams holds dependencies needed to create a Client via DI.
type DIParams struct {
	dig.In

	Logger *zap.Logger
	Config *Config `optional:"true"`
}

// ProvideClient creates a Client for dependency injection.
// Use this when integrating outbound into an app that uses uber-go/dig.
//
// Example:
//
//	container := dig.New()
//	container.Provide(outbound.ProvideClient)
//	container.Invoke(func(c *outbound.Client) {
//	    c.Start(ctx)
//	})
func ProvideClient(params DIParams) (*Client, error) {
	cfg := params.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// Use the provided logger
	cfg.Logger = params.Logger

	return New(cfg)
}

// RegisterWithContainer registers the Client with a dig container.
func RegisterWithContainer(container *dig.Container) error {
	return container.Provide(ProvideClient)
}

// StartParams holds dependencies for starting the Client via DI.
type StartParams struct {
	dig.In

	Client  *Client
	Context context.Context `optional:"true"`
}

// StartClient is a lifecycle hook that starts the Client when invoked via DI.
//
// Example:
//
//	container.Invoke(outbound.StartClient)
func StartClient(params StartParams) error {
	ctx := params.Context
	if ctx == nil {
		ctx = context.Background()
	}

	return params.Client.Start(ctx)
}
