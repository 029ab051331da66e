package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/domain/service"
)

type sendOptions struct {
	To      string
	Timeout time.Duration
}

func newSendCmd() *cobra.Command {
	var opts sendOptions

	cmd := &cobra.Command{
		Use:   "send [json-payload]",
		Short: "Publish one JSON object and wait until it is handed to the broker",
		Long: "Publish one JSON object. The payload is read from the argument, or from " +
			"stdin when the argument is omitted or \"-\". The message ID is printed on success.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readPayload(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			id, err := sendOne(ctx, opts.To, raw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.To, "to", "", "destination (defaults to DEFAULT_DESTINATION)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "how long to wait for delivery")

	return cmd
}

func readPayload(args []string, stdin io.Reader) (json.RawMessage, error) {
	var raw []byte
	if len(args) == 1 && args[0] != "-" {
		raw = []byte(args[0])
	} else {
		var err error
		if raw, err = io.ReadAll(stdin); err != nil {
			return nil, fmt.Errorf("reading payload from stdin: %w", err)
		}
	}

	raw = []byte(strings.TrimSpace(string(raw)))
	if !json.Valid(raw) {
		return nil, errors.New("payload is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

func sendOne(ctx context.Context, to string, payload json.RawMessage) (string, error) {
	c, err := buildContainer(ctx)
	if err != nil {
		return "", fmt.Errorf("building container: %w", err)
	}

	var (
		id     string
		runErr error
	)

	invokeErr := c.Invoke(func(
		producer *service.ProducerService,
		manager *service.ConnectionManager,
		mode entity.Mode,
		logger *zap.Logger,
		redisClient goredis.UniversalClient,
	) {
		defer func() {
			if redisClient != nil {
				_ = redisClient.Close()
			}
			_ = logger.Sync()
		}()

		if mode == entity.ModeLive {
			if err := manager.Start(ctx); err != nil {
				runErr = err
				return
			}
		}

		var receipt *entity.Receipt
		if to == "" {
			receipt = producer.SendMessage(ctx, payload)
		} else {
			receipt = producer.Send(ctx, to, payload)
		}

		delivered := make(chan error, 1)
		go func() { delivered <- receipt.Delivered(ctx) }()

		select {
		case err := <-delivered:
			runErr = err
		case fatalErr := <-manager.Fatal():
			runErr = fmt.Errorf("%w: %w", errFatal, fatalErr)
		}
		id = receipt.MessageID()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Error("connection manager shutdown error", zap.Error(err))
		}
	})
	if invokeErr != nil {
		return "", invokeErr
	}
	if runErr != nil {
		return "", runErr
	}
	return id, nil
}
