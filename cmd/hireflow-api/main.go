package main

import (
	"context"
	"os"
	"time"

	"github.com/dukex/hireflow/pkg/cmd"
	"github.com/dukex/hireflow/pkg/log"
	"github.com/dukex/hireflow/pkg/otelhelper"
	"github.com/dukex/hireflow/pkg/services"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort          = 9092
	defaultRemoteTimeout = 10 * time.Second
)

func main() {
	cmd := &cli.Command{
		Name:                  "hireflow-api",
		Usage:                 "Serve position boards, lifecycle actions and forms",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "remote-url",
				Usage:    "Base URL of the recruiting API",
				Required: true,
				Sources:  cli.EnvVars("REMOTE_API_URL"),
			},
			&cli.StringFlag{
				Name:    "remote-token",
				Usage:   "Bearer token sent to the recruiting API",
				Sources: cli.EnvVars("REMOTE_API_TOKEN"),
			},
			&cli.DurationFlag{
				Name:    "remote-timeout",
				Usage:   "Per-request timeout for the recruiting API",
				Value:   defaultRemoteTimeout,
				Sources: cli.EnvVars("REMOTE_API_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "cache-url",
				Usage:   "Cache for workflow and stage payloads (memory:// or redis://host:port/db)",
				Value:   "memory://",
				Sources: cli.EnvVars("CACHE_URL"),
			},
			&cli.DurationFlag{
				Name:    "cache-ttl",
				Usage:   "How long cached workflow payloads stay valid",
				Value:   services.DefaultCacheTTL,
				Sources: cli.EnvVars("CACHE_TTL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Value:   "localhost:9092",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing Hireflow API")

			if command.Bool("tracing") {
				tracerProvider, err := otelhelper.NewTracerProvider(ctx, "hireflow-api")
				if err != nil {
					logger.ErrorContext(ctx, "Failed to initialize tracer", "error", err)
				} else {
					defer func() {
						if err := tracerProvider.Shutdown(ctx); err != nil {
							logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
						}
					}()
				}
			}

			remote := cmd.NewRemoteClient(
				logger,
				command.String("remote-url"),
				command.String("remote-token"),
				command.Duration("remote-timeout"),
			)

			store := cmd.NewCache(ctx, logger, command.String("cache-url"))
			defer func() {
				if err := store.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close cache", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			api := NewAPI(
				logger,
				remote,
				store,
				command.Duration("cache-ttl"),
				eventBus,
			)
			defer api.Close()

			err := api.Start(int(command.Int("port")))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
