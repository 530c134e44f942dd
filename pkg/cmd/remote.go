package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/hireflow/pkg/remote"
)

func NewRemoteClient(logger *slog.Logger, baseURL, token string, timeout time.Duration) *remote.Client {
	opts := []remote.Option{
		remote.WithTimeout(timeout),
		remote.WithLogger(logger),
	}

	if token != "" {
		opts = append(opts, remote.WithToken(token))
	}

	client, err := remote.New(baseURL, opts...)
	if err != nil {
		panic(fmt.Errorf("failed to create remote API client: %w", err))
	}

	return client
}
