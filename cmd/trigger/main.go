// Command trigger publishes test events onto a tenant channel and mints
// console tokens, for exercising eventix-edge without the ticketing backend.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/angelmondragon/eventix-edge/internal/notifications"
	"github.com/angelmondragon/eventix-edge/pkg/auth"
	"github.com/angelmondragon/eventix-edge/pkg/config"
	"github.com/angelmondragon/eventix-edge/pkg/logger"
	"github.com/angelmondragon/eventix-edge/pkg/realtime"
)

func main() {
	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "trigger", Level: logger.ParseLevel(os.Getenv(config.EnvPrefix + "_LOG_LEVEL"))})
	if err := newApp(logg, os.Stdout).Run(context.Background(), os.Args); err != nil {
		logg.Error(context.Background(), "trigger failed", err)
		os.Exit(1)
	}
}

func newApp(logg *logger.Logger, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "trigger",
		Usage: "Publish test events and mint console tokens",
		Commands: []*cli.Command{
			publishCmd(logg, out),
			tokenCmd(out),
		},
	}
}

func publishCmd(logg *logger.Logger, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "Publish one event onto a tenant channel",
		UsageText: `trigger publish --tenant 42 --event new-order --data '{"buyerName":"Rahim","eventName":"Dhaka Jazz"}'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "key",
				Usage:   "realtime application key",
				Sources: cli.EnvVars(config.EnvRealtimeKey),
			},
			&cli.StringFlag{
				Name:    "cluster",
				Usage:   "realtime cluster URL (redis://, nats://, memory://)",
				Sources: cli.EnvVars(config.EnvRealtimeCluster),
			},
			&cli.StringFlag{
				Name:     "tenant",
				Usage:    "tenant id whose channel receives the event",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "event",
				Usage: "event name (new-order, staff-invited, event-created)",
				Value: "new-order",
			},
			&cli.StringFlag{
				Name:  "data",
				Usage: "JSON payload",
				Value: "{}",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "publish timeout",
				Value: 10 * time.Second,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			payload := strings.TrimSpace(c.String("data"))
			if !json.Valid([]byte(payload)) {
				return fmt.Errorf("--data must be valid JSON")
			}
			channel := notifications.ChannelFor(c.String("tenant"))
			if channel == "" {
				return fmt.Errorf("--tenant is required")
			}

			ctx, cancel := context.WithTimeout(ctx, c.Duration("timeout"))
			defer cancel()

			conn, err := realtime.Connect(ctx, realtime.Credentials{Key: c.String("key"), Cluster: c.String("cluster")}, logg)
			if err != nil {
				return fmt.Errorf("connect realtime: %w", err)
			}
			defer func() { _ = conn.Disconnect() }()

			event := c.String("event")
			if err := conn.Publish(ctx, channel, event, json.RawMessage(payload)); err != nil {
				return fmt.Errorf("publish %s: %w", event, err)
			}
			_, err = fmt.Fprintf(out, "published %s to %s\n", event, channel)
			return err
		},
	}
}

func tokenCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint an access token for IDENTITY_MODE=jwt",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "secret",
				Usage:    "HS256 signing secret",
				Sources:  cli.EnvVars(config.EnvJWTSecret),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "issuer",
				Usage:   "token issuer",
				Sources: cli.EnvVars(config.EnvJWTIssuer),
				Value:   "eventix",
			},
			&cli.StringFlag{
				Name:     "user",
				Usage:    "user id",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "tenant",
				Usage: "tenant id (omit for a user without a tenant)",
			},
			&cli.IntFlag{
				Name:  "ttl-minutes",
				Usage: "token lifetime",
				Value: 60,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := config.JWTConfig{
				Secret:            c.String("secret"),
				Issuer:            c.String("issuer"),
				ExpirationMinutes: int(c.Int("ttl-minutes")),
			}
			token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
				UserID:   c.String("user"),
				TenantID: c.String("tenant"),
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, token)
			return err
		},
	}
}
