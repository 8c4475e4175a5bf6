package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sonirico/relink"
)

type flags struct {
	configPath string
	url        string
	headers    []string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "relinktail",
		Short: "Print every text frame received from a websocket endpoint",
		Long: "relinktail keeps a websocket connection open, reconnecting with exponential backoff " +
			"when it fails, and prints every text frame on stdout until interrupted.",
		Example:      "relinktail --url wss://stream.example.com/ws --header 'Authorization=Bearer xyz'",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	cmd.Flags().StringVar(&f.url, "url", "", "endpoint to connect to, overrides the config file")
	cmd.Flags().StringArrayVar(&f.headers, "header", nil, "extra handshake header as Key=Value, repeatable")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	return cmd
}

func loadConfig(f flags) (relink.Config, error) {
	cfg := relink.DefaultConfig()

	if f.configPath != "" {
		file, err := os.Open(f.configPath)
		if err != nil {
			return cfg, errors.Wrap(err, "cannot open config")
		}
		defer file.Close()

		if cfg, err = relink.DecodeConfig(file); err != nil {
			return cfg, err
		}
	}

	if f.url != "" {
		cfg.URL = f.url
	}

	for _, h := range f.headers {
		k, v, ok := strings.Cut(h, "=")
		if !ok {
			return cfg, errors.Errorf("malformed header %q, expected Key=Value", h)
		}
		if cfg.Header == nil {
			cfg.Header = make(map[string]string)
		}
		cfg.Header[k] = v
	}

	return cfg, cfg.Validate()
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, errors.Wrapf(err, "invalid log level %q", level)
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}

func run(ctx context.Context, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	zl, err := newLogger(f.logLevel)
	if err != nil {
		return err
	}
	logger := relink.NewZerologLogger(zl)

	transport := relink.NewWebsocketTransport(
		logger,
		websocket.DefaultDialer,
		relink.WithPingInterval(cfg.PingInterval),
		relink.WithCloseTimeout(cfg.CloseTimeout),
		relink.WithOpenConnectionParams(
			relink.NewOpenConnectionParamsRepo(logger, relink.StaticHeaderGetter(cfg.HTTPHeader())),
		),
	)

	manager, err := relink.NewManager(
		cfg.URL,
		transport,
		relink.WithBackoff(cfg.Backoff),
		relink.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	manager.OnState(relink.StateIdle, func(ev relink.StateEvent) {
		if ev.From != relink.StateIdle {
			zl.Warn().Msg("peer closed the connection gracefully, not reconnecting")
		}
	})

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream, err := manager.Start(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case text, ok := <-stream.C():
			if !ok {
				return nil
			}
			fmt.Println(text)
		case <-stream.Done():
			return nil
		}
	}
}
