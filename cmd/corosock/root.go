package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/corosock/reactor"
	"github.com/wippyai/corosock/socket"
)

type rootOptions struct {
	logLevel    string
	logFormat   string
	metricsAddr string
}

// app carries what every subcommand needs once the root has set it up.
type app struct {
	opts    rootOptions
	log     *zap.Logger
	metrics *socket.Metrics
	server  *http.Server
}

// socketOptions returns the options every socket in this process is built with.
func (a *app) socketOptions() []socket.Option {
	opts := []socket.Option{socket.WithLogger(a.log)}
	if a.metrics != nil {
		opts = append(opts, socket.WithMetrics(a.metrics))
	}
	return opts
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "corosock",
		Short:         "Exercise non-blocking TCP and UDP sockets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&a.opts.logFormat, "log-format", "console", "Log encoding (console, json)")
	flags.StringVar(&a.opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	cmd.AddCommand(
		newServeCommand(a),
		newDialCommand(a),
		newUDPListenCommand(a),
		newUDPSendCommand(a),
		newChatCommand(a),
	)
	return cmd
}

func (a *app) setup() error {
	log, err := buildLogger(a.opts.logLevel, a.opts.logFormat)
	if err != nil {
		return err
	}
	a.log = log
	socket.SetLogger(log.Named("socket"))
	reactor.SetLogger(log.Named("reactor"))

	if a.opts.metricsAddr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	a.metrics = socket.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	a.server = &http.Server{
		Addr:              a.opts.metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.log.Info("metrics server listening", zap.String("addr", a.opts.metricsAddr))
		if err := a.server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return nil
}

func (a *app) teardown() error {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			a.log.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return nil
}

func buildLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
