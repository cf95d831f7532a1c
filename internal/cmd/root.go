// Package cmd implements the sendgate command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vnykmshr/sendgate/internal/config"
	"github.com/vnykmshr/sendgate/internal/logging"
	"github.com/vnykmshr/sendgate/pkg/delivery"
	"github.com/vnykmshr/sendgate/pkg/mail"
	"github.com/vnykmshr/sendgate/pkg/metrics"
	"github.com/vnykmshr/sendgate/pkg/ratelimit/window"
)

// Version information set by main package
var versionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// newTransport builds the transport used by every command. Tests replace it.
var newTransport = func(cfg mail.Config, registry *metrics.Registry) (mail.Transport, error) {
	return mail.NewSMTPTransportWithRegistry(cfg, registry)
}

type globalFlags struct {
	configFile string
	verbose    bool
}

// NewRootCmd returns the sendgate command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "sendgate",
		Short: "Rate-limited transactional email sender",
		Long: `sendgate sends templated email over SMTP while keeping under
per-second, per-hour and per-day sending ceilings, and records delivery
outcomes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       versionInfo.Version,
	}

	root.PersistentFlags().StringVar(&flags.configFile, "config", "smtp_config.json",
		"JSON config file (defaults are used when it does not exist)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false,
		"verbose output (sets log level to debug)")

	root.AddCommand(newSendCmd(flags))
	root.AddCommand(newBatchCmd(flags))
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// app holds the components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	gatherer *prometheus.Registry
	gate     window.Gate
	tracker  *delivery.Tracker
	sender   *mail.Sender
}

func newApp(flags *globalFlags) (*app, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if flags.verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded",
		zap.String("config", flags.configFile),
		zap.String("smtp_server", cfg.Mail.Host),
		zap.Int("per_second", cfg.Rate.PerSecond),
		zap.Int("per_hour", cfg.Rate.PerHour),
		zap.Int("per_day", cfg.Rate.PerDay))

	gatherer := prometheus.NewRegistry()
	registry := metrics.NewRegistry(gatherer)

	gateConfig := cfg.Rate.GateConfig()
	gateConfig.Logger = logger
	gate, err := window.NewWithRegistry(gateConfig, "smtp", registry)
	if err != nil {
		return nil, err
	}

	tracker := delivery.NewWithConfig(delivery.Config{Logger: logger, Metrics: registry})

	transport, err := newTransport(cfg.Mail, registry)
	if err != nil {
		return nil, err
	}

	sender, err := mail.NewSender(cfg.Mail, mail.Options{
		Gate:      gate,
		Transport: transport,
		Tracker:   tracker,
		Logger:    logger,
		Metrics:   registry,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		gatherer: gatherer,
		gate:     gate,
		tracker:  tracker,
		sender:   sender,
	}, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sendgate %s (commit %s, built %s)\n",
				versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
		},
	}
}
