package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Konsultn-Engineering/sqlflow"
	"github.com/Konsultn-Engineering/sqlflow/connector"
	"github.com/Konsultn-Engineering/sqlflow/metrics"
)

func newRootCommand() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:          "sqlflow",
		Short:        "Run SQL statements with :named and ? parameters",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "YAML connection config file")
	flags.String("provider", "sqlite", "database provider ("+strings.Join(connector.Providers(), ", ")+")")
	flags.String("host", "", "database host")
	flags.Int("port", 0, "database port")
	flags.String("database", "", "database name, or file for sqlite")
	flags.String("user", "", "database user")
	flags.String("password", "", "database password")
	flags.String("sslmode", "", "TLS mode")
	flags.Duration("timeout", 0, "statement timeout")
	flags.String("log-format", "text", "log format (text, json)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("metrics-file", "", "write Prometheus metrics to this file on exit")
	_ = v.BindPFlags(flags)

	v.SetEnvPrefix("SQLFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.AddCommand(
		newSelectCommand(v),
		newInsertCommand(v),
		newExecCommand(v),
	)
	return root
}

// connectionConfig merges the config file with flags and SQLFLOW_*
// environment variables. Explicit flags and variables win over the file.
func connectionConfig(v *viper.Viper) (connector.Config, error) {
	var cfg connector.Config
	if path := v.GetString("config"); path != "" {
		loaded, err := connector.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	str := func(key string, dst *string) {
		if s := v.GetString(key); s != "" && (v.IsSet(key) || *dst == "") {
			*dst = s
		}
	}
	str("provider", &cfg.Provider)
	str("host", &cfg.Host)
	str("database", &cfg.Database)
	str("user", &cfg.Username)
	str("password", &cfg.Password)
	str("sslmode", &cfg.SSLMode)
	if v.IsSet("port") {
		cfg.Port = v.GetInt("port")
	}
	if v.IsSet("timeout") {
		cfg.QueryTimeout = v.GetDuration("timeout")
	}
	return cfg, nil
}

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// session is one connected source plus what has to happen when the command
// ends.
type session struct {
	src         *sqlflow.Source
	registry    *prometheus.Registry
	metricsFile string
	timeout     time.Duration
}

func openSession(cmd *cobra.Command, v *viper.Viper) (*session, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), v.GetString("log-format"), v.GetString("log-level"))
	if err != nil {
		return nil, err
	}
	cfg, err := connectionConfig(v)
	if err != nil {
		return nil, err
	}
	logger.Debug("connecting", slog.Any("config", cfg.Redacted()))

	s := &session{metricsFile: v.GetString("metrics-file"), timeout: cfg.QueryTimeout}
	opts := []sqlflow.Option{sqlflow.WithLogger(logger)}
	if s.metricsFile != "" {
		s.registry = prometheus.NewRegistry()
		opts = append(opts, sqlflow.WithObserver(metrics.New(s.registry)))
	}

	s.src, err = sqlflow.Open(cmd.Context(), cfg, opts...)
	if err != nil {
		return nil, err
	}
	if s.registry != nil {
		metrics.RegisterPool(s.registry, s.src.Connection())
	}
	return s, nil
}

func (s *session) context(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(parent, s.timeout)
	}
	return context.WithCancel(parent)
}

func (s *session) Close() error {
	var werr error
	if s.registry != nil {
		werr = prometheus.WriteToTextfile(s.metricsFile, s.registry)
	}
	if err := s.src.Close(); err != nil {
		return err
	}
	return werr
}
