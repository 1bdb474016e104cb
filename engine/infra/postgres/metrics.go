package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	monitoringmetrics "github.com/repcoach/repcoach/engine/infra/monitoring/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultPoolLabel  = "default"
	postgresMeterName = "repcoach.postgres"
)

var (
	postgresMetricsOnce        sync.Once
	postgresMetricsErr         error
	postgresConnectionsOpen    metric.Int64ObservableGauge
	postgresConnectionsInUse   metric.Int64ObservableGauge
	postgresConnectionsIdle    metric.Int64ObservableGauge
	postgresMaxConfiguredConns metric.Int64ObservableGauge
	postgresPools              sync.Map
)

// poolMetrics exposes one pool's statistics to the shared gauge callback.
type poolMetrics struct {
	label string
	pool  atomic.Pointer[pgxpool.Pool]
}

func configurePostgresMetrics(cfg *Config, poolCfg *pgxpool.Config) (*poolMetrics, error) {
	if cfg == nil || poolCfg == nil {
		return nil, nil
	}
	if err := ensurePostgresMetrics(); err != nil {
		return nil, fmt.Errorf("postgres: init metrics: %w", err)
	}
	return &poolMetrics{label: computePoolLabel(cfg)}, nil
}

func ensurePostgresMetrics() error {
	postgresMetricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter(postgresMeterName)
		if err := initPostgresGauges(meter); err != nil {
			postgresMetricsErr = err
			return
		}
		postgresMetricsErr = registerPostgresCallback(meter)
	})
	return postgresMetricsErr
}

func initPostgresGauges(meter metric.Meter) error {
	var err error
	postgresConnectionsOpen, err = meter.Int64ObservableGauge(
		monitoringmetrics.MetricNameWithSubsystem("postgres", "connections_open"),
		metric.WithDescription("Number of open Postgres connections"),
	)
	if err != nil {
		return err
	}
	postgresConnectionsInUse, err = meter.Int64ObservableGauge(
		monitoringmetrics.MetricNameWithSubsystem("postgres", "connections_in_use"),
		metric.WithDescription("Number of Postgres connections currently in use"),
	)
	if err != nil {
		return err
	}
	postgresConnectionsIdle, err = meter.Int64ObservableGauge(
		monitoringmetrics.MetricNameWithSubsystem("postgres", "connections_idle"),
		metric.WithDescription("Number of idle Postgres connections"),
	)
	if err != nil {
		return err
	}
	postgresMaxConfiguredConns, err = meter.Int64ObservableGauge(
		monitoringmetrics.MetricNameWithSubsystem("postgres", "max_open_connections"),
		metric.WithDescription("Configured Postgres connection pool size"),
	)
	return err
}

func registerPostgresCallback(meter metric.Meter) error {
	_, err := meter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			postgresPools.Range(func(_, value any) bool {
				pm, ok := value.(*poolMetrics)
				if !ok {
					return true
				}
				pool := pm.pool.Load()
				if pool == nil {
					return true
				}
				stats := pool.Stat()
				attrs := metric.WithAttributes(attribute.String("pool", pm.label))
				observer.ObserveInt64(postgresConnectionsOpen, int64(stats.TotalConns()), attrs)
				observer.ObserveInt64(postgresConnectionsInUse, int64(stats.AcquiredConns()), attrs)
				observer.ObserveInt64(postgresConnectionsIdle, int64(stats.IdleConns()), attrs)
				observer.ObserveInt64(postgresMaxConfiguredConns, int64(stats.MaxConns()), attrs)
				return true
			})
			return nil
		},
		postgresConnectionsOpen,
		postgresConnectionsInUse,
		postgresConnectionsIdle,
		postgresMaxConfiguredConns,
	)
	return err
}

func (p *poolMetrics) attach(pool *pgxpool.Pool) {
	if p == nil || pool == nil {
		return
	}
	p.pool.Store(pool)
	postgresPools.Store(p, p)
}

func (p *poolMetrics) unregister() {
	if p == nil {
		return
	}
	postgresPools.Delete(p)
	p.pool.Store(nil)
}

func computePoolLabel(cfg *Config) string {
	parts := make([]string, 0, 3)
	for _, c := range []string{cfg.Host, cfg.Port, cfg.DBName} {
		if s := sanitizeLabelComponent(c); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return defaultPoolLabel
	}
	return strings.Join(parts, "-")
}

func sanitizeLabelComponent(component string) string {
	lower := strings.ToLower(strings.TrimSpace(component))
	var b strings.Builder
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
