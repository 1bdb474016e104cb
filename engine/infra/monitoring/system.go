package monitoring

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/repcoach/repcoach/engine/infra/monitoring/metrics"
	"github.com/repcoach/repcoach/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Set via ldflags:
// go build -ldflags "-X 'github.com/repcoach/repcoach/engine/infra/monitoring.Version=v1.0.0'"
var (
	Version    = "unknown"
	CommitHash = "unknown"
)

var (
	buildInfo          metric.Float64Gauge
	uptimeGauge        metric.Float64ObservableGauge
	uptimeRegistration metric.Registration
	startTime          time.Time
	systemInitOnce     sync.Once
	systemResetMutex   sync.Mutex
)

func initSystemMetrics(ctx context.Context, meter metric.Meter) {
	log := logger.FromContext(ctx)
	systemInitOnce.Do(func() {
		var err error
		buildInfo, err = meter.Float64Gauge(
			metrics.MetricName("build_info"),
			metric.WithDescription("Build information (value=1)"),
		)
		if err != nil {
			log.Error("Failed to create build info gauge", "error", err)
		}
		uptimeGauge, err = meter.Float64ObservableGauge(
			metrics.MetricName("uptime_seconds"),
			metric.WithDescription("Service uptime in seconds"),
		)
		if err != nil {
			log.Error("Failed to create uptime gauge", "error", err)
			return
		}
		startTime = time.Now()
		uptimeRegistration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveFloat64(uptimeGauge, time.Since(startTime).Seconds())
			return nil
		}, uptimeGauge)
		if err != nil {
			log.Error("Failed to register uptime callback", "error", err)
		}
	})
}

// BuildInfo prefers ldflags values and falls back to the embedded module info.
func BuildInfo() (version, commit, goVersion string) {
	version = Version
	commit = CommitHash
	if info, ok := debug.ReadBuildInfo(); ok {
		if version == "unknown" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		if commit == "unknown" {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" {
					commit = setting.Value
					break
				}
			}
		}
	}
	return version, commit, runtime.Version()
}

func recordBuildInfo(ctx context.Context) {
	if buildInfo == nil {
		return
	}
	version, commit, goVersion := BuildInfo()
	buildInfo.Record(ctx, 1,
		metric.WithAttributes(
			attribute.String("version", version),
			attribute.String("commit_hash", commit),
			attribute.String("go_version", goVersion),
		),
	)
	logger.FromContext(ctx).Debug("System metrics initialized", "version", version, "commit", commit)
}

// InitSystemMetrics initializes system health metrics and records build info
func InitSystemMetrics(ctx context.Context, meter metric.Meter) {
	initSystemMetrics(ctx, meter)
	recordBuildInfo(ctx)
}

func resetSystemMetrics() {
	if uptimeRegistration != nil {
		_ = uptimeRegistration.Unregister()
		uptimeRegistration = nil
	}
	buildInfo = nil
	uptimeGauge = nil
	startTime = time.Time{}
	systemInitOnce = sync.Once{}
}

// ResetSystemMetricsForTesting resets the system metrics initialization state for testing
func ResetSystemMetricsForTesting() {
	systemResetMutex.Lock()
	defer systemResetMutex.Unlock()
	resetSystemMetrics()
}
