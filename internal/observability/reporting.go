package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/rollbar/rollbar-go"
)

// ReportingConfig configures the external error reporter.
type ReportingConfig struct {
	Token       string
	Environment string
	CodeVersion string
}

var reportingEnabled bool

// InitReporting enables Rollbar when a token is configured.
func InitReporting(cfg ReportingConfig) {
	if cfg.Token == "" {
		reportingEnabled = false
		rollbar.SetEnabled(false)
		return
	}
	host, _ := os.Hostname()
	rollbar.SetToken(cfg.Token)
	rollbar.SetEnvironment(cfg.Environment)
	rollbar.SetCodeVersion(cfg.CodeVersion)
	rollbar.SetServerHost(host)
	rollbar.SetEnabled(true)
	reportingEnabled = true
}

// ReportError forwards an unexpected error to Rollbar and logs it.
func ReportError(ctx context.Context, logger *slog.Logger, err error, extras map[string]interface{}) {
	if err == nil {
		return
	}
	attrs := []any{slog.String("error", err.Error())}
	for k, v := range extras {
		attrs = append(attrs, slog.Any(k, v))
	}
	logger.ErrorContext(ctx, "unexpected error", attrs...)

	if reportingEnabled {
		rollbar.Error(err, extras)
	}
}

// FlushReporting waits for queued reports to be sent.
func FlushReporting() {
	if reportingEnabled {
		rollbar.Wait()
	}
}
