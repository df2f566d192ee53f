package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/deploader/pkg/observability"
)

// logHooks traces scans, fetches and repository calls at debug level.
type logHooks struct {
	observability.NoopScanHooks
	observability.NoopHTTPHooks
	logger *log.Logger
}

func (h logHooks) OnScanComplete(_ context.Context, manifests, repositories int, d time.Duration) {
	h.logger.Debug("Scan complete", "manifests", manifests, "repositories", repositories, "took", d.Round(time.Millisecond))
}

func (h logHooks) OnFetchStart(context.Context, string) {}

func (h logHooks) OnProgress(context.Context, string, int64, int64) {}

func (h logHooks) OnFetchComplete(_ context.Context, artifact, source string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("Fetch failed", "artifact", artifact, "err", err)
		return
	}
	h.logger.Debug("Fetched", "artifact", artifact, "source", source, "took", d.Round(time.Millisecond))
}

func (h logHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("HTTP", "method", method, "url", host+path, "status", status, "took", d.Round(time.Millisecond))
}

func (h logHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("HTTP error", "method", method, "url", host+path, "err", err)
}

// traceHooks installs logHooks for the scan, fetch and HTTP events.
func traceHooks(logger *log.Logger) observability.Hooks {
	h := logHooks{logger: logger}
	return observability.Register(observability.Hooks{Scan: h, Fetch: h, HTTP: h})
}
