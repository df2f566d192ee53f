// Package observability lets the binary observe the loader without the
// library packages depending on a UI or metrics backend.
//
// Library code reports events through the accessors:
//
//	observability.Fetch().OnFetchStart(ctx, "org.joml:joml:1.10.5")
//	observability.Fetch().OnProgress(ctx, "org.joml:joml:1.10.5", done, total)
//
// The binary installs its implementations once at startup:
//
//	observability.Register(observability.Hooks{Fetch: &progressBar{}})
//
// Unset hooks stay no-ops.
package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// ScanHooks receives events from source scanning.
type ScanHooks interface {
	OnScanStart(ctx context.Context, candidates int)
	// OnScanComplete reports how many manifests and embedded repositories were found.
	OnScanComplete(ctx context.Context, manifests, repositories int, duration time.Duration)
}

// FetchHooks receives events from artifact fetching.
type FetchHooks interface {
	OnFetchStart(ctx context.Context, artifact string)
	// OnProgress reports downloaded bytes. total is -1 when unknown.
	OnProgress(ctx context.Context, artifact string, done, total int64)
	// OnFetchComplete fires once per request. source is one of "loaded",
	// "local", "disk" or "remote", and empty on error.
	OnFetchComplete(ctx context.Context, artifact, source string, duration time.Duration, err error)
}

// CacheHooks receives scan cache events. keyType names the cache.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// HTTPHooks receives repository request events.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	// OnError fires for transport failures, where no status code exists.
	OnError(ctx context.Context, method, host, path string, err error)
}

type NoopScanHooks struct{}

func (NoopScanHooks) OnScanStart(context.Context, int)                        {}
func (NoopScanHooks) OnScanComplete(context.Context, int, int, time.Duration) {}

type NoopFetchHooks struct{}

func (NoopFetchHooks) OnFetchStart(context.Context, string)                                  {}
func (NoopFetchHooks) OnProgress(context.Context, string, int64, int64)                      {}
func (NoopFetchHooks) OnFetchComplete(context.Context, string, string, time.Duration, error) {}

type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// Hooks is the set of installed implementations. Nil fields are no-ops.
type Hooks struct {
	Scan  ScanHooks
	Fetch FetchHooks
	Cache CacheHooks
	HTTP  HTTPHooks
}

func (h Hooks) withDefaults() Hooks {
	if h.Scan == nil {
		h.Scan = NoopScanHooks{}
	}
	if h.Fetch == nil {
		h.Fetch = NoopFetchHooks{}
	}
	if h.Cache == nil {
		h.Cache = NoopCacheHooks{}
	}
	if h.HTTP == nil {
		h.HTTP = NoopHTTPHooks{}
	}
	return h
}

var installed atomic.Pointer[Hooks]

func init() {
	Reset()
}

// Register replaces the installed hooks and returns the previous set.
func Register(h Hooks) Hooks {
	h = h.withDefaults()
	if old := installed.Swap(&h); old != nil {
		return *old
	}
	return Hooks{}.withDefaults()
}

// Reset installs no-op hooks everywhere.
func Reset() {
	Register(Hooks{})
}

func current() *Hooks { return installed.Load() }

func Scan() ScanHooks   { return current().Scan }
func Fetch() FetchHooks { return current().Fetch }
func Cache() CacheHooks { return current().Cache }
func HTTP() HTTPHooks   { return current().HTTP }
