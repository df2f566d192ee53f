// Package httputil provides the HTTP plumbing used to talk to Maven
// repositories.
//
// # Overview
//
//   - [Client]: GET requests with short connect/read timeouts, a DNS cache
//     and a fixed User-Agent
//   - [Breakers]: per-host circuit breakers so a dead repository is skipped
//     instead of timing out on every artifact
//   - [Retry]: bounded retry with exponential backoff
//
// # Timeouts
//
// Each connection attempt uses [DefaultConnectTimeout]. Once connected,
// every individual read must make progress within [DefaultReadTimeout];
// there is no overall deadline, so large artifacts can still download on
// slow links.
//
// # Errors
//
// [Client.Get] maps 404/410 to [ErrNotFound] and 5xx, network failures and
// open breakers to [ErrUpstreamDown]. Only the latter count towards
// tripping a breaker. Callers treat both as "this repository does not
// have it" and move on.
package httputil
