// Package deps turns parsed manifests into artifact requests and resolves
// conflicts between them.
//
// # Model
//
// An [Identity] names a loadable unit (group, artifact, optional classifier)
// independent of version. A [Request] asks for one identity within a
// min/max range, naming a preferred version. Every request is tagged with
// the [ResolutionScope] it was declared under, forming a [Task].
//
// # Flattening
//
// [Aggregator] walks manifest documents in order (library tree, then mod
// tree; always, dev, obf; common, client, server) and produces a
// deduplicated, deterministically ordered task list. Bundled artifacts are
// registered straight into the loaded registry instead of becoming tasks.
//
// # Resolution
//
// [Resolve] claims every backlog task whose scope applies to the running
// environment and keeps one winner per identity: the request with the
// strictly greatest preferred version, with ties going to the first one seen.
package deps
