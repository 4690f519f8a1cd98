// Package cache implements the generational bucket storage the agent writes
// response snapshots into. A Store is a set of named buckets (one per cache
// generation); a Bucket maps a request Key (method + origin-relative URL) to a
// Snapshot of status, headers and body. Three drivers share the contract: the
// disk-backed fs store (temp file + rename, per-entry locks), a SQLite store
// (one transaction per batch) and an in-memory store used by tests and
// ephemeral deployments. The agent package owns all caching policy; this
// package only stores and retrieves.
package cache
