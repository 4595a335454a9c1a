// Package state holds the gateway's in-memory stores: sessions, threads,
// agents, and telemetry. State is process-local and ephemeral; every store
// guards its maps with a coarse per-store lock and returns clones so callers
// cannot mutate internals.
package state
