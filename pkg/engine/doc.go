// Package engine turns incoming requests into mocked responses.
//
// The pipeline for one request is:
//
//	match -> mode (static | script | jitter) -> latency -> serialize -> log
//
// Composer implements the pipeline without any HTTP plumbing so the same
// code serves real traffic and simulations. Handler adapts it to
// net/http for the mocked traffic listener.
//
// Exactly one response mode is evaluated per request. A SCRIPTED
// definition never consults its jitter block and a JITTERED definition
// never runs its script, whatever stale configuration they carry.
package engine
