// Package poller implements the fetch loop owned by each shared resource
// poller: scheduling, failure backoff, budget gating and last-known-good
// snapshot retention.
//
// One Poller runs one goroutine. The loop never issues a fetch before the
// previous one resolves, so fetches for a single resource key are
// structurally serialized. Distinct keys run fully independent loops.
package poller
