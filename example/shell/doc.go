// Package shell provides caller-side plumbing for applications built on the
// circulation store: retry logic for transient storage failures and the
// mapping from the store's error kinds to transport-level responses.
//
// The store itself never retries; per its error contract, retry policy
// belongs to the caller.
package shell
