// Package helper provides test utilities for circulation store testing.
//
// This package contains fixture builders, arrange-phase helpers that seed
// books, items, patrons, loans and fines through the store's own API, table
// cleanup helpers, and spies for the store's observability interfaces.
package helper
