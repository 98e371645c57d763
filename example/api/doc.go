// Package api exposes the circulation store over HTTP. It is the example
// presentation-layer collaborator: every route is a thin translation between
// JSON and one store operation, with the store's error kinds mapped to
// status codes. No circulation rule lives here.
package api
