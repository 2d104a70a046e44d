// Package inbound adapts the webhook dispatcher to host HTTP pipelines.
//
// The middleware never writes a response itself: it always hands off to the
// next handler, except when the request body cannot be read or decoded, in
// which case the host error path runs.
package inbound
