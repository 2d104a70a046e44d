// Package webhooks verifies and dispatches application lifecycle webhooks.
//
// Each delivery walks a trust state machine:
// unverified -> verified|untrusted -> routed.
// Only verified events reach the provisioning service. Dispatch never fails
// once the payload decoded; outcomes are carried on DispatchResult.
package webhooks
