// Package security seals provisioning tokens before they are persisted.
package security
