// Package sqlstore persists provisioning sessions and the installation ledger
// through bun. Session tokens are sealed by a core.SecretProvider before they
// reach the database.
package sqlstore
