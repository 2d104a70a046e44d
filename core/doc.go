// Package core contains the provisioning domain contracts, entities and
// orchestration logic. Webhook, transport and storage adapters depend on this
// package; core must not depend on them.
package core
