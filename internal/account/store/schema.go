// Package store holds the shared DDL for the provisioning stores and the
// per-entity store implementations in its subpackages.
package store

import _ "embed"

// Schema is the full DDL for the provisioning tables. Statements are
// idempotent so it can be applied on every startup and in test setup.
//
//go:embed schema.sql
var Schema string
