// Package strix is a record-centric data mapper for Postgres. Models are
// registered as metadata descriptors, rows load into dirty-tracked Records,
// and queries are composed from an expression algebra that renders to
// deterministic SQL. Saving a record issues the minimal statement set: an
// INSERT for new records, an UPDATE of the changed columns for persisted
// ones, and nothing at all when nothing changed. Unsaved belongs-to
// dependencies attached to a record are persisted first, in one transaction
// with the dependent row.
package strix
