// Package bunstore provides a PostgreSQL job store built on the Bun
// ORM. Schema management is handled by embedded SQL migrations applied
// through [Store.Migrate].
package bunstore
