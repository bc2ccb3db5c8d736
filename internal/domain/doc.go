// Package domain holds the data model shared across the schema mapper:
// sessions, reusable mapping templates, column mappings, formula rules and
// identity rules. Payloads arriving from the API in several historical
// shapes are normalized here, at the boundary, into the single canonical
// representation the transformation packages consume.
package domain
