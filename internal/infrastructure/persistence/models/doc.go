// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - base.go: shared column helpers (nullable text, calendar dates)
// - invoice.go: invoices and line_items
// - identity.go: users
package models
