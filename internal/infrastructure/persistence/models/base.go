package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoicer/backend/internal/domain/shared"
)

// dateLayout is the calendar date form used by the domain
const dateLayout = "2006-01-02"

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	e := shared.BaseEntity{ID: m.ID}
	if !m.CreatedAt.IsZero() {
		e.Stamp(m.CreatedAt, m.UpdatedAt)
	}
	return e
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity.
// Missing timestamps stay zero so GORM assigns them on create.
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	if e.CreatedAt != nil {
		m.CreatedAt = *e.CreatedAt
	}
	if e.UpdatedAt != nil {
		m.UpdatedAt = *e.UpdatedAt
	}
}

// nullable stores empty strings as NULL
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// deref reads NULL back as an empty string
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// toDate parses a YYYY-MM-DD string; empty or malformed input is stored as NULL
func toDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// fromDate formats a calendar date column back to YYYY-MM-DD
func fromDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
