package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is the base interface for all domain entities
type Entity interface {
	GetID() uuid.UUID
	IsPersisted() bool
}

// BaseEntity provides common fields for all entities.
// CreatedAt is nil until the store has accepted the entity.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// GetID returns the entity ID
func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

// IsPersisted reports whether the entity carries a store-assigned creation time
func (e *BaseEntity) IsPersisted() bool {
	return e.CreatedAt != nil
}

// Stamp sets both timestamps from the store's values
func (e *BaseEntity) Stamp(createdAt, updatedAt time.Time) {
	c, u := createdAt, updatedAt
	e.CreatedAt = &c
	e.UpdatedAt = &u
}

// NewBaseEntity creates a new, not yet persisted, base entity with generated ID
func NewBaseEntity() BaseEntity {
	return BaseEntity{ID: uuid.New()}
}
