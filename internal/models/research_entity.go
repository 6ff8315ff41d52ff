package models

import "time"

// EntityType distinguishes people from groups
type EntityType string

const (
	EntityPerson EntityType = "person"
	EntityGroup  EntityType = "group"
)

// ResearchEntity is a person or group that can claim research items
type ResearchEntity struct {
	ID        int64      `json:"id"`
	Type      EntityType `json:"type"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsPerson reports whether the entity claims items as an author
func (e *ResearchEntity) IsPerson() bool {
	return e.Type == EntityPerson
}

// Alias is an alternate author name of a person entity
type Alias struct {
	ID               int64     `json:"id"`
	ResearchEntityID int64     `json:"researchEntityId"`
	Value            string    `json:"value"`
	Main             bool      `json:"main"`
	CreatedAt        time.Time `json:"createdAt"`
}

// AliasRequest is the body of POST /research-entities/:id/aliases
type AliasRequest struct {
	Value string `json:"value" binding:"required"`
	Main  bool   `json:"main"`
}

// Institute is the target of an author affiliation
type Institute struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
