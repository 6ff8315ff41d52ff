package models

import "time"

// Verified records that a research entity claims a research item
type Verified struct {
	ID               int64     `json:"id"`
	ResearchItemID   int64     `json:"researchItemId"`
	ResearchEntityID int64     `json:"researchEntityId"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Duplicate is a directed edge scoped to one entity's viewpoint
type Duplicate struct {
	ID               int64     `json:"id"`
	ResearchItemID   int64     `json:"researchItemId"`
	DuplicateID      int64     `json:"duplicateId"`
	ResearchEntityID int64     `json:"researchEntityId"`
	IsDuplicate      bool      `json:"isDuplicate"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// DuplicatePair is one match produced by a duplicate calculation
type DuplicatePair struct {
	ResearchItemID   int64 `json:"research_item_id"`
	DuplicateID      int64 `json:"duplicate_id"`
	ResearchEntityID int64 `json:"research_entity_id"`
}

// SuggestionType tells where a suggestion came from
type SuggestionType string

const (
	SuggestionAlias      SuggestionType = "alias"
	SuggestionMembership SuggestionType = "membership"
	SuggestionExternal   SuggestionType = "external"
	SuggestionManual     SuggestionType = "manual"
	SuggestionOther      SuggestionType = "other"
)

// Valid reports whether t is a known suggestion type
func (t SuggestionType) Valid() bool {
	switch t {
	case SuggestionAlias, SuggestionMembership, SuggestionExternal, SuggestionManual, SuggestionOther:
		return true
	}
	return false
}

// Suggested is a candidate verification for an entity
type Suggested struct {
	ID               int64          `json:"id"`
	ResearchItemID   int64          `json:"researchItemId"`
	ResearchEntityID int64          `json:"researchEntityId"`
	Type             SuggestionType `json:"type"`
	Discarded        bool           `json:"discarded"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// SuggestionTarget pairs an item with the entity it is proposed to
type SuggestionTarget struct {
	ResearchItemID   int64 `json:"researchItemId"`
	ResearchEntityID int64 `json:"researchEntityId"`
}

// SuggestionResult is the per-item outcome of a manual suggestion batch
type SuggestionResult struct {
	ResearchItemID   int64  `json:"researchItemId"`
	ResearchEntityID int64  `json:"researchEntityId"`
	Success          bool   `json:"success"`
	Message          string `json:"message,omitempty"`
}

// VerifyRequest carries the parameters of a single verification.
// Pointer flags keep the author's previous value when omitted.
type VerifyRequest struct {
	ResearchItemID        int64   `json:"researchItemId"`
	ResearchItemTypeID    int64   `json:"researchItemTypeId,omitempty"`
	AuthorPosition        *int    `json:"authorPosition,omitempty"`
	Affiliations          []int64 `json:"affiliations,omitempty"`
	IsCorrespondingAuthor *bool   `json:"isCorrespondingAuthor,omitempty"`
	IsFirstCoauthor       *bool   `json:"isFirstCoauthor,omitempty"`
	IsLastCoauthor        *bool   `json:"isLastCoauthor,omitempty"`
	IsOralPresentation    *bool   `json:"isOralPresentation,omitempty"`
	SetDuplicatesFalse    bool    `json:"setDuplicatesFalse,omitempty"`
}

// ReplaceRequest unverifies ToReplaceID and verifies ResearchItemID
type ReplaceRequest struct {
	VerifyRequest
	ToReplaceID int64 `json:"toReplaceId"`
}

// CalculateRequest is the body of POST /research-items/:id/calculate
type CalculateRequest struct {
	ResearchEntityID   int64  `json:"researchEntityId" binding:"required"`
	ResearchItemTypeID int64  `json:"researchItemTypeId,omitempty"`
	CalculateOn        string `json:"calculateOn,omitempty"`
	CleanOldDuplicates bool   `json:"cleanOldDuplicates,omitempty"`
}
