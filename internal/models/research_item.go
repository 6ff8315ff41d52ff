package models

import (
	"encoding/json"
	"time"
)

// Kind is the lifecycle state of a research item
type Kind string

const (
	KindDraft    Kind = "draft"
	KindVerified Kind = "verified"
	KindExternal Kind = "external"
)

// ResearchItemType is one row of the item type catalog
type ResearchItemType struct {
	ID         int64  `json:"id"`
	Key        string `json:"key"`
	Label      string `json:"label"`
	ShortLabel string `json:"shortLabel"`
	Type       string `json:"type"`
}

// ResearchItem is a unit of scholarly output
type ResearchItem struct {
	ID                      int64           `json:"id"`
	ResearchItemTypeID      int64           `json:"researchItemTypeId"`
	Kind                    Kind            `json:"kind"`
	CreatorResearchEntityID *int64          `json:"creatorResearchEntityId,omitempty"`
	Data                    json.RawMessage `json:"data"`
	CreatedAt               time.Time       `json:"createdAt"`
	UpdatedAt               time.Time       `json:"updatedAt"`

	Authors []*Author `json:"authors,omitempty"`
}

// IsDraftOf reports whether the item is a draft created by the given entity
func (i *ResearchItem) IsDraftOf(entityID int64) bool {
	return i.Kind == KindDraft && i.CreatorResearchEntityID != nil && *i.CreatorResearchEntityID == entityID
}

// Author is an ordered authorship slot of a research item
type Author struct {
	ID                    int64   `json:"id"`
	ResearchItemID        int64   `json:"researchItemId"`
	Position              int     `json:"position"`
	Name                  string  `json:"name"`
	VerifiedID            *int64  `json:"verifiedId,omitempty"`
	IsCorrespondingAuthor bool    `json:"isCorrespondingAuthor"`
	IsFirstCoauthor       bool    `json:"isFirstCoauthor"`
	IsLastCoauthor        bool    `json:"isLastCoauthor"`
	IsOralPresentation    bool    `json:"isOralPresentation"`
	Affiliations          []int64 `json:"affiliations"`
}

// AuthorInput is an author slot as submitted by clients and importers
type AuthorInput struct {
	Position              int     `json:"position"`
	Name                  string  `json:"name"`
	IsCorrespondingAuthor bool    `json:"isCorrespondingAuthor"`
	IsFirstCoauthor       bool    `json:"isFirstCoauthor"`
	IsLastCoauthor        bool    `json:"isLastCoauthor"`
	IsOralPresentation    bool    `json:"isOralPresentation"`
	Affiliations          []int64 `json:"affiliations"`
}

// DraftRequest is the body of the draft create/update endpoints
type DraftRequest struct {
	ID                 int64           `json:"id"`
	ResearchItemTypeID int64           `json:"researchItemTypeId"`
	Data               json.RawMessage `json:"data"`
	Authors            []AuthorInput   `json:"authors"`
}

// ExternalRequest is the importer contract for externally sourced items
type ExternalRequest struct {
	OriginIdentifier   string          `json:"originIdentifier" binding:"required"`
	ResearchItemTypeID int64           `json:"researchItemTypeId" binding:"required"`
	Data               json.RawMessage `json:"data"`
	Authors            []AuthorInput   `json:"authors"`
}

// DraftResponse is returned after a draft is saved
type DraftResponse struct {
	ResearchItem *ResearchItem   `json:"researchItem"`
	Authors      []*Author       `json:"authors"`
	Duplicates   []DuplicatePair `json:"duplicates"`
}
