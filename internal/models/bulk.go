package models

// BulkSuccesses lists the items a bulk action processed
type BulkSuccesses struct {
	Count int     `json:"count"`
	IDs   []int64 `json:"ids"`
}

// BulkResult is the outcome of a bulk action; Failures counts items per error kind
type BulkResult struct {
	Successes BulkSuccesses  `json:"successes"`
	Failures  map[string]int `json:"failures"`
}

// NewBulkResult returns an empty result ready for tallying
func NewBulkResult() *BulkResult {
	return &BulkResult{
		Successes: BulkSuccesses{IDs: []int64{}},
		Failures:  make(map[string]int),
	}
}

// AddSuccess records a processed item
func (r *BulkResult) AddSuccess(id int64) {
	r.Successes.Count++
	r.Successes.IDs = append(r.Successes.IDs, id)
}

// AddFailure records a failed item under kind
func (r *BulkResult) AddFailure(kind string) {
	r.Failures[kind]++
}

// BulkRequest selects the items of a bulk action, either by id or through a
// stored selection (all verified/suggested/draft items of SearchResearchEntityID)
type BulkRequest struct {
	ResearchEntityIDs      []int64 `json:"researchEntitiesIds"`
	ResearchEntityID       int64   `json:"researchEntityId"`
	ItemIDs                []int64 `json:"itemsIds"`
	SelectAll              bool    `json:"selectAll"`
	ResearchOutputKind     string  `json:"researchOutputKind"`
	SearchResearchEntityID int64   `json:"searchResearchEntityId"`
}

// BulkVerifyRequest adds the per-person verification parameters and
// follow-up suggestions applied only to verified items
type BulkVerifyRequest struct {
	BulkRequest
	AuthorPosition        *int               `json:"authorPosition,omitempty"`
	Affiliations          []int64            `json:"affiliations,omitempty"`
	IsCorrespondingAuthor *bool              `json:"isCorrespondingAuthor,omitempty"`
	IsFirstCoauthor       *bool              `json:"isFirstCoauthor,omitempty"`
	IsLastCoauthor        *bool              `json:"isLastCoauthor,omitempty"`
	IsOralPresentation    *bool              `json:"isOralPresentation,omitempty"`
	Suggestions           []SuggestionTarget `json:"suggestions,omitempty"`
}

// BulkVerifyResponse maps each entity to its bulk result
type BulkVerifyResponse struct {
	Results map[int64]*BulkResult `json:"results"`
	Suggest []SuggestionResult    `json:"suggest"`
}

// SuggestRequest proposes items to entities, listed explicitly or selected
// from SearchResearchEntityID's items for every entity in ResearchEntityIDs
type SuggestRequest struct {
	BulkRequest
	Suggestions []SuggestionTarget `json:"suggestions,omitempty"`
}
