package models

// SearchProjection is the denormalized row used for duplicate matching.
// Nullable columns are pointers; the string columns are never null.
type SearchProjection struct {
	ResearchItemID      int64   `json:"researchItemId"`
	ResearchItemTypeID  int64   `json:"researchItemTypeId"`
	OriginID            *string `json:"originId,omitempty"`
	DOI                 *string `json:"doi,omitempty"`
	TitleString         string  `json:"titleString"`
	TitleStringLength   int     `json:"titleStringLength"`
	AuthorsString       string  `json:"authorsString"`
	AuthorsStringLength int     `json:"authorsStringLength"`
	EventString         string  `json:"eventString"`
	EventStringLength   int     `json:"eventStringLength"`
	Year                *int    `json:"year,omitempty"`
	SubType             *string `json:"subType,omitempty"`
	ApplicationNumber   *string `json:"applicationNumber,omitempty"`
	FilingDate          *string `json:"filingDate,omitempty"`
	PatentNumber        *string `json:"patentNumber,omitempty"`
	IssueDate           *string `json:"issueDate,omitempty"`
}
