package similarity

import (
	"github.com/research-output-api/internal/catalog"
	"github.com/research-output-api/internal/models"
)

var (
	TitleThresholds       = Thresholds{Length: 0.9, Similarity: 0.7}
	AuthorsThresholds     = Thresholds{Length: 0.9, Similarity: 0.6}
	EventThresholds       = Thresholds{Length: 0.6, Similarity: 0.6}
	PatentTitleThresholds = Thresholds{Length: 0.7, Similarity: 0.5}
)

// Rule decides whether a candidate projection duplicates a base projection.
// The set of rules is closed: one per matchable category.
type Rule interface {
	Match(base, candidate *models.SearchProjection) bool
	Category() catalog.Category
	rule()
}

// AccomplishmentKind is the accomplishment type a rule applies to
type AccomplishmentKind string

const (
	OrganizedEvent   AccomplishmentKind = "organized_event"
	AwardAchievement AccomplishmentKind = "award_achievement"
	Editorship       AccomplishmentKind = "editorship"
)

// PublicationRule matches on origin id, DOI, or similar title and authors
type PublicationRule struct{}

// AccomplishmentRule matches similar title and authors with the same year;
// organized events also need the same event type
type AccomplishmentRule struct {
	Kind AccomplishmentKind
}

// InvitedTalkRule matches similar title, authors and event with the same talk type and year
type InvitedTalkRule struct{}

// PatentRule matches on application or patent number, or similar title and
// authors with the same filing date
type PatentRule struct{}

// RuleFor returns the rule of a research item type. Projects and training
// modules have none, so they never produce duplicates.
func RuleFor(category, key string) (Rule, bool) {
	switch catalog.Category(category) {
	case catalog.Publication:
		return PublicationRule{}, true
	case catalog.InvitedTalk:
		return InvitedTalkRule{}, true
	case catalog.Patent:
		return PatentRule{}, true
	case catalog.Accomplishment:
		switch k := AccomplishmentKind(key); k {
		case OrganizedEvent, AwardAchievement, Editorship:
			return AccomplishmentRule{Kind: k}, true
		}
	}
	return nil, false
}

func (PublicationRule) Match(base, cand *models.SearchProjection) bool {
	if bothEqual(base.OriginID, cand.OriginID) || bothEqual(base.DOI, cand.DOI) {
		return true
	}
	return titlesSimilar(base, cand, TitleThresholds) && authorsSimilar(base, cand)
}

func (r AccomplishmentRule) Match(base, cand *models.SearchProjection) bool {
	if !titlesSimilar(base, cand, TitleThresholds) || !authorsSimilar(base, cand) {
		return false
	}
	if !notDistinct(base.Year, cand.Year) {
		return false
	}
	if r.Kind == OrganizedEvent {
		return notDistinct(base.SubType, cand.SubType)
	}
	return true
}

func (InvitedTalkRule) Match(base, cand *models.SearchProjection) bool {
	return titlesSimilar(base, cand, TitleThresholds) &&
		authorsSimilar(base, cand) &&
		bothEqual(base.SubType, cand.SubType) &&
		similarWithLengths(base.EventString, base.EventStringLength, cand.EventString, cand.EventStringLength, EventThresholds) &&
		notDistinct(base.Year, cand.Year)
}

func (PatentRule) Match(base, cand *models.SearchProjection) bool {
	if bothEqual(base.ApplicationNumber, cand.ApplicationNumber) || bothEqual(base.PatentNumber, cand.PatentNumber) {
		return true
	}
	return titlesSimilar(base, cand, PatentTitleThresholds) &&
		authorsSimilar(base, cand) &&
		notDistinct(base.FilingDate, cand.FilingDate)
}

func (PublicationRule) Category() catalog.Category    { return catalog.Publication }
func (AccomplishmentRule) Category() catalog.Category { return catalog.Accomplishment }
func (InvitedTalkRule) Category() catalog.Category    { return catalog.InvitedTalk }
func (PatentRule) Category() catalog.Category         { return catalog.Patent }

func (PublicationRule) rule()    {}
func (AccomplishmentRule) rule() {}
func (InvitedTalkRule) rule()    {}
func (PatentRule) rule()         {}

func titlesSimilar(a, b *models.SearchProjection, t Thresholds) bool {
	return similarWithLengths(a.TitleString, a.TitleStringLength, b.TitleString, b.TitleStringLength, t)
}

func authorsSimilar(a, b *models.SearchProjection) bool {
	return similarWithLengths(a.AuthorsString, a.AuthorsStringLength, b.AuthorsString, b.AuthorsStringLength, AuthorsThresholds)
}

// bothEqual is SQL "=": false as soon as either side is null.
func bothEqual[T comparable](a, b *T) bool {
	return a != nil && b != nil && *a == *b
}

// notDistinct is SQL "IS NOT DISTINCT FROM": null equals null.
func notDistinct[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
