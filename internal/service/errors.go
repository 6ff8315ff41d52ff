package service

import (
	"errors"
	"fmt"

	"github.com/research-output-api/internal/repository"
	"github.com/research-output-api/internal/validation"
)

// Kind classifies domain failures
type Kind string

const (
	KindValidation                    Kind = "ValidationError"
	KindNotFoundResearchItem          Kind = "NotFoundResearchItemError"
	KindNotFoundResearchEntity        Kind = "NotFoundResearchEntityError"
	KindNotFoundAlias                 Kind = "NotFoundAliasError"
	KindVerification                  Kind = "VerificationError"
	KindMissingAffiliation            Kind = "VerificationMissingAffiliationError"
	KindMissingAuthorPosition         Kind = "VerificationMissingAuthorPositionError"
	KindMissingAuthorInPosition       Kind = "VerificationMissingAuthorInPositionError"
	KindAlreadyVerified               Kind = "VerificationAlreadyVerifiedError"
	KindIsDuplicate                   Kind = "VerificationIsDuplicateError"
	KindNotDraftCreator               Kind = "VerificationNotDraftCreatorError"
	KindUnverificationAlreadyVerified Kind = "UnverificationAlreadyVerifiedError"

	// KindInternal labels failures that are not domain errors
	KindInternal Kind = "InternalError"
)

// Sentinels for errors.Is; they match any *Error of the same kind
var (
	ErrValidation                    = &Error{Kind: KindValidation}
	ErrNotFoundResearchItem          = &Error{Kind: KindNotFoundResearchItem}
	ErrNotFoundResearchEntity        = &Error{Kind: KindNotFoundResearchEntity}
	ErrNotFoundAlias                 = &Error{Kind: KindNotFoundAlias}
	ErrMissingAffiliation            = &Error{Kind: KindMissingAffiliation}
	ErrMissingAuthorPosition         = &Error{Kind: KindMissingAuthorPosition}
	ErrMissingAuthorInPosition       = &Error{Kind: KindMissingAuthorInPosition}
	ErrAlreadyVerified               = &Error{Kind: KindAlreadyVerified}
	ErrIsDuplicate                   = &Error{Kind: KindIsDuplicate}
	ErrNotDraftCreator               = &Error{Kind: KindNotDraftCreator}
	ErrUnverificationAlreadyVerified = &Error{Kind: KindUnverificationAlreadyVerified}
)

// Error is a domain failure with the item and entity it concerns
type Error struct {
	Kind             Kind              `json:"type"`
	Message          string            `json:"message"`
	ResearchItemID   int64             `json:"research_item_id,omitempty"`
	ResearchEntityID int64             `json:"research_entity_id,omitempty"`
	Fields           validation.Errors `json:"fields,omitempty"`
	Err              error             `json:"-"`
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind only
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NotFound reports whether the kind names a missing resource
func (k Kind) NotFound() bool {
	switch k {
	case KindNotFoundResearchItem, KindNotFoundResearchEntity, KindNotFoundAlias:
		return true
	}
	return false
}

// KindOf returns the kind of a domain error, or KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func newError(kind Kind, itemID, entityID int64, format string, args ...any) *Error {
	return &Error{
		Kind:             kind,
		Message:          fmt.Sprintf(format, args...),
		ResearchItemID:   itemID,
		ResearchEntityID: entityID,
	}
}

func notFoundItem(itemID, entityID int64) *Error {
	return newError(KindNotFoundResearchItem, itemID, entityID, "research item %d not found", itemID)
}

func notFoundEntity(itemID, entityID int64) *Error {
	return newError(KindNotFoundResearchEntity, itemID, entityID, "research entity %d not found", entityID)
}

// validationError turns a validator result into a domain error
func validationError(err error, itemID, entityID int64) error {
	var fields validation.Errors
	if errors.As(err, &fields) {
		return &Error{
			Kind:             KindValidation,
			Message:          "payload does not match its schema",
			ResearchItemID:   itemID,
			ResearchEntityID: entityID,
			Fields:           fields,
		}
	}
	return fmt.Errorf("validate research item %d: %w", itemID, err)
}

// storeError maps constraint violations caused by client input to validation errors
func storeError(err error, itemID, entityID int64, action string) error {
	if errors.Is(err, repository.ErrInvalidReference) || errors.Is(err, repository.ErrUniqueViolation) {
		return &Error{
			Kind:             KindValidation,
			Message:          action,
			ResearchItemID:   itemID,
			ResearchEntityID: entityID,
			Err:              err,
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}
