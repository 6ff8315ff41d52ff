package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/research-output-api/internal/catalog"
	"github.com/research-output-api/internal/models"
	"github.com/research-output-api/internal/repository"
	"github.com/research-output-api/internal/validation"
	"github.com/rs/zerolog"
)

// verify claims an item for an entity. Every failure leaves the caller's
// transaction to be rolled back.
func (e *engine) verify(ctx context.Context, repos *repository.Repositories, entityID int64, req *models.VerifyRequest) (*models.ResearchItem, error) {
	itemID := req.ResearchItemID

	suggested, err := repos.Suggestions.Exists(ctx, itemID, entityID)
	if err != nil {
		return nil, fmt.Errorf("check suggestion of %d: %w", itemID, err)
	}
	if !suggested {
		_, err := e.calculate(ctx, repos, CalculateInput{
			ResearchItemID:     itemID,
			ResearchEntityID:   entityID,
			ResearchItemTypeID: req.ResearchItemTypeID,
			Mode:               repository.CandidatesVerified,
		})
		if err != nil {
			return nil, err
		}
	}

	if req.SetDuplicatesFalse {
		if err := e.setDuplicatesFalse(ctx, repos, itemID, entityID); err != nil {
			return nil, err
		}
	}

	item, err := repos.Items.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("load research item %d: %w", itemID, err)
	}
	if item == nil {
		return nil, notFoundItem(itemID, entityID)
	}

	itemType, err := repos.Types.GetByID(ctx, item.ResearchItemTypeID)
	if err != nil {
		return nil, fmt.Errorf("load research item type %d: %w", item.ResearchItemTypeID, err)
	}
	if itemType == nil {
		return nil, fmt.Errorf("research item type %d not found", item.ResearchItemTypeID)
	}
	key := catalog.ValidatorKey(itemType.Type, itemType.Key)
	if err := validation.Validate(key, item.Data, validation.ProfileVerified); err != nil {
		return nil, validationError(err, itemID, entityID)
	}

	entity, err := repos.Entities.GetByID(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("load research entity %d: %w", entityID, err)
	}
	if entity == nil {
		return nil, notFoundEntity(itemID, entityID)
	}

	if item.Kind == models.KindVerified {
		existing, err := repos.Verified.Get(ctx, itemID, entityID)
		if err != nil {
			return nil, fmt.Errorf("load verification of %d: %w", itemID, err)
		}
		if existing != nil {
			return nil, newError(KindAlreadyVerified, itemID, entityID, "research item already verified")
		}
	}

	var aliases []*models.Alias
	position := req.AuthorPosition
	if entity.IsPerson() {
		aliases, err = repos.Aliases.ListByEntity(ctx, entityID)
		if err != nil {
			return nil, fmt.Errorf("load aliases of %d: %w", entityID, err)
		}
		if position == nil {
			authors, err := repos.Authors.ListByItem(ctx, itemID)
			if err != nil {
				return nil, fmt.Errorf("load authors of %d: %w", itemID, err)
			}
			position = positionFromAliases(authors, aliases)
		}
		if position == nil {
			return nil, newError(KindMissingAuthorPosition, itemID, entityID, "no author matches an alias of the research entity")
		}
	}

	active, err := repos.Duplicates.ListActive(ctx, itemID, entityID)
	if err != nil {
		return nil, fmt.Errorf("load duplicates of %d: %w", itemID, err)
	}
	if len(active) > 0 {
		return nil, newError(KindIsDuplicate, itemID, entityID, "research item has %d unresolved duplicates", len(active))
	}

	verified := &models.Verified{ResearchItemID: itemID, ResearchEntityID: entityID}
	if err := repos.Verified.Create(ctx, verified); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, newError(KindAlreadyVerified, itemID, entityID, "research item already verified")
		}
		return nil, fmt.Errorf("create verification of %d: %w", itemID, err)
	}

	if entity.IsPerson() {
		if item.Kind == models.KindDraft && !item.IsDraftOf(entityID) {
			return nil, newError(KindNotDraftCreator, itemID, entityID, "only the creator can verify a draft")
		}
		if err := e.claimAuthor(ctx, repos, item, entityID, *position, verified.ID, aliases, req); err != nil {
			return nil, err
		}
	}

	if err := e.markVerified(ctx, repos, item); err != nil {
		return nil, err
	}

	_, err = e.calculate(ctx, repos, CalculateInput{
		ResearchItemID:     itemID,
		ResearchEntityID:   entityID,
		ResearchItemTypeID: item.ResearchItemTypeID,
		Mode:               repository.CandidatesDraftAndSuggested,
	})
	if err != nil {
		return nil, err
	}

	if _, err := repos.Suggestions.Remove(ctx, repository.SuggestionFilter{ResearchEntityID: entityID, ResearchItemID: itemID}); err != nil {
		return nil, fmt.Errorf("remove suggestions of %d: %w", itemID, err)
	}

	e.log.Info().
		Int64("research_item_id", itemID).
		Int64("research_entity_id", entityID).
		Msg("Research item verified")
	return item, nil
}

// positionFromAliases returns the position of the first author named like one of the aliases
func positionFromAliases(authors []*models.Author, aliases []*models.Alias) *int {
	names := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		names[a.Value] = true
	}
	for _, author := range authors {
		if names[author.Name] {
			p := author.Position
			return &p
		}
	}
	return nil
}

// claimAuthor links the author slot at position to the verification
func (e *engine) claimAuthor(ctx context.Context, repos *repository.Repositories, item *models.ResearchItem, entityID int64, position int, verifiedID int64, aliases []*models.Alias, req *models.VerifyRequest) error {
	authors, err := repos.Authors.ListByItem(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("load authors of %d: %w", item.ID, err)
	}

	var author *models.Author
	for _, a := range authors {
		if a.Position == position {
			author = a
			break
		}
	}
	if author == nil {
		return newError(KindMissingAuthorInPosition, item.ID, entityID, "no author in position %d", position)
	}
	if author.VerifiedID != nil {
		return newError(KindAlreadyVerified, item.ID, entityID, "author in position %d is already verified", position)
	}

	author.VerifiedID = &verifiedID
	author.IsCorrespondingAuthor = flag(req.IsCorrespondingAuthor, author.IsCorrespondingAuthor)
	author.IsFirstCoauthor = flag(req.IsFirstCoauthor, author.IsFirstCoauthor)
	author.IsLastCoauthor = flag(req.IsLastCoauthor, author.IsLastCoauthor)
	author.IsOralPresentation = flag(req.IsOralPresentation, author.IsOralPresentation)

	if len(author.Affiliations) == 0 && len(req.Affiliations) == 0 {
		return newError(KindMissingAffiliation, item.ID, entityID, "author in position %d has no affiliation", position)
	}

	if err := repos.Authors.Update(ctx, author); err != nil {
		return fmt.Errorf("update author %d: %w", author.ID, err)
	}
	if len(req.Affiliations) > 0 {
		if err := repos.Authors.AddAffiliations(ctx, author.ID, req.Affiliations); err != nil {
			return storeError(err, item.ID, entityID, "add affiliations")
		}
	}

	for _, a := range aliases {
		if a.Value == author.Name {
			return nil
		}
	}
	alias := &models.Alias{ResearchEntityID: entityID, Value: author.Name}
	if err := repos.Aliases.Create(ctx, alias); err != nil {
		return fmt.Errorf("add alias %q: %w", author.Name, err)
	}
	return e.calculateAliasSuggestions(ctx, repos, entityID)
}

func flag(v *bool, current bool) bool {
	if v == nil {
		return current
	}
	return *v
}

// markVerified moves a draft or external item to the verified kind
func (e *engine) markVerified(ctx context.Context, repos *repository.Repositories, item *models.ResearchItem) error {
	switch item.Kind {
	case models.KindDraft:
		item.Kind = models.KindVerified
		item.CreatorResearchEntityID = nil
		if err := repos.Items.Update(ctx, item); err != nil {
			return fmt.Errorf("mark research item %d verified: %w", item.ID, err)
		}
		return e.calculateResearchItemSuggestions(ctx, repos, item)
	case models.KindExternal:
		item.Kind = models.KindVerified
		if err := repos.Items.Update(ctx, item); err != nil {
			return fmt.Errorf("mark research item %d verified: %w", item.ID, err)
		}
	}
	return nil
}

// unverify removes an entity's claim and deletes the item with its last claim
func (e *engine) unverify(ctx context.Context, repos *repository.Repositories, entityID, itemID int64) error {
	n, err := repos.Verified.Delete(ctx, itemID, entityID)
	if err != nil {
		return fmt.Errorf("delete verification of %d: %w", itemID, err)
	}
	if n == 0 {
		return newError(KindUnverificationAlreadyVerified, itemID, entityID, "research item is not verified by this entity")
	}

	discarded, err := repos.Suggestions.Discard(ctx, entityID, []int64{itemID})
	if err != nil {
		return fmt.Errorf("discard suggestions of %d: %w", itemID, err)
	}
	if discarded == 0 {
		sg := &models.Suggested{
			ResearchItemID:   itemID,
			ResearchEntityID: entityID,
			Type:             models.SuggestionManual,
			Discarded:        true,
		}
		if err := repos.Suggestions.Create(ctx, sg); err != nil {
			return fmt.Errorf("record discarded suggestion of %d: %w", itemID, err)
		}
	}

	if _, err := repos.Duplicates.DeleteByDuplicate(ctx, itemID, entityID); err != nil {
		return fmt.Errorf("delete duplicates pointing at %d: %w", itemID, err)
	}

	remaining, err := repos.Verified.CountByItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("count verifications of %d: %w", itemID, err)
	}
	if remaining == 0 {
		if _, err := repos.Items.Delete(ctx, itemID); err != nil {
			return fmt.Errorf("delete research item %d: %w", itemID, err)
		}
		e.log.Info().Int64("research_item_id", itemID).Msg("Research item deleted with its last verification")
	}

	e.log.Info().
		Int64("research_item_id", itemID).
		Int64("research_entity_id", entityID).
		Int("remaining_verifications", remaining).
		Msg("Research item unverified")
	return nil
}

// verificationService is the concrete implementation of VerificationService
type verificationService struct {
	repos  *repository.Repositories
	engine *engine
	log    zerolog.Logger
}

func newVerificationService(repos *repository.Repositories, e *engine, log zerolog.Logger) *verificationService {
	return &verificationService{
		repos:  repos,
		engine: e,
		log:    log.With().Str("service", "verification").Logger(),
	}
}

// Verify claims one item in its own transaction
func (s *verificationService) Verify(ctx context.Context, entityID int64, req *models.VerifyRequest) (*models.ResearchItem, error) {
	var item *models.ResearchItem
	err := s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
		var err error
		item, err = s.engine.verify(ctx, tx, entityID, req)
		return err
	})
	s.engine.count("verify", err)
	if err != nil {
		s.log.Warn().Err(err).
			Int64("research_item_id", req.ResearchItemID).
			Int64("research_entity_id", entityID).
			Msg("Verification failed")
		return nil, err
	}
	return item, nil
}

// Unverify removes one claim in its own transaction
func (s *verificationService) Unverify(ctx context.Context, entityID, itemID int64) error {
	err := s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
		return s.engine.unverify(ctx, tx, entityID, itemID)
	})
	s.engine.count("unverify", err)
	return err
}

// Replace unverifies ToReplaceID and verifies ResearchItemID atomically
func (s *verificationService) Replace(ctx context.Context, entityID int64, req *models.ReplaceRequest) (*models.ResearchItem, error) {
	var item *models.ResearchItem
	err := s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
		if err := s.engine.unverify(ctx, tx, entityID, req.ToReplaceID); err != nil {
			return err
		}
		var err error
		item, err = s.engine.verify(ctx, tx, entityID, &req.VerifyRequest)
		return err
	})
	if err != nil {
		s.log.Warn().Err(err).
			Int64("research_item_id", req.ResearchItemID).
			Int64("replaced_id", req.ToReplaceID).
			Int64("research_entity_id", entityID).
			Msg("Replace failed")
		return nil, err
	}
	return item, nil
}

// count records the outcome of a verify or unverify
func (e *engine) count(action string, err error) {
	if e.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	switch action {
	case "verify":
		e.metrics.Verifications.WithLabelValues(outcome).Inc()
	case "unverify":
		e.metrics.Unverifications.WithLabelValues(outcome).Inc()
	}
}
