package service

import (
	"context"
	"fmt"

	"github.com/research-output-api/internal/models"
	"github.com/research-output-api/internal/repository"
	"github.com/rs/zerolog"
)

// calculateResearchItemSuggestions proposes a verified item to every entity
// with an alias among its author names
func (e *engine) calculateResearchItemSuggestions(ctx context.Context, repos *repository.Repositories, item *models.ResearchItem) error {
	entityIDs, err := repos.Suggestions.AliasMatchesForItem(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("match aliases of research item %d: %w", item.ID, err)
	}

	for _, entityID := range entityIDs {
		created, err := repos.Suggestions.FindOrCreate(ctx, &models.Suggested{
			ResearchItemID:   item.ID,
			ResearchEntityID: entityID,
			Type:             models.SuggestionAlias,
		})
		if err != nil {
			return fmt.Errorf("suggest research item %d to %d: %w", item.ID, entityID, err)
		}
		if !created {
			continue
		}
		_, err = e.calculate(ctx, repos, CalculateInput{
			ResearchItemID:     item.ID,
			ResearchEntityID:   entityID,
			ResearchItemTypeID: item.ResearchItemTypeID,
			Mode:               repository.CandidatesVerified,
		})
		if err != nil {
			return err
		}
	}

	if len(entityIDs) > 0 {
		e.log.Info().
			Int64("research_item_id", item.ID).
			Int("entities", len(entityIDs)).
			Msg("Alias suggestions created")
	}
	return nil
}

// calculateAliasSuggestions brings an entity's alias suggestions in line with its current aliases
func (e *engine) calculateAliasSuggestions(ctx context.Context, repos *repository.Repositories, entityID int64) error {
	matching, err := repos.Suggestions.AliasMatchesForEntity(ctx, entityID)
	if err != nil {
		return fmt.Errorf("match aliases of research entity %d: %w", entityID, err)
	}
	existing, err := repos.Suggestions.ListByEntity(ctx, entityID, models.SuggestionAlias)
	if err != nil {
		return fmt.Errorf("load alias suggestions of %d: %w", entityID, err)
	}

	want := make(map[int64]bool, len(matching))
	for _, id := range matching {
		want[id] = true
	}
	have := make(map[int64]bool, len(existing))
	for _, sg := range existing {
		have[sg.ResearchItemID] = true
	}

	added, removed := 0, 0
	for _, itemID := range matching {
		if have[itemID] {
			continue
		}
		sg := &models.Suggested{ResearchItemID: itemID, ResearchEntityID: entityID, Type: models.SuggestionAlias}
		if _, err := repos.Suggestions.FindOrCreate(ctx, sg); err != nil {
			return fmt.Errorf("suggest research item %d to %d: %w", itemID, entityID, err)
		}
		_, err := e.calculate(ctx, repos, CalculateInput{
			ResearchItemID:   itemID,
			ResearchEntityID: entityID,
			Mode:             repository.CandidatesVerified,
		})
		if err != nil {
			return err
		}
		added++
	}

	for _, sg := range existing {
		if want[sg.ResearchItemID] {
			continue
		}
		filter := repository.SuggestionFilter{ResearchEntityID: entityID, ResearchItemID: sg.ResearchItemID}
		if _, err := repos.Suggestions.Remove(ctx, filter); err != nil {
			return fmt.Errorf("remove suggestions of %d for %d: %w", sg.ResearchItemID, entityID, err)
		}
		removed++
	}

	e.log.Info().
		Int64("research_entity_id", entityID).
		Int("added", added).
		Int("removed", removed).
		Msg("Alias suggestions recalculated")
	return nil
}

const (
	msgInvalidParameters = "Invalid parameters"
	msgAlreadyVerified   = "Already verified by this entity"
	msgNoOtherVerifiers  = "No verifications by other entities"
)

// suggestResearchItems creates manual suggestions, each in its own savepoint.
// A rejected target is reported in its result and does not stop the batch.
func (e *engine) suggestResearchItems(ctx context.Context, repos *repository.Repositories, targets []models.SuggestionTarget) ([]models.SuggestionResult, error) {
	results := make([]models.SuggestionResult, 0, len(targets))

	for _, t := range targets {
		res := models.SuggestionResult{ResearchItemID: t.ResearchItemID, ResearchEntityID: t.ResearchEntityID}
		if t.ResearchItemID <= 0 || t.ResearchEntityID <= 0 {
			res.Message = msgInvalidParameters
			results = append(results, res)
			continue
		}

		err := repos.Atomic(ctx, func(tx *repository.Repositories) error {
			msg, err := e.suggestOne(ctx, tx, t)
			res.Message = msg
			return err
		})
		switch {
		case err != nil:
			res.Message = err.Error()
		case res.Message == "":
			res.Success = true
		}
		results = append(results, res)
	}
	return results, nil
}

// suggestOne returns a rejection message, or "" once the suggestion exists
func (e *engine) suggestOne(ctx context.Context, repos *repository.Repositories, t models.SuggestionTarget) (string, error) {
	verifications, err := repos.Verified.ListByItems(ctx, []int64{t.ResearchItemID})
	if err != nil {
		return "", fmt.Errorf("load verifications of %d: %w", t.ResearchItemID, err)
	}
	others := 0
	for _, v := range verifications {
		if v.ResearchEntityID == t.ResearchEntityID {
			return msgAlreadyVerified, nil
		}
		others++
	}
	if others == 0 {
		return msgNoOtherVerifiers, nil
	}

	sg := &models.Suggested{ResearchItemID: t.ResearchItemID, ResearchEntityID: t.ResearchEntityID, Type: models.SuggestionManual}
	if _, err := repos.Suggestions.FindOrCreate(ctx, sg); err != nil {
		return "", storeError(err, t.ResearchItemID, t.ResearchEntityID, "create suggestion")
	}
	_, err = e.calculate(ctx, repos, CalculateInput{
		ResearchItemID:   t.ResearchItemID,
		ResearchEntityID: t.ResearchEntityID,
		Mode:             repository.CandidatesVerified,
	})
	return "", err
}

// suggestionService is the concrete implementation of SuggestionService
type suggestionService struct {
	repos  *repository.Repositories
	engine *engine
	log    zerolog.Logger
}

func newSuggestionService(repos *repository.Repositories, e *engine, log zerolog.Logger) *suggestionService {
	return &suggestionService{
		repos:  repos,
		engine: e,
		log:    log.With().Str("service", "suggestions").Logger(),
	}
}

// SuggestResearchItems creates manual suggestions in one transaction
func (s *suggestionService) SuggestResearchItems(ctx context.Context, targets []models.SuggestionTarget) ([]models.SuggestionResult, error) {
	var results []models.SuggestionResult
	err := s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
		var err error
		results, err = s.engine.suggestResearchItems(ctx, tx, targets)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Discard marks an entity's suggestions of the items as discarded
func (s *suggestionService) Discard(ctx context.Context, entityID int64, itemIDs []int64) (int64, error) {
	n, err := s.repos.Suggestions.Discard(ctx, entityID, itemIDs)
	if err != nil {
		return 0, err
	}
	s.log.Info().Int64("research_entity_id", entityID).Int64("discarded", n).Msg("Suggestions discarded")
	return n, nil
}

// RemoveSuggestions deletes the suggestions matching the filter
func (s *suggestionService) RemoveSuggestions(ctx context.Context, filter repository.SuggestionFilter) (int64, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return 0, newError(KindValidation, filter.ResearchItemID, filter.ResearchEntityID, "unknown suggestion type %q", filter.Type)
	}
	return s.repos.Suggestions.Remove(ctx, filter)
}

// ListByEntity returns an entity's suggestions, optionally of one type
func (s *suggestionService) ListByEntity(ctx context.Context, entityID int64, t models.SuggestionType) ([]*models.Suggested, error) {
	return s.repos.Suggestions.ListByEntity(ctx, entityID, t)
}
