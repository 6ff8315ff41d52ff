package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/research-output-api/internal/config"
	"github.com/research-output-api/internal/models"
	"github.com/research-output-api/internal/repository"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// bulkService is the concrete implementation of BulkService.
// Every item runs in its own transaction, so one failure does not undo the others.
type bulkService struct {
	repos  *repository.Repositories
	engine *engine
	cfg    config.BulkConfig
	log    zerolog.Logger
}

func newBulkService(repos *repository.Repositories, e *engine, cfg config.BulkConfig, log zerolog.Logger) *bulkService {
	return &bulkService{
		repos:  repos,
		engine: e,
		cfg:    cfg,
		log:    log.With().Str("service", "bulk").Logger(),
	}
}

// selectItems returns the explicit ids of a request, or its stored selection
func (s *bulkService) selectItems(ctx context.Context, req *models.BulkRequest, sel repository.ItemSelection) ([]int64, error) {
	var ids []int64
	if req.SelectAll {
		selected, err := s.repos.Items.Select(ctx, sel)
		if err != nil {
			return nil, fmt.Errorf("select %s items of %d: %w", sel.Kind, sel.ResearchEntityID, err)
		}
		ids = selected
	} else {
		ids = unique(req.ItemIDs)
	}
	if s.cfg.MaxItems > 0 && len(ids) > s.cfg.MaxItems {
		return nil, newError(KindValidation, 0, sel.ResearchEntityID, "%d items exceed the bulk limit of %d", len(ids), s.cfg.MaxItems)
	}
	return ids, nil
}

func unique(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// run applies fn to every item in its own transaction and tallies the outcomes
func (s *bulkService) run(ctx context.Context, action string, ids []int64, fn func(tx *repository.Repositories, id int64) error) *models.BulkResult {
	result := models.NewBulkResult()
	for _, id := range ids {
		err := s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
			return fn(tx, id)
		})
		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
			result.AddFailure(outcome)
			s.log.Debug().Err(err).Str("action", action).Int64("research_item_id", id).Msg("Bulk item failed")
		} else {
			result.AddSuccess(id)
		}
		if s.engine.metrics != nil {
			s.engine.metrics.BulkItems.WithLabelValues(action, outcome).Inc()
		}
	}
	return result
}

// selectAndRun runs action over a selection; a failing selection counts as one failure
func (s *bulkService) selectAndRun(ctx context.Context, action string, req *models.BulkRequest, sel repository.ItemSelection, fn func(tx *repository.Repositories, id int64) error) *models.BulkResult {
	ids, err := s.selectItems(ctx, req, sel)
	if err != nil {
		s.log.Error().Err(err).Str("action", action).Msg("Bulk selection failed")
		result := models.NewBulkResult()
		result.AddFailure(string(KindOf(err)))
		return result
	}

	result := s.run(ctx, action, ids, fn)
	s.log.Info().
		Str("action", action).
		Int64("research_entity_id", sel.ResearchEntityID).
		Int("items", len(ids)).
		Int("successes", result.Successes.Count).
		Msg("Bulk action completed")
	return result
}

// perEntity runs fn for every entity with bounded concurrency
func (s *bulkService) perEntity(ctx context.Context, entityIDs []int64, fn func(ctx context.Context, entityID int64) *models.BulkResult) (map[int64]*models.BulkResult, error) {
	if len(entityIDs) == 0 {
		return nil, newError(KindValidation, 0, 0, "researchEntitiesIds is required")
	}

	var mu sync.Mutex
	results := make(map[int64]*models.BulkResult, len(entityIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.EntityConcurrency, 1))
	for _, entityID := range unique(entityIDs) {
		entityID := entityID
		g.Go(func() error {
			res := fn(gctx, entityID)
			mu.Lock()
			results[entityID] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Verify claims the selected items for every entity in the request, then
// applies the follow-up suggestions of the items that were verified
func (s *bulkService) Verify(ctx context.Context, req *models.BulkVerifyRequest) (*models.BulkVerifyResponse, error) {
	results, err := s.perEntity(ctx, req.ResearchEntityIDs, func(ctx context.Context, entityID int64) *models.BulkResult {
		sel := repository.ItemSelection{Kind: req.ResearchOutputKind, ResearchEntityID: req.SearchResearchEntityID}
		if sel.Kind == string(models.KindDraft) {
			sel.ResearchEntityID = entityID
		}
		return s.selectAndRun(ctx, "verify", &req.BulkRequest, sel, func(tx *repository.Repositories, id int64) error {
			_, err := s.engine.verify(ctx, tx, entityID, &models.VerifyRequest{
				ResearchItemID:        id,
				AuthorPosition:        req.AuthorPosition,
				Affiliations:          req.Affiliations,
				IsCorrespondingAuthor: req.IsCorrespondingAuthor,
				IsFirstCoauthor:       req.IsFirstCoauthor,
				IsLastCoauthor:        req.IsLastCoauthor,
				IsOralPresentation:    req.IsOralPresentation,
			})
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	targets := append([]models.SuggestionTarget(nil), req.Suggestions...)
	if req.SelectAll && req.ResearchOutputKind != "" {
		ids, err := s.repos.Items.Select(ctx, repository.ItemSelection{Kind: req.ResearchOutputKind, ResearchEntityID: req.SearchResearchEntityID})
		if err != nil {
			return nil, fmt.Errorf("select items to suggest: %w", err)
		}
		for _, entityID := range req.ResearchEntityIDs {
			for _, id := range ids {
				targets = append(targets, models.SuggestionTarget{ResearchItemID: id, ResearchEntityID: entityID})
			}
		}
	}

	verified := make(map[int64]bool)
	for _, res := range results {
		for _, id := range res.Successes.IDs {
			verified[id] = true
		}
	}
	var valid []models.SuggestionTarget
	for _, t := range targets {
		if verified[t.ResearchItemID] {
			valid = append(valid, t)
		}
	}

	suggest := []models.SuggestionResult{}
	if len(valid) > 0 {
		err := s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
			var err error
			suggest, err = s.engine.suggestResearchItems(ctx, tx, valid)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	return &models.BulkVerifyResponse{Results: results, Suggest: suggest}, nil
}

// Unverify removes the claims of every entity on the selected items
func (s *bulkService) Unverify(ctx context.Context, req *models.BulkRequest) (map[int64]*models.BulkResult, error) {
	sel := repository.ItemSelection{Kind: string(models.KindVerified), ResearchEntityID: req.SearchResearchEntityID}
	return s.perEntity(ctx, req.ResearchEntityIDs, func(ctx context.Context, entityID int64) *models.BulkResult {
		return s.selectAndRun(ctx, "unverify", req, sel, func(tx *repository.Repositories, id int64) error {
			return s.engine.unverify(ctx, tx, entityID, id)
		})
	})
}

// Suggest proposes the listed or selected items to entities
func (s *bulkService) Suggest(ctx context.Context, req *models.SuggestRequest) ([]models.SuggestionResult, error) {
	targets := append([]models.SuggestionTarget(nil), req.Suggestions...)
	if req.SelectAll {
		sel := repository.ItemSelection{Kind: req.ResearchOutputKind, ResearchEntityID: req.SearchResearchEntityID}
		ids, err := s.selectItems(ctx, &req.BulkRequest, sel)
		if err != nil {
			return nil, err
		}
		for _, entityID := range req.ResearchEntityIDs {
			for _, id := range ids {
				targets = append(targets, models.SuggestionTarget{ResearchItemID: id, ResearchEntityID: entityID})
			}
		}
	}

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

// Discard marks the entity's suggestions of the selected items as discarded
func (s *bulkService) Discard(ctx context.Context, req *models.BulkRequest) (*models.BulkResult, error) {
	if req.ResearchEntityID <= 0 {
		return nil, newError(KindValidation, 0, 0, "researchEntityId is required")
	}
	sel := repository.ItemSelection{Kind: "suggested", ResearchEntityID: req.ResearchEntityID}
	return s.selectAndRun(ctx, "discard", req, sel, func(tx *repository.Repositories, id int64) error {
		_, err := tx.Suggestions.Discard(ctx, req.ResearchEntityID, []int64{id})
		return err
	}), nil
}

// DeleteDrafts deletes the selected drafts of the entity
func (s *bulkService) DeleteDrafts(ctx context.Context, req *models.BulkRequest) (*models.BulkResult, error) {
	if req.ResearchEntityID <= 0 {
		return nil, newError(KindValidation, 0, 0, "researchEntityId is required")
	}
	sel := repository.ItemSelection{Kind: string(models.KindDraft), ResearchEntityID: req.ResearchEntityID}
	return s.selectAndRun(ctx, "delete_draft", req, sel, func(tx *repository.Repositories, id int64) error {
		return s.engine.deleteDraft(ctx, tx, req.ResearchEntityID, id)
	}), nil
}
