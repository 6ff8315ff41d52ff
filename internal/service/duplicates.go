package service

import (
	"context"
	"fmt"
	"time"

	"github.com/research-output-api/internal/models"
	"github.com/research-output-api/internal/repository"
	"github.com/research-output-api/internal/similarity"
	"github.com/rs/zerolog"
)

// CalculateInput names the item, viewpoint and candidate pool of a duplicate calculation
type CalculateInput struct {
	ResearchItemID   int64
	ResearchEntityID int64
	// ResearchItemTypeID is read from the item when zero
	ResearchItemTypeID int64
	Mode               repository.CandidateMode
	// CleanOld deletes the item's edges in the entity scope first (verified mode only)
	CleanOld bool
}

// ParseCalculateMode maps the calculateOn parameter to a candidate mode
func ParseCalculateMode(s string) (repository.CandidateMode, error) {
	switch repository.CandidateMode(s) {
	case "", repository.CandidatesVerified:
		return repository.CandidatesVerified, nil
	case repository.CandidatesDraftAndSuggested:
		return repository.CandidatesDraftAndSuggested, nil
	}
	return "", &Error{Kind: KindValidation, Message: fmt.Sprintf("unknown calculateOn %q", s)}
}

// calculate finds the candidates matching an item and writes a true edge for
// each. Edges already marked false stay false.
func (e *engine) calculate(ctx context.Context, repos *repository.Repositories, in CalculateInput) ([]models.DuplicatePair, error) {
	if in.Mode == "" {
		in.Mode = repository.CandidatesVerified
	}
	start := time.Now()
	pairs := []models.DuplicatePair{}

	typeID := in.ResearchItemTypeID
	if typeID == 0 {
		item, err := repos.Items.GetByID(ctx, in.ResearchItemID)
		if err != nil {
			return nil, fmt.Errorf("load research item %d: %w", in.ResearchItemID, err)
		}
		if item == nil {
			return pairs, nil
		}
		typeID = item.ResearchItemTypeID
	}

	itemType, err := repos.Types.GetByID(ctx, typeID)
	if err != nil {
		return nil, fmt.Errorf("load research item type %d: %w", typeID, err)
	}
	if itemType == nil {
		return pairs, nil
	}
	rule, ok := similarity.RuleFor(itemType.Type, itemType.Key)
	if !ok {
		return pairs, nil
	}

	entityIDs := []int64{in.ResearchEntityID}
	if in.Mode == repository.CandidatesVerified {
		groups, err := repos.Entities.OwnedGroupIDs(ctx, in.ResearchEntityID)
		if err != nil {
			return nil, fmt.Errorf("load owned groups of %d: %w", in.ResearchEntityID, err)
		}
		entityIDs = append(entityIDs, groups...)

		if in.CleanOld {
			if _, err := repos.Duplicates.DeleteForItem(ctx, in.ResearchItemID, entityIDs); err != nil {
				return nil, fmt.Errorf("clean duplicates of %d: %w", in.ResearchItemID, err)
			}
		}
	}

	base, err := repos.Projections.Get(ctx, in.ResearchItemID)
	if err != nil {
		return nil, fmt.Errorf("load projection of %d: %w", in.ResearchItemID, err)
	}
	if base == nil {
		return pairs, nil
	}

	candidates, err := repos.Duplicates.Candidates(ctx, repository.CandidateQuery{
		Mode:               in.Mode,
		ResearchItemID:     in.ResearchItemID,
		ResearchItemTypeID: typeID,
		ResearchEntityID:   in.ResearchEntityID,
		EntityIDs:          entityIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("load duplicate candidates of %d: %w", in.ResearchItemID, err)
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ResearchItemID
	}
	projections, err := repos.Projections.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load candidate projections: %w", err)
	}

	for _, c := range candidates {
		p, ok := projections[c.ResearchItemID]
		if !ok || !rule.Match(base, p) {
			continue
		}

		edge := &models.Duplicate{IsDuplicate: true}
		if in.Mode == repository.CandidatesVerified {
			edge.ResearchItemID, edge.DuplicateID, edge.ResearchEntityID = in.ResearchItemID, c.ResearchItemID, c.ResearchEntityID
		} else {
			edge.ResearchItemID, edge.DuplicateID, edge.ResearchEntityID = c.ResearchItemID, in.ResearchItemID, in.ResearchEntityID
		}
		if err := repos.Duplicates.UpdateOrCreate(ctx, edge); err != nil {
			return nil, fmt.Errorf("write duplicate %d -> %d: %w", edge.ResearchItemID, edge.DuplicateID, err)
		}
		pairs = append(pairs, models.DuplicatePair{
			ResearchItemID:   edge.ResearchItemID,
			DuplicateID:      edge.DuplicateID,
			ResearchEntityID: edge.ResearchEntityID,
		})
	}

	if e.metrics != nil {
		e.metrics.DuplicateEdges.WithLabelValues(string(in.Mode)).Add(float64(len(pairs)))
		e.metrics.DuplicateCalcTime.WithLabelValues(string(in.Mode)).Observe(time.Since(start).Seconds())
	}
	e.log.Debug().
		Int64("research_item_id", in.ResearchItemID).
		Int64("research_entity_id", in.ResearchEntityID).
		Str("mode", string(in.Mode)).
		Int("candidates", len(candidates)).
		Int("matches", len(pairs)).
		Msg("Duplicates calculated")

	return pairs, nil
}

// setDuplicatesFalse marks every active edge of (item, entity) as not a duplicate
func (e *engine) setDuplicatesFalse(ctx context.Context, repos *repository.Repositories, itemID, entityID int64) error {
	active, err := repos.Duplicates.ListActive(ctx, itemID, entityID)
	if err != nil {
		return fmt.Errorf("load duplicates of %d: %w", itemID, err)
	}
	for _, d := range active {
		d.IsDuplicate = false
		if err := repos.Duplicates.UpdateOrCreate(ctx, d); err != nil {
			return fmt.Errorf("dismiss duplicate %d -> %d: %w", d.ResearchItemID, d.DuplicateID, err)
		}
	}
	return nil
}

// duplicateService is the concrete implementation of DuplicateService
type duplicateService struct {
	repos *repository.Repositories
	engine *engine
	log zerolog.Logger
}

func newDuplicateService(repos *repository.Repositories, e *engine, log zerolog.Logger) *duplicateService {
	return &duplicateService{
		repos:  repos,
		engine: e,
		log:    log.With().Str("service", "duplicates").Logger(),
	}
}

// Calculate runs a duplicate calculation in its own transaction
func (s *duplicateService) Calculate(ctx context.Context, in CalculateInput) ([]models.DuplicatePair, error) {
	var pairs []models.DuplicatePair
	err := s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
		var err error
		pairs, err = s.engine.calculate(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

// SetDuplicate writes one edge as a reviewer decided it
func (s *duplicateService) SetDuplicate(ctx context.Context, d *models.Duplicate) (*models.Duplicate, error) {
	if d.ResearchItemID == d.DuplicateID {
		return nil, newError(KindValidation, d.ResearchItemID, d.ResearchEntityID, "an item cannot duplicate itself")
	}
	if err := s.repos.Duplicates.UpdateOrCreate(ctx, d); err != nil {
		return nil, storeError(err, d.ResearchItemID, d.ResearchEntityID, "write duplicate")
	}

	s.log.Info().
		Int64("research_item_id", d.ResearchItemID).
		Int64("duplicate_id", d.DuplicateID).
		Int64("research_entity_id", d.ResearchEntityID).
		Bool("is_duplicate", d.IsDuplicate).
		Msg("Duplicate updated")
	return d, nil
}

// ListByItem returns the edges starting at an item
func (s *duplicateService) ListByItem(ctx context.Context, itemID int64) ([]*models.Duplicate, error) {
	return s.repos.Duplicates.ListByItem(ctx, itemID)
}
