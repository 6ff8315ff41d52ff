package projection

import (
	"context"
	"fmt"

	"github.com/research-output-api/internal/models"
	"github.com/research-output-api/internal/repository"
	"github.com/rs/zerolog"
)

// Maintainer keeps the duplicate search projection in step with item and author writes.
// Callers pass the repositories of their own transaction so the projection
// commits or rolls back together with the write that triggered it.
type Maintainer struct {
	log zerolog.Logger
}

// NewMaintainer creates a projection maintainer
func NewMaintainer(log zerolog.Logger) *Maintainer {
	return &Maintainer{log: log.With().Str("component", "projection").Logger()}
}

// OnItemWrite refreshes the item-derived columns after an item insert or data update
func (m *Maintainer) OnItemWrite(ctx context.Context, repos *repository.Repositories, item *models.ResearchItem) error {
	itemType, err := repos.Types.GetByID(ctx, item.ResearchItemTypeID)
	if err != nil {
		return fmt.Errorf("load research item type %d: %w", item.ResearchItemTypeID, err)
	}
	if itemType == nil {
		return fmt.Errorf("research item type %d not found", item.ResearchItemTypeID)
	}

	p, err := ItemFields(item, itemType)
	if err != nil {
		return err
	}
	if err := repos.Projections.UpsertItemFields(ctx, p); err != nil {
		return fmt.Errorf("write projection of research item %d: %w", item.ID, err)
	}
	return nil
}

// OnAuthorSetChanged recomputes the author columns of an item
func (m *Maintainer) OnAuthorSetChanged(ctx context.Context, repos *repository.Repositories, itemID int64) error {
	authors, err := repos.Authors.ListByItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("load authors of research item %d: %w", itemID, err)
	}
	s, n := AuthorsString(authors)
	if err := repos.Projections.UpdateAuthors(ctx, itemID, s, n); err != nil {
		return fmt.Errorf("write authors projection of research item %d: %w", itemID, err)
	}
	return nil
}

// Refresh rebuilds the whole projection row of one item
func (m *Maintainer) Refresh(ctx context.Context, repos *repository.Repositories, itemID int64) error {
	item, err := repos.Items.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("research item %d not found", itemID)
	}
	if err := m.OnItemWrite(ctx, repos, item); err != nil {
		return err
	}
	return m.OnAuthorSetChanged(ctx, repos, itemID)
}

// RebuildAll refreshes the projection of every item, one transaction per item.
// It returns the number of rebuilt rows and stops at the first failure.
func (m *Maintainer) RebuildAll(ctx context.Context, repos *repository.Repositories) (int, error) {
	ids, err := repos.Items.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list research items: %w", err)
	}

	m.log.Info().Int("items", len(ids)).Msg("Rebuilding duplicate search projection")

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		err := repos.Atomic(ctx, func(tx *repository.Repositories) error {
			return m.Refresh(ctx, tx, id)
		})
		if err != nil {
			m.log.Error().Err(err).Int64("research_item_id", id).Msg("Projection rebuild failed")
			return i, err
		}
		if (i+1)%1000 == 0 {
			m.log.Info().Int("rebuilt", i+1).Msg("Projection rebuild progress")
		}
	}

	m.log.Info().Int("rebuilt", len(ids)).Msg("Duplicate search projection rebuilt")
	return len(ids), nil
}
