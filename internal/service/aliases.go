package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/research-output-api/internal/models"
	"github.com/research-output-api/internal/repository"
	"github.com/rs/zerolog"
)

// aliasService is the concrete implementation of AliasService
type aliasService struct {
	repos  *repository.Repositories
	engine *engine
	log    zerolog.Logger
}

func newAliasService(repos *repository.Repositories, e *engine, log zerolog.Logger) *aliasService {
	return &aliasService{
		repos:  repos,
		engine: e,
		log:    log.With().Str("service", "aliases").Logger(),
	}
}

// AddAlias records a new author name of a person and refreshes its alias suggestions
func (s *aliasService) AddAlias(ctx context.Context, entityID int64, req *models.AliasRequest) (*models.Alias, error) {
	value := strings.TrimSpace(req.Value)
	if value == "" {
		return nil, newError(KindValidation, 0, entityID, "alias value is required")
	}

	alias := &models.Alias{ResearchEntityID: entityID, Value: value, Main: req.Main}
	err := s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
		entity, err := tx.Entities.GetByID(ctx, entityID)
		if err != nil {
			return fmt.Errorf("load research entity %d: %w", entityID, err)
		}
		if entity == nil {
			return notFoundEntity(0, entityID)
		}
		if !entity.IsPerson() {
			return newError(KindValidation, 0, entityID, "only people have aliases")
		}

		if err := tx.Aliases.Create(ctx, alias); err != nil {
			if errors.Is(err, repository.ErrUniqueViolation) {
				return newError(KindValidation, 0, entityID, "alias %q already exists", value)
			}
			return fmt.Errorf("create alias: %w", err)
		}
		return s.engine.calculateAliasSuggestions(ctx, tx, entityID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int64("research_entity_id", entityID).Str("alias", value).Msg("Alias added")
	return alias, nil
}

// DeleteAlias removes an alias and refreshes the entity's alias suggestions
func (s *aliasService) DeleteAlias(ctx context.Context, entityID, aliasID int64) error {
	err := s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
		deleted, err := tx.Aliases.Delete(ctx, entityID, aliasID)
		if err != nil {
			return fmt.Errorf("delete alias %d: %w", aliasID, err)
		}
		if !deleted {
			return newError(KindNotFoundAlias, 0, entityID, "alias %d not found", aliasID)
		}
		return s.engine.calculateAliasSuggestions(ctx, tx, entityID)
	})
	if err != nil {
		return err
	}

	s.log.Info().Int64("research_entity_id", entityID).Int64("alias_id", aliasID).Msg("Alias deleted")
	return nil
}

// ListAliases returns the aliases of an entity, main first
func (s *aliasService) ListAliases(ctx context.Context, entityID int64) ([]*models.Alias, error) {
	return s.repos.Aliases.ListByEntity(ctx, entityID)
}
