package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/research-output-api/internal/catalog"
	"github.com/research-output-api/internal/models"
	"github.com/research-output-api/internal/repository"
	"github.com/research-output-api/internal/validation"
	"github.com/rs/zerolog"
)

const doiPrefix = "https://doi.org/"

// draftService is the concrete implementation of DraftService
type draftService struct {
	repos  *repository.Repositories
	engine *engine
	log    zerolog.Logger
}

func newDraftService(repos *repository.Repositories, e *engine, log zerolog.Logger) *draftService {
	return &draftService{
		repos:  repos,
		engine: e,
		log:    log.With().Str("service", "drafts").Logger(),
	}
}

// CreateDraft saves a new draft of the entity and reports the duplicates it collides with
func (s *draftService) CreateDraft(ctx context.Context, entityID int64, req *models.DraftRequest) (*models.DraftResponse, error) {
	var resp *models.DraftResponse
	err := s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
		entity, err := tx.Entities.GetByID(ctx, entityID)
		if err != nil {
			return fmt.Errorf("load research entity %d: %w", entityID, err)
		}
		if entity == nil {
			return notFoundEntity(0, entityID)
		}

		data, err := s.engine.prepareData(ctx, tx, req.ResearchItemTypeID, req.Data, validation.ProfileDraft, 0, entityID)
		if err != nil {
			return err
		}

		item := &models.ResearchItem{
			ResearchItemTypeID:      req.ResearchItemTypeID,
			Kind:                    models.KindDraft,
			CreatorResearchEntityID: &entityID,
			Data:                    data,
		}
		if err := tx.Items.Create(ctx, item); err != nil {
			return storeError(err, 0, entityID, "create draft")
		}
		if err := s.engine.projections.OnItemWrite(ctx, tx, item); err != nil {
			return err
		}

		resp, err = s.engine.saveDraft(ctx, tx, item, entityID, req.Authors, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("research_item_id", resp.ResearchItem.ID).
		Int64("research_entity_id", entityID).
		Int("duplicates", len(resp.Duplicates)).
		Msg("Draft created")
	return resp, nil
}

// UpdateDraft rewrites a draft of the entity and recalculates its duplicates from scratch
func (s *draftService) UpdateDraft(ctx context.Context, entityID int64, req *models.DraftRequest) (*models.DraftResponse, error) {
	var resp *models.DraftResponse
	err := s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
		item, err := tx.Items.GetByID(ctx, req.ID)
		if err != nil {
			return fmt.Errorf("load research item %d: %w", req.ID, err)
		}
		if item == nil || !item.IsDraftOf(entityID) {
			return notFoundItem(req.ID, entityID)
		}

		if req.ResearchItemTypeID != 0 {
			item.ResearchItemTypeID = req.ResearchItemTypeID
		}
		data, err := s.engine.prepareData(ctx, tx, item.ResearchItemTypeID, req.Data, validation.ProfileDraft, item.ID, entityID)
		if err != nil {
			return err
		}
		item.Data = data

		if err := tx.Items.Update(ctx, item); err != nil {
			return storeError(err, item.ID, entityID, "update draft")
		}
		if err := s.engine.projections.OnItemWrite(ctx, tx, item); err != nil {
			return err
		}

		resp, err = s.engine.saveDraft(ctx, tx, item, entityID, req.Authors, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("research_item_id", req.ID).
		Int64("research_entity_id", entityID).
		Int("duplicates", len(resp.Duplicates)).
		Msg("Draft updated")
	return resp, nil
}

// DeleteDraft deletes a draft of the entity
func (s *draftService) DeleteDraft(ctx context.Context, entityID, itemID int64) error {
	err := s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
		return s.engine.deleteDraft(ctx, tx, entityID, itemID)
	})
	if err != nil {
		return err
	}
	s.log.Info().Int64("research_item_id", itemID).Int64("research_entity_id", entityID).Msg("Draft deleted")
	return nil
}

func (e *engine) deleteDraft(ctx context.Context, repos *repository.Repositories, entityID, itemID int64) error {
	item, err := repos.Items.GetByID(ctx, itemID)
	if err != nil {
		return fmt.Errorf("load research item %d: %w", itemID, err)
	}
	if item == nil || !item.IsDraftOf(entityID) {
		return notFoundItem(itemID, entityID)
	}
	if _, err := repos.Items.Delete(ctx, itemID); err != nil {
		return fmt.Errorf("delete draft %d: %w", itemID, err)
	}
	return nil
}

// saveDraft replaces the authors of a saved draft and computes its duplicates
func (e *engine) saveDraft(ctx context.Context, repos *repository.Repositories, item *models.ResearchItem, entityID int64, authors []models.AuthorInput, cleanOld bool) (*models.DraftResponse, error) {
	saved, err := e.replaceAuthors(ctx, repos, item.ID, authors)
	if err != nil {
		return nil, err
	}

	pairs, err := e.calculate(ctx, repos, CalculateInput{
		ResearchItemID:     item.ID,
		ResearchEntityID:   entityID,
		ResearchItemTypeID: item.ResearchItemTypeID,
		Mode:               repository.CandidatesVerified,
		CleanOld:           cleanOld,
	})
	if err != nil {
		return nil, err
	}

	return &models.DraftResponse{ResearchItem: item, Authors: saved, Duplicates: pairs}, nil
}

// prepareData normalizes a payload and validates it against the schema of its type
func (e *engine) prepareData(ctx context.Context, repos *repository.Repositories, typeID int64, raw json.RawMessage, profile validation.Profile, itemID, entityID int64) (json.RawMessage, error) {
	itemType, err := repos.Types.GetByID(ctx, typeID)
	if err != nil {
		return nil, fmt.Errorf("load research item type %d: %w", typeID, err)
	}
	if itemType == nil {
		return nil, newError(KindValidation, itemID, entityID, "unknown research item type %d", typeID)
	}

	data, err := normalizeData(raw)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "malformed data", ResearchItemID: itemID, ResearchEntityID: entityID, Err: err}
	}

	key := catalog.ValidatorKey(itemType.Type, itemType.Key)
	if err := validation.Validate(key, data, profile); err != nil {
		return nil, validationError(err, itemID, entityID)
	}
	return data, nil
}

// normalizeData strips the resolver prefix from the DOI
func normalizeData(raw json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage("{}"), nil
	}
	data, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	doi, ok := data["doi"].(string)
	if !ok || !strings.HasPrefix(doi, doiPrefix) {
		return raw, nil
	}
	data["doi"] = strings.TrimPrefix(doi, doiPrefix)
	return json.Marshal(data)
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// replaceAuthors makes the item's author slots match the input, keeping the
// verification links of positions that survive
func (e *engine) replaceAuthors(ctx context.Context, repos *repository.Repositories, itemID int64, authors []models.AuthorInput) ([]*models.Author, error) {
	positions := make([]int, 0, len(authors))
	seen := make(map[int]bool, len(authors))
	for _, in := range authors {
		if in.Position < 0 || seen[in.Position] {
			return nil, newError(KindValidation, itemID, 0, "invalid or repeated author position %d", in.Position)
		}
		if strings.TrimSpace(in.Name) == "" {
			return nil, newError(KindValidation, itemID, 0, "author in position %d has no name", in.Position)
		}
		seen[in.Position] = true
		positions = append(positions, in.Position)
	}

	for _, in := range authors {
		a := &models.Author{
			ResearchItemID:        itemID,
			Position:              in.Position,
			Name:                  in.Name,
			IsCorrespondingAuthor: in.IsCorrespondingAuthor,
			IsFirstCoauthor:       in.IsFirstCoauthor,
			IsLastCoauthor:        in.IsLastCoauthor,
			IsOralPresentation:    in.IsOralPresentation,
		}
		if err := repos.Authors.Upsert(ctx, a); err != nil {
			return nil, storeError(err, itemID, 0, "save author")
		}
		if err := repos.Authors.SetAffiliations(ctx, a.ID, in.Affiliations); err != nil {
			return nil, storeError(err, itemID, 0, "save affiliations")
		}
	}

	if _, err := repos.Authors.DeleteNotInPositions(ctx, itemID, positions); err != nil {
		return nil, fmt.Errorf("delete stale authors of %d: %w", itemID, err)
	}
	if err := e.projections.OnAuthorSetChanged(ctx, repos, itemID); err != nil {
		return nil, err
	}
	return repos.Authors.ListByItem(ctx, itemID)
}

// UpsertExternal inserts or refreshes an imported item identified by its origin id
func (s *draftService) UpsertExternal(ctx context.Context, req *models.ExternalRequest) (*models.ResearchItem, error) {
	var item *models.ResearchItem
	var action string
	err := s.repos.Atomic(ctx, func(tx *repository.Repositories) error {
		data, err := s.engine.prepareData(ctx, tx, req.ResearchItemTypeID, req.Data, validation.ProfileDraft, 0, 0)
		if err != nil {
			return err
		}

		existing, err := tx.Items.FindByOrigin(ctx, repository.OriginOpenAlex, req.OriginIdentifier, models.KindExternal)
		if err != nil {
			return fmt.Errorf("find external item %s: %w", req.OriginIdentifier, err)
		}
		if existing != nil {
			if _, err := s.engine.replaceAuthors(ctx, tx, existing.ID, req.Authors); err != nil {
				return err
			}
			action = "unchanged"
			if !sameData(existing.Data, data) {
				existing.Data = data
				if err := tx.Items.Update(ctx, existing); err != nil {
					return fmt.Errorf("update external item %d: %w", existing.ID, err)
				}
				if err := s.engine.projections.OnItemWrite(ctx, tx, existing); err != nil {
					return err
				}
				action = "updated"
			}
			item = existing
			return nil
		}

		verified, err := tx.Items.FindByOrigin(ctx, repository.OriginOpenAlex, req.OriginIdentifier, models.KindVerified)
		if err != nil {
			return fmt.Errorf("find verified item %s: %w", req.OriginIdentifier, err)
		}
		if verified != nil && sameData(verified.Data, data) {
			item, action = verified, "verified"
			return nil
		}

		item = &models.ResearchItem{ResearchItemTypeID: req.ResearchItemTypeID, Kind: models.KindExternal, Data: data}
		if err := tx.Items.Create(ctx, item); err != nil {
			return storeError(err, 0, 0, "create external item")
		}
		if err := s.engine.projections.OnItemWrite(ctx, tx, item); err != nil {
			return err
		}
		originID, err := tx.Origins.FindOrCreate(ctx, repository.OriginOpenAlex, req.OriginIdentifier)
		if err != nil {
			return fmt.Errorf("save origin identifier %s: %w", req.OriginIdentifier, err)
		}
		if err := tx.Origins.Link(ctx, item.ID, originID); err != nil {
			return fmt.Errorf("link origin identifier %s: %w", req.OriginIdentifier, err)
		}
		_, err = s.engine.replaceAuthors(ctx, tx, item.ID, req.Authors)
		action = "created"
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("research_item_id", item.ID).
		Str("origin_identifier", req.OriginIdentifier).
		Str("action", action).
		Msg("External item upserted")
	return item, nil
}

// sameData compares payloads ignoring source type timestamps and null values
func sameData(a, b json.RawMessage) bool {
	da, err := decodeObject(a)
	if err != nil {
		return false
	}
	db, err := decodeObject(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(comparableData(da), comparableData(db))
}

func comparableData(data map[string]any) any {
	if st, ok := data["sourceType"].(map[string]any); ok {
		delete(st, "created_at")
		delete(st, "updated_at")
	}
	return dropNulls(data)
}

func dropNulls(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			out[k] = dropNulls(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = dropNulls(val)
		}
		return out
	}
	return v
}
