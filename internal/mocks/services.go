package mocks

import (
	"context"

	"github.com/research-output-api/internal/models"
	"github.com/research-output-api/internal/repository"
	"github.com/research-output-api/internal/service"
)

// MockDuplicateService is a mock implementation of DuplicateService
type MockDuplicateService struct {
	CalculateFunc    func(ctx context.Context, in service.CalculateInput) ([]models.DuplicatePair, error)
	SetDuplicateFunc func(ctx context.Context, d *models.Duplicate) (*models.Duplicate, error)
	Calculated       []service.CalculateInput
}

// Verify interface compliance
var _ service.DuplicateService = (*MockDuplicateService)(nil)

func (m *MockDuplicateService) Calculate(ctx context.Context, in service.CalculateInput) ([]models.DuplicatePair, error) {
	m.Calculated = append(m.Calculated, in)
	if m.CalculateFunc != nil {
		return m.CalculateFunc(ctx, in)
	}
	return []models.DuplicatePair{}, nil
}

func (m *MockDuplicateService) SetDuplicate(ctx context.Context, d *models.Duplicate) (*models.Duplicate, error) {
	if m.SetDuplicateFunc != nil {
		return m.SetDuplicateFunc(ctx, d)
	}
	return d, nil
}

func (m *MockDuplicateService) ListByItem(ctx context.Context, itemID int64) ([]*models.Duplicate, error) {
	return []*models.Duplicate{}, nil
}

// MockVerificationService is a mock implementation of VerificationService
type MockVerificationService struct {
	VerifyFunc   func(ctx context.Context, entityID int64, req *models.VerifyRequest) (*models.ResearchItem, error)
	UnverifyFunc func(ctx context.Context, entityID, itemID int64) error
	ReplaceFunc  func(ctx context.Context, entityID int64, req *models.ReplaceRequest) (*models.ResearchItem, error)
}

// Verify interface compliance
var _ service.VerificationService = (*MockVerificationService)(nil)

func (m *MockVerificationService) Verify(ctx context.Context, entityID int64, req *models.VerifyRequest) (*models.ResearchItem, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, entityID, req)
	}
	return &models.ResearchItem{ID: req.ResearchItemID, Kind: models.KindVerified}, nil
}

func (m *MockVerificationService) Unverify(ctx context.Context, entityID, itemID int64) error {
	if m.UnverifyFunc != nil {
		return m.UnverifyFunc(ctx, entityID, itemID)
	}
	return nil
}

func (m *MockVerificationService) Replace(ctx context.Context, entityID int64, req *models.ReplaceRequest) (*models.ResearchItem, error) {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, entityID, req)
	}
	return &models.ResearchItem{ID: req.ResearchItemID, Kind: models.KindVerified}, nil
}

// MockSuggestionService is a mock implementation of SuggestionService
type MockSuggestionService struct {
	SuggestFunc func(ctx context.Context, targets []models.SuggestionTarget) ([]models.SuggestionResult, error)
	RemoveFunc  func(ctx context.Context, filter repository.SuggestionFilter) (int64, error)
	Removed     []repository.SuggestionFilter
}

// Verify interface compliance
var _ service.SuggestionService = (*MockSuggestionService)(nil)

func (m *MockSuggestionService) SuggestResearchItems(ctx context.Context, targets []models.SuggestionTarget) ([]models.SuggestionResult, error) {
	if m.SuggestFunc != nil {
		return m.SuggestFunc(ctx, targets)
	}
	out := make([]models.SuggestionResult, len(targets))
	for i, t := range targets {
		out[i] = models.SuggestionResult{ResearchItemID: t.ResearchItemID, ResearchEntityID: t.ResearchEntityID, Success: true}
	}
	return out, nil
}

func (m *MockSuggestionService) Discard(ctx context.Context, entityID int64, itemIDs []int64) (int64, error) {
	return int64(len(itemIDs)), nil
}

func (m *MockSuggestionService) RemoveSuggestions(ctx context.Context, filter repository.SuggestionFilter) (int64, error) {
	m.Removed = append(m.Removed, filter)
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, filter)
	}
	return 1, nil
}

func (m *MockSuggestionService) ListByEntity(ctx context.Context, entityID int64, t models.SuggestionType) ([]*models.Suggested, error) {
	return []*models.Suggested{}, nil
}

// MockDraftService is a mock implementation of DraftService
type MockDraftService struct {
	CreateFunc   func(ctx context.Context, entityID int64, req *models.DraftRequest) (*models.DraftResponse, error)
	UpdateFunc   func(ctx context.Context, entityID int64, req *models.DraftRequest) (*models.DraftResponse, error)
	DeleteFunc   func(ctx context.Context, entityID, itemID int64) error
	ExternalFunc func(ctx context.Context, req *models.ExternalRequest) (*models.ResearchItem, error)
}

// Verify interface compliance
var _ service.DraftService = (*MockDraftService)(nil)

func (m *MockDraftService) CreateDraft(ctx context.Context, entityID int64, req *models.DraftRequest) (*models.DraftResponse, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entityID, req)
	}
	return draftResponse(1, entityID, req), nil
}

func (m *MockDraftService) UpdateDraft(ctx context.Context, entityID int64, req *models.DraftRequest) (*models.DraftResponse, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, entityID, req)
	}
	return draftResponse(req.ID, entityID, req), nil
}

func draftResponse(id, entityID int64, req *models.DraftRequest) *models.DraftResponse {
	return &models.DraftResponse{
		ResearchItem: &models.ResearchItem{
			ID:                      id,
			ResearchItemTypeID:      req.ResearchItemTypeID,
			Kind:                    models.KindDraft,
			CreatorResearchEntityID: &entityID,
			Data:                    req.Data,
		},
		Authors:    []*models.Author{},
		Duplicates: []models.DuplicatePair{},
	}
}

func (m *MockDraftService) DeleteDraft(ctx context.Context, entityID, itemID int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, entityID, itemID)
	}
	return nil
}

func (m *MockDraftService) UpsertExternal(ctx context.Context, req *models.ExternalRequest) (*models.ResearchItem, error) {
	if m.ExternalFunc != nil {
		return m.ExternalFunc(ctx, req)
	}
	return &models.ResearchItem{ID: 1, ResearchItemTypeID: req.ResearchItemTypeID, Kind: models.KindExternal, Data: req.Data}, nil
}

// MockAliasService is a mock implementation of AliasService
type MockAliasService struct {
	AddFunc    func(ctx context.Context, entityID int64, req *models.AliasRequest) (*models.Alias, error)
	DeleteFunc func(ctx context.Context, entityID, aliasID int64) error
}

// Verify interface compliance
var _ service.AliasService = (*MockAliasService)(nil)

func (m *MockAliasService) AddAlias(ctx context.Context, entityID int64, req *models.AliasRequest) (*models.Alias, error) {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, entityID, req)
	}
	return &models.Alias{ID: 1, ResearchEntityID: entityID, Value: req.Value, Main: req.Main}, nil
}

func (m *MockAliasService) DeleteAlias(ctx context.Context, entityID, aliasID int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, entityID, aliasID)
	}
	return nil
}

func (m *MockAliasService) ListAliases(ctx context.Context, entityID int64) ([]*models.Alias, error) {
	return []*models.Alias{}, nil
}

// MockBulkService is a mock implementation of BulkService
type MockBulkService struct {
	VerifyFunc   func(ctx context.Context, req *models.BulkVerifyRequest) (*models.BulkVerifyResponse, error)
	UnverifyFunc func(ctx context.Context, req *models.BulkRequest) (map[int64]*models.BulkResult, error)
}

// Verify interface compliance
var _ service.BulkService = (*MockBulkService)(nil)

func (m *MockBulkService) Verify(ctx context.Context, req *models.BulkVerifyRequest) (*models.BulkVerifyResponse, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, req)
	}
	results := make(map[int64]*models.BulkResult)
	for _, id := range req.ResearchEntityIDs {
		res := models.NewBulkResult()
		for _, item := range req.ItemIDs {
			res.AddSuccess(item)
		}
		results[id] = res
	}
	return &models.BulkVerifyResponse{Results: results, Suggest: []models.SuggestionResult{}}, nil
}

func (m *MockBulkService) Unverify(ctx context.Context, req *models.BulkRequest) (map[int64]*models.BulkResult, error) {
	if m.UnverifyFunc != nil {
		return m.UnverifyFunc(ctx, req)
	}
	return map[int64]*models.BulkResult{}, nil
}

func (m *MockBulkService) Suggest(ctx context.Context, req *models.SuggestRequest) ([]models.SuggestionResult, error) {
	return []models.SuggestionResult{}, nil
}

func (m *MockBulkService) Discard(ctx context.Context, req *models.BulkRequest) (*models.BulkResult, error) {
	res := models.NewBulkResult()
	for _, id := range req.ItemIDs {
		res.AddSuccess(id)
	}
	return res, nil
}

func (m *MockBulkService) DeleteDrafts(ctx context.Context, req *models.BulkRequest) (*models.BulkResult, error) {
	return m.Discard(ctx, req)
}

// NewMockServices returns services backed by the mocks above
func NewMockServices() *service.Services {
	return &service.Services{
		Duplicates:   &MockDuplicateService{},
		Verification: &MockVerificationService{},
		Suggestions:  &MockSuggestionService{},
		Drafts:       &MockDraftService{},
		Aliases:      &MockAliasService{},
		Bulk:         &MockBulkService{},
	}
}
