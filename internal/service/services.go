package service

import (
	"context"

	"github.com/research-output-api/internal/config"
	"github.com/research-output-api/internal/metrics"
	"github.com/research-output-api/internal/models"
	"github.com/research-output-api/internal/projection"
	"github.com/research-output-api/internal/repository"
	"github.com/rs/zerolog"
)

// DuplicateService defines the interface for duplicate detection
type DuplicateService interface {
	Calculate(ctx context.Context, in CalculateInput) ([]models.DuplicatePair, error)
	SetDuplicate(ctx context.Context, d *models.Duplicate) (*models.Duplicate, error)
	ListByItem(ctx context.Context, itemID int64) ([]*models.Duplicate, error)
}

// VerificationService defines the interface for claiming research items
type VerificationService interface {
	Verify(ctx context.Context, entityID int64, req *models.VerifyRequest) (*models.ResearchItem, error)
	Unverify(ctx context.Context, entityID, itemID int64) error
	Replace(ctx context.Context, entityID int64, req *models.ReplaceRequest) (*models.ResearchItem, error)
}

// SuggestionService defines the interface for verification suggestions
type SuggestionService interface {
	SuggestResearchItems(ctx context.Context, targets []models.SuggestionTarget) ([]models.SuggestionResult, error)
	Discard(ctx context.Context, entityID int64, itemIDs []int64) (int64, error)
	RemoveSuggestions(ctx context.Context, filter repository.SuggestionFilter) (int64, error)
	ListByEntity(ctx context.Context, entityID int64, t models.SuggestionType) ([]*models.Suggested, error)
}

// DraftService defines the interface for drafts and imported items
type DraftService interface {
	CreateDraft(ctx context.Context, entityID int64, req *models.DraftRequest) (*models.DraftResponse, error)
	UpdateDraft(ctx context.Context, entityID int64, req *models.DraftRequest) (*models.DraftResponse, error)
	DeleteDraft(ctx context.Context, entityID, itemID int64) error
	UpsertExternal(ctx context.Context, req *models.ExternalRequest) (*models.ResearchItem, error)
}

// AliasService defines the interface for author name aliases
type AliasService interface {
	AddAlias(ctx context.Context, entityID int64, req *models.AliasRequest) (*models.Alias, error)
	DeleteAlias(ctx context.Context, entityID, aliasID int64) error
	ListAliases(ctx context.Context, entityID int64) ([]*models.Alias, error)
}

// BulkService defines the interface for multi-item actions
type BulkService interface {
	Verify(ctx context.Context, req *models.BulkVerifyRequest) (*models.BulkVerifyResponse, error)
	Unverify(ctx context.Context, req *models.BulkRequest) (map[int64]*models.BulkResult, error)
	Suggest(ctx context.Context, req *models.SuggestRequest) ([]models.SuggestionResult, error)
	Discard(ctx context.Context, req *models.BulkRequest) (*models.BulkResult, error)
	DeleteDrafts(ctx context.Context, req *models.BulkRequest) (*models.BulkResult, error)
}

// Services holds all service interfaces
type Services struct {
	Duplicates   DuplicateService
	Verification VerificationService
	Suggestions  SuggestionService
	Drafts       DraftService
	Aliases      AliasService
	Bulk         BulkService
}

// engine holds the operations shared by the services. Its methods run on the
// repositories they are given, so callers decide the transaction boundary.
type engine struct {
	log         zerolog.Logger
	metrics     *metrics.Metrics
	projections *projection.Maintainer
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, cfg *config.Config, m *metrics.Metrics, log zerolog.Logger) *Services {
	e := &engine{
		log:         log.With().Str("service", "engine").Logger(),
		metrics:     m,
		projections: projection.NewMaintainer(log),
	}

	return &Services{
		Duplicates:   newDuplicateService(repos, e, log),
		Verification: newVerificationService(repos, e, log),
		Suggestions:  newSuggestionService(repos, e, log),
		Drafts:       newDraftService(repos, e, log),
		Aliases:      newAliasService(repos, e, log),
		Bulk:         newBulkService(repos, e, cfg.Bulk, log),
	}
}
