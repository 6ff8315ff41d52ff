package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/research-output-api/internal/api"
	"github.com/research-output-api/internal/config"
	"github.com/research-output-api/internal/metrics"
	"github.com/research-output-api/internal/mocks"
	"github.com/research-output-api/internal/models"
	"github.com/research-output-api/internal/repository"
	"github.com/research-output-api/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct{ err error }

func (f fakeDB) HealthCheck(ctx context.Context) error { return f.err }

func setupTestRouter() (*gin.Engine, *service.Services) {
	gin.SetMode(gin.TestMode)
	services := mocks.NewMockServices()
	router := api.NewRouter(services, metrics.New(), nil, zerolog.Nop())
	return router, services
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Type             string `json:"type"`
		Message          string `json:"message"`
		ResearchItemID   int64  `json:"research_item_id"`
		ResearchEntityID int64  `json:"research_entity_id"`
		Fields           []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"fields"`
	} `json:"error"`
}

func do(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("no database", func(t *testing.T) {
		router, _ := setupTestRouter()
		w, _ := do(t, router, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "research-output-api", body["service"])
	})

	t.Run("database down", func(t *testing.T) {
		router := api.NewRouter(mocks.NewMockServices(), nil, fakeDB{err: errors.New("refused")}, zerolog.Nop())
		w, _ := do(t, router, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"database":"down"`)
	})
}

func TestRequestID(t *testing.T) {
	router, _ := setupTestRouter()

	w, _ := do(t, router, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := setupTestRouter()
	do(t, router, http.MethodGet, "/health", nil)

	w, _ := do(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `research_output_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	router, _ := setupTestRouter()
	w, _ := do(t, router, http.MethodOptions, "/v1/research-items/bulk-verify", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCreateDraft(t *testing.T) {
	router, _ := setupTestRouter()

	w, env := do(t, router, http.MethodPost, "/v1/research-entities/7/draft", map[string]any{
		"researchItemTypeId": 3,
		"data":               map[string]any{"title": "A"},
		"authors":            []map[string]any{{"position": 0, "name": "Doe J."}},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)

	var resp models.DraftResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, models.KindDraft, resp.ResearchItem.Kind)
	assert.Equal(t, int64(7), *resp.ResearchItem.CreatorResearchEntityID)
}

func TestBadPathAndBody(t *testing.T) {
	router, _ := setupTestRouter()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"non numeric entity", http.MethodPost, "/v1/research-entities/abc/draft", map[string]any{}},
		{"malformed json", http.MethodPost, "/v1/research-entities/1/verify", "{"},
		{"missing item", http.MethodPost, "/v1/research-entities/1/verify", map[string]any{}},
		{"update without id", http.MethodPut, "/v1/research-entities/1/draft", map[string]any{"data": map[string]any{}}},
		{"replace without target", http.MethodPost, "/v1/research-entities/1/replace", map[string]any{"researchItemId": 2}},
		{"alias without value", http.MethodPost, "/v1/research-entities/1/aliases", map[string]any{}},
		{"duplicate without ids", http.MethodPatch, "/v1/duplicate?id1=1", nil},
		{"duplicate with bad flag", http.MethodPatch, "/v1/duplicate?id1=1&id2=2&researchEntityId=3&isDuplicate=maybe", nil},
		{"suggestions with bad type", http.MethodGet, "/v1/research-entities/1/suggestions?type=bogus", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, "ValidationError", env.Error.Type)
		})
	}
}

func TestVerifyErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"missing item", &service.Error{Kind: service.KindNotFoundResearchItem, ResearchItemID: 5, ResearchEntityID: 1}, http.StatusNotFound, "NotFoundResearchItemError"},
		{"duplicate", &service.Error{Kind: service.KindIsDuplicate, ResearchItemID: 5, ResearchEntityID: 1, Message: "research item has 1 unresolved duplicates"}, http.StatusBadRequest, "VerificationIsDuplicateError"},
		{"already verified", &service.Error{Kind: service.KindAlreadyVerified, ResearchItemID: 5, ResearchEntityID: 1}, http.StatusBadRequest, "VerificationAlreadyVerifiedError"},
		{"store failure", errors.New("connection reset"), http.StatusInternalServerError, "InternalError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, services := setupTestRouter()
			services.Verification.(*mocks.MockVerificationService).VerifyFunc = func(ctx context.Context, entityID int64, req *models.VerifyRequest) (*models.ResearchItem, error) {
				return nil, tt.err
			}

			w, env := do(t, router, http.MethodPost, "/v1/research-entities/1/verify", map[string]any{"researchItemId": 5})
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.kind, env.Error.Type)
			if tt.status != http.StatusInternalServerError {
				assert.Equal(t, int64(5), env.Error.ResearchItemID)
				assert.Equal(t, int64(1), env.Error.ResearchEntityID)
				assert.NotEmpty(t, env.Error.Message)
			} else {
				assert.NotContains(t, w.Body.String(), "connection reset")
			}
		})
	}
}

func TestRemoveSuggestionsFilter(t *testing.T) {
	router, services := setupTestRouter()
	mock := services.Suggestions.(*mocks.MockSuggestionService)

	w, env := do(t, router, http.MethodDelete, "/v1/research-entities/4/suggestions?researchItemId=9&type=alias", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":1}`, string(env.Data))
	require.Len(t, mock.Removed, 1)
	assert.Equal(t, repository.SuggestionFilter{ResearchEntityID: 4, ResearchItemID: 9, Type: models.SuggestionAlias}, mock.Removed[0])
}

func TestCalculate(t *testing.T) {
	router, services := setupTestRouter()
	mock := services.Duplicates.(*mocks.MockDuplicateService)
	mock.CalculateFunc = func(ctx context.Context, in service.CalculateInput) ([]models.DuplicatePair, error) {
		return []models.DuplicatePair{{ResearchItemID: in.ResearchItemID, DuplicateID: 2, ResearchEntityID: in.ResearchEntityID}}, nil
	}

	w, env := do(t, router, http.MethodPost, "/v1/research-items/12/calculate", map[string]any{
		"researchEntityId":   3,
		"calculateOn":        "draftAndSuggested",
		"cleanOldDuplicates": true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"research_item_id":12,"duplicate_id":2,"research_entity_id":3}]`, string(env.Data))
	require.Len(t, mock.Calculated, 1)
	assert.Equal(t, repository.CandidatesDraftAndSuggested, mock.Calculated[0].Mode)
	assert.True(t, mock.Calculated[0].CleanOld)

	w, env = do(t, router, http.MethodPost, "/v1/research-items/12/calculate", map[string]any{"researchEntityId": 3, "calculateOn": "everything"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ValidationError", env.Error.Type)

	w, _ = do(t, router, http.MethodPost, "/v1/research-items/12/calculate", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "researchEntityId is required")
}

func TestSetDuplicate(t *testing.T) {
	router, services := setupTestRouter()
	var got *models.Duplicate
	services.Duplicates.(*mocks.MockDuplicateService).SetDuplicateFunc = func(ctx context.Context, d *models.Duplicate) (*models.Duplicate, error) {
		got = d
		return d, nil
	}

	w, _ := do(t, router, http.MethodPatch, "/v1/duplicate?id1=1&id2=2&researchEntityId=3&isDuplicate=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, models.Duplicate{ResearchItemID: 1, DuplicateID: 2, ResearchEntityID: 3}, *got)
}

func TestBulkVerify(t *testing.T) {
	router, _ := setupTestRouter()

	w, env := do(t, router, http.MethodPost, "/v1/research-items/bulk-verify", map[string]any{
		"researchEntitiesIds": []int64{1, 2},
		"itemsIds":            []int64{10, 11},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.BulkVerifyResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 2, resp.Results[1].Successes.Count)
	assert.Equal(t, []int64{10, 11}, resp.Results[2].Successes.IDs)
}

func TestBulkUnverifyError(t *testing.T) {
	router, services := setupTestRouter()
	services.Bulk.(*mocks.MockBulkService).UnverifyFunc = func(ctx context.Context, req *models.BulkRequest) (map[int64]*models.BulkResult, error) {
		return nil, &service.Error{Kind: service.KindValidation, Message: "researchEntitiesIds is required"}
	}

	w, env := do(t, router, http.MethodPost, "/v1/research-items/unverify", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "researchEntitiesIds is required", env.Error.Message)
}

func TestEndToEndVerification(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := mocks.NewSeededStore()
	repos := store.Repositories()
	cfg := &config.Config{Bulk: config.BulkConfig{MaxItems: 10, EntityConcurrency: 1}}
	services := service.NewServices(repos, cfg, metrics.New(), zerolog.Nop())
	router := api.NewRouter(services, nil, nil, zerolog.Nop())

	ctx := context.Background()
	person := &models.ResearchEntity{Type: models.EntityPerson, Name: "Doe"}
	require.NoError(t, repos.Entities.Create(ctx, person))
	require.NoError(t, repos.Aliases.Create(ctx, &models.Alias{ResearchEntityID: person.ID, Value: "Doe J.", Main: true}))

	base := "/v1/research-entities/" + strconv.FormatInt(person.ID, 10)
	payload := map[string]any{
		"researchItemTypeId": store.TypeID("article"),
		"data": map[string]any{
			"title":  "Droplet microfluidics",
			"year":   "2023",
			"doi":    "10.1007/s10404-023-02629-4",
			"source": map[string]any{"title": "Microfluidics and Nanofluidics"},
		},
		"authors": []map[string]any{{"position": 0, "name": "Doe J.", "affiliations": []int64{1}}},
	}

	w, env := do(t, router, http.MethodPost, base+"/draft", payload)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first models.DraftResponse
	require.NoError(t, json.Unmarshal(env.Data, &first))

	w, _ = do(t, router, http.MethodPost, base+"/verify", map[string]any{"researchItemId": first.ResearchItem.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = do(t, router, http.MethodPost, base+"/draft", payload)
	require.Equal(t, http.StatusCreated, w.Code)
	var second models.DraftResponse
	require.NoError(t, json.Unmarshal(env.Data, &second))
	require.Len(t, second.Duplicates, 1)

	w, env = do(t, router, http.MethodPost, base+"/verify", map[string]any{"researchItemId": second.ResearchItem.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VerificationIsDuplicateError", env.Error.Type)

	w, env = do(t, router, http.MethodPost, base+"/draft", map[string]any{
		"researchItemTypeId": store.TypeID("article"),
		"data":               map[string]any{"year": 12},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ValidationError", env.Error.Type)
	assert.NotEmpty(t, env.Error.Fields)
}
