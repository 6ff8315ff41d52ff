package projection_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/research-output-api/internal/mocks"
	"github.com/research-output-api/internal/models"
	"github.com/research-output-api/internal/projection"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "graphene on silicon", projection.NormalizeText("<i>Graphene</i> on <b>Silicon</b>"))
	assert.Equal(t, "", projection.NormalizeText(""))
}

func TestItemFields(t *testing.T) {
	item := &models.ResearchItem{
		ID:                 7,
		ResearchItemTypeID: 3,
		Data: json.RawMessage(`{
			"title": "A <sub>Study</sub> of Things",
			"doi": "10.1/abc",
			"year": "2021",
			"event": "ICML",
			"eventType": "keynote",
			"applicationNumber": null
		}`),
	}

	p, err := projection.ItemFields(item, &models.ResearchItemType{ID: 3, Key: "article", Type: "publication"})
	require.NoError(t, err)

	assert.Equal(t, int64(7), p.ResearchItemID)
	assert.Equal(t, "a study of things", p.TitleString)
	assert.Equal(t, 17, p.TitleStringLength)
	require.NotNil(t, p.DOI)
	assert.Equal(t, "10.1/abc", *p.DOI)
	require.NotNil(t, p.Year)
	assert.Equal(t, 2021, *p.Year)
	assert.Equal(t, "icml", p.EventString)
	require.NotNil(t, p.SubType)
	assert.Equal(t, "keynote", *p.SubType)
	assert.Nil(t, p.ApplicationNumber)
	assert.Nil(t, p.PatentNumber)
}

func TestItemFieldsEdgeCases(t *testing.T) {
	t.Run("numeric year", func(t *testing.T) {
		p, err := projection.ItemFields(&models.ResearchItem{Data: json.RawMessage(`{"year": 2019}`)}, nil)
		require.NoError(t, err)
		require.NotNil(t, p.Year)
		assert.Equal(t, 2019, *p.Year)
	})

	t.Run("unparseable year is null", func(t *testing.T) {
		p, err := projection.ItemFields(&models.ResearchItem{Data: json.RawMessage(`{"year": "twenty"}`)}, nil)
		require.NoError(t, err)
		assert.Nil(t, p.Year)
	})

	t.Run("editorship takes the source title", func(t *testing.T) {
		item := &models.ResearchItem{Data: json.RawMessage(`{"title": "ignored", "source": {"title": "Journal Of X"}}`)}
		p, err := projection.ItemFields(item, &models.ResearchItemType{Key: "editorship", Type: "accomplishment"})
		require.NoError(t, err)
		assert.Equal(t, "journal of x", p.TitleString)
	})

	t.Run("empty data", func(t *testing.T) {
		p, err := projection.ItemFields(&models.ResearchItem{}, nil)
		require.NoError(t, err)
		assert.Equal(t, "", p.TitleString)
		assert.Nil(t, p.DOI)
	})

	t.Run("malformed data", func(t *testing.T) {
		_, err := projection.ItemFields(&models.ResearchItem{Data: json.RawMessage(`{`)}, nil)
		assert.Error(t, err)
	})
}

func TestAuthorsString(t *testing.T) {
	s, n := projection.AuthorsString([]*models.Author{
		{Position: 1, Name: "Smith J."},
		{Position: 0, Name: "Doe Ä."},
	})
	assert.Equal(t, "doe ä.smith j.", s)
	assert.Equal(t, 14, n)

	s, n = projection.AuthorsString(nil)
	assert.Equal(t, "", s)
	assert.Equal(t, 0, n)
}

func TestMaintainer(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewSeededStore()
	repos := store.Repositories()
	m := projection.NewMaintainer(zerolog.Nop())

	creator := &models.ResearchEntity{Type: models.EntityPerson, Name: "Doe"}
	require.NoError(t, repos.Entities.Create(ctx, creator))

	item := &models.ResearchItem{
		ResearchItemTypeID:      store.TypeID("article"),
		Kind:                    models.KindDraft,
		CreatorResearchEntityID: &creator.ID,
		Data:                    json.RawMessage(`{"title": "First Title"}`),
	}
	require.NoError(t, repos.Items.Create(ctx, item))
	require.NoError(t, m.OnItemWrite(ctx, repos, item))

	require.NoError(t, repos.Authors.Upsert(ctx, &models.Author{ResearchItemID: item.ID, Position: 0, Name: "Doe J."}))
	require.NoError(t, m.OnAuthorSetChanged(ctx, repos, item.ID))

	p := store.Projection(item.ID)
	require.NotNil(t, p)
	assert.Equal(t, "first title", p.TitleString)
	assert.Equal(t, "doe j.", p.AuthorsString)

	t.Run("item write keeps author columns", func(t *testing.T) {
		item.Data = json.RawMessage(`{"title": "Second Title"}`)
		require.NoError(t, repos.Items.Update(ctx, item))
		require.NoError(t, m.OnItemWrite(ctx, repos, item))

		p := store.Projection(item.ID)
		assert.Equal(t, "second title", p.TitleString)
		assert.Equal(t, "doe j.", p.AuthorsString)
	})

	t.Run("rebuild all", func(t *testing.T) {
		n, err := m.RebuildAll(ctx, repos)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, "second title", store.Projection(item.ID).TitleString)
	})

	t.Run("unknown type", func(t *testing.T) {
		err := m.OnItemWrite(ctx, repos, &models.ResearchItem{ID: item.ID, ResearchItemTypeID: 9999})
		assert.Error(t, err)
	})
}
