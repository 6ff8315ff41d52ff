package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

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

const sharedDOI = "10.1007/s10404-023-02629-4"

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *mocks.Store
	repos *repository.Repositories
	svc   *service.Services
}

func newFixture(t *testing.T) *fixture {
	store := mocks.NewSeededStore()
	cfg := &config.Config{Bulk: config.BulkConfig{MaxItems: 100, EntityConcurrency: 2}}
	return &fixture{
		t:     t,
		ctx:   context.Background(),
		store: store,
		repos: store.Repositories(),
		svc:   service.NewServices(store.Repositories(), cfg, metrics.New(), zerolog.Nop()),
	}
}

func (f *fixture) person(name string, aliases ...string) int64 {
	e := &models.ResearchEntity{Type: models.EntityPerson, Name: name}
	require.NoError(f.t, f.repos.Entities.Create(f.ctx, e))
	for i, a := range aliases {
		require.NoError(f.t, f.repos.Aliases.Create(f.ctx, &models.Alias{ResearchEntityID: e.ID, Value: a, Main: i == 0}))
	}
	return e.ID
}

func (f *fixture) group(name string) int64 {
	e := &models.ResearchEntity{Type: models.EntityGroup, Name: name}
	require.NoError(f.t, f.repos.Entities.Create(f.ctx, e))
	return e.ID
}

func publication(title, doi string) json.RawMessage {
	data := map[string]any{"title": title, "year": "2023", "source": map[string]any{"title": "Microfluidics and Nanofluidics"}}
	if doi != "" {
		data["doi"] = doi
	}
	raw, _ := json.Marshal(data)
	return raw
}

func authors(names ...string) []models.AuthorInput {
	out := make([]models.AuthorInput, len(names))
	for i, n := range names {
		out[i] = models.AuthorInput{Position: i, Name: n}
	}
	return out
}

func (f *fixture) draft(entityID int64, data json.RawMessage, names ...string) *models.DraftResponse {
	resp, err := f.svc.Drafts.CreateDraft(f.ctx, entityID, &models.DraftRequest{
		ResearchItemTypeID: f.store.TypeID("article"),
		Data:               data,
		Authors:            authors(names...),
	})
	require.NoError(f.t, err)
	return resp
}

func (f *fixture) verify(entityID, itemID int64) error {
	_, err := f.svc.Verification.Verify(f.ctx, entityID, &models.VerifyRequest{
		ResearchItemID: itemID,
		Affiliations:   []int64{1},
	})
	return err
}

func (f *fixture) activeDuplicates(itemID, entityID int64) []*models.Duplicate {
	active, err := f.repos.Duplicates.ListActive(f.ctx, itemID, entityID)
	require.NoError(f.t, err)
	return active
}

func assertKind(t *testing.T, err error, kind service.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, service.KindOf(err), "error: %v", err)
}

func TestDOIEqualityFlagsDuplicate(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")

	first := f.draft(p, publication("Droplet microfluidics", sharedDOI), "Doe J.", "Roe K.")
	require.NoError(t, f.verify(p, first.ResearchItem.ID))

	second := f.draft(p, publication("Something else entirely", sharedDOI), "Doe J.", "Poe M.", "Loe N.")
	require.Len(t, second.Duplicates, 1)
	assert.Equal(t, models.DuplicatePair{
		ResearchItemID:   second.ResearchItem.ID,
		DuplicateID:      first.ResearchItem.ID,
		ResearchEntityID: p,
	}, second.Duplicates[0])

	dups, err := f.svc.Duplicates.ListByItem(f.ctx, second.ResearchItem.ID)
	require.NoError(t, err)
	assert.Len(t, dups, 1)
}

func TestTitleThresholds(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")

	base := f.draft(p, publication("test publication for threshold analysis", ""), "Doe J.", "Roe K.")
	require.NoError(t, f.verify(p, base.ResearchItem.ID))

	tests := []struct {
		title string
		want  int
	}{
		{"test publication for threshold analy111", 1},
		{"test publication for threshold an123456", 0},
		{"test publication for threshold anal", 0},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			resp := f.draft(p, publication(tt.title, ""), "Doe J.", "Roe K.")
			assert.Len(t, resp.Duplicates, tt.want)
		})
	}
}

func TestAuthorThresholds(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe John")

	base := f.draft(p, publication("author similarity", ""), "Doe John", "Smith Simpson John Victor")
	require.NoError(t, f.verify(p, base.ResearchItem.ID))

	similar := f.draft(p, publication("author similarity", ""), "Doe John", "Smith Simpson John 123456")
	assert.Len(t, similar.Duplicates, 1)

	different := f.draft(p, publication("author similarity", ""), "Doe John", "Smith Simpson John 12345678")
	assert.Empty(t, different.Duplicates)
}

func TestVerificationBlockedByDuplicate(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")

	first := f.draft(p, publication("Droplet microfluidics", sharedDOI), "Doe J.")
	require.NoError(t, f.verify(p, first.ResearchItem.ID))
	second := f.draft(p, publication("Droplet microfluidics revisited", sharedDOI), "Doe J.")

	err := f.verify(p, second.ResearchItem.ID)
	assertKind(t, err, service.KindIsDuplicate)
	assert.True(t, errors.Is(err, service.ErrIsDuplicate))

	t.Run("failed verification leaves no state", func(t *testing.T) {
		v, err := f.repos.Verified.Get(f.ctx, second.ResearchItem.ID, p)
		require.NoError(t, err)
		assert.Nil(t, v)
		item, err := f.repos.Items.GetByID(f.ctx, second.ResearchItem.ID)
		require.NoError(t, err)
		assert.Equal(t, models.KindDraft, item.Kind)
	})

	t.Run("dismissed duplicates stay dismissed", func(t *testing.T) {
		_, err := f.svc.Verification.Verify(f.ctx, p, &models.VerifyRequest{
			ResearchItemID:     second.ResearchItem.ID,
			Affiliations:       []int64{1},
			SetDuplicatesFalse: true,
		})
		require.NoError(t, err)

		pairs, err := f.svc.Duplicates.Calculate(f.ctx, service.CalculateInput{
			ResearchItemID:   second.ResearchItem.ID,
			ResearchEntityID: p,
		})
		require.NoError(t, err)
		assert.Len(t, pairs, 1)
		assert.Empty(t, f.activeDuplicates(second.ResearchItem.ID, p))
	})
}

func TestCalculateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")

	first := f.draft(p, publication("Droplet microfluidics", sharedDOI), "Doe J.")
	require.NoError(t, f.verify(p, first.ResearchItem.ID))
	second := f.draft(p, publication("Other", sharedDOI), "Doe J.")

	in := service.CalculateInput{ResearchItemID: second.ResearchItem.ID, ResearchEntityID: p}
	a, err := f.svc.Duplicates.Calculate(f.ctx, in)
	require.NoError(t, err)
	before := f.store.Duplicates()

	b, err := f.svc.Duplicates.Calculate(f.ctx, in)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, before, f.store.Duplicates())
}

func TestUpdateDraftClearsStaleDuplicates(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")

	first := f.draft(p, publication("Droplet microfluidics", sharedDOI), "Doe J.")
	require.NoError(t, f.verify(p, first.ResearchItem.ID))
	second := f.draft(p, publication("Unrelated work", "https://doi.org/"+sharedDOI), "Doe J.")
	require.Len(t, second.Duplicates, 1, "prefixed DOI is normalized before matching")

	updated, err := f.svc.Drafts.UpdateDraft(f.ctx, p, &models.DraftRequest{
		ID:      second.ResearchItem.ID,
		Data:    publication("Unrelated work", ""),
		Authors: authors("Doe J."),
	})
	require.NoError(t, err)
	assert.Empty(t, updated.Duplicates)

	dups, err := f.svc.Duplicates.ListByItem(f.ctx, second.ResearchItem.ID)
	require.NoError(t, err)
	assert.Empty(t, dups)
}

func TestUpdateDraftOfAnotherEntity(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")
	q := f.person("Roe", "Roe K.")

	d := f.draft(p, publication("Mine", ""), "Doe J.")
	_, err := f.svc.Drafts.UpdateDraft(f.ctx, q, &models.DraftRequest{ID: d.ResearchItem.ID, Data: publication("Yours", "")})
	assertKind(t, err, service.KindNotFoundResearchItem)

	assertKind(t, f.svc.Drafts.DeleteDraft(f.ctx, q, d.ResearchItem.ID), service.KindNotFoundResearchItem)
	require.NoError(t, f.svc.Drafts.DeleteDraft(f.ctx, p, d.ResearchItem.ID))
	assert.Empty(t, f.store.Items())
}

func TestCreateDraftValidation(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")

	_, err := f.svc.Drafts.CreateDraft(f.ctx, p, &models.DraftRequest{
		ResearchItemTypeID: f.store.TypeID("article"),
		Data:               json.RawMessage(`{"year": 12}`),
	})
	assertKind(t, err, service.KindValidation)

	_, err = f.svc.Drafts.CreateDraft(f.ctx, p, &models.DraftRequest{
		ResearchItemTypeID: f.store.TypeID("article"),
		Data:               publication("Twice", ""),
		Authors:            []models.AuthorInput{{Position: 0, Name: "A"}, {Position: 0, Name: "B"}},
	})
	assertKind(t, err, service.KindValidation)
	assert.Empty(t, f.store.Items(), "failed drafts are rolled back")

	_, err = f.svc.Drafts.CreateDraft(f.ctx, 999, &models.DraftRequest{ResearchItemTypeID: f.store.TypeID("article")})
	assertKind(t, err, service.KindNotFoundResearchEntity)
}

func TestVerifyPersonAuthorSlot(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")

	d := f.draft(p, publication("Claimed", ""), "Roe K.", "Doe J.")
	yes := true
	_, err := f.svc.Verification.Verify(f.ctx, p, &models.VerifyRequest{
		ResearchItemID:        d.ResearchItem.ID,
		Affiliations:          []int64{7},
		IsCorrespondingAuthor: &yes,
	})
	require.NoError(t, err)

	list, err := f.repos.Authors.ListByItem(f.ctx, d.ResearchItem.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Nil(t, list[0].VerifiedID)
	require.NotNil(t, list[1].VerifiedID)
	assert.True(t, list[1].IsCorrespondingAuthor)
	assert.Equal(t, []int64{7}, list[1].Affiliations)

	item, err := f.repos.Items.GetByID(f.ctx, d.ResearchItem.ID)
	require.NoError(t, err)
	assert.Equal(t, models.KindVerified, item.Kind)
	assert.Nil(t, item.CreatorResearchEntityID)

	assertKind(t, f.verify(p, d.ResearchItem.ID), service.KindAlreadyVerified)
}

func TestVerifyAddsAliasForExplicitPosition(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")

	d := f.draft(p, publication("Pen name", ""), "J. Doe")
	pos := 0
	_, err := f.svc.Verification.Verify(f.ctx, p, &models.VerifyRequest{
		ResearchItemID: d.ResearchItem.ID,
		AuthorPosition: &pos,
		Affiliations:   []int64{1},
	})
	require.NoError(t, err)

	aliases, err := f.svc.Aliases.ListAliases(f.ctx, p)
	require.NoError(t, err)
	require.Len(t, aliases, 2)
	assert.Equal(t, "J. Doe", aliases[1].Value)
	assert.False(t, aliases[1].Main)
}

func TestVerifyFailures(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")
	other := f.person("Roe", "Roe K.")

	t.Run("missing item", func(t *testing.T) {
		assertKind(t, f.verify(p, 9999), service.KindNotFoundResearchItem)
	})

	t.Run("missing entity", func(t *testing.T) {
		d := f.draft(p, publication("Orphan", ""), "Doe J.")
		assertKind(t, f.verify(9999, d.ResearchItem.ID), service.KindNotFoundResearchEntity)
	})

	t.Run("payload fails the verified profile", func(t *testing.T) {
		d := f.draft(p, json.RawMessage(`{"title": "No year"}`), "Doe J.")
		assertKind(t, f.verify(p, d.ResearchItem.ID), service.KindValidation)
	})

	t.Run("no alias matches", func(t *testing.T) {
		d := f.draft(p, publication("Strangers", ""), "Someone Else")
		assertKind(t, f.verify(p, d.ResearchItem.ID), service.KindMissingAuthorPosition)
	})

	t.Run("no author in position", func(t *testing.T) {
		d := f.draft(p, publication("Short list", ""), "Doe J.")
		pos := 5
		_, err := f.svc.Verification.Verify(f.ctx, p, &models.VerifyRequest{ResearchItemID: d.ResearchItem.ID, AuthorPosition: &pos, Affiliations: []int64{1}})
		assertKind(t, err, service.KindMissingAuthorInPosition)
	})

	t.Run("no affiliation", func(t *testing.T) {
		d := f.draft(p, publication("Unaffiliated", ""), "Doe J.")
		_, err := f.svc.Verification.Verify(f.ctx, p, &models.VerifyRequest{ResearchItemID: d.ResearchItem.ID})
		assertKind(t, err, service.KindMissingAffiliation)
	})

	t.Run("draft of another person", func(t *testing.T) {
		d := f.draft(p, publication("Co-written", ""), "Doe J.", "Roe K.")
		assertKind(t, f.verify(other, d.ResearchItem.ID), service.KindNotDraftCreator)
		rows, err := f.repos.Verified.ListByItems(f.ctx, []int64{d.ResearchItem.ID})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("author slot already claimed", func(t *testing.T) {
		d := f.draft(p, publication("Shared slot", ""), "Doe J.")
		require.NoError(t, f.verify(p, d.ResearchItem.ID))
		impostor := f.person("Impostor", "Doe J.")
		assertKind(t, f.verify(impostor, d.ResearchItem.ID), service.KindAlreadyVerified)
	})
}

func TestUnverify(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")
	g := f.group("Lab")

	shared := f.draft(p, publication("Shared", ""), "Doe J.")
	require.NoError(t, f.verify(p, shared.ResearchItem.ID))
	require.NoError(t, f.verify(g, shared.ResearchItem.ID))

	t.Run("one of several verifications", func(t *testing.T) {
		require.NoError(t, f.svc.Verification.Unverify(f.ctx, p, shared.ResearchItem.ID))

		item, err := f.repos.Items.GetByID(f.ctx, shared.ResearchItem.ID)
		require.NoError(t, err)
		require.NotNil(t, item)
		rows, err := f.repos.Verified.ListByItems(f.ctx, []int64{shared.ResearchItem.ID})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, g, rows[0].ResearchEntityID)

		list, err := f.repos.Authors.ListByItem(f.ctx, shared.ResearchItem.ID)
		require.NoError(t, err)
		assert.Nil(t, list[0].VerifiedID)

		var discarded *models.Suggested
		for _, sg := range f.store.Suggestions() {
			if sg.ResearchItemID == shared.ResearchItem.ID && sg.ResearchEntityID == p {
				discarded = sg
			}
		}
		require.NotNil(t, discarded)
		assert.Equal(t, models.SuggestionManual, discarded.Type)
		assert.True(t, discarded.Discarded)
	})

	t.Run("not verified", func(t *testing.T) {
		err := f.svc.Verification.Unverify(f.ctx, p, shared.ResearchItem.ID)
		assertKind(t, err, service.KindUnverificationAlreadyVerified)
	})

	t.Run("last verification deletes the item", func(t *testing.T) {
		authorsBefore := f.store.AuthorCount()
		require.NoError(t, f.svc.Verification.Unverify(f.ctx, g, shared.ResearchItem.ID))

		item, err := f.repos.Items.GetByID(f.ctx, shared.ResearchItem.ID)
		require.NoError(t, err)
		assert.Nil(t, item)
		assert.Equal(t, authorsBefore-1, f.store.AuthorCount())
		assert.Nil(t, f.store.Projection(shared.ResearchItem.ID))
		for _, sg := range f.store.Suggestions() {
			assert.NotEqual(t, shared.ResearchItem.ID, sg.ResearchItemID)
		}
	})
}

func TestReplaceRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")

	old := f.draft(p, publication("Old version", ""), "Doe J.")
	require.NoError(t, f.verify(p, old.ResearchItem.ID))
	replacement := f.draft(p, publication("New version", ""), "Doe J.")

	_, err := f.svc.Verification.Replace(f.ctx, p, &models.ReplaceRequest{
		VerifyRequest: models.VerifyRequest{ResearchItemID: replacement.ResearchItem.ID},
		ToReplaceID:   old.ResearchItem.ID,
	})
	assertKind(t, err, service.KindMissingAffiliation)

	v, err := f.repos.Verified.Get(f.ctx, old.ResearchItem.ID, p)
	require.NoError(t, err)
	assert.NotNil(t, v, "unverify is undone")

	item, err := f.svc.Verification.Replace(f.ctx, p, &models.ReplaceRequest{
		VerifyRequest: models.VerifyRequest{ResearchItemID: replacement.ResearchItem.ID, Affiliations: []int64{1}},
		ToReplaceID:   old.ResearchItem.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.KindVerified, item.Kind)

	gone, err := f.repos.Items.GetByID(f.ctx, old.ResearchItem.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestGroupOwnerScope(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")
	g := f.group("Lab")
	require.NoError(t, f.repos.Entities.AddGroupOwner(f.ctx, p, g))

	first := f.draft(p, publication("Lab paper", sharedDOI), "Doe J.")
	require.NoError(t, f.verify(g, first.ResearchItem.ID))

	second := f.draft(p, publication("Lab paper copy", sharedDOI), "Doe J.")
	require.Len(t, second.Duplicates, 1)
	assert.Equal(t, g, second.Duplicates[0].ResearchEntityID)

	outsider := f.person("Roe", "Roe K.")
	third := f.draft(outsider, publication("Lab paper copy", sharedDOI), "Roe K.")
	assert.Empty(t, third.Duplicates)
}

func TestReverseDirectionOnVerify(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")

	pending := f.draft(p, publication("Pending copy", sharedDOI), "Doe J.")
	target := f.draft(p, publication("Target", sharedDOI), "Doe J.")
	require.Empty(t, target.Duplicates)

	require.NoError(t, f.verify(p, target.ResearchItem.ID))

	active := f.activeDuplicates(pending.ResearchItem.ID, p)
	require.Len(t, active, 1)
	assert.Equal(t, target.ResearchItem.ID, active[0].DuplicateID)
}

func TestAliasSuggestions(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")
	q := f.person("Roe", "Roe K.")

	d := f.draft(p, publication("Joint work", ""), "Doe J.", "Roe K.")
	require.NoError(t, f.verify(p, d.ResearchItem.ID))

	suggestedTo := func(entityID int64) []*models.Suggested {
		list, err := f.svc.Suggestions.ListByEntity(f.ctx, entityID, models.SuggestionAlias)
		require.NoError(t, err)
		return list
	}

	require.Len(t, suggestedTo(q), 1)
	assert.Equal(t, d.ResearchItem.ID, suggestedTo(q)[0].ResearchItemID)
	assert.Empty(t, suggestedTo(p))

	aliases, err := f.svc.Aliases.ListAliases(f.ctx, q)
	require.NoError(t, err)
	require.NoError(t, f.svc.Aliases.DeleteAlias(f.ctx, q, aliases[0].ID))
	assert.Empty(t, suggestedTo(q))

	_, err = f.svc.Aliases.AddAlias(f.ctx, q, &models.AliasRequest{Value: "Roe K."})
	require.NoError(t, err)
	assert.Len(t, suggestedTo(q), 1)

	_, err = f.svc.Aliases.AddAlias(f.ctx, q, &models.AliasRequest{Value: "Roe K."})
	assertKind(t, err, service.KindValidation)

	assertKind(t, f.svc.Aliases.DeleteAlias(f.ctx, q, 9999), service.KindNotFoundAlias)

	t.Run("verifying removes the suggestion", func(t *testing.T) {
		require.NoError(t, f.verify(q, d.ResearchItem.ID))
		assert.Empty(t, suggestedTo(q))
	})
}

func TestSuggestResearchItems(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")
	g := f.group("Lab")

	verified := f.draft(p, publication("Verified", ""), "Doe J.")
	require.NoError(t, f.verify(p, verified.ResearchItem.ID))
	unclaimed := f.draft(p, publication("Draft", ""), "Doe J.")

	results, err := f.svc.Suggestions.SuggestResearchItems(f.ctx, []models.SuggestionTarget{
		{ResearchItemID: verified.ResearchItem.ID, ResearchEntityID: g},
		{ResearchItemID: verified.ResearchItem.ID, ResearchEntityID: p},
		{ResearchItemID: unclaimed.ResearchItem.ID, ResearchEntityID: g},
		{ResearchItemID: 0, ResearchEntityID: g},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.True(t, results[0].Success)
	assert.Equal(t, "Already verified by this entity", results[1].Message)
	assert.Equal(t, "No verifications by other entities", results[2].Message)
	assert.Equal(t, "Invalid parameters", results[3].Message)

	list, err := f.svc.Suggestions.ListByEntity(f.ctx, g, models.SuggestionManual)
	require.NoError(t, err)
	require.Len(t, list, 1)

	n, err := f.svc.Suggestions.Discard(f.ctx, g, []int64{verified.ResearchItem.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	removed, err := f.svc.Suggestions.RemoveSuggestions(f.ctx, repository.SuggestionFilter{ResearchEntityID: g, Type: models.SuggestionManual})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = f.svc.Suggestions.RemoveSuggestions(f.ctx, repository.SuggestionFilter{ResearchEntityID: g, Type: "bogus"})
	assertKind(t, err, service.KindValidation)
}

func TestBulkVerify(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")
	g := f.group("Lab")

	good := f.draft(p, publication("Good", ""), "Doe J.")

	resp, err := f.svc.Bulk.Verify(f.ctx, &models.BulkVerifyRequest{
		BulkRequest:  models.BulkRequest{ResearchEntityIDs: []int64{p}, ItemIDs: []int64{good.ResearchItem.ID, 9999}},
		Affiliations: []int64{1},
		Suggestions: []models.SuggestionTarget{
			{ResearchItemID: good.ResearchItem.ID, ResearchEntityID: g},
			{ResearchItemID: 9999, ResearchEntityID: g},
		},
	})
	require.NoError(t, err)

	res := resp.Results[p]
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Successes.Count)
	assert.Equal(t, []int64{good.ResearchItem.ID}, res.Successes.IDs)
	assert.Equal(t, map[string]int{"NotFoundResearchItemError": 1}, res.Failures)

	require.Len(t, resp.Suggest, 1)
	assert.True(t, resp.Suggest[0].Success)
	assert.Equal(t, g, resp.Suggest[0].ResearchEntityID)
}

func TestBulkVerifyManyEntities(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")
	groups := []int64{f.group("A"), f.group("B"), f.group("C")}

	var ids []int64
	for _, title := range []string{"Droplet microfluidics", "Graphene transistors", "Bayesian inference"} {
		d := f.draft(p, publication(title, ""), "Doe J.")
		require.NoError(t, f.verify(p, d.ResearchItem.ID))
		ids = append(ids, d.ResearchItem.ID)
	}

	resp, err := f.svc.Bulk.Verify(f.ctx, &models.BulkVerifyRequest{
		BulkRequest: models.BulkRequest{
			ResearchEntityIDs:      groups,
			SelectAll:              true,
			ResearchOutputKind:     "verified",
			SearchResearchEntityID: p,
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	for _, g := range groups {
		assert.ElementsMatch(t, ids, resp.Results[g].Successes.IDs)
	}
	assert.Len(t, f.store.VerifiedRows(), 12)
}

func TestBulkSelectionFailure(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")
	f.store.FailOn["Items.Select"] = errors.New("connection reset")

	results, err := f.svc.Bulk.Unverify(f.ctx, &models.BulkRequest{
		ResearchEntityIDs:      []int64{p},
		SelectAll:              true,
		SearchResearchEntityID: p,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, results[p].Successes.Count)
	assert.Equal(t, map[string]int{"InternalError": 1}, results[p].Failures)
}

func TestBulkUnverifyDiscardAndDelete(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")

	v := f.draft(p, publication("To unverify", ""), "Doe J.")
	require.NoError(t, f.verify(p, v.ResearchItem.ID))
	d1 := f.draft(p, publication("Draft one", ""), "Doe J.")
	d2 := f.draft(p, publication("Draft two", ""), "Doe J.")

	results, err := f.svc.Bulk.Unverify(f.ctx, &models.BulkRequest{
		ResearchEntityIDs: []int64{p},
		ItemIDs:           []int64{v.ResearchItem.ID, d1.ResearchItem.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, results[p].Successes.Count)
	assert.Equal(t, 1, results[p].Failures["UnverificationAlreadyVerifiedError"])

	deleted, err := f.svc.Bulk.DeleteDrafts(f.ctx, &models.BulkRequest{ResearchEntityID: p, SelectAll: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{d1.ResearchItem.ID, d2.ResearchItem.ID}, deleted.Successes.IDs)
	assert.Empty(t, f.store.Items())

	_, err = f.svc.Bulk.Discard(f.ctx, &models.BulkRequest{})
	assertKind(t, err, service.KindValidation)
}

func TestUpsertExternal(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")
	typeID := f.store.TypeID("article")

	req := &models.ExternalRequest{
		OriginIdentifier:   "W4385",
		ResearchItemTypeID: typeID,
		Data:               publication("Imported", ""),
		Authors:            authors("Doe J.", "Roe K."),
	}
	created, err := f.svc.Drafts.UpsertExternal(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.KindExternal, created.Kind)

	p1 := f.store.Projection(created.ID)
	require.NotNil(t, p1)
	assert.Equal(t, "imported", p1.TitleString)

	again, err := f.svc.Drafts.UpsertExternal(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	req.Data = publication("Imported and corrected", "")
	updated, err := f.svc.Drafts.UpsertExternal(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "imported and corrected", f.store.Projection(created.ID).TitleString)

	require.NoError(t, f.verify(p, created.ID))
	same, err := f.svc.Drafts.UpsertExternal(f.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, created.ID, same.ID)
	assert.Len(t, f.store.Items(), 1)

	t.Run("origin id matches another publication", func(t *testing.T) {
		req.Data = publication("Imported, second edition with a new title", "")
		other, err := f.svc.Drafts.UpsertExternal(f.ctx, req)
		require.NoError(t, err)
		assert.NotEqual(t, created.ID, other.ID)

		pairs, err := f.svc.Duplicates.Calculate(f.ctx, service.CalculateInput{ResearchItemID: other.ID, ResearchEntityID: p})
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, created.ID, pairs[0].DuplicateID)
	})
}

func TestSetDuplicate(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")
	a := f.draft(p, publication("A", ""), "Doe J.")
	b := f.draft(p, publication("B", ""), "Doe J.")

	d, err := f.svc.Duplicates.SetDuplicate(f.ctx, &models.Duplicate{ResearchItemID: a.ResearchItem.ID, DuplicateID: b.ResearchItem.ID, ResearchEntityID: p, IsDuplicate: false})
	require.NoError(t, err)
	assert.False(t, d.IsDuplicate)

	_, err = f.svc.Duplicates.SetDuplicate(f.ctx, &models.Duplicate{ResearchItemID: a.ResearchItem.ID, DuplicateID: b.ResearchItem.ID, ResearchEntityID: p, IsDuplicate: true})
	require.NoError(t, err)
	stored, err := f.svc.Duplicates.ListByItem(f.ctx, a.ResearchItem.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.False(t, stored[0].IsDuplicate, "false is sticky")

	_, err = f.svc.Duplicates.SetDuplicate(f.ctx, &models.Duplicate{ResearchItemID: a.ResearchItem.ID, DuplicateID: a.ResearchItem.ID, ResearchEntityID: p})
	assertKind(t, err, service.KindValidation)

	_, err = f.svc.Duplicates.SetDuplicate(f.ctx, &models.Duplicate{ResearchItemID: a.ResearchItem.ID, DuplicateID: 9999, ResearchEntityID: p})
	assertKind(t, err, service.KindValidation)
}

func TestProjectsHaveNoDuplicates(t *testing.T) {
	f := newFixture(t)
	p := f.person("Doe", "Doe J.")

	data := json.RawMessage(`{"title": "Same project", "startDate": "2020-01-01", "endDate": "2022-01-01"}`)
	typeID := f.store.TypeID("project_competitive")

	for i := 0; i < 2; i++ {
		resp, err := f.svc.Drafts.CreateDraft(f.ctx, p, &models.DraftRequest{ResearchItemTypeID: typeID, Data: data, Authors: authors("Doe J.")})
		require.NoError(t, err)
		assert.Empty(t, resp.Duplicates)
	}
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &service.Error{Kind: service.KindAlreadyVerified, ResearchItemID: 3})
	assert.True(t, errors.Is(err, service.ErrAlreadyVerified))
	assert.False(t, errors.Is(err, service.ErrIsDuplicate))
	assert.Equal(t, service.KindAlreadyVerified, service.KindOf(err))
	assert.Equal(t, service.KindInternal, service.KindOf(errors.New("boom")))
	assert.True(t, service.KindNotFoundResearchItem.NotFound())
	assert.False(t, service.KindIsDuplicate.NotFound())
}
