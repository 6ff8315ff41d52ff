package service_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/research-output-api/internal/models"
	"github.com/research-output-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testdataPath returns the absolute path to a file in the testdata directory.
func testdataPath(t testing.TB, filename string) string {
	t.Helper()
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file path")
	}
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(currentFile)))
	path := filepath.Join(projectRoot, "testdata", filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skipf("testdata file not found: %s", path)
	}
	return path
}

type externalWork struct {
	OriginIdentifier string          `json:"originIdentifier"`
	Data             json.RawMessage `json:"data"`
	Authors          []string        `json:"authors"`
}

func loadWorks(t *testing.T) []externalWork {
	t.Helper()
	f, err := os.Open(testdataPath(t, "external_works.ndjson"))
	require.NoError(t, err)
	defer f.Close()

	var works []externalWork
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var w externalWork
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &w))
		works = append(works, w)
	}
	require.NoError(t, scanner.Err())
	return works
}

func TestExternalImportDuplicates(t *testing.T) {
	f := newFixture(t)
	works := loadWorks(t)
	require.Len(t, works, 6)

	ids := make(map[string]int64)
	for _, w := range works[:5] {
		item, err := f.svc.Drafts.UpsertExternal(f.ctx, &models.ExternalRequest{
			OriginIdentifier:   w.OriginIdentifier,
			ResearchItemTypeID: f.store.TypeID("article"),
			Data:               w.Data,
			Authors:            authors(w.Authors...),
		})
		require.NoError(t, err, w.OriginIdentifier)
		assert.Equal(t, models.KindExternal, item.Kind)
		ids[w.OriginIdentifier] = item.ID
	}
	require.Len(t, f.store.Items(), 5)

	p := f.person("Doe", "Doe J.")
	require.NoError(t, f.verify(p, ids["W2970001"]))

	tests := []struct {
		origin    string
		duplicate bool
	}{
		{"W2970002", true},  // same DOI once the resolver prefix is stripped
		{"W2970003", true},  // one character typo in the title
		{"W2970004", false}, // different work, same authors
		{"W2970005", false}, // same title, different authors
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			pairs, err := f.svc.Duplicates.Calculate(f.ctx, service.CalculateInput{
				ResearchItemID:   ids[tt.origin],
				ResearchEntityID: p,
			})
			require.NoError(t, err)
			if !tt.duplicate {
				assert.Empty(t, pairs)
				return
			}
			require.Len(t, pairs, 1)
			assert.Equal(t, ids["W2970001"], pairs[0].DuplicateID)
			assert.Equal(t, p, pairs[0].ResearchEntityID)
		})
	}

	t.Run("re-import of a verified work", func(t *testing.T) {
		w := works[5]
		item, err := f.svc.Drafts.UpsertExternal(f.ctx, &models.ExternalRequest{
			OriginIdentifier:   w.OriginIdentifier,
			ResearchItemTypeID: f.store.TypeID("article"),
			Data:               w.Data,
			Authors:            authors(w.Authors...),
		})
		require.NoError(t, err)
		assert.Equal(t, ids["W2970001"], item.ID)
		assert.Equal(t, models.KindVerified, item.Kind)
		assert.Len(t, f.store.Items(), 5)
	})
}
