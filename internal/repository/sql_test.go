package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateSQL(t *testing.T) {
	t.Run("verified", func(t *testing.T) {
		query, args, err := candidateSQL(CandidateQuery{
			Mode:               CandidatesVerified,
			ResearchItemID:     9,
			ResearchItemTypeID: 2,
			EntityIDs:          []int64{4, 5},
		})
		require.NoError(t, err)
		assert.Contains(t, query, "SELECT DISTINCT v.research_item_id, v.research_entity_id FROM verified v")
		assert.Contains(t, query, "v.research_entity_id IN ($2,$3)")
		assert.Contains(t, query, "ri.id <> $4")
		assert.Equal(t, []any{int64(2), int64(4), int64(5), int64(9)}, args)
	})

	t.Run("draft and suggested", func(t *testing.T) {
		query, args, err := candidateSQL(CandidateQuery{
			Mode:               CandidatesDraftAndSuggested,
			ResearchItemID:     9,
			ResearchItemTypeID: 2,
			ResearchEntityID:   4,
		})
		require.NoError(t, err)
		assert.Contains(t, query, "SELECT ri.id, 4::bigint FROM research_item ri")
		assert.Contains(t, query, "s.discarded = false")
		assert.NotContains(t, query, "?")
		assert.Len(t, args, 5)
	})

	_, _, err := candidateSQL(CandidateQuery{Mode: "everything"})
	assert.Error(t, err)
}

func TestSelectionSQL(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{"verified", "JOIN verified v ON v.research_item_id = ri.id WHERE v.research_entity_id = $1"},
		{"suggested", "JOIN suggested s ON s.research_item_id = ri.id"},
		{"draft", "ri.creator_research_entity_id = $1"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			query, args, err := selectionSQL(ItemSelection{Kind: tt.kind, ResearchEntityID: 3})
			require.NoError(t, err)
			assert.Contains(t, query, tt.want)
			assert.Contains(t, args, int64(3))
		})
	}

	_, _, err := selectionSQL(ItemSelection{Kind: "all"})
	assert.Error(t, err)
}

func TestMapError(t *testing.T) {
	unique := mapError(&pq.Error{Code: "23505", Constraint: "verified_research_item_id_research_entity_id_key"})
	assert.True(t, errors.Is(unique, ErrUniqueViolation))

	fk := mapError(fmt.Errorf("insert: %w", &pq.Error{Code: "23503", Constraint: "author_research_item_id_fkey"}))
	assert.True(t, errors.Is(fk, ErrInvalidReference))

	other := errors.New("connection reset")
	assert.Same(t, other, mapError(other))
	assert.Nil(t, mapError(nil))
}
