package validation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/research-output-api/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryCatalogTypeHasASchema(t *testing.T) {
	entries, err := catalog.Entries()
	require.NoError(t, err)

	keys, err := Keys()
	require.NoError(t, err)

	for _, e := range entries {
		assert.Contains(t, keys, catalog.ValidatorKey(string(e.Type), e.Key), "type %s", e.Key)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		payload    string
		profile    Profile
		wantFields []string
	}{
		{
			name:    "empty draft publication",
			key:     "publication",
			payload: `{}`,
			profile: ProfileDraft,
		},
		{
			name:       "empty verified publication",
			key:        "publication",
			payload:    `{}`,
			profile:    ProfileVerified,
			wantFields: []string{""},
		},
		{
			name:    "complete verified publication",
			key:     "publication",
			payload: `{"title": "A title", "year": "2020", "source": {"title": "Nature"}, "doi": "10.1038/nature12373"}`,
			profile: ProfileVerified,
		},
		{
			name:       "numeric year out of range",
			key:        "publication",
			payload:    `{"year": 20}`,
			profile:    ProfileDraft,
			wantFields: []string{"/year"},
		},
		{
			name:       "malformed doi",
			key:        "publication",
			payload:    `{"doi": "https://doi.org/10.1/x"}`,
			profile:    ProfileDraft,
			wantFields: []string{"/doi"},
		},
		{
			name:       "unknown event type",
			key:        "invited_talk",
			payload:    `{"eventType": "party"}`,
			profile:    ProfileDraft,
			wantFields: []string{"/eventType"},
		},
		{
			name:       "patent filing date format",
			key:        "patent",
			payload:    `{"title": "Graphene", "applicationNumber": "EP1", "filingDate": "yesterday"}`,
			profile:    ProfileVerified,
			wantFields: []string{"/filingDate"},
		},
		{
			name:       "project ends before it starts",
			key:        "project",
			payload:    `{"startDate": "2021-05-01", "endDate": "2020-01-01"}`,
			profile:    ProfileDraft,
			wantFields: []string{"/endDate"},
		},
		{
			name:       "editorship year range",
			key:        "accomplishment_editorship",
			payload:    `{"year": "2021", "yearTo": "2019"}`,
			profile:    ProfileDraft,
			wantFields: []string{"/yearTo"},
		},
		{
			name:       "array payload",
			key:        "publication",
			payload:    `[]`,
			profile:    ProfileDraft,
			wantFields: []string{""},
		},
		{
			name:       "trailing content",
			key:        "publication",
			payload:    `{} {}`,
			profile:    ProfileDraft,
			wantFields: []string{""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.key, json.RawMessage(tt.payload), tt.profile)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}

			var fieldErrs Errors
			require.True(t, errors.As(err, &fieldErrs), "expected field errors, got %v", err)
			fields := make([]string, len(fieldErrs))
			for i, fe := range fieldErrs {
				fields[i] = fe.Field
			}
			for _, want := range tt.wantFields {
				assert.Contains(t, fields, want)
			}
		})
	}
}

func TestValidateIgnoresSubmittedKind(t *testing.T) {
	err := Validate("publication", json.RawMessage(`{"kind": "draft"}`), ProfileVerified)
	assert.Error(t, err)
}

func TestValidateUnknownKey(t *testing.T) {
	err := Validate("poem", json.RawMessage(`{}`), ProfileDraft)
	require.Error(t, err)

	var fieldErrs Errors
	assert.False(t, errors.As(err, &fieldErrs))
}

func TestErrorsMessage(t *testing.T) {
	err := Errors{{Field: "/title", Message: "missing"}, {Field: "", Message: "bad"}}
	assert.Equal(t, "validation failed: /title missing; / bad", err.Error())
}
