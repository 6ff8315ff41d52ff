// Package projection derives the duplicate-search row of a research item.
package projection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/research-output-api/internal/models"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// editorshipKey takes its title from the nested source
const editorshipKey = "editorship"

// NormalizeText strips HTML tags and lower-cases s
func NormalizeText(s string) string {
	return strings.ToLower(htmlTag.ReplaceAllString(s, ""))
}

// ItemFields builds the item-derived columns of a projection. Author columns are left zero.
func ItemFields(item *models.ResearchItem, itemType *models.ResearchItemType) (*models.SearchProjection, error) {
	data, err := decodeData(item.Data)
	if err != nil {
		return nil, fmt.Errorf("decode data of research item %d: %w", item.ID, err)
	}

	var title string
	if itemType != nil && itemType.Key == editorshipKey {
		title = deref(textField(data, "source", "title"))
	} else {
		title = deref(textField(data, "title"))
	}
	title = NormalizeText(title)
	event := NormalizeText(deref(textField(data, "event")))

	return &models.SearchProjection{
		ResearchItemID:     item.ID,
		ResearchItemTypeID: item.ResearchItemTypeID,
		DOI:                textField(data, "doi"),
		TitleString:        title,
		TitleStringLength:  utf8.RuneCountInString(title),
		EventString:        event,
		EventStringLength:  utf8.RuneCountInString(event),
		Year:               intField(data, "year"),
		SubType:            textField(data, "eventType"),
		ApplicationNumber:  textField(data, "applicationNumber"),
		FilingDate:         textField(data, "filingDate"),
		PatentNumber:       textField(data, "patentNumber"),
		IssueDate:          textField(data, "issueDate"),
	}, nil
}

// AuthorsString concatenates author names in position order, lower-cased and without separator
func AuthorsString(authors []*models.Author) (string, int) {
	sorted := make([]*models.Author, len(authors))
	copy(sorted, authors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	var b strings.Builder
	for _, a := range sorted {
		b.WriteString(a.Name)
	}
	s := strings.ToLower(b.String())
	return s, utf8.RuneCountInString(s)
}

// Build returns the complete projection of an item
func Build(item *models.ResearchItem, itemType *models.ResearchItemType, authors []*models.Author) (*models.SearchProjection, error) {
	p, err := ItemFields(item, itemType)
	if err != nil {
		return nil, err
	}
	p.AuthorsString, p.AuthorsStringLength = AuthorsString(authors)
	return p, nil
}

func decodeData(raw json.RawMessage) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
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

// textField reads a nested value as text, like the ->> operator: null and
// missing give nil, scalars their literal text, objects their JSON.
func textField(data map[string]any, path ...string) *string {
	var cur any = data
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = obj[key]
		if !ok {
			return nil
		}
	}

	switch v := cur.(type) {
	case nil:
		return nil
	case string:
		return &v
	case json.Number:
		s := v.String()
		return &s
	case bool:
		s := strconv.FormatBool(v)
		return &s
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		s := string(raw)
		return &s
	}
}

func intField(data map[string]any, key string) *int {
	s := textField(data, key)
	if s == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(*s))
	if err != nil {
		return nil
	}
	return &n
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
