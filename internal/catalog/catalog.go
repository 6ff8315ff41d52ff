// Package catalog holds the embedded table of research item types.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"github.com/research-output-api/internal/models"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Category is the family a research item type belongs to
type Category string

const (
	Publication    Category = "publication"
	Accomplishment Category = "accomplishment"
	InvitedTalk    Category = "invited_talk"
	Project        Category = "project"
	TrainingModule Category = "training_module"
	Patent         Category = "patent"
)

// Entry is one catalog row
type Entry struct {
	Key        string   `yaml:"key"`
	Label      string   `yaml:"label"`
	ShortLabel string   `yaml:"shortLabel"`
	Type       Category `yaml:"type"`
}

//go:embed types.yaml
var typesYAML []byte

var (
	loadOnce   sync.Once
	entries    []Entry
	entriesErr error
)

// Entries returns the catalog in declaration order
func Entries() ([]Entry, error) {
	loadOnce.Do(func() {
		entries, entriesErr = parse(typesYAML)
	})
	return entries, entriesErr
}

func parse(raw []byte) ([]Entry, error) {
	var out []Entry
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode research item types: %w", err)
	}
	seen := make(map[string]bool, len(out))
	for _, e := range out {
		if e.Key == "" {
			return nil, fmt.Errorf("research item type without key")
		}
		if seen[e.Key] {
			return nil, fmt.Errorf("duplicate research item type %q", e.Key)
		}
		if !e.Type.Valid() {
			return nil, fmt.Errorf("research item type %q has unknown category %q", e.Key, e.Type)
		}
		seen[e.Key] = true
	}
	return out, nil
}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	switch c {
	case Publication, Accomplishment, InvitedTalk, Project, TrainingModule, Patent:
		return true
	}
	return false
}

// ValidatorKey names the payload schema used for a type
func ValidatorKey(category, key string) string {
	if Category(category) == Accomplishment {
		return string(Accomplishment) + "_" + key
	}
	return category
}

// TypeStore is the persistence side of Seed
type TypeStore interface {
	UpsertType(ctx context.Context, t *models.ResearchItemType) error
}

// Seed writes every catalog entry to the store
func Seed(ctx context.Context, store TypeStore, log zerolog.Logger) error {
	list, err := Entries()
	if err != nil {
		return err
	}
	for _, e := range list {
		t := &models.ResearchItemType{
			Key:        e.Key,
			Label:      e.Label,
			ShortLabel: e.ShortLabel,
			Type:       string(e.Type),
		}
		if err := store.UpsertType(ctx, t); err != nil {
			return fmt.Errorf("seed research item type %s: %w", e.Key, err)
		}
	}
	log.Info().Int("count", len(list)).Msg("Research item types seeded")
	return nil
}
