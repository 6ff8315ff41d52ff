package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/research-output-api/internal/catalog"
	"github.com/research-output-api/internal/models"
	"github.com/research-output-api/internal/repository"
	"github.com/rs/zerolog"
)

// Store is an in-memory implementation of every repository. Top-level
// transactions are serialized; a failing transaction or savepoint restores
// the snapshot taken when it started.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	d    *storeData

	// FailOn makes the named operation (e.g. "Items.Select") return the error
	FailOn map[string]error
}

type origin struct {
	name       string
	identifier string
}

type storeData struct {
	seq          int64
	entities     map[int64]*models.ResearchEntity
	owners       map[int64]map[int64]bool
	aliases      map[int64]*models.Alias
	types        map[int64]*models.ResearchItemType
	items        map[int64]*models.ResearchItem
	authors      map[int64]*models.Author
	affiliations map[int64]map[int64]bool
	verified     map[int64]*models.Verified
	duplicates   map[int64]*models.Duplicate
	suggested    map[int64]*models.Suggested
	projections  map[int64]*models.SearchProjection
	origins      map[int64]origin
	itemOrigins  map[int64]map[int64]bool
}

func newStoreData() *storeData {
	return &storeData{
		entities:     make(map[int64]*models.ResearchEntity),
		owners:       make(map[int64]map[int64]bool),
		aliases:      make(map[int64]*models.Alias),
		types:        make(map[int64]*models.ResearchItemType),
		items:        make(map[int64]*models.ResearchItem),
		authors:      make(map[int64]*models.Author),
		affiliations: make(map[int64]map[int64]bool),
		verified:     make(map[int64]*models.Verified),
		duplicates:   make(map[int64]*models.Duplicate),
		suggested:    make(map[int64]*models.Suggested),
		projections:  make(map[int64]*models.SearchProjection),
		origins:      make(map[int64]origin),
		itemOrigins:  make(map[int64]map[int64]bool),
	}
}

func copyRows[T any](src map[int64]*T, dup func(*T) *T) map[int64]*T {
	out := make(map[int64]*T, len(src))
	for k, v := range src {
		out[k] = dup(v)
	}
	return out
}

func copySets(src map[int64]map[int64]bool) map[int64]map[int64]bool {
	out := make(map[int64]map[int64]bool, len(src))
	for k, set := range src {
		c := make(map[int64]bool, len(set))
		for id := range set {
			c[id] = true
		}
		out[k] = c
	}
	return out
}

func shallow[T any](v *T) *T {
	c := *v
	return &c
}

func (d *storeData) clone() *storeData {
	origins := make(map[int64]origin, len(d.origins))
	for k, v := range d.origins {
		origins[k] = v
	}
	return &storeData{
		seq:          d.seq,
		entities:     copyRows(d.entities, shallow[models.ResearchEntity]),
		owners:       copySets(d.owners),
		aliases:      copyRows(d.aliases, shallow[models.Alias]),
		types:        copyRows(d.types, shallow[models.ResearchItemType]),
		items:        copyRows(d.items, copyItem),
		authors:      copyRows(d.authors, copyAuthor),
		affiliations: copySets(d.affiliations),
		verified:     copyRows(d.verified, shallow[models.Verified]),
		duplicates:   copyRows(d.duplicates, shallow[models.Duplicate]),
		suggested:    copyRows(d.suggested, shallow[models.Suggested]),
		projections:  copyRows(d.projections, copyProjection),
		origins:      origins,
		itemOrigins:  copySets(d.itemOrigins),
	}
}

func copyItem(i *models.ResearchItem) *models.ResearchItem {
	c := *i
	if i.CreatorResearchEntityID != nil {
		id := *i.CreatorResearchEntityID
		c.CreatorResearchEntityID = &id
	}
	c.Data = append([]byte(nil), i.Data...)
	c.Authors = nil
	return &c
}

func copyAuthor(a *models.Author) *models.Author {
	c := *a
	if a.VerifiedID != nil {
		id := *a.VerifiedID
		c.VerifiedID = &id
	}
	c.Affiliations = append([]int64(nil), a.Affiliations...)
	return &c
}

func copyProjection(p *models.SearchProjection) *models.SearchProjection {
	c := *p
	return &c
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{d: newStoreData(), FailOn: make(map[string]error)}
}

// NewSeededStore creates a store holding the research item type catalog
func NewSeededStore() *Store {
	s := NewStore()
	if err := catalog.Seed(context.Background(), s.Repositories().Types, zerolog.Nop()); err != nil {
		panic(err)
	}
	return s
}

// Repositories returns non-transactional repositories over the store
func (s *Store) Repositories() *repository.Repositories {
	return s.bind(0)
}

// TypeID returns the id of a seeded research item type
func (s *Store) TypeID(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.d.types {
		if t.Key == key {
			return t.ID
		}
	}
	panic(fmt.Sprintf("unknown research item type %q", key))
}

func (s *Store) bind(depth int) *repository.Repositories {
	return &repository.Repositories{
		Entities:    &entityRepo{s: s},
		Aliases:     &aliasRepo{s: s},
		Types:       &typeRepo{s: s},
		Items:       &itemRepo{s: s},
		Authors:     &authorRepo{s: s},
		Verified:    &verifiedRepo{s: s},
		Duplicates:  &duplicateRepo{s: s},
		Suggestions: &suggestionRepo{s: s},
		Projections: &projectionRepo{s: s},
		Origins:     &originRepo{s: s},
		Tx:          &storeTx{s: s, depth: depth},
	}
}

func (s *Store) failure(op string) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn[op]
}

func (s *Store) nextID() int64 {
	s.d.seq++
	return s.d.seq
}

// storeTx gives the store transaction semantics
type storeTx struct {
	s     *Store
	depth int
}

var _ repository.Transactor = (*storeTx)(nil)

func (t *storeTx) Atomic(ctx context.Context, fn func(repos *repository.Repositories) error) error {
	if t.depth == 0 {
		t.s.txMu.Lock()
		defer t.s.txMu.Unlock()
	}

	t.s.mu.Lock()
	snapshot := t.s.d.clone()
	t.s.mu.Unlock()

	if err := fn(t.s.bind(t.depth + 1)); err != nil {
		t.s.mu.Lock()
		t.s.d = snapshot
		t.s.mu.Unlock()
		return err
	}
	return nil
}

// Snapshot accessors used by tests

// Items returns every research item ordered by id
func (s *Store) Items() []*models.ResearchItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedRows(s.d.items, func(i *models.ResearchItem) int64 { return i.ID }, copyItem)
}

// Duplicates returns every duplicate edge ordered by id
func (s *Store) Duplicates() []*models.Duplicate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedRows(s.d.duplicates, func(d *models.Duplicate) int64 { return d.ID }, shallow[models.Duplicate])
}

// Suggestions returns every suggestion ordered by id
func (s *Store) Suggestions() []*models.Suggested {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedRows(s.d.suggested, func(x *models.Suggested) int64 { return x.ID }, shallow[models.Suggested])
}

// VerifiedRows returns every verification ordered by id
func (s *Store) VerifiedRows() []*models.Verified {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedRows(s.d.verified, func(v *models.Verified) int64 { return v.ID }, shallow[models.Verified])
}

// AuthorCount counts the author rows of every item
func (s *Store) AuthorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.d.authors)
}

// Projection returns the stored projection of an item
func (s *Store) Projection(itemID int64) *models.SearchProjection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.d.projections[itemID]; ok {
		return copyProjection(p)
	}
	return nil
}

func sortedRows[T any](m map[int64]*T, id func(*T) int64, dup func(*T) *T) []*T {
	out := make([]*T, 0, len(m))
	for _, v := range m {
		out = append(out, dup(v))
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}
