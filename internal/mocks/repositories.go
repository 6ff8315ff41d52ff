package mocks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/research-output-api/internal/models"
	"github.com/research-output-api/internal/repository"
)

var (
	_ repository.EntityRepository     = (*entityRepo)(nil)
	_ repository.AliasRepository      = (*aliasRepo)(nil)
	_ repository.ItemTypeRepository   = (*typeRepo)(nil)
	_ repository.ItemRepository       = (*itemRepo)(nil)
	_ repository.AuthorRepository     = (*authorRepo)(nil)
	_ repository.VerifiedRepository   = (*verifiedRepo)(nil)
	_ repository.DuplicateRepository  = (*duplicateRepo)(nil)
	_ repository.SuggestionRepository = (*suggestionRepo)(nil)
	_ repository.ProjectionRepository = (*projectionRepo)(nil)
	_ repository.OriginRepository     = (*originRepo)(nil)
)

// entityRepo is the in-memory EntityRepository
type entityRepo struct{ s *Store }

func (r *entityRepo) Create(ctx context.Context, e *models.ResearchEntity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = r.s.nextID()
	e.CreatedAt, e.UpdatedAt = time.Now(), time.Now()
	r.s.d.entities[e.ID] = shallow(e)
	return nil
}

func (r *entityRepo) GetByID(ctx context.Context, id int64) (*models.ResearchEntity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.d.entities[id]; ok {
		return shallow(e), nil
	}
	return nil, nil
}

func (r *entityRepo) AddGroupOwner(ctx context.Context, personID, groupID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.d.entities[personID] == nil || r.s.d.entities[groupID] == nil {
		return repository.ErrInvalidReference
	}
	if r.s.d.owners[personID] == nil {
		r.s.d.owners[personID] = make(map[int64]bool)
	}
	r.s.d.owners[personID][groupID] = true
	return nil
}

func (r *entityRepo) OwnedGroupIDs(ctx context.Context, personID int64) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedKeys(r.s.d.owners[personID]), nil
}

// aliasRepo is the in-memory AliasRepository
type aliasRepo struct{ s *Store }

func (r *aliasRepo) Create(ctx context.Context, a *models.Alias) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.d.entities[a.ResearchEntityID] == nil {
		return repository.ErrInvalidReference
	}
	for _, existing := range r.s.d.aliases {
		if existing.ResearchEntityID == a.ResearchEntityID && existing.Value == a.Value {
			return fmt.Errorf("%w: unique_alias", repository.ErrUniqueViolation)
		}
	}
	a.ID = r.s.nextID()
	a.CreatedAt = time.Now()
	r.s.d.aliases[a.ID] = shallow(a)
	return nil
}

func (r *aliasRepo) Delete(ctx context.Context, entityID, aliasID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.d.aliases[aliasID]
	if !ok || a.ResearchEntityID != entityID {
		return false, nil
	}
	delete(r.s.d.aliases, aliasID)
	return true, nil
}

func (r *aliasRepo) ListByEntity(ctx context.Context, entityID int64) ([]*models.Alias, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Alias
	for _, a := range r.s.d.aliases {
		if a.ResearchEntityID == entityID {
			out = append(out, shallow(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Main != out[j].Main {
			return out[i].Main
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// typeRepo is the in-memory ItemTypeRepository
type typeRepo struct{ s *Store }

func (r *typeRepo) UpsertType(ctx context.Context, t *models.ResearchItemType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.d.types {
		if existing.Key == t.Key {
			t.ID = existing.ID
			r.s.d.types[t.ID] = shallow(t)
			return nil
		}
	}
	t.ID = r.s.nextID()
	r.s.d.types[t.ID] = shallow(t)
	return nil
}

func (r *typeRepo) GetByID(ctx context.Context, id int64) (*models.ResearchItemType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.d.types[id]; ok {
		return shallow(t), nil
	}
	return nil, nil
}

func (r *typeRepo) List(ctx context.Context) ([]*models.ResearchItemType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedRows(r.s.d.types, func(t *models.ResearchItemType) int64 { return t.ID }, shallow[models.ResearchItemType]), nil
}

// itemRepo is the in-memory ItemRepository
type itemRepo struct{ s *Store }

func (r *itemRepo) checkItem(item *models.ResearchItem) error {
	if r.s.d.types[item.ResearchItemTypeID] == nil {
		return fmt.Errorf("%w: research_item_type", repository.ErrInvalidReference)
	}
	if (item.Kind == models.KindDraft) != (item.CreatorResearchEntityID != nil) {
		return fmt.Errorf("draft_has_creator check violated for kind %s", item.Kind)
	}
	return nil
}

func (r *itemRepo) Create(ctx context.Context, item *models.ResearchItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.checkItem(item); err != nil {
		return err
	}
	item.ID = r.s.nextID()
	item.CreatedAt, item.UpdatedAt = time.Now(), time.Now()
	if len(item.Data) == 0 {
		item.Data = []byte("{}")
	}
	r.s.d.items[item.ID] = copyItem(item)
	return nil
}

func (r *itemRepo) Update(ctx context.Context, item *models.ResearchItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.d.items[item.ID] == nil {
		return fmt.Errorf("research item %d not found", item.ID)
	}
	if err := r.checkItem(item); err != nil {
		return err
	}
	item.UpdatedAt = time.Now()
	r.s.d.items[item.ID] = copyItem(item)
	return nil
}

func (r *itemRepo) GetByID(ctx context.Context, id int64) (*models.ResearchItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if item, ok := r.s.d.items[id]; ok {
		return copyItem(item), nil
	}
	return nil, nil
}

func (r *itemRepo) Delete(ctx context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.d.items[id] == nil {
		return false, nil
	}
	d := r.s.d
	delete(d.items, id)
	delete(d.projections, id)
	delete(d.itemOrigins, id)
	for aid, a := range d.authors {
		if a.ResearchItemID == id {
			delete(d.authors, aid)
			delete(d.affiliations, aid)
		}
	}
	for vid, v := range d.verified {
		if v.ResearchItemID == id {
			delete(d.verified, vid)
		}
	}
	for did, dup := range d.duplicates {
		if dup.ResearchItemID == id || dup.DuplicateID == id {
			delete(d.duplicates, did)
		}
	}
	for sid, sg := range d.suggested {
		if sg.ResearchItemID == id {
			delete(d.suggested, sid)
		}
	}
	return true, nil
}

func (r *itemRepo) FindByOrigin(ctx context.Context, originName, identifier string, kind models.Kind) (*models.ResearchItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range sortedKeys(itemSet(r.s.d.items)) {
		item := r.s.d.items[id]
		if item.Kind != kind {
			continue
		}
		for oid := range r.s.d.itemOrigins[id] {
			o := r.s.d.origins[oid]
			if o.name == originName && o.identifier == identifier {
				return copyItem(item), nil
			}
		}
	}
	return nil, nil
}

func (r *itemRepo) Select(ctx context.Context, sel repository.ItemSelection) ([]int64, error) {
	if err := r.s.failure("Items.Select"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make(map[int64]bool)
	switch sel.Kind {
	case "verified":
		for _, v := range r.s.d.verified {
			if v.ResearchEntityID == sel.ResearchEntityID {
				ids[v.ResearchItemID] = true
			}
		}
	case "suggested":
		for _, sg := range r.s.d.suggested {
			if sg.ResearchEntityID == sel.ResearchEntityID && !sg.Discarded {
				ids[sg.ResearchItemID] = true
			}
		}
	case "draft":
		for _, item := range r.s.d.items {
			if item.IsDraftOf(sel.ResearchEntityID) {
				ids[item.ID] = true
			}
		}
	default:
		return nil, fmt.Errorf("unknown selection kind %q", sel.Kind)
	}
	return sortedKeys(ids), nil
}

func (r *itemRepo) ListIDs(ctx context.Context) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedKeys(itemSet(r.s.d.items)), nil
}

// authorRepo is the in-memory AuthorRepository
type authorRepo struct{ s *Store }

func (r *authorRepo) ListByItem(ctx context.Context, itemID int64) ([]*models.Author, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Author
	for _, a := range r.s.d.authors {
		if a.ResearchItemID == itemID {
			c := copyAuthor(a)
			c.Affiliations = sortedKeys(r.s.d.affiliations[a.ID])
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *authorRepo) Upsert(ctx context.Context, a *models.Author) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.d.items[a.ResearchItemID] == nil {
		return fmt.Errorf("%w: research_item", repository.ErrInvalidReference)
	}
	for _, existing := range r.s.d.authors {
		if existing.ResearchItemID == a.ResearchItemID && existing.Position == a.Position {
			existing.Name = a.Name
			existing.IsCorrespondingAuthor = a.IsCorrespondingAuthor
			existing.IsFirstCoauthor = a.IsFirstCoauthor
			existing.IsLastCoauthor = a.IsLastCoauthor
			existing.IsOralPresentation = a.IsOralPresentation
			a.ID = existing.ID
			a.VerifiedID = copyAuthor(existing).VerifiedID
			return nil
		}
	}
	a.ID = r.s.nextID()
	a.VerifiedID = nil
	stored := copyAuthor(a)
	stored.Affiliations = nil
	r.s.d.authors[a.ID] = stored
	return nil
}

func (r *authorRepo) Update(ctx context.Context, a *models.Author) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.d.authors[a.ID]
	if !ok {
		return fmt.Errorf("author %d not found", a.ID)
	}
	existing.VerifiedID = copyAuthor(a).VerifiedID
	existing.IsCorrespondingAuthor = a.IsCorrespondingAuthor
	existing.IsFirstCoauthor = a.IsFirstCoauthor
	existing.IsLastCoauthor = a.IsLastCoauthor
	existing.IsOralPresentation = a.IsOralPresentation
	return nil
}

func (r *authorRepo) DeleteNotInPositions(ctx context.Context, itemID int64, positions []int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	keep := make(map[int]bool, len(positions))
	for _, p := range positions {
		keep[p] = true
	}
	var n int64
	for id, a := range r.s.d.authors {
		if a.ResearchItemID == itemID && !keep[a.Position] {
			delete(r.s.d.authors, id)
			delete(r.s.d.affiliations, id)
			n++
		}
	}
	return n, nil
}

func (r *authorRepo) SetAffiliations(ctx context.Context, authorID int64, instituteIDs []int64) error {
	r.s.mu.Lock()
	set := make(map[int64]bool, len(instituteIDs))
	for _, id := range instituteIDs {
		set[id] = true
	}
	r.s.d.affiliations[authorID] = set
	r.s.mu.Unlock()
	return nil
}

func (r *authorRepo) AddAffiliations(ctx context.Context, authorID int64, instituteIDs []int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.d.affiliations[authorID] == nil {
		r.s.d.affiliations[authorID] = make(map[int64]bool)
	}
	for _, id := range instituteIDs {
		r.s.d.affiliations[authorID][id] = true
	}
	return nil
}

// verifiedRepo is the in-memory VerifiedRepository
type verifiedRepo struct{ s *Store }

func (r *verifiedRepo) Create(ctx context.Context, v *models.Verified) error {
	if err := r.s.failure("Verified.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.d.items[v.ResearchItemID] == nil || r.s.d.entities[v.ResearchEntityID] == nil {
		return repository.ErrInvalidReference
	}
	for _, existing := range r.s.d.verified {
		if existing.ResearchItemID == v.ResearchItemID && existing.ResearchEntityID == v.ResearchEntityID {
			return fmt.Errorf("%w: unique_verified", repository.ErrUniqueViolation)
		}
	}
	v.ID = r.s.nextID()
	v.CreatedAt = time.Now()
	r.s.d.verified[v.ID] = shallow(v)
	return nil
}

func (r *verifiedRepo) Get(ctx context.Context, itemID, entityID int64) (*models.Verified, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.d.verified {
		if v.ResearchItemID == itemID && v.ResearchEntityID == entityID {
			return shallow(v), nil
		}
	}
	return nil, nil
}

func (r *verifiedRepo) Delete(ctx context.Context, itemID, entityID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, v := range r.s.d.verified {
		if v.ResearchItemID == itemID && v.ResearchEntityID == entityID {
			delete(r.s.d.verified, id)
			for _, a := range r.s.d.authors {
				if a.VerifiedID != nil && *a.VerifiedID == id {
					a.VerifiedID = nil
				}
			}
			n++
		}
	}
	return n, nil
}

func (r *verifiedRepo) CountByItem(ctx context.Context, itemID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, v := range r.s.d.verified {
		if v.ResearchItemID == itemID {
			n++
		}
	}
	return n, nil
}

func (r *verifiedRepo) ListByItems(ctx context.Context, itemIDs []int64) ([]*models.Verified, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := idSet(itemIDs)
	var out []*models.Verified
	for _, v := range sortedRows(r.s.d.verified, func(v *models.Verified) int64 { return v.ID }, shallow[models.Verified]) {
		if want[v.ResearchItemID] {
			out = append(out, v)
		}
	}
	return out, nil
}

// duplicateRepo is the in-memory DuplicateRepository
type duplicateRepo struct{ s *Store }

func (r *duplicateRepo) Candidates(ctx context.Context, q repository.CandidateQuery) ([]repository.Candidate, error) {
	if err := r.s.failure("Duplicates.Candidates"); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := r.s.d
	sameType := func(id int64) bool {
		item := d.items[id]
		return item != nil && item.ResearchItemTypeID == q.ResearchItemTypeID && id != q.ResearchItemID
	}

	seen := make(map[repository.Candidate]bool)
	switch q.Mode {
	case repository.CandidatesVerified:
		scope := idSet(q.EntityIDs)
		for _, v := range d.verified {
			if scope[v.ResearchEntityID] && sameType(v.ResearchItemID) {
				seen[repository.Candidate{ResearchItemID: v.ResearchItemID, ResearchEntityID: v.ResearchEntityID}] = true
			}
		}
	case repository.CandidatesDraftAndSuggested:
		for id, item := range d.items {
			if item.IsDraftOf(q.ResearchEntityID) && sameType(id) {
				seen[repository.Candidate{ResearchItemID: id, ResearchEntityID: q.ResearchEntityID}] = true
			}
		}
		for _, sg := range d.suggested {
			if sg.ResearchEntityID == q.ResearchEntityID && !sg.Discarded && sameType(sg.ResearchItemID) {
				seen[repository.Candidate{ResearchItemID: sg.ResearchItemID, ResearchEntityID: q.ResearchEntityID}] = true
			}
		}
	default:
		return nil, fmt.Errorf("unknown candidate mode %q", q.Mode)
	}

	out := make([]repository.Candidate, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ResearchItemID != out[j].ResearchItemID {
			return out[i].ResearchItemID < out[j].ResearchItemID
		}
		return out[i].ResearchEntityID < out[j].ResearchEntityID
	})
	return out, nil
}

func (r *duplicateRepo) UpdateOrCreate(ctx context.Context, dup *models.Duplicate) error {
	if err := r.s.failure("Duplicates.UpdateOrCreate"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := r.s.d
	if d.items[dup.ResearchItemID] == nil || d.items[dup.DuplicateID] == nil || d.entities[dup.ResearchEntityID] == nil {
		return repository.ErrInvalidReference
	}
	if dup.ResearchItemID == dup.DuplicateID {
		return fmt.Errorf("duplicate_not_self check violated for item %d", dup.ResearchItemID)
	}
	for _, existing := range d.duplicates {
		if existing.ResearchItemID == dup.ResearchItemID && existing.DuplicateID == dup.DuplicateID &&
			existing.ResearchEntityID == dup.ResearchEntityID {
			if existing.IsDuplicate && !dup.IsDuplicate {
				existing.UpdatedAt = time.Now()
			}
			existing.IsDuplicate = existing.IsDuplicate && dup.IsDuplicate
			*dup = *existing
			return nil
		}
	}
	dup.ID = r.s.nextID()
	dup.CreatedAt, dup.UpdatedAt = time.Now(), time.Now()
	d.duplicates[dup.ID] = shallow(dup)
	return nil
}

func (r *duplicateRepo) filter(keep func(*models.Duplicate) bool) []*models.Duplicate {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Duplicate
	for _, dup := range sortedRows(r.s.d.duplicates, func(d *models.Duplicate) int64 { return d.ID }, shallow[models.Duplicate]) {
		if keep(dup) {
			out = append(out, dup)
		}
	}
	return out
}

func (r *duplicateRepo) ListActive(ctx context.Context, itemID, entityID int64) ([]*models.Duplicate, error) {
	return r.filter(func(d *models.Duplicate) bool {
		return d.ResearchItemID == itemID && d.ResearchEntityID == entityID && d.IsDuplicate
	}), nil
}

func (r *duplicateRepo) ListByItem(ctx context.Context, itemID int64) ([]*models.Duplicate, error) {
	return r.filter(func(d *models.Duplicate) bool { return d.ResearchItemID == itemID }), nil
}

func (r *duplicateRepo) DeleteForItem(ctx context.Context, itemID int64, entityIDs []int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	scope := idSet(entityIDs)
	var n int64
	for id, d := range r.s.d.duplicates {
		if d.ResearchItemID == itemID && scope[d.ResearchEntityID] {
			delete(r.s.d.duplicates, id)
			n++
		}
	}
	return n, nil
}

func (r *duplicateRepo) DeleteByDuplicate(ctx context.Context, duplicateID, entityID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, d := range r.s.d.duplicates {
		if d.DuplicateID == duplicateID && d.ResearchEntityID == entityID {
			delete(r.s.d.duplicates, id)
			n++
		}
	}
	return n, nil
}

// suggestionRepo is the in-memory SuggestionRepository
type suggestionRepo struct{ s *Store }

func (r *suggestionRepo) insert(sg *models.Suggested) error {
	if r.s.d.items[sg.ResearchItemID] == nil || r.s.d.entities[sg.ResearchEntityID] == nil {
		return repository.ErrInvalidReference
	}
	sg.ID = r.s.nextID()
	sg.CreatedAt = time.Now()
	r.s.d.suggested[sg.ID] = shallow(sg)
	return nil
}

func (r *suggestionRepo) find(itemID, entityID int64, t models.SuggestionType) *models.Suggested {
	for _, sg := range r.s.d.suggested {
		if sg.ResearchItemID == itemID && sg.ResearchEntityID == entityID && sg.Type == t {
			return sg
		}
	}
	return nil
}

func (r *suggestionRepo) Create(ctx context.Context, sg *models.Suggested) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.find(sg.ResearchItemID, sg.ResearchEntityID, sg.Type) != nil {
		return fmt.Errorf("%w: unique_suggested", repository.ErrUniqueViolation)
	}
	return r.insert(sg)
}

func (r *suggestionRepo) FindOrCreate(ctx context.Context, sg *models.Suggested) (bool, error) {
	if err := r.s.failure("Suggestions.FindOrCreate"); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing := r.find(sg.ResearchItemID, sg.ResearchEntityID, sg.Type); existing != nil {
		*sg = *existing
		return false, nil
	}
	return true, r.insert(sg)
}

func (r *suggestionRepo) Exists(ctx context.Context, itemID, entityID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sg := range r.s.d.suggested {
		if sg.ResearchItemID == itemID && sg.ResearchEntityID == entityID {
			return true, nil
		}
	}
	return false, nil
}

func (r *suggestionRepo) ListByEntity(ctx context.Context, entityID int64, t models.SuggestionType) ([]*models.Suggested, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Suggested
	for _, sg := range sortedRows(r.s.d.suggested, func(x *models.Suggested) int64 { return x.ResearchItemID }, shallow[models.Suggested]) {
		if sg.ResearchEntityID == entityID && (t == "" || sg.Type == t) {
			out = append(out, sg)
		}
	}
	return out, nil
}

func (r *suggestionRepo) Discard(ctx context.Context, entityID int64, itemIDs []int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := idSet(itemIDs)
	var n int64
	for _, sg := range r.s.d.suggested {
		if sg.ResearchEntityID == entityID && want[sg.ResearchItemID] {
			sg.Discarded = true
			n++
		}
	}
	return n, nil
}

func (r *suggestionRepo) Remove(ctx context.Context, f repository.SuggestionFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, sg := range r.s.d.suggested {
		if sg.ResearchEntityID != f.ResearchEntityID {
			continue
		}
		if f.ResearchItemID > 0 && sg.ResearchItemID != f.ResearchItemID {
			continue
		}
		if f.Type != "" && sg.Type != f.Type {
			continue
		}
		delete(r.s.d.suggested, id)
		n++
	}
	return n, nil
}

func (r *suggestionRepo) verifiedBy(itemID, entityID int64) bool {
	for _, v := range r.s.d.verified {
		if v.ResearchItemID == itemID && v.ResearchEntityID == entityID {
			return true
		}
	}
	return false
}

func (r *suggestionRepo) AliasMatchesForItem(ctx context.Context, itemID int64) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := r.s.d
	item := d.items[itemID]
	if item == nil || item.Kind != models.KindVerified {
		return []int64{}, nil
	}
	names := make(map[string]bool)
	for _, a := range d.authors {
		if a.ResearchItemID == itemID {
			names[a.Name] = true
		}
	}
	matches := make(map[int64]bool)
	for _, al := range d.aliases {
		if names[al.Value] && !r.verifiedBy(itemID, al.ResearchEntityID) {
			matches[al.ResearchEntityID] = true
		}
	}
	return sortedKeys(matches), nil
}

func (r *suggestionRepo) AliasMatchesForEntity(ctx context.Context, entityID int64) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := r.s.d
	values := make(map[string]bool)
	for _, al := range d.aliases {
		if al.ResearchEntityID == entityID {
			values[al.Value] = true
		}
	}
	matches := make(map[int64]bool)
	for _, a := range d.authors {
		item := d.items[a.ResearchItemID]
		if item == nil || item.Kind != models.KindVerified || !values[a.Name] {
			continue
		}
		if !r.verifiedBy(item.ID, entityID) {
			matches[item.ID] = true
		}
	}
	return sortedKeys(matches), nil
}

// projectionRepo is the in-memory ProjectionRepository
type projectionRepo struct{ s *Store }

func (r *projectionRepo) UpsertItemFields(ctx context.Context, p *models.SearchProjection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.d.items[p.ResearchItemID] == nil {
		return repository.ErrInvalidReference
	}
	row := copyProjection(p)
	row.OriginID = nil
	if existing, ok := r.s.d.projections[p.ResearchItemID]; ok {
		row.AuthorsString, row.AuthorsStringLength = existing.AuthorsString, existing.AuthorsStringLength
	} else {
		row.AuthorsString, row.AuthorsStringLength = "", 0
	}
	r.s.d.projections[p.ResearchItemID] = row
	return nil
}

func (r *projectionRepo) UpdateAuthors(ctx context.Context, itemID int64, authors string, length int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.d.projections[itemID]
	if !ok {
		return fmt.Errorf("projection of research item %d not found", itemID)
	}
	p.AuthorsString, p.AuthorsStringLength = authors, length
	return nil
}

func (r *projectionRepo) withOrigin(p *models.SearchProjection) *models.SearchProjection {
	c := copyProjection(p)
	for _, oid := range sortedKeys(r.s.d.itemOrigins[p.ResearchItemID]) {
		if o := r.s.d.origins[oid]; o.name == repository.OriginOpenAlex {
			id := o.identifier
			c.OriginID = &id
			break
		}
	}
	return c
}

func (r *projectionRepo) Get(ctx context.Context, itemID int64) (*models.SearchProjection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.d.projections[itemID]; ok {
		return r.withOrigin(p), nil
	}
	return nil, nil
}

func (r *projectionRepo) GetMany(ctx context.Context, itemIDs []int64) (map[int64]*models.SearchProjection, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[int64]*models.SearchProjection, len(itemIDs))
	for _, id := range itemIDs {
		if p, ok := r.s.d.projections[id]; ok {
			out[id] = r.withOrigin(p)
		}
	}
	return out, nil
}

// originRepo is the in-memory OriginRepository
type originRepo struct{ s *Store }

func (r *originRepo) FindOrCreate(ctx context.Context, name, identifier string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, o := range r.s.d.origins {
		if o.name == name && o.identifier == identifier {
			return id, nil
		}
	}
	id := r.s.nextID()
	r.s.d.origins[id] = origin{name: name, identifier: identifier}
	return id, nil
}

func (r *originRepo) Link(ctx context.Context, itemID, originID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.d.items[itemID] == nil {
		return repository.ErrInvalidReference
	}
	if r.s.d.itemOrigins[itemID] == nil {
		r.s.d.itemOrigins[itemID] = make(map[int64]bool)
	}
	r.s.d.itemOrigins[itemID][originID] = true
	return nil
}

func sortedKeys(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func itemSet(items map[int64]*models.ResearchItem) map[int64]bool {
	set := make(map[int64]bool, len(items))
	for id := range items {
		set[id] = true
	}
	return set
}
