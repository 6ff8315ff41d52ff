package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/research-output-api/internal/database"
	"github.com/research-output-api/internal/models"
)

var (
	// ErrUniqueViolation is returned when a write hits a unique constraint
	ErrUniqueViolation = errors.New("unique constraint violation")
	// ErrInvalidReference is returned when a write references a missing row
	ErrInvalidReference = errors.New("invalid reference")
)

// OriginOpenAlex names the origin identifiers that take part in publication matching
const OriginOpenAlex = "open_alex"

// psql builds Postgres-flavoured dynamic statements
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Querier is satisfied by *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CandidateMode selects the candidate pool of a duplicate calculation
type CandidateMode string

const (
	CandidatesVerified          CandidateMode = "verified"
	CandidatesDraftAndSuggested CandidateMode = "draftAndSuggested"
)

// CandidateQuery describes a duplicate candidate pool
type CandidateQuery struct {
	Mode               CandidateMode
	ResearchItemID     int64
	ResearchItemTypeID int64
	ResearchEntityID   int64
	// EntityIDs is the verifier scope of the verified mode
	EntityIDs []int64
}

// Candidate is one item of a candidate pool, with the entity the edge is scoped to
type Candidate struct {
	ResearchItemID   int64
	ResearchEntityID int64
}

// ItemSelection picks the items of a bulk action from an entity's lists
type ItemSelection struct {
	Kind             string // verified, suggested or draft
	ResearchEntityID int64
}

// SuggestionFilter narrows RemoveSuggestions; zero fields are ignored
type SuggestionFilter struct {
	ResearchEntityID int64
	ResearchItemID   int64
	Type             models.SuggestionType
}

// EntityRepository defines the interface for research entity data operations
type EntityRepository interface {
	Create(ctx context.Context, entity *models.ResearchEntity) error
	GetByID(ctx context.Context, id int64) (*models.ResearchEntity, error)
	AddGroupOwner(ctx context.Context, personID, groupID int64) error
	OwnedGroupIDs(ctx context.Context, personID int64) ([]int64, error)
}

// AliasRepository defines the interface for alias data operations
type AliasRepository interface {
	Create(ctx context.Context, alias *models.Alias) error
	Delete(ctx context.Context, entityID, aliasID int64) (bool, error)
	ListByEntity(ctx context.Context, entityID int64) ([]*models.Alias, error)
}

// ItemTypeRepository defines the interface for research item type data operations
type ItemTypeRepository interface {
	UpsertType(ctx context.Context, t *models.ResearchItemType) error
	GetByID(ctx context.Context, id int64) (*models.ResearchItemType, error)
	List(ctx context.Context) ([]*models.ResearchItemType, error)
}

// ItemRepository defines the interface for research item data operations
type ItemRepository interface {
	Create(ctx context.Context, item *models.ResearchItem) error
	Update(ctx context.Context, item *models.ResearchItem) error
	GetByID(ctx context.Context, id int64) (*models.ResearchItem, error)
	Delete(ctx context.Context, id int64) (bool, error)
	FindByOrigin(ctx context.Context, originName, identifier string, kind models.Kind) (*models.ResearchItem, error)
	Select(ctx context.Context, sel ItemSelection) ([]int64, error)
	ListIDs(ctx context.Context) ([]int64, error)
}

// AuthorRepository defines the interface for author and affiliation data operations
type AuthorRepository interface {
	ListByItem(ctx context.Context, itemID int64) ([]*models.Author, error)
	Upsert(ctx context.Context, author *models.Author) error
	Update(ctx context.Context, author *models.Author) error
	DeleteNotInPositions(ctx context.Context, itemID int64, positions []int) (int64, error)
	SetAffiliations(ctx context.Context, authorID int64, instituteIDs []int64) error
	AddAffiliations(ctx context.Context, authorID int64, instituteIDs []int64) error
}

// VerifiedRepository defines the interface for verification data operations
type VerifiedRepository interface {
	Create(ctx context.Context, v *models.Verified) error
	Get(ctx context.Context, itemID, entityID int64) (*models.Verified, error)
	Delete(ctx context.Context, itemID, entityID int64) (int64, error)
	CountByItem(ctx context.Context, itemID int64) (int, error)
	ListByItems(ctx context.Context, itemIDs []int64) ([]*models.Verified, error)
}

// DuplicateRepository defines the interface for duplicate edge data operations
type DuplicateRepository interface {
	Candidates(ctx context.Context, q CandidateQuery) ([]Candidate, error)
	// UpdateOrCreate writes an edge; an edge already marked false stays false
	UpdateOrCreate(ctx context.Context, d *models.Duplicate) error
	ListActive(ctx context.Context, itemID, entityID int64) ([]*models.Duplicate, error)
	ListByItem(ctx context.Context, itemID int64) ([]*models.Duplicate, error)
	DeleteForItem(ctx context.Context, itemID int64, entityIDs []int64) (int64, error)
	DeleteByDuplicate(ctx context.Context, duplicateID, entityID int64) (int64, error)
}

// SuggestionRepository defines the interface for suggestion data operations
type SuggestionRepository interface {
	Create(ctx context.Context, s *models.Suggested) error
	FindOrCreate(ctx context.Context, s *models.Suggested) (bool, error)
	Exists(ctx context.Context, itemID, entityID int64) (bool, error)
	ListByEntity(ctx context.Context, entityID int64, t models.SuggestionType) ([]*models.Suggested, error)
	Discard(ctx context.Context, entityID int64, itemIDs []int64) (int64, error)
	Remove(ctx context.Context, f SuggestionFilter) (int64, error)
	// AliasMatchesForItem returns the entities with an alias equal to an
	// author name of the verified item that have not verified it
	AliasMatchesForItem(ctx context.Context, itemID int64) ([]int64, error)
	// AliasMatchesForEntity returns the verified items with an author name
	// equal to one of the entity's aliases that the entity has not verified
	AliasMatchesForEntity(ctx context.Context, entityID int64) ([]int64, error)
}

// ProjectionRepository defines the interface for the duplicate search projection
type ProjectionRepository interface {
	UpsertItemFields(ctx context.Context, p *models.SearchProjection) error
	UpdateAuthors(ctx context.Context, itemID int64, authors string, length int) error
	Get(ctx context.Context, itemID int64) (*models.SearchProjection, error)
	GetMany(ctx context.Context, itemIDs []int64) (map[int64]*models.SearchProjection, error)
}

// OriginRepository defines the interface for external origin identifiers
type OriginRepository interface {
	FindOrCreate(ctx context.Context, name, identifier string) (int64, error)
	Link(ctx context.Context, itemID, originID int64) error
}

// Transactor runs fn with repositories bound to one transaction. Calls made
// on repositories that are already transactional nest as savepoints.
type Transactor interface {
	Atomic(ctx context.Context, fn func(repos *Repositories) error) error
}

// Repositories holds all repository interfaces
type Repositories struct {
	Entities    EntityRepository
	Aliases     AliasRepository
	Types       ItemTypeRepository
	Items       ItemRepository
	Authors     AuthorRepository
	Verified    VerifiedRepository
	Duplicates  DuplicateRepository
	Suggestions SuggestionRepository
	Projections ProjectionRepository
	Origins     OriginRepository

	Tx Transactor
}

// Atomic runs fn inside a transaction, or a savepoint when already in one
func (r *Repositories) Atomic(ctx context.Context, fn func(repos *Repositories) error) error {
	return r.Tx.Atomic(ctx, fn)
}

// New creates all repositories with the given database connection
func New(db *database.DB) *Repositories {
	return bind(db.DB, &pgTransactor{db: db})
}

func bind(q Querier, tx Transactor) *Repositories {
	return &Repositories{
		Entities:    &entityRepo{q: q},
		Aliases:     &aliasRepo{q: q},
		Types:       &itemTypeRepo{q: q},
		Items:       &itemRepo{q: q},
		Authors:     &authorRepo{q: q},
		Verified:    &verifiedRepo{q: q},
		Duplicates:  &duplicateRepo{q: q},
		Suggestions: &suggestionRepo{q: q},
		Projections: &projectionRepo{q: q},
		Origins:     &originRepo{q: q},
		Tx:          tx,
	}
}

// pgTransactor opens a transaction at depth zero and savepoints below it
type pgTransactor struct {
	db    *database.DB
	tx    *sql.Tx
	depth int
}

func (t *pgTransactor) Atomic(ctx context.Context, fn func(repos *Repositories) error) error {
	if t.tx == nil {
		return t.begin(ctx, fn)
	}

	name := fmt.Sprintf("sp_%d", t.depth)
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}

	if err := fn(bind(t.tx, &pgTransactor{db: t.db, tx: t.tx, depth: t.depth + 1})); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("%w (rollback to savepoint failed: %v)", err, rbErr)
		}
		return err
	}

	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *pgTransactor) begin(ctx context.Context, fn func(repos *Repositories) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(bind(tx, &pgTransactor{db: t.db, tx: tx, depth: 1})); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// mapError translates constraint violations into repository errors
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrUniqueViolation, pqErr.Constraint)
		case "23503":
			return fmt.Errorf("%w: %s", ErrInvalidReference, pqErr.Constraint)
		}
	}
	return err
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
