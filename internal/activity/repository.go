package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tailorhub/tailorhub/internal/access"
	"github.com/tailorhub/tailorhub/internal/shared"
)

// Criteria scopes summary queries. Filter carries the branch restriction,
// UserID optionally narrows to one author.
type Criteria struct {
	Filter access.Filter
	UserID string
}

// Repository reads and appends audit entries. There is no update or delete.
type Repository interface {
	Writer
	List(ctx context.Context, filter access.Filter, q ListQuery) ([]Entry, int, error)
	CountByEntity(ctx context.Context, c Criteria) (map[Entity]int, error)
	CountSince(ctx context.Context, c Criteria, since time.Time) (int, error)
	UserCounts(ctx context.Context, c Criteria, since time.Time) ([]UserCount, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL implementation.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Insert(ctx context.Context, e Entry) error {
	var meta []byte
	if len(e.Metadata) > 0 {
		encoded, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode activity metadata: %w", err)
		}
		meta = encoded
	}
	var entityID *string
	if e.EntityID != "" {
		entityID = &e.EntityID
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO activity_logs (id, user_id, user_name, branch_id, action, entity, entity_id, description, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.UserID, e.UserName, e.BranchID, string(e.Action), string(e.Entity), entityID, e.Description, meta, e.At)
	return err
}

// predicate accumulates WHERE clauses and positional arguments.
type predicate struct {
	clauses []string
	args    []any
}

func (p *predicate) add(clause string, arg any) {
	p.args = append(p.args, arg)
	p.clauses = append(p.clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(p.args))))
}

func (p *predicate) filter(f access.Filter) {
	if id, ok := f.BranchID(); ok {
		p.add("branch_id = ?", id)
	}
}

func (p *predicate) sql() string {
	if len(p.clauses) == 0 {
		return "TRUE"
	}
	return strings.Join(p.clauses, " AND ")
}

func criteriaPredicate(c Criteria) *predicate {
	p := &predicate{}
	p.filter(c.Filter)
	if c.UserID != "" {
		p.add("user_id = ?", c.UserID)
	}
	return p
}

func (r *repository) List(ctx context.Context, filter access.Filter, q ListQuery) ([]Entry, int, error) {
	p := &predicate{}
	p.filter(filter)
	if q.UserID != "" {
		p.add("user_id = ?", q.UserID)
	}
	if q.Entity != "" {
		p.add("entity = ?", string(q.Entity))
	}
	if q.Action != "" {
		p.add("action = ?", string(q.Action))
	}
	if !q.From.IsZero() {
		p.add("created_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		p.add("created_at <= ?", q.To)
	}
	where := p.sql()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activity_logs WHERE `+where, p.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, perPage := shared.NormalizePage(q.Page, q.PerPage)
	args := append(append([]any{}, p.args...), perPage, shared.Offset(page, perPage))
	query := `
SELECT id, user_id, user_name, branch_id, action, entity, COALESCE(entity_id, ''), description, metadata, created_at
FROM activity_logs
WHERE ` + where + `
ORDER BY created_at DESC, id
LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e      Entry
			action string
			entity string
			meta   []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.BranchID, &action, &entity, &e.EntityID, &e.Description, &meta, &e.At); err != nil {
			return nil, 0, err
		}
		e.Action = Action(action)
		e.Entity = Entity(entity)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, 0, fmt.Errorf("decode activity metadata %s: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *repository) CountByEntity(ctx context.Context, c Criteria) (map[Entity]int, error) {
	p := criteriaPredicate(c)
	rows, err := r.pool.Query(ctx, `SELECT entity, COUNT(*) FROM activity_logs WHERE `+p.sql()+` GROUP BY entity`, p.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[Entity]int)
	for rows.Next() {
		var (
			entity string
			count  int
		)
		if err := rows.Scan(&entity, &count); err != nil {
			return nil, err
		}
		result[Entity(entity)] = count
	}
	return result, rows.Err()
}

func (r *repository) CountSince(ctx context.Context, c Criteria, since time.Time) (int, error) {
	p := criteriaPredicate(c)
	p.add("created_at >= ?", since)
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM activity_logs WHERE `+p.sql(), p.args...).Scan(&n)
	return n, err
}

func (r *repository) UserCounts(ctx context.Context, c Criteria, since time.Time) ([]UserCount, error) {
	p := criteriaPredicate(c)
	p.add("created_at >= ?", since)
	rows, err := r.pool.Query(ctx, `
SELECT user_id, MAX(user_name), COUNT(*)
FROM activity_logs
WHERE `+p.sql()+`
GROUP BY user_id`, p.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UserCount
	for rows.Next() {
		var uc UserCount
		if err := rows.Scan(&uc.UserID, &uc.UserName, &uc.Count); err != nil {
			return nil, err
		}
		out = append(out, uc)
	}
	return out, rows.Err()
}
