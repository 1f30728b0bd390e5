package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TimurManjosov/hostmatch/internal/attribute"
)

// querier is the subset of pgxpool.Pool the store uses.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore reads the attribute catalog from PostgreSQL.
//
// Attributes belong to an organization ("Attribute"."teamId" is the org id).
// Every assigned value, including TEXT and NUMBER ones, is an
// "AttributeOption" row linked to the member's organization membership
// through "AttributeToUser".
type PostgresStore struct {
	pool *pgxpool.Pool
	q    querier
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

const (
	teamScopeSQL = `SELECT id, "parentId" FROM "Team" WHERE id = $1`

	attributesSQL = `
SELECT a.id, a.slug, a.name, a.type
FROM "Attribute" a
WHERE a."teamId" = $1 AND a.enabled
ORDER BY a.name, a.id`

	optionsSQL = `
SELECT o.id, o."attributeId", o.value
FROM "AttributeOption" o
WHERE o."attributeId" = ANY($1)
ORDER BY o."attributeId", o.value, o.id`

	membersSQL = `
SELECT m."userId"
FROM "Membership" m
WHERE m."teamId" = $1 AND m.accepted
ORDER BY m."userId"`

	assignmentsSQL = `
SELECT m."userId", o."attributeId", a.type, o.id, o.value
FROM "AttributeToUser" atu
JOIN "Membership" m ON m.id = atu."memberId"
JOIN "AttributeOption" o ON o.id = atu."attributeOptionId"
JOIN "Attribute" a ON a.id = o."attributeId"
WHERE m."teamId" = $1 AND m."userId" = ANY($2) AND o."attributeId" = ANY($3)
ORDER BY m."userId", o."attributeId", o.value`
)

// TeamScope looks the team up and returns it with its parent organization.
func (p *PostgresStore) TeamScope(ctx context.Context, teamID int64) (attribute.Scope, error) {
	var (
		id     int64
		parent *int64
	)
	err := p.q.QueryRow(ctx, teamScopeSQL, teamID).Scan(&id, &parent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attribute.Scope{}, fmt.Errorf("team %d: %w", teamID, ErrNotFound)
		}
		return attribute.Scope{}, fmt.Errorf("load team %d: %w", teamID, err)
	}
	return attribute.Scope{TeamID: id, OrgID: parent}, nil
}

// Attributes returns the enabled attributes of the scope's organization.
// Teams outside an organization have no attributes.
func (p *PostgresStore) Attributes(ctx context.Context, scope attribute.Scope) ([]attribute.Attribute, error) {
	if !scope.HasOrg() {
		return []attribute.Attribute{}, nil
	}

	rows, err := p.q.Query(ctx, attributesSQL, *scope.OrgID)
	if err != nil {
		return nil, fmt.Errorf("query attributes: %w", err)
	}
	attrs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (attribute.Attribute, error) {
		var a attribute.Attribute
		var typ string
		err := row.Scan(&a.ID, &a.Slug, &a.Name, &typ)
		a.Type = attribute.Type(typ)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan attributes: %w", err)
	}
	if len(attrs) == 0 {
		return attrs, nil
	}

	ids := make([]string, len(attrs))
	index := make(map[string]int, len(attrs))
	for i, a := range attrs {
		ids[i] = a.ID
		index[a.ID] = i
	}

	rows, err = p.q.Query(ctx, optionsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("query attribute options: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o attribute.Option
		var attrID string
		if err := rows.Scan(&o.ID, &attrID, &o.Value); err != nil {
			return nil, fmt.Errorf("scan attribute option: %w", err)
		}
		if i, ok := index[attrID]; ok && attrs[i].Type.IsSelect() {
			attrs[i].Options = append(attrs[i].Options, o)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan attribute options: %w", err)
	}
	return attrs, nil
}

// Members returns the accepted members of the team ordered by user id.
func (p *PostgresStore) Members(ctx context.Context, scope attribute.Scope) ([]int64, error) {
	rows, err := p.q.Query(ctx, membersSQL, scope.TeamID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	members, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan members: %w", err)
	}
	return members, nil
}

// Assignments loads the values of memberIDs for attributeIDs in one query.
// Select attributes yield option ids; TEXT and NUMBER yield option values.
func (p *PostgresStore) Assignments(ctx context.Context, scope attribute.Scope, memberIDs []int64, attributeIDs []string) (attribute.Assignments, error) {
	out := attribute.Assignments{}
	if !scope.HasOrg() || len(memberIDs) == 0 || len(attributeIDs) == 0 {
		return out, nil
	}

	rows, err := p.q.Query(ctx, assignmentsSQL, *scope.OrgID, memberIDs, attributeIDs)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r assignmentRow
		if err := rows.Scan(&r.memberID, &r.attributeID, &r.attrType, &r.optionID, &r.value); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		r.addTo(out)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan assignments: %w", err)
	}
	return out, nil
}

// Ping checks connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	_, err := p.q.Exec(ctx, "SELECT 1")
	return err
}

// Close closes the underlying connection pool.
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

type assignmentRow struct {
	memberID    int64
	attributeID string
	attrType    string
	optionID    string
	value       string
}

func (r assignmentRow) addTo(a attribute.Assignments) {
	typ := attribute.Type(r.attrType)
	switch {
	case typ.IsSelect():
		a.Add(r.memberID, r.attributeID, r.optionID)
	case typ == attribute.TypeNumber:
		if _, err := strconv.ParseFloat(r.value, 64); err != nil {
			// unparsable numbers count as assigned without a value
			a.Add(r.memberID, r.attributeID, "")
			return
		}
		a.Add(r.memberID, r.attributeID, r.value)
	default:
		a.Add(r.memberID, r.attributeID, r.value)
	}
}
