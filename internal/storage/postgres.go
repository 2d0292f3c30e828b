package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octofhir/fhircore/internal/platform/db"
	"github.com/octofhir/fhircore/internal/search"
)

// queryable is the minimal pgx surface a single statement needs, letting
// callers transparently reuse a request-scoped pgx.Tx, a request-scoped
// pgxpool.Conn, or fall back to the bare pool.
type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PostgresStore is the pgx-backed Store implementation: one JSONB table
// per FHIR resource type, driven by a single resourceType to table-name
// mapping since the set of FHIR resource types is open-ended.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by pool. Each resource type's
// table is expected to already exist (created by migrations) with the
// layout `(id text primary key, resource jsonb not null, version_id text
// not null, last_updated timestamptz not null)`.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return s.pool
}

// TableName maps a FHIR resource type ("MedicationRequest") to its JSONB
// table ("medication_request"). Postgres identifiers are case-folded, so
// the table layer needs an explicit, deterministic mapping rather than
// relying on the resource type's own casing. Exported so callers outside
// this package (the LSP Schema Cache's table→resource-type index) can
// derive the same mapping without duplicating it.
func TableName(resourceType string) string {
	var sb strings.Builder
	for i, r := range resourceType {
		if unicode.IsUpper(r) && i > 0 {
			sb.WriteByte('_')
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

func tableName(resourceType string) string { return TableName(resourceType) }

func scanStored(row pgx.Row, resourceType string) (Stored, error) {
	var id, versionID string
	var lastUpdated time.Time
	var raw []byte
	if err := row.Scan(&id, &raw, &versionID, &lastUpdated); err != nil {
		return Stored{}, err
	}
	var resource map[string]interface{}
	if err := json.Unmarshal(raw, &resource); err != nil {
		return Stored{}, fmt.Errorf("storage: decode resource: %w", err)
	}
	return Stored{
		ResourceType: resourceType,
		ID:           id,
		Resource:     resource,
		Version:      versionID,
		LastUpdated:  lastUpdated,
	}, nil
}

func (s *PostgresStore) Read(ctx context.Context, resourceType, id string) (Stored, bool, error) {
	table := tableName(resourceType)
	row := s.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT id, resource, version_id, last_updated FROM %s WHERE id = $1`, table), id)
	stored, err := scanStored(row, resourceType)
	if err == pgx.ErrNoRows {
		return Stored{}, false, nil
	}
	if err != nil {
		return Stored{}, false, err
	}
	return stored, true, nil
}

func (s *PostgresStore) Create(ctx context.Context, resourceType string, resource map[string]interface{}) (Stored, error) {
	table := tableName(resourceType)
	id := uuid.New().String()
	version := uuid.New().String()
	now := time.Now().UTC()

	if resource == nil {
		resource = map[string]interface{}{}
	}
	resource["resourceType"] = resourceType
	resource["id"] = id

	raw, err := json.Marshal(resource)
	if err != nil {
		return Stored{}, fmt.Errorf("storage: encode resource: %w", err)
	}

	_, err = s.conn(ctx).Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, resource, version_id, last_updated) VALUES ($1, $2::jsonb, $3, $4)`, table),
		id, string(raw), version, now)
	if err != nil {
		return Stored{}, err
	}

	return Stored{ResourceType: resourceType, ID: id, Resource: resource, Version: version, LastUpdated: now}, nil
}

func (s *PostgresStore) Update(ctx context.Context, resourceType, id string, resource map[string]interface{}, versionIfMatch string) (Stored, error) {
	table := tableName(resourceType)

	if versionIfMatch != "" {
		var current string
		err := s.conn(ctx).QueryRow(ctx, fmt.Sprintf(`SELECT version_id FROM %s WHERE id = $1`, table), id).Scan(&current)
		if err == pgx.ErrNoRows {
			return Stored{}, fmt.Errorf("storage: %s/%s not found", resourceType, id)
		}
		if err != nil {
			return Stored{}, err
		}
		if current != versionIfMatch {
			return Stored{}, &ErrOptimisticLock{ResourceType: resourceType, ID: id, Expected: versionIfMatch, Actual: current}
		}
	}

	version := uuid.New().String()
	now := time.Now().UTC()
	if resource == nil {
		resource = map[string]interface{}{}
	}
	resource["resourceType"] = resourceType
	resource["id"] = id

	raw, err := json.Marshal(resource)
	if err != nil {
		return Stored{}, fmt.Errorf("storage: encode resource: %w", err)
	}

	tag, err := s.conn(ctx).Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET resource = $2::jsonb, version_id = $3, last_updated = $4 WHERE id = $1`, table),
		id, string(raw), version, now)
	if err != nil {
		return Stored{}, err
	}
	if tag.RowsAffected() == 0 {
		return Stored{}, fmt.Errorf("storage: %s/%s not found", resourceType, id)
	}

	return Stored{ResourceType: resourceType, ID: id, Resource: resource, Version: version, LastUpdated: now}, nil
}

func (s *PostgresStore) Delete(ctx context.Context, resourceType, id string) error {
	table := tableName(resourceType)
	_, err := s.conn(ctx).Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	return err
}

// orderByClause translates search.SortField entries into an ORDER BY
// fragment. "_id" and "_lastUpdated" address their dedicated columns;
// every other field addresses the corresponding top-level JSONB text
// key. Compound-path sorts are not supported.
func orderByClause(fields []search.SortField) string {
	if len(fields) == 0 {
		return "last_updated DESC"
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		col := fmt.Sprintf("(resource->>'%s')", strings.ReplaceAll(f.Name, "'", "''"))
		switch f.Name {
		case "_id":
			col = "id"
		case "_lastUpdated":
			col = "last_updated"
		}
		if f.Descending {
			col += " DESC"
		} else {
			col += " ASC"
		}
		parts = append(parts, col)
	}
	return strings.Join(parts, ", ")
}

func (s *PostgresStore) Search(ctx context.Context, resourceType string, query search.BuiltQuery, opts SearchOptions) (SearchResult, error) {
	table := tableName(resourceType)
	where := "TRUE"
	if sql := query.SQL(); sql != "" {
		where = sql
	}

	var total *int
	if opts.IncludeTotal {
		var count int
		countSQL := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, table, where)
		if err := s.conn(ctx).QueryRow(ctx, countSQL, query.Params...).Scan(&count); err != nil {
			return SearchResult{}, err
		}
		total = &count
	}

	args := append([]interface{}(nil), query.Params...)
	limitIdx := len(args) + 1
	offsetIdx := len(args) + 2
	args = append(args, opts.Count, opts.Offset)

	dataSQL := fmt.Sprintf(`SELECT id, resource, version_id, last_updated FROM %s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		table, where, orderByClause(opts.Sort), limitIdx, offsetIdx)

	rows, err := s.conn(ctx).Query(ctx, dataSQL, args...)
	if err != nil {
		return SearchResult{}, err
	}
	defer rows.Close()

	var entries []Stored
	for rows.Next() {
		stored, err := scanStored(rows, resourceType)
		if err != nil {
			return SearchResult{}, err
		}
		entries = append(entries, stored)
	}
	if err := rows.Err(); err != nil {
		return SearchResult{}, err
	}

	return SearchResult{Entries: entries, Total: total}, nil
}

// pgxRowStream adapts pgx.Rows to the storage.RowStream contract.
type pgxRowStream struct {
	rows pgx.Rows
}

func (r *pgxRowStream) Next(ctx context.Context) (Row, bool, error) {
	if !r.rows.Next() {
		return Row{}, false, r.rows.Err()
	}
	values, err := r.rows.Values()
	if err != nil {
		return Row{}, false, err
	}
	return Row{Values: values}, true, nil
}

func (r *pgxRowStream) Close() {
	r.rows.Close()
}

func (s *PostgresStore) Execute(ctx context.Context, resourceType string, query search.BuiltQuery) (RowStream, error) {
	table := tableName(resourceType)
	where := "TRUE"
	if sql := query.SQL(); sql != "" {
		where = sql
	}
	rows, err := s.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT id, resource, version_id, last_updated FROM %s WHERE %s`, table, where),
		query.Params...)
	if err != nil {
		return nil, err
	}
	return &pgxRowStream{rows: rows}, nil
}
