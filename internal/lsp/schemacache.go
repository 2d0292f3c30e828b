// Package lsp implements the SQL Language Server core: the Postgres
// catalog snapshot, the FHIR JSONB-schema resolver, the table-alias
// resolver, the completion engine and diagnostics, plus the stdio server
// wiring.
package lsp

import (
	"context"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ColumnInfo describes one column of a catalog table.
type ColumnInfo struct {
	Name        string
	DataType    string
	Nullable    bool
	Description string
}

// TableInfo describes one catalog table, plus the FHIR resource type it
// backs when it is one of the per-resource JSONB tables internal/storage
// creates (empty string otherwise).
type TableInfo struct {
	Schema       string
	Name         string
	Columns      []ColumnInfo
	ResourceType string
}

// FunctionInfo describes one catalog function/signature, surfaced for
// JSONB function-arg completions (e.g. jsonb_extract_path_text).
type FunctionInfo struct {
	Name        string
	Signature   string
	ReturnType  string
	Description string
}

// Snapshot is one immutable view of the Postgres catalog: swapped
// atomically on refresh so in-flight completions always observe a single
// consistent view.
type Snapshot struct {
	Tables    []TableInfo
	Functions []FunctionInfo

	byName     map[string]*TableInfo
	byResource map[string]*TableInfo
}

func buildIndex(s *Snapshot) {
	s.byName = make(map[string]*TableInfo, len(s.Tables))
	s.byResource = make(map[string]*TableInfo, len(s.Tables))
	for i := range s.Tables {
		t := &s.Tables[i]
		s.byName[t.Name] = t
		if t.ResourceType != "" {
			s.byResource[t.ResourceType] = t
		}
	}
}

// Table looks up a table by its bare name (case-sensitive, as Postgres
// folds unquoted identifiers to lowercase and internal/storage always
// generates lowercase table names).
func (s *Snapshot) Table(name string) (*TableInfo, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.byName[name]
	return t, ok
}

// TableForResourceType finds the table backing a FHIR resource type.
func (s *Snapshot) TableForResourceType(resourceType string) (*TableInfo, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.byResource[resourceType]
	return t, ok
}

// SchemaCache holds the current catalog Snapshot behind an atomic
// pointer, the same read-copy-update discipline the search-param
// registry uses: readers never block a writer and never observe a torn
// snapshot.
type SchemaCache struct {
	current atomic.Pointer[Snapshot]
	pool    *pgxpool.Pool
	// resourceTypeForTable maps a known table name to its FHIR resource
	// type; schema introspection alone can't recover this, so it is
	// supplied by the caller (internal/storage's tableName mapping,
	// inverted) at construction time.
	resourceTypeForTable map[string]string
}

// NewSchemaCache creates a cache backed by pool. resourceTypeForTable maps
// storage table names (e.g. "medication_request") to their FHIR resource
// type (e.g. "MedicationRequest").
func NewSchemaCache(pool *pgxpool.Pool, resourceTypeForTable map[string]string) *SchemaCache {
	c := &SchemaCache{pool: pool, resourceTypeForTable: resourceTypeForTable}
	c.current.Store(&Snapshot{})
	return c
}

// Snapshot returns the currently published catalog snapshot.
func (c *SchemaCache) Snapshot() *Snapshot {
	return c.current.Load()
}

// Refresh re-queries information_schema for tables/columns/routines and
// atomically publishes a new Snapshot. The lsp command calls it once at
// startup, before serving, and again on each periodic tick; the server's
// initialize and initialized handlers do not call it.
func (c *SchemaCache) Refresh(ctx context.Context) error {
	tables, err := c.loadTables(ctx)
	if err != nil {
		return err
	}
	functions, err := c.loadFunctions(ctx)
	if err != nil {
		return err
	}
	snap := &Snapshot{Tables: tables, Functions: functions}
	buildIndex(snap)
	c.current.Store(snap)
	return nil
}

func (c *SchemaCache) loadTables(ctx context.Context) ([]TableInfo, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []TableInfo
	for rows.Next() {
		var schema, name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil, err
		}
		cols, err := c.loadColumns(ctx, schema, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, TableInfo{
			Schema:       schema,
			Name:         name,
			Columns:      cols,
			ResourceType: c.resourceTypeForTable[name],
		})
	}
	return tables, rows.Err()
}

func (c *SchemaCache) loadColumns(ctx context.Context, schema, table string) ([]ColumnInfo, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable); err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (c *SchemaCache) loadFunctions(ctx context.Context) ([]FunctionInfo, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT routine_name, COALESCE(data_type, 'void')
		FROM information_schema.routines
		WHERE routine_schema = 'public'
		ORDER BY routine_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fns []FunctionInfo
	for rows.Next() {
		var fn FunctionInfo
		if err := rows.Scan(&fn.Name, &fn.ReturnType); err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return fns, rows.Err()
}
