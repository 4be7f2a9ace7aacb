// Package store persists transformed tables to PostgreSQL: idempotent table
// provisioning with inferred column types, a batched conflict-resolving
// upsert, and a row-by-row merge mode that never blanks recorded values.
package store

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reportflow/pkg/core/config"
	"reportflow/pkg/core/grid"
)

const defaultBatchSize = 1000

// mergeChunk bounds how many rows merge mode walks between progress logs.
const mergeChunk = 100

// Service writes transformed tables to the database.
type Service struct {
	pool      *pgxpool.Pool
	batchSize int
}

// NewService creates a persistence service on an existing pool.
func NewService(pool *pgxpool.Pool, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Service{pool: pool, batchSize: batchSize}
}

// Connect opens a pgx pool from the connection descriptor.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	return pool, nil
}

// target is a table prepared for writing: normalized column names, inferred
// SQL types, and the validated key column indexes.
type target struct {
	name     string
	columns  []string
	types    []string
	keyIdx   map[int]bool
	keyNames []string
}

// Persist writes the table according to its export declaration. Returns the
// number of rows written; failures come back as a *TableError.
func (s *Service) Persist(ctx context.Context, table *grid.Table, export config.ExportSpec) (int, error) {
	name := SanitizeTableName(export.TableName)
	if table == nil || table.NumRows() == 0 {
		log.Printf("[Store] WARNING: no data to upsert for table %s", name)
		return 0, nil
	}

	tgt, err := s.prepare(ctx, name, table, export.PrimaryKeys)
	if err != nil {
		return 0, err
	}

	if export.SkipEmptyUpdates {
		return s.upsertMerge(ctx, tgt, table)
	}
	return s.upsertStandard(ctx, tgt, table)
}

func (s *Service) prepare(ctx context.Context, name string, table *grid.Table, primaryKeys []string) (*target, error) {
	tgt := &target{
		name:    name,
		columns: make([]string, len(table.Columns)),
		types:   make([]string, len(table.Columns)),
		keyIdx:  make(map[int]bool),
	}
	for i, col := range table.Columns {
		tgt.columns[i] = sanitizeIdent(col)
		column := make([]grid.Value, len(table.Rows))
		for j := range table.Rows {
			column[j] = table.Rows[j][i]
		}
		tgt.types[i] = inferColumnType(column)
	}

	for _, pk := range primaryKeys {
		normalized := sanitizeIdent(pk)
		found := false
		for i, col := range tgt.columns {
			if col == normalized {
				tgt.keyIdx[i] = true
				tgt.keyNames = append(tgt.keyNames, normalized)
				found = true
				break
			}
		}
		if !found {
			log.Printf("[Store] WARNING: primary key %q not among columns of %s", pk, name)
		}
	}
	if len(tgt.keyNames) == 0 {
		return nil, tableErr(name, "no valid primary key columns found")
	}

	if err := s.ensureTable(ctx, tgt); err != nil {
		return nil, &TableError{Table: name, Err: err}
	}
	return tgt, nil
}

// ensureTable provisions the target table if it does not exist yet.
func (s *Service) ensureTable(ctx context.Context, tgt *target) error {
	defs := make([]string, len(tgt.columns))
	for i, col := range tgt.columns {
		defs[i] = fmt.Sprintf("%q %s", col, tgt.types[i])
	}
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", tgt.name, strings.Join(defs, ", "))
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	log.Printf("[Store] created/verified table %s", tgt.name)
	return nil
}

// upsertStandard runs the batched conflict-resolving insert: on key conflict
// every non-key column is overwritten with the incoming value. Each batch
// commits on its own.
func (s *Service) upsertStandard(ctx context.Context, tgt *target, table *grid.Table) (int, error) {
	written := 0
	for start := 0; start < table.NumRows(); start += s.batchSize {
		end := start + s.batchSize
		if end > table.NumRows() {
			end = table.NumRows()
		}
		query, args := batchUpsert(tgt, table.Rows[start:end])
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return written, tableErr(tgt.name, "standard upsert failed: %w", err)
		}
		written += end - start
		log.Printf("[Store] processed %d/%d rows into %s", written, table.NumRows(), tgt.name)
	}
	return written, nil
}

// batchUpsert builds the multi-row conflict-resolving insert for one batch of
// rows. On key conflict every non-key column is assigned its EXCLUDED value,
// so replaying an identical batch leaves the table unchanged.
func batchUpsert(tgt *target, rows [][]grid.Value) (string, []any) {
	quoted := make([]string, len(tgt.columns))
	for i, col := range tgt.columns {
		quoted[i] = fmt.Sprintf("%q", col)
	}
	conflict := make([]string, 0, len(tgt.keyNames))
	for _, pk := range tgt.keyNames {
		conflict = append(conflict, fmt.Sprintf("%q", pk))
	}
	var updates []string
	for i, col := range tgt.columns {
		if !tgt.keyIdx[i] {
			updates = append(updates, fmt.Sprintf("%q = EXCLUDED.%q", col, col))
		}
	}
	action := "DO NOTHING"
	if len(updates) > 0 {
		action = "DO UPDATE SET " + strings.Join(updates, ", ")
	}

	args := make([]any, 0, len(rows)*len(tgt.columns))
	tuples := make([]string, len(rows))
	for r, row := range rows {
		marks := make([]string, len(tgt.columns))
		for c := range tgt.columns {
			args = append(args, convertValue(row[c], tgt.types[c]))
			marks[c] = fmt.Sprintf("$%d", len(args))
		}
		tuples[r] = "(" + strings.Join(marks, ", ") + ")"
	}

	query := fmt.Sprintf(
		"INSERT INTO %q (%s) VALUES %s ON CONFLICT (%s) %s",
		tgt.name, strings.Join(quoted, ", "), strings.Join(tuples, ", "),
		strings.Join(conflict, ", "), action,
	)
	return query, args
}

// upsertMerge walks rows one at a time inside a single transaction: existing
// rows only take non-blank incoming values, new rows insert the key columns
// plus whatever is non-blank.
func (s *Service) upsertMerge(ctx context.Context, tgt *target, table *grid.Table) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, tableErr(tgt.name, "failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	affected := 0
	for i, row := range table.Rows {
		n, err := s.mergeRow(ctx, tx, tgt, row)
		if err != nil {
			return 0, tableErr(tgt.name, "merge mode failed at row %d: %w", i, err)
		}
		affected += n
		if (i+1)%mergeChunk == 0 {
			log.Printf("[Store] merge mode processed %d/%d rows", i+1, table.NumRows())
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, tableErr(tgt.name, "failed to commit merge: %w", err)
	}
	log.Printf("[Store] merge mode completed: %d rows affected in %s", affected, tgt.name)
	return affected, nil
}

func (s *Service) mergeRow(ctx context.Context, tx pgx.Tx, tgt *target, row []grid.Value) (int, error) {
	where, keyArgs := mergeKeys(tgt, row)

	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %q WHERE %s)", tgt.name, where)
	if err := tx.QueryRow(ctx, query, keyArgs...).Scan(&exists); err != nil {
		return 0, fmt.Errorf("existence check failed: %w", err)
	}

	if exists {
		update, args, ok := mergeUpdate(tgt, row)
		if !ok {
			return 0, nil
		}
		tag, err := tx.Exec(ctx, update, args...)
		if err != nil {
			return 0, fmt.Errorf("merge update failed: %w", err)
		}
		return int(tag.RowsAffected()), nil
	}

	insert, args := mergeInsert(tgt, row)
	tag, err := tx.Exec(ctx, insert, args...)
	if err != nil {
		return 0, fmt.Errorf("merge insert failed: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// mergeKeys builds the key-equality filter for a row.
func mergeKeys(tgt *target, row []grid.Value) (string, []any) {
	args := make([]any, 0, len(tgt.keyNames))
	conditions := make([]string, 0, len(tgt.keyNames))
	for i, col := range tgt.columns {
		if !tgt.keyIdx[i] {
			continue
		}
		args = append(args, convertValue(row[i], tgt.types[i]))
		conditions = append(conditions, fmt.Sprintf("%q = $%d", col, len(args)))
	}
	return strings.Join(conditions, " AND "), args
}

// mergeUpdate builds the update for an existing row. Only non-blank non-key
// values are assigned, so a blank incoming cell never erases a stored value.
// ok is false when the row carries nothing to write.
func mergeUpdate(tgt *target, row []grid.Value) (string, []any, bool) {
	var sets []string
	args := make([]any, 0, len(tgt.columns))
	for i, col := range tgt.columns {
		if tgt.keyIdx[i] || row[i].IsBlank() {
			continue
		}
		args = append(args, convertValue(row[i], tgt.types[i]))
		sets = append(sets, fmt.Sprintf("%q = $%d", col, len(args)))
	}
	if len(sets) == 0 {
		return "", nil, false
	}
	var where []string
	for i, col := range tgt.columns {
		if !tgt.keyIdx[i] {
			continue
		}
		args = append(args, convertValue(row[i], tgt.types[i]))
		where = append(where, fmt.Sprintf("%q = $%d", col, len(args)))
	}
	query := fmt.Sprintf("UPDATE %q SET %s WHERE %s",
		tgt.name, strings.Join(sets, ", "), strings.Join(where, " AND "))
	return query, args, true
}

// mergeInsert builds the insert for a new row: the key columns plus whatever
// else is non-blank.
func mergeInsert(tgt *target, row []grid.Value) (string, []any) {
	var cols []string
	var args []any
	for i, col := range tgt.columns {
		if !tgt.keyIdx[i] && row[i].IsBlank() {
			continue
		}
		args = append(args, convertValue(row[i], tgt.types[i]))
		cols = append(cols, fmt.Sprintf("%q", col))
	}
	marks := make([]string, len(cols))
	for i := range marks {
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		tgt.name, strings.Join(cols, ", "), strings.Join(marks, ", "))
	return query, args
}
