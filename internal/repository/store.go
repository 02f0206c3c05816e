package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/penne-app/penne/internal/errors"
	"github.com/penne-app/penne/internal/remote"
)

// Select runs a filtered, ordered read
func (r *Repository) Select(ctx context.Context, q remote.Query) ([]remote.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	query, args, err := r.buildSelect(q)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.wrap("select "+q.Relation, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, r.wrap("select "+q.Relation, err)
	}
	return records, nil
}

// Upsert inserts row, or updates the non-key columns of the row that
// collides on the conflict columns
func (r *Repository) Upsert(ctx context.Context, relation string, row remote.Record, conflict []string) error {
	t, err := lookup(relation)
	if err != nil {
		return err
	}
	if len(conflict) == 0 {
		return errors.Validationf("upsert into %s needs conflict columns", relation)
	}
	cols, err := rowColumns(t, relation, row)
	if err != nil {
		return err
	}
	keys := make(map[string]bool, len(conflict))
	for _, c := range conflict {
		if !t.columns[c] {
			return errors.Validationf("unknown column %s.%s", relation, c)
		}
		if _, ok := row[c]; !ok {
			return errors.Validationf("upsert into %s is missing key column %s", relation, c)
		}
		keys[c] = true
	}

	args := make([]any, 0, len(cols))
	marks := make([]string, 0, len(cols))
	var sets []string
	for i, c := range cols {
		v, err := t.encode(c, row[c])
		if err != nil {
			return err
		}
		args = append(args, v)
		marks = append(marks, r.dialect.placeholder(i+1))
		if !keys[c] {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}
	if t.columns["updated_at"] && row["updated_at"] == nil {
		sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	}

	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		relation, strings.Join(cols, ", "), strings.Join(marks, ", "), strings.Join(conflict, ", "), action)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return r.wrap("upsert "+relation, err)
	}
	return nil
}

// Insert adds a row and returns it as stored. Text ids and created_at are
// filled in when the caller leaves them out.
func (r *Repository) Insert(ctx context.Context, relation string, row remote.Record) (remote.Record, error) {
	t, err := lookup(relation)
	if err != nil {
		return nil, err
	}
	row = row.Clone()
	if relation == remote.RelComments && !row.Has("id") {
		row["id"] = uuid.NewString()
	}
	if t.columns["created_at"] && !row.Has("created_at") {
		row["created_at"] = r.now().UTC()
	}
	cols, err := rowColumns(t, relation, row)
	if err != nil {
		return nil, err
	}

	args := make([]any, 0, len(cols))
	marks := make([]string, 0, len(cols))
	for i, c := range cols {
		v, err := t.encode(c, row[c])
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		marks = append(marks, r.dialect.placeholder(i+1))
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		relation, strings.Join(cols, ", "), strings.Join(marks, ", "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.wrap("insert "+relation, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, r.wrap("insert "+relation, err)
	}
	if len(records) == 0 {
		return nil, errors.Remote("insert "+relation, sql.ErrNoRows)
	}
	return records[0], nil
}

// Delete removes the rows matched by the query's filters. A query without
// filters is rejected.
func (r *Repository) Delete(ctx context.Context, q remote.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	t, err := lookup(q.Relation)
	if err != nil {
		return 0, err
	}
	if len(q.Filters) == 0 {
		return 0, errors.Validationf("delete from %s needs a filter", q.Relation)
	}
	where, args, err := r.buildWhere(t, q, 1)
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, "DELETE FROM "+q.Relation+where, args...)
	if err != nil {
		return 0, r.wrap("delete "+q.Relation, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, r.wrap("delete "+q.Relation, err)
	}
	return n, nil
}

// Call runs one of the atomic counter procedures. Decrements stop at zero.
func (r *Repository) Call(ctx context.Context, fn string, args remote.Record) error {
	col, increment, ok := counterColumn(fn)
	if !ok {
		return errors.Validationf("unknown rpc %q", fn)
	}
	if !args.Has("dish_id") {
		return errors.Validationf("%s requires dish_id", fn)
	}
	dishID := args.Int64("dish_id")

	expr := col + " + 1"
	if !increment {
		expr = fmt.Sprintf("CASE WHEN %s > 0 THEN %s - 1 ELSE 0 END", col, col)
	}
	query := fmt.Sprintf("UPDATE menus SET %s = %s WHERE id = %s", col, expr, r.dialect.placeholder(1))

	res, err := r.db.ExecContext(ctx, query, dishID)
	if err != nil {
		return r.wrap(fn, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return r.wrap(fn, err)
	}
	if n == 0 {
		return fmt.Errorf("%s dish %d: %w", fn, dishID, ErrNotFound)
	}
	return nil
}

func counterColumn(fn string) (col string, increment bool, ok bool) {
	switch fn {
	case remote.RPCIncrementUpvote:
		return "dish_upvote", true, true
	case remote.RPCDecrementUpvote:
		return "dish_upvote", false, true
	case remote.RPCIncrementDownvote:
		return "dish_downvote", true, true
	case remote.RPCDecrementDownvote:
		return "dish_downvote", false, true
	}
	return "", false, false
}

func lookup(relation string) (table, error) {
	t, ok := tables[relation]
	if !ok {
		return table{}, errors.Validationf("unknown relation %q", relation)
	}
	return t, nil
}

// rowColumns returns the row's columns in a stable order after checking them
func rowColumns(t table, relation string, row remote.Record) ([]string, error) {
	if len(row) == 0 {
		return nil, errors.Validationf("empty row for %s", relation)
	}
	cols := make([]string, 0, len(row))
	for c := range row {
		if !t.columns[c] {
			return nil, errors.Validationf("unknown column %s.%s", relation, c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols, nil
}

// encode converts a value into something the driver accepts
func (t table) encode(col string, v any) (any, error) {
	if t.json[col] {
		switch v.(type) {
		case nil, string, []byte:
			return v, nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, errors.InvalidInputf("encode %s: %v", col, err)
		}
		return string(b), nil
	}
	if ts, ok := v.(time.Time); ok {
		return ts.UTC(), nil
	}
	return v, nil
}

func (r *Repository) buildSelect(q remote.Query) (string, []any, error) {
	t, err := lookup(q.Relation)
	if err != nil {
		return "", nil, err
	}

	cols := "*"
	if len(q.Columns) > 0 {
		for _, c := range q.Columns {
			if !t.columns[c] {
				return "", nil, errors.Validationf("unknown column %s.%s", q.Relation, c)
			}
		}
		cols = strings.Join(q.Columns, ", ")
	}

	where, args, err := r.buildWhere(t, q, 1)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(q.Relation)
	sb.WriteString(where)

	if len(q.Order) > 0 {
		parts := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			if !t.columns[o.Column] {
				return "", nil, errors.Validationf("unknown column %s.%s", q.Relation, o.Column)
			}
			dir := "ASC"
			if o.Descending {
				dir = "DESC"
			}
			parts = append(parts, o.Column+" "+dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	return sb.String(), args, nil
}

// buildWhere renders the filters, numbering placeholders from start
func (r *Repository) buildWhere(t table, q remote.Query, start int) (string, []any, error) {
	if len(q.Filters) == 0 {
		return "", nil, nil
	}
	n := start
	next := func() string {
		p := r.dialect.placeholder(n)
		n++
		return p
	}

	var args []any
	clauses := make([]string, 0, len(q.Filters))
	for _, f := range q.Filters {
		if !t.columns[f.Column] {
			return "", nil, errors.Validationf("unknown column %s.%s", q.Relation, f.Column)
		}
		switch f.Op {
		case remote.OpEq, remote.OpNeq:
			if f.Value == nil {
				if f.Op == remote.OpEq {
					clauses = append(clauses, f.Column+" IS NULL")
				} else {
					clauses = append(clauses, f.Column+" IS NOT NULL")
				}
				continue
			}
			op := "="
			if f.Op == remote.OpNeq {
				op = "<>"
			}
			clauses = append(clauses, fmt.Sprintf("%s %s %s", f.Column, op, next()))
			args = append(args, f.Value)
		case remote.OpGt, remote.OpGte, remote.OpLt, remote.OpLte:
			op := map[remote.Op]string{remote.OpGt: ">", remote.OpGte: ">=", remote.OpLt: "<", remote.OpLte: "<="}[f.Op]
			clauses = append(clauses, fmt.Sprintf("%s %s %s", f.Column, op, next()))
			args = append(args, f.Value)
		case remote.OpLike:
			clauses = append(clauses, fmt.Sprintf("%s LIKE %s", f.Column, next()))
			args = append(args, f.Value)
		case remote.OpILike:
			clauses = append(clauses, fmt.Sprintf("LOWER(%s) LIKE LOWER(%s)", f.Column, next()))
			args = append(args, f.Value)
		case remote.OpIn:
			values := f.Value.([]any)
			if len(values) == 0 {
				clauses = append(clauses, "1 = 0")
				continue
			}
			marks := make([]string, len(values))
			for i := range values {
				marks[i] = next()
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", f.Column, strings.Join(marks, ", ")))
			args = append(args, values...)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func scanRecords(rows *sql.Rows) ([]remote.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []remote.Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(remote.Record, len(cols))
		for i, c := range cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec[c] = v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// wrap classifies a driver error
func (r *Repository) wrap(op string, err error) error {
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return errors.Wrap(err, errors.ErrConflict, op+": duplicate")
		case sqlite3.ErrConstraintForeignKey:
			return errors.Wrap(err, errors.ErrNotFound, op+": referenced row missing")
		case sqlite3.ErrConstraintCheck:
			return errors.Wrap(err, errors.ErrValidation, op+": constraint violated")
		}
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return errors.Wrap(err, errors.ErrConflict, op+": duplicate")
		case "23503":
			return errors.Wrap(err, errors.ErrNotFound, op+": referenced row missing")
		case "23514":
			return errors.Wrap(err, errors.ErrValidation, op+": constraint violated")
		}
	}
	return errors.Remote(op, err)
}
