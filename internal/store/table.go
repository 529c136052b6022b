package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/cartflow/internal/ir"
)

// TableNames lists every table in foreign-key order: a table only
// references tables listed before it.
var TableNames = []string{
	"product",
	"product_tier_price",
	"cart_address",
	"cart",
	"cart_item",
	"order_address",
	"orders",
	"order_item",
	"order_activity",
}

// ErrUnknownTable is returned for table names outside TableNames.
var ErrUnknownTable = errors.New("unknown table")

// ErrUnknownColumn is returned when a predicate or fixture names a column
// the table does not have.
var ErrUnknownColumn = errors.New("unknown column")

// Tables is the row-level API shared by Store and Tx.
//
// Rows are IRObjects keyed by column name. Predicates are equality matches
// ANDed together; an IRNull predicate value matches NULL.
type Tables interface {
	// Load returns the row whose primary key is id.
	Load(ctx context.Context, table string, id int64) (ir.IRObject, bool, error)

	// Insert writes row and returns the new primary key.
	// Keys that are not columns of table are ignored.
	Insert(ctx context.Context, table string, row ir.IRObject) (int64, error)

	// Update applies patch to every row matching where and returns the
	// number of rows changed. An empty predicate is refused.
	Update(ctx context.Context, table string, where, patch ir.IRObject) (int64, error)

	// Query returns every row matching where, ordered by primary key.
	Query(ctx context.Context, table string, where ir.IRObject) ([]ir.IRObject, error)

	// Count returns the number of rows matching where.
	Count(ctx context.Context, table string, where ir.IRObject) (int64, error)

	// NextID returns the primary key the next insert into table will get.
	NextID(ctx context.Context, table string) (int64, error)
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type column struct {
	name string
	json bool
}

type tableMeta struct {
	name    string
	pk      string
	columns []column
}

func (m *tableMeta) column(name string) (column, bool) {
	for _, c := range m.columns {
		if c.name == name {
			return c, true
		}
	}
	return column{}, false
}

func (m *tableMeta) columnList() string {
	names := make([]string, len(m.columns))
	for i, c := range m.columns {
		names[i] = c.name
	}
	return strings.Join(names, ", ")
}

// loadTableMeta reads column names, JSON columns and primary keys from
// PRAGMA table_info for every table in TableNames.
func loadTableMeta(ctx context.Context, q querier) (map[string]*tableMeta, error) {
	meta := make(map[string]*tableMeta, len(TableNames))
	for _, name := range TableNames {
		rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", name))
		if err != nil {
			return nil, fmt.Errorf("table info %s: %w", name, err)
		}

		m := &tableMeta{name: name}
		for rows.Next() {
			var (
				cid     int
				col     string
				ctype   string
				notnull int
				dflt    any
				pk      int
			)
			if err := rows.Scan(&cid, &col, &ctype, &notnull, &dflt, &pk); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan table info %s: %w", name, err)
			}
			m.columns = append(m.columns, column{name: col, json: strings.EqualFold(ctype, "JSON")})
			if pk == 1 {
				m.pk = col
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterate table info %s: %w", name, err)
		}
		if len(m.columns) == 0 || m.pk == "" {
			return nil, fmt.Errorf("table %s: missing columns or primary key", name)
		}
		meta[name] = m
	}
	return meta, nil
}

// tableSet implements Tables over either the database or a transaction.
type tableSet struct {
	q    querier
	meta map[string]*tableMeta
}

func (t tableSet) table(name string) (*tableMeta, error) {
	m, ok := t.meta[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownTable)
	}
	return m, nil
}

// Load returns the row whose primary key is id.
func (t tableSet) Load(ctx context.Context, table string, id int64) (ir.IRObject, bool, error) {
	m, err := t.table(table)
	if err != nil {
		return nil, false, fmt.Errorf("load: %w", err)
	}
	rows, err := t.q.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", m.columnList(), m.name, m.pk), id)
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", table, err)
	}
	out, err := scanRows(rows, m)
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", table, err)
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out[0], true, nil
}

// Insert writes row and returns the new primary key.
func (t tableSet) Insert(ctx context.Context, table string, row ir.IRObject) (int64, error) {
	return t.insert(ctx, table, row, false)
}

func (t tableSet) insert(ctx context.Context, table string, row ir.IRObject, strict bool) (int64, error) {
	m, err := t.table(table)
	if err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}

	var (
		cols []string
		args []any
	)
	for _, key := range row.SortedKeys() {
		if _, ok := m.column(key); !ok {
			if strict {
				return 0, fmt.Errorf("insert %s: %q: %w", table, key, ErrUnknownColumn)
			}
			continue
		}
		if key == m.pk && ir.IsNull(row[key]) {
			continue
		}
		arg, err := encodeValue(row[key])
		if err != nil {
			return 0, fmt.Errorf("insert %s.%s: %w", table, key, err)
		}
		cols = append(cols, key)
		args = append(args, arg)
	}

	query := fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", m.name)
	if len(cols) > 0 {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			m.name, strings.Join(cols, ", "), placeholders(len(cols)))
	}
	res, err := t.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %s: last insert id: %w", table, err)
	}
	return id, nil
}

// Update applies patch to every row matching where.
func (t tableSet) Update(ctx context.Context, table string, where, patch ir.IRObject) (int64, error) {
	m, err := t.table(table)
	if err != nil {
		return 0, fmt.Errorf("update: %w", err)
	}
	if len(where) == 0 {
		return 0, fmt.Errorf("update %s: empty predicate", table)
	}

	var (
		sets []string
		args []any
	)
	for _, key := range patch.SortedKeys() {
		if _, ok := m.column(key); !ok {
			return 0, fmt.Errorf("update %s: %q: %w", table, key, ErrUnknownColumn)
		}
		arg, err := encodeValue(patch[key])
		if err != nil {
			return 0, fmt.Errorf("update %s.%s: %w", table, key, err)
		}
		sets = append(sets, key+" = ?")
		args = append(args, arg)
	}
	if len(sets) == 0 {
		return 0, nil
	}

	cond, condArgs, err := predicate(m, where)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	res, err := t.q.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s WHERE %s", m.name, strings.Join(sets, ", "), cond),
		append(args, condArgs...)...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update %s: rows affected: %w", table, err)
	}
	return n, nil
}

// Query returns every row matching where, ordered by primary key.
// Returns an empty slice (not nil) when nothing matches.
func (t tableSet) Query(ctx context.Context, table string, where ir.IRObject) ([]ir.IRObject, error) {
	m, err := t.table(table)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	cond, args, err := predicate(m, where)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	rows, err := t.q.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s ASC", m.columnList(), m.name, cond, m.pk),
		args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	out, err := scanRows(rows, m)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	return out, nil
}

// Count returns the number of rows matching where.
func (t tableSet) Count(ctx context.Context, table string, where ir.IRObject) (int64, error) {
	m, err := t.table(table)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	cond, args, err := predicate(m, where)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	var n int64
	err = t.q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", m.name, cond), args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// NextID reads the AUTOINCREMENT counter. SQLite never reuses ids of an
// AUTOINCREMENT table, so the result is stable until the next insert.
func (t tableSet) NextID(ctx context.Context, table string) (int64, error) {
	m, err := t.table(table)
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	var seq int64
	err = t.q.QueryRowContext(ctx, "SELECT seq FROM sqlite_sequence WHERE name = ?", m.name).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("next id %s: %w", table, err)
	}
	return seq + 1, nil
}

// predicate renders where as an AND of equality tests in sorted key order.
func predicate(m *tableMeta, where ir.IRObject) (string, []any, error) {
	if len(where) == 0 {
		return "1 = 1", nil, nil
	}
	var (
		conds []string
		args  []any
	)
	for _, key := range where.SortedKeys() {
		if _, ok := m.column(key); !ok {
			return "", nil, fmt.Errorf("%q: %w", key, ErrUnknownColumn)
		}
		if ir.IsNull(where[key]) {
			conds = append(conds, key+" IS NULL")
			continue
		}
		arg, err := encodeValue(where[key])
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", key, err)
		}
		conds = append(conds, key+" = ?")
		args = append(args, arg)
	}
	return strings.Join(conds, " AND "), args, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func scanRows(rows *sql.Rows, m *tableMeta) ([]ir.IRObject, error) {
	defer rows.Close()

	out := []ir.IRObject{}
	for rows.Next() {
		raw := make([]any, len(m.columns))
		ptrs := make([]any, len(m.columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		row := make(ir.IRObject, len(m.columns))
		for i, c := range m.columns {
			v, err := decodeValue(raw[i], c.json)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.name, err)
			}
			row[c.name] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

// encodeValue maps an IR value onto a driver value. Collections and
// mappings are stored as canonical JSON text.
func encodeValue(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return nil, nil
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case ir.IRArray, ir.IRObject:
		data, err := ir.MarshalCanonical(val)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func decodeValue(raw any, jsonColumn bool) (ir.IRValue, error) {
	switch val := raw.(type) {
	case nil:
		return ir.Null, nil
	case int64:
		return ir.IRInt(val), nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("fractional value %v", val)
		}
		return ir.IRInt(int64(val)), nil
	case []byte:
		return decodeText(string(val), jsonColumn)
	case string:
		return decodeText(val, jsonColumn)
	default:
		return nil, fmt.Errorf("unsupported column type %T", raw)
	}
}

func decodeText(s string, jsonColumn bool) (ir.IRValue, error) {
	if !jsonColumn {
		return ir.IRString(s), nil
	}
	return ir.UnmarshalIRValue([]byte(s))
}
