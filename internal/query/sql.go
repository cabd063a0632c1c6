package query

import (
	"fmt"
	"strings"
)

// Dialect selects placeholder and matching syntax.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// Columns maps logical fields to column names.
type Columns map[Field]string

// ProductColumns is the products table layout shared by both SQL stores.
var ProductColumns = Columns{
	FieldID:          "id",
	FieldName:        "name",
	FieldDescription: "description",
	FieldCategory:    "category",
	FieldStyles:      "styles",
	FieldSizes:       "sizes",
	FieldBrand:       "brand",
	FieldPrice:       "price",
	FieldCreatedAt:   "created_at",
}

// Statement is a rendered page query and its COUNT companion. Both share
// the same WHERE clause; Args carries the WHERE arguments followed by the
// limit and offset, CountArgs only the WHERE arguments.
type Statement struct {
	Query      string
	Args       []any
	CountQuery string
	CountArgs  []any
}

// LikeEscape is the escape character used in rendered LIKE patterns.
const LikeEscape = `\`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern wraps v for literal substring matching.
func LikePattern(v string) string {
	return "%" + likeEscaper.Replace(v) + "%"
}

type sqlRenderer struct {
	dialect Dialect
	columns Columns
	args    []any
}

func (r *sqlRenderer) bind(v any) string {
	r.args = append(r.args, v)
	if r.dialect == Postgres {
		return fmt.Sprintf("$%d", len(r.args))
	}
	return "?"
}

func (r *sqlRenderer) column(f Field) (string, error) {
	c, ok := r.columns[f]
	if !ok {
		return "", unknownField(f)
	}
	return c, nil
}

func (r *sqlRenderer) render(n Node) (string, error) {
	switch t := n.(type) {
	case nil, True:
		return "1=1", nil
	case And:
		return r.join(t, " AND ", "1=1")
	case Or:
		return r.join(t, " OR ", "1=0")
	case Contains:
		col, err := r.column(t.Field)
		if err != nil {
			return "", err
		}
		op := "LIKE"
		if r.dialect == Postgres {
			op = "ILIKE"
		}
		return fmt.Sprintf("%s %s %s ESCAPE '%s'", col, op, r.bind(LikePattern(t.Value)), LikeEscape), nil
	case Present:
		col, err := r.column(t.Field)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("TRIM(COALESCE(%s, '')) <> ''", col), nil
	case Range:
		col, err := r.column(t.Field)
		if err != nil {
			return "", err
		}
		var parts []string
		if t.Min != nil {
			parts = append(parts, col+" >= "+r.bind(*t.Min))
		}
		if t.Max != nil {
			parts = append(parts, col+" <= "+r.bind(*t.Max))
		}
		if len(parts) == 0 {
			return "1=1", nil
		}
		return strings.Join(parts, " AND "), nil
	}
	return "", fmt.Errorf("query: unsupported node %T", n)
}

func (r *sqlRenderer) join(nodes []Node, sep, empty string) (string, error) {
	if len(nodes) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(nodes))
	for _, c := range nodes {
		s, err := r.render(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+s+")")
	}
	return strings.Join(parts, sep), nil
}

// Where renders n as a WHERE clause body with its arguments. A trivially
// true tree renders as the empty string.
func (d Dialect) Where(n Node, columns Columns) (string, []any, error) {
	if IsTrue(n) {
		return "", nil, nil
	}
	r := &sqlRenderer{dialect: d, columns: columns}
	s, err := r.render(n)
	if err != nil {
		return "", nil, err
	}
	return s, r.args, nil
}

// Render produces the page SELECT and COUNT statements for q against table.
// selectList is emitted verbatim and must not contain user input.
func (d Dialect) Render(q Query, table, selectList string, columns Columns) (Statement, error) {
	where, args, err := d.Where(q.Where, columns)
	if err != nil {
		return Statement{}, err
	}
	if where != "" {
		where = " WHERE " + where
	}

	sort := q.Sort
	if len(sort) == 0 {
		sort = DefaultSort
	}
	order := make([]string, 0, len(sort))
	for _, k := range sort {
		col, ok := columns[k.Field]
		if !ok {
			return Statement{}, unknownField(k.Field)
		}
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		order = append(order, col+" "+dir)
	}

	r := &sqlRenderer{dialect: d, args: append([]any(nil), args...)}
	limit := r.bind(q.Page.Limit())
	offset := r.bind(q.Page.Offset)

	return Statement{
		Query: fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT %s OFFSET %s",
			selectList, table, where, strings.Join(order, ", "), limit, offset),
		Args:       r.args,
		CountQuery: fmt.Sprintf("SELECT COUNT(*) FROM %s%s", table, where),
		CountArgs:  args,
	}, nil
}
