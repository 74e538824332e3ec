package planner

import (
	"errors"
	"strings"
	"testing"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/graph_query/internal/qspec"
	"github.com/atlekbai/graph_query/internal/schema"
)

var testReg = schema.NewRegistry()

func testAlias(t *testing.T, kind schema.Kind, name string) *schema.Alias {
	t.Helper()
	def, err := testReg.Def(kind)
	if err != nil {
		t.Fatal(err)
	}
	return &schema.Alias{Def: def, Name: name}
}

func condToSQL(cond sq.Sqlizer) (string, []any, error) {
	// Wrap in a SELECT to get valid SQL.
	qb := sq.Select("1").Where(cond).PlaceholderFormat(sq.Dollar)
	return qb.ToSql()
}

func filterSQL(t *testing.T, kind schema.Kind, spec qspec.Map) (string, []any) {
	t.Helper()
	cond, err := compileFilters(testAlias(t, kind, "v0"), spec)
	if err != nil {
		t.Fatal(err)
	}
	sql, args, err := condToSQL(cond)
	if err != nil {
		t.Fatal(err)
	}
	return sql, args
}

func filterErr(t *testing.T, kind schema.Kind, spec qspec.Map) error {
	t.Helper()
	_, err := compileFilters(testAlias(t, kind, "v0"), spec)
	if err == nil {
		t.Fatal("expected error, got none")
	}
	return err
}

// --- Scalar leaf tests ---

func TestImplicitEquality(t *testing.T) {
	sql, args := filterSQL(t, schema.KindNode, qspec.Map{"label": qspec.Text("calc")})
	if !strings.Contains(sql, `v0."label" = $1`) {
		t.Fatalf("expected equality, got %q", sql)
	}
	if len(args) != 1 || args[0] != "calc" {
		t.Fatalf("expected args [calc], got %v", args)
	}
}

func TestScalarComparisons(t *testing.T) {
	tests := []struct {
		op   string
		want string
	}{
		{">", `v0."id" > $1`},
		{"<", `v0."id" < $1`},
		{">=", `v0."id" >= $1`},
		{"<=", `v0."id" <= $1`},
	}
	for _, tt := range tests {
		sql, args := filterSQL(t, schema.KindNode, qspec.Map{
			"id": qspec.Map{tt.op: qspec.Int(5)},
		})
		if !strings.Contains(sql, tt.want) {
			t.Errorf("op %q: expected %q in %q", tt.op, tt.want, sql)
		}
		if len(args) != 1 || args[0] != int64(5) {
			t.Errorf("op %q: expected args [5], got %v", tt.op, args)
		}
	}
}

func TestScalarLikeCastsToText(t *testing.T) {
	sql, _ := filterSQL(t, schema.KindNode, qspec.Map{
		"label": qspec.Map{"like": qspec.Text("calc%")},
	})
	if !strings.Contains(sql, `v0."label"::text LIKE $1`) {
		t.Fatalf("expected text-cast LIKE, got %q", sql)
	}

	sql, _ = filterSQL(t, schema.KindNode, qspec.Map{
		"label": qspec.Map{"ilike": qspec.Text("calc%")},
	})
	if !strings.Contains(sql, `v0."label"::text ILIKE $1`) {
		t.Fatalf("expected text-cast ILIKE, got %q", sql)
	}
}

func TestScalarIn(t *testing.T) {
	sql, args := filterSQL(t, schema.KindNode, qspec.Map{
		"id": qspec.Map{"in": qspec.List{qspec.Int(1), qspec.Int(2), qspec.Int(3)}},
	})
	if !strings.Contains(sql, `v0."id" IN ($1,$2,$3)`) {
		t.Fatalf("expected IN, got %q", sql)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %v", args)
	}
}

func TestEqualsNull(t *testing.T) {
	sql, args := filterSQL(t, schema.KindNode, qspec.Map{"description": qspec.Null{}})
	if !strings.Contains(sql, `v0."description" IS NULL`) {
		t.Fatalf("expected IS NULL, got %q", sql)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
}

func TestEqualsListIsArrayEquality(t *testing.T) {
	// A list under == compares whole arrays; membership is spelled "in".
	sql, _ := filterSQL(t, schema.KindUser, qspec.Map{
		"email": qspec.Map{"==": qspec.List{qspec.Text("a"), qspec.Text("b")}},
	})
	if !strings.Contains(sql, `v0."email" = $1`) {
		t.Fatalf("expected array equality, got %q", sql)
	}
	if strings.Contains(sql, "IN (") {
		t.Fatalf("expected no IN clause, got %q", sql)
	}
}

func TestMultipleOperatorsConjoined(t *testing.T) {
	sql, args := filterSQL(t, schema.KindNode, qspec.Map{
		"id": qspec.Map{">": qspec.Int(1), "<": qspec.Int(10)},
	})
	if !strings.Contains(sql, " AND ") {
		t.Fatalf("expected conjunction, got %q", sql)
	}
	// Sorted operator order: "<" before ">".
	if !strings.Contains(sql, `v0."id" < $1`) || !strings.Contains(sql, `v0."id" > $2`) {
		t.Fatalf("expected sorted operator order, got %q", sql)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %v", args)
	}
}

func TestNegatedOperator(t *testing.T) {
	for _, prefix := range []string{"~", "!"} {
		sql, _ := filterSQL(t, schema.KindNode, qspec.Map{
			"label": qspec.Map{prefix + "like": qspec.Text("x%")},
		})
		if !strings.Contains(sql, "NOT (") || !strings.Contains(sql, "LIKE") {
			t.Errorf("prefix %q: expected negated LIKE, got %q", prefix, sql)
		}
	}
}

// --- Combinator tests ---

func TestCombinatorOr(t *testing.T) {
	sql, args := filterSQL(t, schema.KindNode, qspec.Map{
		"or": qspec.List{
			qspec.Map{"label": qspec.Text("a")},
			qspec.Map{"label": qspec.Text("b")},
		},
	})
	if !strings.Contains(sql, `v0."label" = $1 OR v0."label" = $2`) {
		t.Fatalf("expected disjunction, got %q", sql)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %v", args)
	}
}

func TestCombinatorNegation(t *testing.T) {
	sub := qspec.List{
		qspec.Map{"id": qspec.Map{">": qspec.Int(1)}},
		qspec.Map{"label": qspec.Text("x")},
	}
	for _, key := range []string{"~and", "!and", "~or", "!or"} {
		sql, _ := filterSQL(t, schema.KindNode, qspec.Map{key: sub})
		if !strings.Contains(sql, "NOT (") {
			t.Errorf("%s: expected NOT wrapper, got %q", key, sql)
		}
	}
}

func TestCombinatorEmptyLists(t *testing.T) {
	sql, _ := filterSQL(t, schema.KindNode, qspec.Map{"and": qspec.List{}})
	if !strings.Contains(sql, "WHERE true") {
		t.Fatalf("empty and: expected true, got %q", sql)
	}
	sql, _ = filterSQL(t, schema.KindNode, qspec.Map{"or": qspec.List{}})
	if !strings.Contains(sql, "WHERE false") {
		t.Fatalf("empty or: expected false, got %q", sql)
	}
}

func TestCombinatorNested(t *testing.T) {
	sql, args := filterSQL(t, schema.KindNode, qspec.Map{
		"or": qspec.List{
			qspec.Map{"and": qspec.List{
				qspec.Map{"id": qspec.Map{">": qspec.Int(1)}},
				qspec.Map{"id": qspec.Map{"<": qspec.Int(9)}},
			}},
			qspec.Map{"label": qspec.Text("pinned")},
		},
	})
	if !strings.Contains(sql, " OR ") || !strings.Contains(sql, " AND ") {
		t.Fatalf("expected nested combinators, got %q", sql)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %v", args)
	}
}

func TestCombinatorRejectsNonList(t *testing.T) {
	err := filterErr(t, schema.KindNode, qspec.Map{"and": qspec.Text("nope")})
	if !errors.Is(err, ErrBadValue) {
		t.Fatalf("expected ErrBadValue, got %v", err)
	}
}

// --- Leaf and/or tests ---

func TestLeafOr(t *testing.T) {
	sql, args := filterSQL(t, schema.KindNode, qspec.Map{
		"id": qspec.Map{"or": qspec.List{
			qspec.Map{"<": qspec.Int(2)},
			qspec.Map{">": qspec.Int(5)},
		}},
	})
	if !strings.Contains(sql, `v0."id" < $1 OR v0."id" > $2`) {
		t.Fatalf("expected leaf disjunction on one column, got %q", sql)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %v", args)
	}
}

func TestLeafAndNegated(t *testing.T) {
	sql, _ := filterSQL(t, schema.KindNode, qspec.Map{
		"id": qspec.Map{"!and": qspec.List{
			qspec.Map{">": qspec.Int(2)},
			qspec.Map{"<": qspec.Int(5)},
		}},
	})
	if !strings.Contains(sql, "NOT (") || !strings.Contains(sql, " AND ") {
		t.Fatalf("expected negated conjunction, got %q", sql)
	}
}

// --- Operator value pre-checks ---

func TestInValueChecks(t *testing.T) {
	tests := []struct {
		name string
		val  qspec.Value
		want error
	}{
		{"empty list", qspec.List{}, ErrEmptyIn},
		{"mixed types", qspec.List{qspec.Int(1), qspec.Text("x")}, ErrHeterogeneousIn},
		{"not a list", qspec.Int(1), ErrBadValue},
	}
	for _, tt := range tests {
		err := filterErr(t, schema.KindNode, qspec.Map{"id": qspec.Map{"in": tt.val}})
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestLikeNeedsText(t *testing.T) {
	err := filterErr(t, schema.KindNode, qspec.Map{"label": qspec.Map{"like": qspec.Int(3)}})
	if !errors.Is(err, ErrBadValue) {
		t.Fatalf("expected ErrBadValue, got %v", err)
	}
}

func TestLengthOpsNeedInt(t *testing.T) {
	err := filterErr(t, schema.KindNode, qspec.Map{
		"attributes.list": qspec.Map{"of_length": qspec.Text("four")},
	})
	if !errors.Is(err, ErrBadValue) {
		t.Fatalf("expected ErrBadValue, got %v", err)
	}
}

func TestUnknownScalarOperator(t *testing.T) {
	err := filterErr(t, schema.KindNode, qspec.Map{"id": qspec.Map{"almost": qspec.Int(1)}})
	if !errors.Is(err, ErrUnknownOperator) {
		t.Fatalf("expected ErrUnknownOperator, got %v", err)
	}
	if !strings.Contains(err.Error(), "almost") {
		t.Fatalf("expected operator in message, got %v", err)
	}
}

func TestUnknownColumnEnumerates(t *testing.T) {
	err := filterErr(t, schema.KindNode, qspec.Map{"bogus": qspec.Text("x")})
	if !errors.Is(err, schema.ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
	if !strings.Contains(err.Error(), "uuid") || !strings.Contains(err.Error(), "label") {
		t.Fatalf("expected valid columns in message, got %v", err)
	}
}

func TestCompiledSQLIsDeterministic(t *testing.T) {
	spec := qspec.Map{
		"label":       qspec.Text("a"),
		"id":          qspec.Map{">": qspec.Int(1), "<=": qspec.Int(9)},
		"description": qspec.Map{"like": qspec.Text("b%")},
	}
	first, _ := filterSQL(t, schema.KindNode, spec)
	for i := 0; i < 10; i++ {
		again, _ := filterSQL(t, schema.KindNode, spec)
		if again != first {
			t.Fatalf("iteration %d: SQL changed:\n%s\n%s", i, first, again)
		}
	}
}
