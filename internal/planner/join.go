package planner

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/graph_query/internal/qspec"
	"github.com/atlekbai/graph_query/internal/schema"
)

type joinKind int

const (
	joinDirect joinKind = iota
	joinReverse
	joinM2M
	joinClosure
)

type joinKey struct {
	kind schema.Kind // kind of the appended vertex
	rel  string
}

// strategy describes how one (kind, relation) pair joins. The set is
// closed: adding a relation is a table edit, not new dispatch code.
type strategy struct {
	kind      joinKind
	joinTo    []schema.Kind // accepted kinds for the join target
	fk        string        // direct: FK on the appended side; reverse: FK on the target side
	junction  schema.Kind   // m2m: junction kind, bound as the edge alias
	joinToCol string        // m2m: junction column matching the target id
	newCol    string        // m2m: junction column matching the appended id
	up        bool          // closure: walk toward ancestors
}

var joinStrategies = map[joinKey]strategy{
	{schema.KindNode, "output_of"}:      {kind: joinM2M, joinTo: []schema.Kind{schema.KindNode}, junction: schema.KindEdge, joinToCol: "source_id", newCol: "target_id"},
	{schema.KindNode, "input_of"}:       {kind: joinM2M, joinTo: []schema.Kind{schema.KindNode}, junction: schema.KindEdge, joinToCol: "target_id", newCol: "source_id"},
	{schema.KindNode, "descendant_of"}:  {kind: joinClosure, joinTo: []schema.Kind{schema.KindNode}},
	{schema.KindNode, "ancestor_of"}:    {kind: joinClosure, joinTo: []schema.Kind{schema.KindNode}, up: true},
	{schema.KindNode, "member_of"}:      {kind: joinM2M, joinTo: []schema.Kind{schema.KindGroup}, junction: schema.KindMembership, joinToCol: "group_id", newCol: "node_id"},
	{schema.KindNode, "created_by"}:     {kind: joinDirect, joinTo: []schema.Kind{schema.KindUser}, fk: "user_id"},
	{schema.KindNode, "ran_on"}:         {kind: joinDirect, joinTo: []schema.Kind{schema.KindMachine}, fk: "machine_id"},
	{schema.KindNode, "subject_of"}:     {kind: joinReverse, joinTo: []schema.Kind{schema.KindComment, schema.KindLog}, fk: "node_id"},
	{schema.KindGroup, "containing"}:    {kind: joinM2M, joinTo: []schema.Kind{schema.KindNode}, junction: schema.KindMembership, joinToCol: "node_id", newCol: "group_id"},
	{schema.KindGroup, "owned_by"}:      {kind: joinDirect, joinTo: []schema.Kind{schema.KindUser}, fk: "user_id"},
	{schema.KindUser, "owner_of"}:       {kind: joinReverse, joinTo: []schema.Kind{schema.KindGroup}, fk: "user_id"},
	{schema.KindUser, "creator_of"}:     {kind: joinReverse, joinTo: []schema.Kind{schema.KindNode}, fk: "user_id"},
	{schema.KindUser, "author_of"}:      {kind: joinReverse, joinTo: []schema.Kind{schema.KindComment}, fk: "user_id"},
	{schema.KindComment, "attached_to"}: {kind: joinDirect, joinTo: []schema.Kind{schema.KindNode}, fk: "node_id"},
	{schema.KindComment, "authored_by"}: {kind: joinDirect, joinTo: []schema.Kind{schema.KindUser}, fk: "user_id"},
	{schema.KindLog, "attached_to"}:     {kind: joinDirect, joinTo: []schema.Kind{schema.KindNode}, fk: "node_id"},
	{schema.KindMachine, "hosting"}:     {kind: joinReverse, joinTo: []schema.Kind{schema.KindNode}, fk: "machine_id"},
}

func (s strategy) accepts(kind schema.Kind) bool {
	for _, k := range s.joinTo {
		if k == kind {
			return true
		}
	}
	return false
}

// buildJoin appends one path vertex to the statement. joinTo is the alias
// of the earlier vertex named by the spec, next the alias reserved for the
// appended vertex, edgeName the alias reserved for the relation itself.
// hint carries the join target's filter sub-spec for closure seed pruning.
// The returned alias binds the relation's attributes; it is nil for
// strategies that join without a relation row.
func buildJoin(sb sq.SelectBuilder, reg *schema.Registry, joinTo, next *schema.Alias, rel, edgeName string, outer bool, hint qspec.Map, expandPath bool) (sq.SelectBuilder, *schema.Alias, error) {
	st, ok := joinStrategies[joinKey{next.Def.Kind, rel}]
	if !ok {
		return sb, nil, fmt.Errorf("%w: %q is not a valid relation for a %q entity", ErrInvalidRelation, rel, next.Def.Kind)
	}
	if !st.accepts(joinTo.Def.Kind) {
		return sb, nil, fmt.Errorf("%w: relation %q joins a %q entity to %s, not %q",
			ErrInvalidRelation, rel, next.Def.Kind, kindList(st.joinTo), joinTo.Def.Kind)
	}

	join := func(b sq.SelectBuilder, clause string) sq.SelectBuilder {
		if outer {
			return b.LeftJoin(clause)
		}
		return b.Join(clause)
	}

	switch st.kind {
	case joinDirect:
		sb = join(sb, next.Def.TableName()+" "+next.Name+
			" ON "+next.Name+"."+schema.QuoteIdent(st.fk)+" = "+joinTo.Name+"."+schema.QuoteIdent("id"))
		return sb, nil, nil

	case joinReverse:
		sb = join(sb, next.Def.TableName()+" "+next.Name+
			" ON "+joinTo.Name+"."+schema.QuoteIdent(st.fk)+" = "+next.Name+"."+schema.QuoteIdent("id"))
		return sb, nil, nil

	case joinM2M:
		jd, err := reg.Def(st.junction)
		if err != nil {
			return sb, nil, err
		}
		edge := &schema.Alias{Def: jd, Name: edgeName}
		sb = join(sb, jd.TableName()+" "+edgeName+
			" ON "+edgeName+"."+schema.QuoteIdent(st.joinToCol)+" = "+joinTo.Name+"."+schema.QuoteIdent("id"))
		sb = join(sb, next.Def.TableName()+" "+next.Name+
			" ON "+next.Name+"."+schema.QuoteIdent("id")+" = "+edgeName+"."+schema.QuoteIdent(st.newCol))
		return sb, edge, nil

	case joinClosure:
		wd, err := reg.Def(schema.KindWalk)
		if err != nil {
			return sb, nil, err
		}
		walk := &schema.Alias{Def: wd, Name: edgeName}
		cte, args, err := closureCTE(reg, joinTo.Def, hint, st.up, expandPath)
		if err != nil {
			return sb, nil, err
		}
		joinToCol, newCol := "ancestor_id", "descendant_id"
		if st.up {
			joinToCol, newCol = newCol, joinToCol
		}
		kw := "JOIN "
		if outer {
			kw = "LEFT JOIN "
		}
		sb = sb.JoinClause(sq.Expr(kw+"("+cte+") "+edgeName+
			" ON "+edgeName+"."+schema.QuoteIdent(joinToCol)+" = "+joinTo.Name+"."+schema.QuoteIdent("id"), args...))
		sb = join(sb, next.Def.TableName()+" "+next.Name+
			" ON "+next.Name+"."+schema.QuoteIdent("id")+" = "+edgeName+"."+schema.QuoteIdent(newCol))
		return sb, walk, nil
	}
	panic(fmt.Sprintf("unhandled join kind %d", st.kind))
}

// closureCTE renders the recursive traversal over the edge table, seeded
// at the join target and pruned by its filter sub-spec. The path column is
// materialized only on request: appending to an array per step is the
// expensive part of the walk.
func closureCTE(reg *schema.Registry, seedDef *schema.Def, hint qspec.Map, up, expandPath bool) (string, []any, error) {
	ed, err := reg.Def(schema.KindEdge)
	if err != nil {
		return "", nil, err
	}
	edges := ed.TableName()

	where, args := "true", []any(nil)
	if len(hint) > 0 {
		pred, err := compileFilters(&schema.Alias{Def: seedDef, Name: "s"}, hint)
		if err != nil {
			return "", nil, err
		}
		where, args, err = pred.ToSql()
		if err != nil {
			return "", nil, err
		}
	}

	cols := `("ancestor_id", "descendant_id", "depth"`
	seedSel := `SELECT e."source_id", e."target_id", 1`
	seedOn := `s."id" = e."source_id"`
	recSel := `SELECT w."ancestor_id", e."target_id", w."depth" + 1`
	recOn := `e."source_id" = w."descendant_id"`
	if up {
		seedOn = `s."id" = e."target_id"`
		recSel = `SELECT e."source_id", w."descendant_id", w."depth" + 1`
		recOn = `e."target_id" = w."ancestor_id"`
	}
	if expandPath {
		cols += `, "path"`
		seedSel += `, ARRAY[e."source_id", e."target_id"]`
		if up {
			recSel += `, e."source_id" || w."path"`
		} else {
			recSel += `, w."path" || e."target_id"`
		}
	}
	cols += ")"

	parts := []string{
		"WITH RECURSIVE walk " + cols + " AS (",
		seedSel + ` FROM ` + edges + ` e JOIN ` + seedDef.TableName() + ` s ON ` + seedOn + ` WHERE ` + where,
		"UNION ALL",
		recSel + ` FROM walk w JOIN ` + edges + ` e ON ` + recOn,
		") SELECT * FROM walk",
	}
	return strings.Join(parts, " "), args, nil
}

func kindList(kinds []schema.Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = fmt.Sprintf("%q", k)
	}
	return strings.Join(names, " or ")
}
