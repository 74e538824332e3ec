package planner

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/atlekbai/graph_query/internal/qspec"
	"github.com/atlekbai/graph_query/internal/schema"
)

// projector accumulates output columns and the positional index that maps
// result slots back to (tag, field). Decoding depends on the index and the
// column list growing in lockstep.
type projector struct {
	sb    sq.SelectBuilder
	index []Field
	byTag map[string]map[string]int
}

func newProjector(sb sq.SelectBuilder) *projector {
	return &projector{sb: sb, byTag: map[string]map[string]int{}}
}

func (p *projector) add(tag, field, expr string) error {
	slots, ok := p.byTag[tag]
	if !ok {
		slots = map[string]int{}
		p.byTag[tag] = slots
	}
	if _, dup := slots[field]; dup {
		return fmt.Errorf("%w: tag %q projects %q more than once", ErrDuplicateProjection, tag, field)
	}
	slots[field] = len(p.index)
	p.index = append(p.index, Field{Tag: tag, Field: field})
	p.sb = p.sb.Column(expr)
	return nil
}

func (p *projector) buildTag(tag string, alias *schema.Alias, items []qspec.Projection) error {
	for _, it := range items {
		if err := p.item(tag, alias, it); err != nil {
			return err
		}
	}
	return nil
}

func (p *projector) item(tag string, alias *schema.Alias, it qspec.Projection) error {
	switch it.Field {
	case "*":
		if it.Func != "" {
			return fmt.Errorf("%w: tag %q", ErrStarFunc, tag)
		}
		return p.add(tag, "*", "to_jsonb("+alias.Name+".*)")

	case "**":
		// Expands over the storage columns directly, so reserved inner
		// names land in the index under their inner form; the decoder
		// exposes them under the public name.
		for _, col := range alias.Def.Columns {
			ref := fieldRef{alias: alias, column: col, jsonb: alias.Def.IsJSONB(col)}
			expr := ref.columnSQL()
			if ref.jsonb {
				var err error
				if expr, err = castJSONB(ref, it.Cast); err != nil {
					return err
				}
			}
			expr, err := applyFunc(expr, it.Func)
			if err != nil {
				return err
			}
			if err := p.add(tag, col, expr); err != nil {
				return err
			}
		}
		return nil
	}

	expr, ref, err := resolveProjectable(alias, it.Field, it.Cast)
	if err != nil {
		return err
	}
	expr, err = applyFunc(expr, it.Func)
	if err != nil {
		return err
	}
	return p.add(tag, ref.key(), expr)
}

func applyFunc(expr, fn string) (string, error) {
	switch fn {
	case "":
		return expr, nil
	case "max":
		return "max(" + expr + ")", nil
	case "min":
		return "min(" + expr + ")", nil
	case "count":
		return "count(" + expr + ")", nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownFunc, fn)
	}
}

// buildOrderBy attaches ordering terms. Field resolution follows the same
// rules as projection, so ordering by a nested attribute needs a cast too.
func buildOrderBy(sb sq.SelectBuilder, items []qspec.OrderItem, lookup func(string) (*schema.Alias, error)) (sq.SelectBuilder, error) {
	for _, it := range items {
		alias, err := lookup(it.Tag)
		if err != nil {
			return sb, err
		}
		expr, _, err := resolveProjectable(alias, it.Field, it.Cast)
		if err != nil {
			return sb, fmt.Errorf("order_by %s.%s: %w", it.Tag, it.Field, err)
		}
		dir := " ASC"
		if it.Descending() {
			dir = " DESC"
		}
		sb = sb.OrderBy(expr + dir)
	}
	return sb, nil
}
