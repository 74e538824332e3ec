package schema

import (
	"fmt"
	"strings"
)

// Alias binds an entity definition to the SQL alias it carries inside one
// compiled statement.
type Alias struct {
	Def  *Def
	Name string
}

// Column resolves an inner column name to its qualified, quoted SQL form.
// Unknown columns are rejected with the full list of valid names so spec
// authors can see what the kind offers.
func (a *Alias) Column(col string) (string, error) {
	if !a.Def.HasColumn(col) {
		return "", fmt.Errorf("%w %q on %s (valid: %s)",
			ErrUnknownColumn, col, a.Def.Kind, strings.Join(a.Def.Columns, ", "))
	}
	return a.Name + "." + QuoteIdent(col), nil
}

// Field resolves a public field name: the outer name is remapped to its
// storage column first, then qualified. The returned inner name is what
// result indexes are keyed by.
func (a *Alias) Field(field string) (expr, inner string, err error) {
	inner, err = a.Def.OuterToInner(field)
	if err != nil {
		return "", "", err
	}
	expr, err = a.Column(inner)
	if err != nil {
		return "", "", err
	}
	return expr, inner, nil
}
