package boiledrepos

import (
	"strconv"
	"strings"

	"github.com/volatiletech/strmangle"

	"github.com/koneum/eduwaly/core"
)

// whereClause accumulates AND-ed conditions written with `?` placeholders.
type whereClause struct {
	conds []string
	args  []interface{}
}

func (w *whereClause) add(cond string, args ...interface{}) {
	var sb strings.Builder
	for _, r := range cond {
		if r == '?' && len(args) > 0 {
			w.args = append(w.args, args[0])
			args = args[1:]
			sb.WriteString("$" + strconv.Itoa(len(w.args)))
			continue
		}
		sb.WriteRune(r)
	}
	w.conds = append(w.conds, "("+sb.String()+")")
}

// in adds `column IN (...)` for values.
func (w *whereClause) in(column string, values []interface{}) {
	if len(values) == 0 {
		w.conds = append(w.conds, "false")
		return
	}
	w.conds = append(w.conds, column+" IN ("+strmangle.Placeholders(true, len(values), len(w.args)+1, 1)+")")
	w.args = append(w.args, values...)
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy renders the ORDER BY clause, only keeping fields listed in columns ({field: column}).
func orderBy(ordering []core.DBOrdering, columns map[string]string, fallback string) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		parts = append(parts, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(parts) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func placeholders(count, start int) string {
	return strmangle.Placeholders(true, count, start, 1)
}
