package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/shulehq/shule/core"
)

const orderingParam = "ordering"

// userSortFields are the columns user listings may be sorted on;
// unknown fields in the ordering param are dropped.
var userSortFields = map[string]bool{
	"name":       true,
	"email":      true,
	"role":       true,
	"created_at": true,
}

// Ordering parses the "ordering" query param ("name,-created_at")
// into repository orderings.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	raw := ctx.QueryParam(orderingParam)
	if raw == "" {
		return
	}
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		if !userSortFields[field] {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}
