package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulehq/shule/core/audit"
	"github.com/shulehq/shule/core/rbac"
)

type auditAPI struct {
	recorder audit.Recorder
	access   *rbac.Validator
}

func registerAuditAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := auditAPI{
		recorder: deps.AuditRec,
		access:   deps.Access,
	}

	g.GET("/admin/schools/:id/audit", api.query, jwt, roleMiddleware())
}

func (api *auditAPI) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	schoolID := ctx.Param("id")

	if _, err := api.access.Validate(ctx.Request().Context(), claims.Subject, schoolID); err != nil {
		return err
	}

	var filter audit.Filter
	if err := ctx.Bind(&filter); err != nil {
		return jsonData(ctx, http.StatusOK, []audit.Entry{})
	}
	filter.SchoolID = schoolID

	entries, err := api.recorder.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying audit entries")
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return jsonData(ctx, http.StatusOK, entries)
}
