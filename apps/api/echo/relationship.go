package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulehq/shule/core"
	"github.com/shulehq/shule/core/relationship"
)

type relationshipAPI struct {
	svc  relationship.Service
	deps ServerDeps
}

func registerRelationshipAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := relationshipAPI{
		svc:  deps.RelationSvc,
		deps: deps,
	}

	sg := g.Group("/admin/schools/:id", jwt, roleMiddleware())

	lg := sg.Group("/links")
	lg.POST("", api.link)
	lg.DELETE("", api.unlink)
	lg.GET("", api.queryLinks)

	ag := sg.Group("/assignments")
	ag.POST("", api.assign)
	ag.DELETE("", api.unassign)
	ag.GET("", api.queryAssignments)
}

// Handlers

func (api *relationshipAPI) link(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data relationship.NewParentLink
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewParentLink")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	link, err := api.svc.LinkParentChild(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return jsonData(ctx, http.StatusCreated, link)
}

func (api *relationshipAPI) unlink(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	parentID := core.CleanString(ctx.QueryParam("parent_id"))
	childID := core.CleanString(ctx.QueryParam("child_id"))
	if parentID == "" || childID == "" {
		return core.NewValidationError(errors.New("parent_id and child_id are required"))
	}

	if err := api.svc.UnlinkParentChild(ctx.Request().Context(), claims.Subject, ctx.Param("id"), parentID, childID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *relationshipAPI) queryLinks(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	filter := relationship.LinkFilter{
		ParentID: core.CleanString(ctx.QueryParam("parent_id")),
		ChildID:  core.CleanString(ctx.QueryParam("child_id")),
	}
	links, err := api.svc.QueryLinks(ctx.Request().Context(), claims.Subject, ctx.Param("id"), filter)
	if err != nil {
		return err
	}
	if links == nil {
		links = []relationship.ParentLink{}
	}
	return jsonData(ctx, http.StatusOK, links)
}

func (api *relationshipAPI) assign(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data relationship.NewTeacherAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacherAssignment")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	asg, err := api.svc.AssignTeacher(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return jsonData(ctx, http.StatusCreated, asg)
}

func (api *relationshipAPI) unassign(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	teacherID := core.CleanString(ctx.QueryParam("teacher_id"))
	classroomID := core.CleanString(ctx.QueryParam("classroom_id"))
	if teacherID == "" || classroomID == "" {
		return core.NewValidationError(errors.New("teacher_id and classroom_id are required"))
	}

	if err := api.svc.UnassignTeacher(ctx.Request().Context(), claims.Subject, ctx.Param("id"), teacherID, classroomID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *relationshipAPI) queryAssignments(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	filter := relationship.AssignmentFilter{
		TeacherID:   core.CleanString(ctx.QueryParam("teacher_id")),
		ClassroomID: core.CleanString(ctx.QueryParam("classroom_id")),
	}
	asgs, err := api.svc.QueryAssignments(ctx.Request().Context(), claims.Subject, ctx.Param("id"), filter)
	if err != nil {
		return err
	}
	if asgs == nil {
		asgs = []relationship.TeacherAssignment{}
	}
	return jsonData(ctx, http.StatusOK, asgs)
}
