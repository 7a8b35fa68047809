package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulehq/shule/core"
	"github.com/shulehq/shule/core/audit"
	"github.com/shulehq/shule/core/onboarding"
	"github.com/shulehq/shule/core/rbac"
	"github.com/shulehq/shule/core/user"
)

type onboardingAPI struct {
	svc      onboarding.Service
	access   *rbac.Validator
	recorder audit.Recorder
	deps     ServerDeps
}

func registerOnboardingAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := onboardingAPI{
		svc:      deps.OnboardingSvc,
		access:   deps.Access,
		recorder: deps.AuditRec,
		deps:     deps,
	}

	og := g.Group("/onboarding", jwt, roleMiddleware(user.RoleSuper))
	og.POST("/pilot-school", api.runPilotSchool)
	og.GET("/pilot-school", api.pilotSchoolStatus)
}

// runPilotSchool executes the whole onboarding sequence. A stage 1 failure
// returns a hard failure body; later stage failures come back as warnings in
// a success body.
func (api *onboardingAPI) runPilotSchool(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	acc, err := api.access.Validate(ctx.Request().Context(), claims.Subject, "", user.RoleSuper)
	if err != nil {
		return err
	}

	var req onboarding.Request
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to onboarding Request")
	}
	if err := req.Validate(api.deps.Validate); err != nil {
		return err
	}

	res, err := api.svc.Run(ctx.Request().Context(), req)
	if err != nil {
		// stage 1 failure: nothing was created
		return ctx.JSON(http.StatusBadRequest, envelope{
			Success: false,
			Error:   res.Message(),
			Data:    OnboardingResponse{Message: res.Message(), Result: res},
		})
	}

	api.recorder.Record(ctx.Request().Context(), audit.Entry{
		ActorID:    acc.Actor.ID,
		ActorRole:  acc.Actor.Role,
		Action:     audit.ActionCreate,
		EntityType: audit.EntitySchool,
		EntityID:   res.School.ID,
		SchoolID:   res.School.ID,
		Changes:    map[string]interface{}{"name": res.School.Name, "warnings": len(res.Errors)},
	})

	code := http.StatusCreated
	if !res.Succeeded() {
		code = http.StatusBadRequest
		return ctx.JSON(code, envelope{
			Success: false,
			Error:   res.Message(),
			Data:    OnboardingResponse{Message: res.Message(), Result: res},
		})
	}
	return jsonData(ctx, code, OnboardingResponse{Message: res.Message(), Result: res})
}

func (api *onboardingAPI) pilotSchoolStatus(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if _, err := api.access.Validate(ctx.Request().Context(), claims.Subject, "", user.RoleSuper); err != nil {
		return err
	}

	schoolID := core.CleanString(ctx.QueryParam("school_id"))
	if schoolID == "" {
		return core.NewFieldError("school_id", "this field is required")
	}

	status, err := api.svc.Status(ctx.Request().Context(), schoolID)
	if err != nil {
		return errors.Wrap(err, "fetching onboarding status")
	}
	return jsonData(ctx, http.StatusOK, status)
}

type OnboardingResponse struct {
	Message string            `json:"message"`
	Result  onboarding.Result `json:"result"`
}
