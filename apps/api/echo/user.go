package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/shulehq/shule/core"
	"github.com/shulehq/shule/core/audit"
	"github.com/shulehq/shule/core/rbac"
	"github.com/shulehq/shule/core/user"
)

type userAPI struct {
	svc      user.Service
	access   *rbac.Validator
	recorder audit.Recorder
	deps     ServerDeps
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := userAPI{
		svc:      deps.UserSvc,
		access:   deps.Access,
		recorder: deps.AuditRec,
		deps:     deps,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.login)
	ug.POST("/password-reset", api.resetPassword)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)

	// school-scoped admin endpoints
	sg := g.Group("/admin/schools/:id/users", jwt, roleMiddleware())
	sg.POST("", api.allocate)
	sg.GET("", api.query)
}

// Handlers

func (api *userAPI) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.svc)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewValidationError(errors.New("invalid credentials"))
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return jsonData(ctx, http.StatusOK, LoginResponse{
		Token:   token,
		Landing: rbac.LandingPath(user.Role(claims.Role)),
	})
}

func (api *userAPI) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return jsonData(ctx, http.StatusOK, echo.Map{
		"detail": "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userAPI) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return jsonData(ctx, http.StatusOK, echo.Map{"detail": "Password has been reset with the new password."})
}

func (api *userAPI) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return jsonData(ctx, http.StatusOK, LoginResponse{Token: token})
}

// allocate creates a user profile within a school: authorize, shape-check,
// mutate, audit.
func (api *userAPI) allocate(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	schoolID := ctx.Param("id")

	acc, err := api.access.Validate(ctx.Request().Context(), claims.Subject, schoolID)
	if err != nil {
		return err
	}

	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	data.SchoolID = schoolID
	if data.Role == user.RoleSuper {
		// school-scoped allocation can never mint an operator
		return core.NewFieldError("role", "cannot allocate this role")
	}
	if err := data.Validate(api.deps.Validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}

	api.recorder.Record(ctx.Request().Context(), audit.Entry{
		ActorID:    acc.Actor.ID,
		ActorRole:  acc.Actor.Role,
		Action:     audit.ActionCreate,
		EntityType: audit.EntityUser,
		EntityID:   usr.ID,
		SchoolID:   schoolID,
		Changes:    map[string]interface{}{"email": usr.Email, "role": usr.Role.String()},
	})

	return jsonData(ctx, http.StatusCreated, usr)
}

func (api *userAPI) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	schoolID := ctx.Param("id")

	if _, err := api.access.Validate(ctx.Request().Context(), claims.Subject, schoolID); err != nil {
		return err
	}

	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return jsonData(ctx, http.StatusOK, []user.User{})
	}
	filter.Clean()
	filter.SchoolID = schoolID
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return jsonData(ctx, http.StatusOK, users)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token   string `json:"token"`
		Landing string `json:"landing,omitempty"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
