package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core/company"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

type companyApi struct {
	svc      company.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerCompanyAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := companyApi{
		svc:      deps.CompanySvc,
		userSvc:  deps.UserSvc,
		validate: deps.Validate,
	}

	// platform admin endpoints
	ag := g.Group("/companies", jwt, adminMiddleware())
	ag.POST("", api.create)
	ag.POST("/:id/users", api.addUser)

	cg := g.Group("/company", jwt, companyMiddleware())
	cg.GET("/candidates", api.candidates)
	cg.GET("/candidates/:username", api.candidate)
}

type AddCompanyUserRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func (api *companyApi) create(ctx echo.Context) error {
	var data company.NewCompany
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCompany")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating company")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *companyApi) addUser(ctx echo.Context) error {
	var data AddCompanyUserRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddCompanyUserRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	if err := api.svc.AddUser(ctx.Request().Context(), ctx.Param("id"), data.UserID); err != nil {
		return errors.Wrap(err, "adding company user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *companyApi) member(ctx echo.Context) (company.Company, error) {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return company.Company{}, errors.Wrap(err, "getting context user")
	}
	c, err := api.svc.Member(ctx.Request().Context(), usr.ID)
	return c, errors.Wrap(err, "getting company")
}

func (api *companyApi) candidates(ctx echo.Context) error {
	c, err := api.member(ctx)
	if err != nil {
		return err
	}
	var filter company.CandidateFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to CandidateFilter")
	}
	filter.Clean()

	candidates, err := api.svc.FilterCandidates(ctx.Request().Context(), c, filter)
	if err != nil {
		return errors.Wrap(err, "filtering candidates")
	}
	if candidates == nil {
		candidates = []company.Candidate{}
	}
	return ctx.JSON(http.StatusOK, candidates)
}

func (api *companyApi) candidate(ctx echo.Context) error {
	c, err := api.member(ctx)
	if err != nil {
		return err
	}
	detail, err := api.svc.CandidateProfile(ctx.Request().Context(), c, ctx.Param("username"))
	if err != nil {
		return errors.Wrap(err, "getting candidate profile")
	}
	return ctx.JSON(http.StatusOK, detail)
}
