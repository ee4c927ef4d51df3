package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core/analytics"
	"github.com/NaveenRoman/AI-TUTor/core/institution"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

const (
	mimePDF  = "application/pdf"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type collegeApi struct {
	svc          institution.Service
	analyticsSvc analytics.Service
	userSvc      user.Service
	validate     *validator.Validate
}

func registerCollegeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := collegeApi{
		svc:          deps.InstitutionSvc,
		analyticsSvc: deps.AnalyticsSvc,
		userSvc:      deps.UserSvc,
		validate:     deps.Validate,
	}

	// platform admin endpoints
	ig := g.Group("/institutions", jwt, adminMiddleware())
	ig.POST("", api.create)
	ig.GET("", api.list)
	ig.GET("/:id", api.retrieve)
	ig.PUT("/:id/plan", api.updatePlan)
	ig.POST("/:id/deactivate", api.deactivate)

	cg := g.Group("/college", jwt)
	cg.POST("/join/:token", api.join)

	// college admin endpoints
	ag := cg.Group("", collegeAdminMiddleware())
	ag.POST("/invite", api.invite)
	ag.GET("/members", api.members)
	ag.GET("/dashboard", api.dashboard)
	ag.GET("/report.pdf", api.reportPDF)
	ag.POST("/report/email", api.emailReport)
	ag.GET("/students.xlsx", api.studentsXLSX)

	bg := g.Group("/billing", jwt, collegeAdminMiddleware())
	bg.POST("/orders", api.createOrder)
	bg.POST("/confirm", api.confirmPayment)
}

type (
	CreateInstitutionResponse struct {
		Institution institution.Institution `json:"institution"`
		Admin       user.User               `json:"admin"`
	}

	InviteResponse struct {
		Token string `json:"token"`
		Link  string `json:"link"`
	}
)

func (api *collegeApi) create(ctx echo.Context) error {
	var data institution.NewInstitution
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInstitution")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	inst, admin, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating institution")
	}
	return ctx.JSON(http.StatusCreated, CreateInstitutionResponse{Institution: inst, Admin: admin})
}

func (api *collegeApi) list(ctx echo.Context) error {
	insts, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing institutions")
	}
	if insts == nil {
		insts = []institution.Institution{}
	}
	return ctx.JSON(http.StatusOK, insts)
}

func (api *collegeApi) retrieve(ctx echo.Context) error {
	inst, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting institution")
	}
	return ctx.JSON(http.StatusOK, inst)
}

func (api *collegeApi) updatePlan(ctx echo.Context) error {
	var data institution.UpdatePlan
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePlan")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	inst, err := api.svc.UpdatePlan(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating plan")
	}
	return ctx.JSON(http.StatusOK, inst)
}

func (api *collegeApi) deactivate(ctx echo.Context) error {
	inst, err := api.svc.Deactivate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deactivating institution")
	}
	return ctx.JSON(http.StatusOK, inst)
}

func (api *collegeApi) join(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data institution.JoinRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Join(ctx.Request().Context(), usr.ID, ctx.Param("token"), data)
	if err != nil {
		return errors.Wrap(err, "joining institution")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *collegeApi) invite(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	inst, err := api.svc.GenerateInvite(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "generating invite")
	}
	return ctx.JSON(http.StatusOK, InviteResponse{
		Token: inst.InviteToken,
		Link:  fmt.Sprintf("/v1/college/join/%s", inst.InviteToken),
	})
}

func (api *collegeApi) members(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	_, inst, err := api.svc.AdminMembership(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting admin membership")
	}

	var filter analytics.DashboardFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to DashboardFilter")
	}
	members, err := api.svc.Members(ctx.Request().Context(), institution.MemberFilter{
		InstitutionID: inst.ID,
		Role:          institution.MemberStudent,
		Branch:        filter.Branch,
		Batch:         filter.Batch,
	})
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	if members == nil {
		members = []institution.Membership{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *collegeApi) dashboard(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter analytics.DashboardFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to DashboardFilter")
	}

	dash, err := api.analyticsSvc.AdminDashboard(ctx.Request().Context(), usr.ID, filter)
	if err != nil {
		return errors.Wrap(err, "building admin dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *collegeApi) reportPDF(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	data, name, err := api.analyticsSvc.PlacementReportPDF(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "rendering placement report")
	}
	return attachment(ctx, name, mimePDF, data)
}

func (api *collegeApi) emailReport(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.analyticsSvc.EmailPlacementReport(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "emailing placement report")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *collegeApi) studentsXLSX(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	data, name, err := api.analyticsSvc.StudentsExport(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "exporting students")
	}
	return attachment(ctx, name, mimeXLSX, data)
}

func (api *collegeApi) createOrder(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	_, inst, err := api.svc.AdminMembership(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting admin membership")
	}

	rec, err := api.svc.CreateOrder(ctx.Request().Context(), inst.ID)
	if err != nil {
		return errors.Wrap(err, "creating order")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *collegeApi) confirmPayment(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	_, inst, err := api.svc.AdminMembership(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "getting admin membership")
	}

	var data institution.ConfirmPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfirmPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	inst, err = api.svc.ConfirmPayment(ctx.Request().Context(), inst.ID, data)
	if err != nil {
		return errors.Wrap(err, "confirming payment")
	}
	return ctx.JSON(http.StatusOK, inst)
}

func attachment(ctx echo.Context, name, contentType string, data []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return ctx.Blob(http.StatusOK, contentType, data)
}
