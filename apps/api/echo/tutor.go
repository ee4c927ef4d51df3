package echoapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/tutor"
	"github.com/NaveenRoman/AI-TUTor/core/user"
)

const uploadFormField = "file"

type tutorApi struct {
	svc     tutor.Service
	userSvc user.Service
}

func registerTutorAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := tutorApi{
		svc:     deps.TutorSvc,
		userSvc: deps.UserSvc,
	}

	tg := g.Group("/tutor", jwt)
	tg.POST("/upload", api.upload, middleware.BodyLimit("21M"))
	tg.POST("/ask", api.ask)
}

type UploadResponse struct {
	FileID    string `json:"file_id"`
	Name      string `json:"name"`
	Summary   string `json:"summary"`
	KeyPoints string `json:"key_points"`
}

func (api *tutorApi) upload(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	fh, err := ctx.FormFile(uploadFormField)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: uploadFormField, Error: "no file uploaded"})
	}
	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	//goland:noinspection GoUnhandledErrorResult
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return errors.Wrap(err, "reading uploaded file")
	}

	doc, err := api.svc.Upload(ctx.Request().Context(), usr.ID, fh.Filename, data)
	if err != nil {
		return errors.Wrap(err, "uploading document")
	}
	return ctx.JSON(http.StatusCreated, UploadResponse{
		FileID:    doc.ID,
		Name:      doc.Name,
		Summary:   doc.Summary,
		KeyPoints: doc.KeyPointsHTML,
	})
}

func (api *tutorApi) ask(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data tutor.AskRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AskRequest")
	}

	ans, err := api.svc.Ask(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "asking tutor")
	}
	return ctx.JSON(http.StatusOK, ans)
}
