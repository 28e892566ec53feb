package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
)

type recLogger struct {
	errors []string
}

func (l *recLogger) Debug(string, ...interface{}) {}
func (l *recLogger) Info(string, ...interface{})  {}
func (l *recLogger) Warn(string, ...interface{})  {}
func (l *recLogger) Error(msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}
func (l *recLogger) Fatal(string, ...interface{}) {}

func Test_newAppHTTPErrorHandler(t *testing.T) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	validationErr := validate.Struct(struct {
		Name string `json:"name" validate:"required"`
	}{})

	tests := []struct {
		name     string
		err      error
		method   string
		wantCode int
		wantBody string
		wantLog  bool
		shutdown bool
	}{
		{name: "missing jwt", err: middleware.ErrJWTMissing, wantCode: http.StatusUnauthorized, wantBody: `{"error": "missing or malformed jwt"}`},
		{name: "http error", err: errors.Wrap(errHttpForbidden, "checking role"), wantCode: http.StatusForbidden, wantBody: `{"error": "permission denied"}`},
		{
			name: "http error wrapping another", err: &echo.HTTPError{Code: http.StatusBadRequest, Message: "bad request", Internal: errTooManyRequests},
			wantCode: http.StatusTooManyRequests, wantBody: `{"error": "too many requests"}`,
		},
		{name: "validator errors", err: errors.Wrap(validationErr, "validating"), wantCode: http.StatusBadRequest, wantBody: `{"name": "this field is required"}`},
		{
			name: "field errors", err: core.NewValidationError(nil, core.FieldError{Field: "uid", Error: "invalid value"}),
			wantCode: http.StatusBadRequest, wantBody: `{"uid": "invalid value"}`,
		},
		{
			name: "plain validation error", err: core.NewValidationError(errors.New("dates must be formatted as YYYY-MM-DD")),
			wantCode: http.StatusBadRequest, wantBody: `{"error": "dates must be formatted as YYYY-MM-DD"}`,
		},
		{name: "permission", err: errors.Wrap(core.NewPermissionError("nope"), "x"), wantCode: http.StatusForbidden, wantBody: `{"error": "nope"}`},
		{name: "not found", err: errors.Wrap(core.NewNotFoundError("report"), "x"), wantCode: http.StatusNotFound, wantBody: `{"error": "report not found"}`},
		{name: "state", err: core.NewStateError("submission is no longer pending"), wantCode: http.StatusConflict, wantBody: `{"error": "submission is no longer pending"}`},
		{name: "expired", err: core.NewExpiredError("report"), wantCode: http.StatusGone, wantBody: `{"error": "report has expired"}`},
		{name: "server error", err: errors.New("boom"), wantCode: http.StatusInternalServerError, wantBody: `{"error": "Internal Server Error"}`, wantLog: true},
		{name: "shutdown", err: errors.Wrap(core.NewShutdownError("integrity issue"), "x"), wantCode: http.StatusInternalServerError, wantLog: true, shutdown: true},
		{name: "HEAD has no body", err: errHttpNotFound, method: http.MethodHead, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := new(recLogger)
			var shutdownSignaled bool
			handler := newAppHTTPErrorHandler(logger, translator, func() { shutdownSignaled = true })

			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			e := echo.New()
			rec := httptest.NewRecorder()
			ctx := e.NewContext(httptest.NewRequest(method, "/", nil), rec)

			handler(tt.err, ctx)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			} else if method == http.MethodHead {
				assert.Zero(t, rec.Body.Len())
			}
			assert.Equal(t, tt.wantLog, len(logger.errors) > 0)
			assert.Equal(t, tt.shutdown, shutdownSignaled)
		})
	}
}

func Test_newAppHTTPErrorHandler_debug(t *testing.T) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	handler := newAppHTTPErrorHandler(new(recLogger), translator, func() {})

	e := echo.New()
	e.Debug = true
	rec := httptest.NewRecorder()
	handler(errors.Wrap(core.NewNotFoundError("user"), "finding user"), e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error": "finding user: user not found"}`, rec.Body.String())
}
