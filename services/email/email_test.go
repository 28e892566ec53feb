package emailsvc

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"testing"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	appfs "github.com/Gokulakrishnan610/chicken-dinner/fs"
)

type capturingLogger struct {
	errors []string
}

func (l *capturingLogger) Debug(string, ...interface{}) {}
func (l *capturingLogger) Info(string, ...interface{})  {}
func (l *capturingLogger) Warn(string, ...interface{})  {}
func (l *capturingLogger) Error(msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}
func (l *capturingLogger) Fatal(string, ...interface{}) {}

func parseTemplates(t *testing.T, conf *core.Config) *core.EmailTemplates {
	t.Helper()
	tmpls, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf)
	require.NoError(t, err)
	return tmpls
}

func TestConsoleService_SendMessages(t *testing.T) {
	conf := core.NewTestConfig()
	logger := &capturingLogger{}
	svc := NewConsoleServiceMock(conf, parseTemplates(t, conf), logger)

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Jane Doe", Address: "jane@test.cd"}},
			Subject:      "Password Reset",
			TemplateName: "password_reset",
			TemplateData: map[string]interface{}{"Name": "Jane Doe", "UID": "abc", "Token": "tok"},
		},
		&core.EmailMessage{Subject: "No recipients", BodyStr: "dropped"},
		&core.EmailMessage{To: []mail.Address{{Address: "bob@test.cd"}}, Subject: "Plain", BodyStr: "hi bob"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 2)
	assert.Empty(t, logger.errors)

	reset := sent[0]
	assert.Contains(t, reset.TextContent, "Hello Jane Doe,")
	assert.Contains(t, reset.TextContent, conf.FrontendBaseURL+"/password-reset-confirm?uid=abc&token=tok")
	assert.Contains(t, reset.HTMLContent, "password-reset-confirm?uid=abc&token=tok")
	assert.Contains(t, reset.HTMLContent, "<title>EduPortal</title>")

	assert.Equal(t, "hi bob", sent[1].TextContent)
	assert.Empty(t, sent[1].HTMLContent)

	svc.ClearMessages()
	assert.Empty(t, svc.SentMessages())
}

func TestConsoleService_missingTemplateData(t *testing.T) {
	conf := core.NewTestConfig()
	logger := &capturingLogger{}
	svc := NewConsoleServiceMock(conf, parseTemplates(t, conf), logger)

	svc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: "jane@test.cd"}},
		TemplateName: "report_ready",
		TemplateData: map[string]interface{}{"ReportName": "Monthly"},
	})
	assert.Empty(t, svc.SentMessages())
	assert.Len(t, logger.errors, 1)
}

func TestSendgridService_send(t *testing.T) {
	conf := core.NewTestConfig()
	conf.SendgridApiKey = "sg-key"
	logger := &capturingLogger{}
	svc := NewSendgridService(conf, parseTemplates(t, conf), logger)

	var got rest.Request
	orig := sendgridAPI
	defer func() { sendgridAPI = orig }()

	msg := core.EmailMessage{
		To:          []mail.Address{{Name: "Jane", Address: "jane@test.cd"}},
		Cc:          []mail.Address{{Address: "staff@test.cd"}},
		Subject:     "Report ready",
		TextContent: "text",
		HTMLContent: "<p>html</p>",
	}

	tests := []struct {
		name      string
		res       *rest.Response
		err       error
		wantError bool
	}{
		{"accepted", &rest.Response{StatusCode: http.StatusAccepted}, nil, false},
		{"rejected", &rest.Response{StatusCode: http.StatusBadRequest, Body: "bad"}, nil, true},
		{"transport error", nil, errors.New("timeout"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger.errors = nil
			sendgridAPI = func(req rest.Request) (*rest.Response, error) {
				got = req
				return tc.res, tc.err
			}
			svc.send(msg)
			assert.Equal(t, tc.wantError, len(logger.errors) == 1)
		})
	}

	assert.Equal(t, http.MethodPost, string(got.Method))
	assert.Equal(t, host+endpoint, got.BaseURL)
	assert.Equal(t, "Bearer sg-key", got.Headers["Authorization"])

	var body struct {
		Personalizations []struct {
			To      []struct{ Email, Name string }
			CC      []struct{ Email string }
			Subject string
		}
		Content []struct{ Type, Value string }
	}
	require.NoError(t, json.Unmarshal(got.Body, &body))
	require.Len(t, body.Personalizations, 1)
	p := body.Personalizations[0]
	assert.Equal(t, "[EduPortal] Report ready", p.Subject)
	assert.Equal(t, "jane@test.cd", p.To[0].Email)
	assert.Equal(t, "staff@test.cd", p.CC[0].Email)
	require.Len(t, body.Content, 2)
	assert.Equal(t, "text/plain", body.Content[0].Type)
	assert.Equal(t, "text/html", body.Content[1].Type)
}
