package web

import (
	"bytes"
	"github.com/skybi/inbox/internal/api/web/session"
	"html/template"
	"net/http"
)

var homeTemplate = template.Must(template.New("home").Parse(
	`{{if .Session}}<p>Logged in as {{.Session.DisplayName}}</p><a href="/emails">Show emails</a> <a href="/logout">Logout</a>` +
		`{{else}}<a href="/login">Login with {{.ProviderName}}</a>{{end}}`,
))

type homeData struct {
	ProviderName string
	Session      *session.Session
}

// EndpointHome handles the 'GET /' endpoint
func (service *Service) EndpointHome(writer http.ResponseWriter, request *http.Request) {
	ses, err := service.sessionFromRequest(request)
	if err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}

	var buf bytes.Buffer
	if err := homeTemplate.Execute(&buf, &homeData{ProviderName: service.Config.ProviderName, Session: ses}); err != nil {
		service.writer.WriteInternalError(writer, err)
		return
	}
	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	writer.WriteHeader(http.StatusOK)
	writer.Write(buf.Bytes())
}
