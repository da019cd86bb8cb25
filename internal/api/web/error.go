package web

import (
	"fmt"
	"html"
	"net/http"
)

func (service *Service) oauthError(writer http.ResponseWriter, code string) {
	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	writer.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(writer, "OAuth Error: %s", html.EscapeString(code))
}
