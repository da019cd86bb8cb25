package web

import (
	"context"
	"github.com/skybi/inbox/internal/api/web/session"
	"net/http"
)

type contextKey string

const contextValueSession contextKey = "session"

var cookieNameSession = "session_token"

// MiddlewareVerifySession makes sure that the requesting browser holds a valid session.
// Browsers without one are redirected to the home page; the session object is injected into the request context.
func (service *Service) MiddlewareVerifySession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		ses, err := service.sessionFromRequest(request)
		if err != nil {
			service.writer.WriteInternalError(writer, err)
			return
		}
		if ses == nil {
			http.Redirect(writer, request, "/", http.StatusFound)
			return
		}
		next.ServeHTTP(writer, request.WithContext(context.WithValue(request.Context(), contextValueSession, ses)))
	})
}

// sessionFromRequest looks up the session referenced by the session cookie; a missing cookie yields no session
func (service *Service) sessionFromRequest(request *http.Request) (*session.Session, error) {
	cookie, err := request.Cookie(cookieNameSession)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	ses, err := service.Sessions.GetByRawToken(request.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}
	if ses == nil || ses.OAuth2Token == nil || ses.OAuth2Token.AccessToken == "" {
		return nil, nil
	}
	return ses, nil
}

func sessionFromContext(ctx context.Context) *session.Session {
	ses, _ := ctx.Value(contextValueSession).(*session.Session)
	return ses
}
