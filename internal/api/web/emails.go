package web

import (
	"errors"
	"github.com/rs/zerolog/hlog"
	"github.com/skybi/inbox/internal/api/schema"
	"github.com/skybi/inbox/internal/api/validation"
	"github.com/skybi/inbox/internal/mail"
	"net/http"
)

var (
	paramTop  = validation.IntParam{Name: "top", Min: 1, Max: 1000}
	paramSkip = validation.IntParam{Name: "skip", Min: 0, Max: 1 << 30}
)

// EndpointEmails handles the 'GET /emails?top={number?}&skip={number?}' endpoint
func (service *Service) EndpointEmails(writer http.ResponseWriter, request *http.Request) {
	ses := sessionFromContext(request.Context())
	if ses == nil {
		http.Redirect(writer, request, "/", http.StatusFound)
		return
	}

	params, validationErrs := validation.QueryInts(request, paramTop, paramSkip)
	if len(validationErrs) > 0 {
		service.writer.WriteErrors(writer, http.StatusBadRequest, validationErrs...)
		return
	}

	messages, err := service.mail.ListMessages(request.Context(), ses.OAuth2Token, &mail.ListQuery{
		Top:  params[paramTop.Name],
		Skip: params[paramSkip.Name],
	})
	if err != nil {
		var upstreamErr *mail.UpstreamError
		if errors.As(err, &upstreamErr) {
			service.Metrics.ObserveMessageFetch(upstreamErr.StatusCode)
			hlog.FromRequest(request).Info().
				Stringer("session", ses.ID).
				Int("status", upstreamErr.StatusCode).
				Msg("messages API rejected the request")
			if upstreamErr.ContentType != "" {
				writer.Header().Set("Content-Type", upstreamErr.ContentType)
			}
			writer.WriteHeader(upstreamErr.StatusCode)
			writer.Write(upstreamErr.Body)
			return
		}
		service.Metrics.ObserveMessageFetch(0)
		hlog.FromRequest(request).Warn().Err(err).Msg("could not reach the messages API")
		service.writer.WriteErrors(writer, http.StatusBadGateway, schema.ErrUpstreamUnavailable)
		return
	}

	service.Metrics.ObserveMessageFetch(http.StatusOK)
	service.writer.WriteRawJSONCode(writer, http.StatusOK, messages)
}
