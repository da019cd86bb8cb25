package api

import (
	"context"
	"errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/skybi/inbox/internal/api/web"
	"github.com/skybi/inbox/internal/api/web/session"
	"github.com/skybi/inbox/internal/config"
	"github.com/skybi/inbox/internal/metrics"
	"net/http"
)

// Service represents the inbox API service
type Service struct {
	Config   *config.Config
	Sessions session.Storage
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	web      *web.Service
}

// Startup initializes the web service and starts serving it in the background.
// Initialization errors (i.e. a failed provider discovery) are returned directly; serving errors are sent to errs.
func (service *Service) Startup(ctx context.Context, errs chan<- error) error {
	webService := &web.Service{
		Config:   service.Config,
		Sessions: service.Sessions,
		Metrics:  service.Metrics,
		Gatherer: service.Gatherer,
	}
	if err := webService.Initialize(ctx); err != nil {
		return err
	}
	service.web = webService
	go func() {
		if err := webService.Startup(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
	return nil
}

// Shutdown shuts down the web service
func (service *Service) Shutdown() {
	if service.web != nil {
		service.web.Shutdown()
		service.web = nil
	}
}
