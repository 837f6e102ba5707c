package prerenderhttp

import (
	"errors"

	"github.com/joeycumines/go-prerender/prerender"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Render outcomes, used as the outcome label of prerender_render_total.
const (
	OutcomeHTML           = `html`
	OutcomeRedirect       = `redirect`
	OutcomeTimeout        = `timeout`
	OutcomeNoPromise      = `no_promise`
	OutcomeModuleNotFound = `module_not_found`
	OutcomeError          = `error`
)

type metrics struct {
	renders        *prometheus.CounterVec
	renderDuration prometheus.Histogram
	rateLimited    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		renders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: `prerender_render_total`,
				Help: `Total number of renders, by outcome`,
			},
			[]string{`outcome`},
		),
		renderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    `prerender_render_duration_seconds`,
				Help:    `Time taken to render a request`,
				Buckets: prometheus.DefBuckets,
			},
		),
		rateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Name: `prerender_rate_limited_total`,
				Help: `Total number of render requests rejected by the rate limit`,
			},
		),
	}
}

// Outcome classifies the result of a render.
func Outcome(result *prerender.RenderResult, err error) string {
	switch {
	case err == nil && result.IsRedirect():
		return OutcomeRedirect
	case err == nil:
		return OutcomeHTML
	case errors.Is(err, prerender.ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, prerender.ErrNoPromise):
		return OutcomeNoPromise
	case errors.Is(err, prerender.ErrModuleNotFound):
		return OutcomeModuleNotFound
	default:
		return OutcomeError
	}
}
