// Package metrics owns the Prometheus registry the service exposes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/rectrel/internal/core/observability"
)

type Config struct {
	Enabled bool
	Version string
}

type Provider struct {
	reg *prometheus.Registry
}

// Init builds a fresh registry with runtime collectors and, when enabled,
// the service collectors from observability.
func Init(cfg Config) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	observability.Init(reg, cfg.Enabled)
	if cfg.Enabled {
		observability.ExposeBuildInfo(cfg.Version)
	}
	return &Provider{reg: reg}
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{Registry: p.reg})
}

func (p *Provider) Register(cs ...prometheus.Collector) {
	for _, c := range cs {
		p.reg.MustRegister(c)
	}
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }
