package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "caucus_sessions_active",
		Help: "Open websocket sessions.",
	})

	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "caucus_rooms_active",
		Help: "Rooms with at least one open connection.",
	})

	ClientMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caucus_client_messages_total",
		Help: "Client messages applied, by type.",
	}, []string{"type"})

	Promotions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caucus_promotions_total",
		Help: "Waiting participants moved into a vacated seat.",
	})

	BusDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "caucus_bus_dropped_total",
		Help: "Room updates discarded because a subscriber fell behind.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
