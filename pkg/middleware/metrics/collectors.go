package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	responseTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enroute_response_time_seconds",
			Help:    "http response time.",
			Buckets: []float64{0.005, 0.05, 0.5, 1, 5, 10, 30, 60},
		},
	)

	totalHttpRequestsToRoute = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "enroute_http_requests_to_route_total", Help: "http requests by code, route pattern and method"},
		[]string{"code", "route", "method"},
	)

	totalHttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "enroute_http_requests_total", Help: "http requests by code, and method"},
		[]string{"code", "method"},
	)

	installsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "enroute_installs_total", Help: "manifest installs by result"},
		[]string{"result"},
	)

	installedRoutes = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "enroute_installed_routes", Help: "routes registered by successful installs"},
	)

	hotReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "enroute_hot_reloads_total", Help: "per-request handler reloads"},
		[]string{"route", "method", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		responseTime,
		totalHttpRequestsToRoute,
		totalHttpRequests,
		installsTotal,
		installedRoutes,
		hotReloadsTotal,
	)
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// ObserveInstall records one install attempt and, on success, the number of
// routes it registered.
func ObserveInstall(ok bool, routes int) {
	installsTotal.WithLabelValues(result(ok)).Inc()
	if ok {
		installedRoutes.Add(float64(routes))
	}
}

// ObserveReload records one hot reload of the handler behind route/method.
func ObserveReload(route, method string, ok bool) {
	hotReloadsTotal.WithLabelValues(route, method, result(ok)).Inc()
}
