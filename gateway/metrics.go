package gateway

import "github.com/prometheus/client_golang/prometheus"

var gatewayRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Total number of payment gateway calls",
	},
	[]string{"operation", "result"},
)

func init() {
	prometheus.MustRegister(gatewayRequestsTotal)
}

func recordRequest(op string, err error) {
	result := "ok"
	switch {
	case IsUnavailable(err):
		result = "unavailable"
	case IsRejected(err):
		result = "rejected"
	case err != nil:
		result = "error"
	}
	gatewayRequestsTotal.WithLabelValues(op, result).Inc()
}
