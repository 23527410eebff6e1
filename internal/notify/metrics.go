package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pendingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intent_notifications_pending",
		Help: "Notifications currently registered with the center",
	})

	deliveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intent_notifications_delivered_total",
		Help: "Fired notifications by delivery result",
	}, []string{"result"})
)
