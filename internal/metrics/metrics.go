package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pairchat_ws_active_connections",
		Help: "Active websocket connections, authenticated or not",
	})
	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pairchat_online_users",
		Help: "User identifiers currently present in the connection registry",
	})
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_messages_sent_total",
		Help: "Messages accepted and persisted by the send endpoint",
	})
	MessagesRelayed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_messages_relayed_total",
		Help: "Messages delivered live to a recipient connection",
	})
	PresenceBroadcasts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_presence_broadcasts_total",
		Help: "Full-state online-users broadcasts",
	})
)

func Init() {
	prometheus.MustRegister(WSConnections, OnlineUsers, MessagesSent, MessagesRelayed, PresenceBroadcasts)
}

// Handler serves the scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
