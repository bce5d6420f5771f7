package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmailsIndexed counts documents upserted into the search index.
	EmailsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onebox_emails_indexed_total",
		Help: "Number of email documents upserted into the search index",
	})

	// Classifications counts classifier outcomes by resulting category.
	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onebox_classifications_total",
		Help: "Number of classification results by category",
	}, []string{"category"})

	// SinkFailures counts failed notification deliveries by sink.
	SinkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onebox_sink_failures_total",
		Help: "Number of failed notification sink deliveries",
	}, []string{"sink"})

	// Reconnects counts watchdog-driven IMAP reconnect attempts.
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onebox_imap_reconnects_total",
		Help: "Number of watchdog reconnect attempts",
	})

	// Replies counts suggested replies by the strategy that produced them.
	Replies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onebox_replies_total",
		Help: "Number of suggested replies by generation strategy",
	}, []string{"strategy"})
)
