package mailer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sendSuccess = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_mail_send_success_total",
		Help: "Total number of emails delivered, by provider",
	}, []string{"provider"})
	sendFailure = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_mail_send_failure_total",
		Help: "Total number of emails that exhausted every provider",
	}, []string{"provider"})
	sendRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_mail_send_retries_total",
		Help: "Total number of SMTP retry waits taken",
	})
)
