/*
Package monitoring provides Prometheus metrics for the broker.

# Overview

Every Metrics instance owns a private prometheus.Registry, so several brokers
(or several tests) can run in one process without duplicate registration.

# Metrics

  - broker_requests_pending{kind}: requests awaiting a decision
  - broker_decisions_total{kind,outcome}: approved, cancelled, failed, closed
  - broker_dispatch_total{channel,code}: envelopes by result code
  - broker_subscriptions_active: live subscriptions, used to spot leaks
  - broker_collaborator_calls_total{collaborator,status}
  - broker_ports_active{transport,trust}

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "signer")
	// ... call the signer ...
	timer.Stop("success")
*/
package monitoring
