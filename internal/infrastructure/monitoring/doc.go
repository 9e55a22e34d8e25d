/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the gateway,
tracking inbound HTTP requests, engine operations and the traffic sent to
the Portal. Metrics live on a private registry so tests and multiple
servers in one process never collide.

# Features

- HTTP request metrics (latency, throughput, size)
- Engine operation metrics (challenge, authenticate, detail)
- Portal round trips, redirect hops and login outcomes
- Listing extraction counts per markup format

*Metrics satisfies portal.Observer and is attached with Client.WithObserver.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics, "/metrics"))
	client := portal.NewClient(profile, opts).WithObserver(metrics)

	timer := monitoring.NewTimer(metrics, "portal", "authenticate")
	// ... perform operation ...
	timer.Stop("success")

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
