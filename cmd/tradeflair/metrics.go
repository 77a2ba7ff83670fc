package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var daemonCycles = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tradeflair_daemon_cycles_total",
	Help: "Number of daemon work cycles, by result",
}, []string{"result"})

var cooldownViolations = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tradeflair_cooldown_violations_total",
	Help: "Number of submissions removed for violating a cooldown",
})
