package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intent_habit_commits_total",
		Help: "Habit commits by outcome",
	}, []string{"result"})

	deletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intent_habit_deletes_total",
		Help: "Habit deletions by outcome",
	}, []string{"result"})

	restoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intent_notifications_restored_total",
		Help: "Triggers re-registered from storage at startup",
	})
)
