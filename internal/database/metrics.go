package database

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

var (
	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of SQL statements by operation.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)
	queryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_errors_total",
			Help: "Failed SQL statements by operation.",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(queryDuration, queryErrors)
}

func observeQuery(op string, elapsed time.Duration, failed bool) {
	queryDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	if failed {
		queryErrors.WithLabelValues(op).Inc()
	}
}

// InferOperation returns the lower-cased leading SQL verb of stmt, or
// "other" for anything outside the common set.
func InferOperation(stmt string) string {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return "other"
	}
	switch v := strings.ToLower(fields[0]); v {
	case "select", "insert", "update", "delete", "replace", "with", "pragma", "create", "drop", "alter":
		return v
	}
	return "other"
}

// RegisterPoolStats exposes db's connection pool statistics (open, idle,
// in-use, wait counts) on reg under the given pool name. Registering the same
// name twice is not an error.
func RegisterPoolStats(reg prometheus.Registerer, db *gorm.DB, name string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	err = reg.Register(collectors.NewDBStatsCollector(sqlDB, name))
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}
