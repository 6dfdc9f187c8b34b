package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptstudio_submissions_created_total",
		Help: "Total submissions accepted into the review queue.",
	})
	submissionsApproved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptstudio_submissions_approved_total",
		Help: "Total submissions approved and published as prompts.",
	})
	submissionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptstudio_submissions_rejected_total",
		Help: "Total submissions rejected by a reviewer.",
	})
	ratingsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptstudio_ratings_recorded_total",
		Help: "Total prompt ratings recorded, including replacements.",
	})
	bookmarkToggles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptstudio_bookmark_toggles_total",
		Help: "Total bookmark toggle operations, additions and removals.",
	})
	categoriesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptstudio_categories_created_total",
		Help: "Total categories created, seeded or on demand.",
	})
	authorsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptstudio_authors_created_total",
		Help: "Total author records created.",
	})
)

var diskGaugeOnce sync.Once

// registerDiskGauge exposes the on-disk size of the database directory.
// Only registered for disk-backed catalogs; in-memory stores have no
// meaningful footprint to report.
func registerDiskGauge(path string) {
	diskGaugeOnce.Do(func() {
		g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "promptstudio_store_disk_bytes",
			Help: "Approximate size of the catalog database directory on disk.",
		}, func() float64 {
			var total int64
			filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
				if err != nil || info == nil || info.IsDir() {
					return nil
				}
				total += info.Size()
				return nil
			})
			return float64(total)
		})
		prometheus.DefaultRegisterer.Register(g)
	})
}
