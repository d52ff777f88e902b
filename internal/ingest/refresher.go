package ingest

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"studycards-backend/internal/logger"
	"studycards-backend/models"
)

// Refresher re-ingests URL sources on a cron schedule so indexed web pages
// do not go stale.
type Refresher struct {
	scheduler *gocron.Scheduler
	ingestor  *Ingestor
	timeout   time.Duration
}

func NewRefresher(ingestor *Ingestor, timeout time.Duration) *Refresher {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Refresher{scheduler: s, ingestor: ingestor, timeout: timeout}
}

// Start schedules the refresh job with the given cron expression and begins
// running it in the background.
func (r *Refresher) Start(cronExpr string) error {
	_, err := r.scheduler.Cron(cronExpr).Tag("refresh-url-sources").Do(r.refreshAll)
	if err != nil {
		return err
	}
	r.scheduler.StartAsync()
	logger.Info("URL source refresher started", "cron", cronExpr)
	return nil
}

func (r *Refresher) Stop() {
	r.scheduler.Stop()
}

// refreshAll walks every URL-backed source and re-ingests it. One source
// failing does not stop the sweep.
func (r *Refresher) refreshAll() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	sources, err := r.ingestor.Sources.ListByMediaType(ctx, models.MediaTypeHTML)
	if err != nil {
		logger.Error("Refresh sweep failed to list sources", "error", err)
		return
	}

	refreshed, failed := 0, 0
	for _, src := range sources {
		if src.URL == "" {
			continue
		}
		if err := r.ingestor.Refresh(ctx, src.ID.Hex()); err != nil {
			failed++
			logger.Warn("Source refresh failed", "source_id", src.ID.Hex(), "url", src.URL, "error", err)
			continue
		}
		refreshed++
	}
	if refreshed > 0 || failed > 0 {
		logger.Info("Refresh sweep complete", "refreshed", refreshed, "failed", failed)
	}
}
