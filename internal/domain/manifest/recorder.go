package manifest

import (
	"context"
	"errors"
	"sync"
	"time"

	"image-pipeline-server/internal/domain/eventbus"
	"image-pipeline-server/internal/platform/logging"
)

const recordTimeout = 5 * time.Second

// Recorder persists pipeline events into a Store. Image events for all
// topics go through one lock, and an event older than the stored record
// is dropped, so late deliveries never overwrite newer state.
type Recorder struct {
	store  Store
	logger *logging.Logger
	mu     sync.Mutex
}

func NewRecorder(store Store, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Recorder{store: store, logger: logger}
}

// Attach subscribes the recorder to the pipeline topics asynchronously.
func (r *Recorder) Attach(bus *eventbus.Bus) error {
	if err := bus.SubscribeAsync(eventbus.EventImageProcessed, r.onProcessed); err != nil {
		return err
	}
	if err := bus.SubscribeAsync(eventbus.EventImageFailed, r.onFailed); err != nil {
		return err
	}
	return bus.SubscribeAsync(eventbus.EventBatchCompleted, r.onBatch)
}

func (r *Recorder) onProcessed(evt eventbus.ImageProcessedEvent) {
	r.apply(ImageRecord{
		SourceURL: evt.SourceURL,
		Stage:     "complete",
		Outputs:   evt.Outputs,
		UpdatedAt: evt.At,
	})
}

// onFailed records the failure but keeps the outputs of an earlier
// successful run, since those artifacts are still in storage.
func (r *Recorder) onFailed(evt eventbus.ImageFailedEvent) {
	if evt.SourceURL == "" {
		return
	}
	r.apply(ImageRecord{
		SourceURL: evt.SourceURL,
		Stage:     evt.Stage,
		Error:     evt.Error,
		UpdatedAt: evt.At,
	})
}

func (r *Recorder) apply(rec ImageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	prev, err := r.store.GetImage(ctx, rec.SourceURL)
	switch {
	case err == nil:
		if prev.UpdatedAt.After(rec.UpdatedAt) {
			r.logger.DebugTag("MANIFEST", "skip stale %s event for %s", rec.Stage, rec.SourceURL)
			return
		}
		if rec.Outputs == nil {
			rec.Outputs = prev.Outputs
		}
	case !errors.Is(err, ErrNotFound):
		r.logger.WarnTag("MANIFEST", "load manifest for %s: %v", rec.SourceURL, err)
	}

	if err := r.store.SaveImage(ctx, rec); err != nil {
		r.logger.ErrorTag("MANIFEST", "save manifest for %s: %v", rec.SourceURL, err)
	}
}

func (r *Recorder) onBatch(evt eventbus.BatchCompletedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	err := r.store.SaveBatch(ctx, BatchRecord{
		ID:        evt.BatchID,
		Items:     evt.Items,
		Succeeded: evt.Succeeded,
		Failed:    evt.Failed,
		CreatedAt: evt.At,
	})
	if err != nil {
		r.logger.ErrorTag("MANIFEST", "save batch %s: %v", evt.BatchID, err)
		return
	}
	r.logger.DebugTag("MANIFEST", "recorded batch %s (%d items)", evt.BatchID, len(evt.Items))
}
