package eventbus

import (
	"image-pipeline-server/internal/platform/logging"
)

// LogHandler mirrors pipeline events into the service log.
type LogHandler struct {
	logger *logging.Logger
}

func NewLogHandler(logger *logging.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

// Attach subscribes the handler to every pipeline topic.
func (h *LogHandler) Attach(bus *Bus) error {
	if err := bus.SubscribeAsync(EventImageProcessed, h.onProcessed); err != nil {
		return err
	}
	if err := bus.SubscribeAsync(EventImageFailed, h.onFailed); err != nil {
		return err
	}
	return bus.SubscribeAsync(EventBatchCompleted, h.onBatch)
}

func (h *LogHandler) onProcessed(evt ImageProcessedEvent) {
	h.logger.DebugTag("PIPELINE", "processed %s into %d outputs in %s", evt.SourceURL, len(evt.Outputs), evt.Duration)
}

func (h *LogHandler) onFailed(evt ImageFailedEvent) {
	h.logger.WarnTag("PIPELINE", "failed %s at %s (%s): %s", evt.SourceURL, evt.Stage, evt.Kind, evt.Error)
}

func (h *LogHandler) onBatch(evt BatchCompletedEvent) {
	h.logger.InfoTag("BATCH", "batch %s finished: %d succeeded, %d failed", evt.BatchID, evt.Succeeded, evt.Failed)
}
