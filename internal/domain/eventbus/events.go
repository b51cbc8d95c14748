package eventbus

import "time"

// Topics published by the pipeline.
const (
	EventImageProcessed = "image:processed"
	EventImageFailed    = "image:failed"
	EventBatchCompleted = "batch:completed"
)

// ImageProcessedEvent is published once every artifact of a source is stored.
type ImageProcessedEvent struct {
	SourceURL string            `json:"source_url"`
	Outputs   map[string]string `json:"outputs"`
	Duration  time.Duration     `json:"duration"`
	At        time.Time         `json:"at"`
}

// ImageFailedEvent carries the stage at which processing stopped.
type ImageFailedEvent struct {
	SourceURL string    `json:"source_url"`
	Stage     string    `json:"stage"`
	Kind      string    `json:"kind"`
	Error     string    `json:"error"`
	At        time.Time `json:"at"`
}

// BatchItem is the outcome of one URL inside a batch.
type BatchItem struct {
	URL     string            `json:"url"`
	OK      bool              `json:"ok"`
	Stage   string            `json:"stage"`
	Outputs map[string]string `json:"outputs,omitempty"`
	Kind    string            `json:"kind,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type BatchCompletedEvent struct {
	BatchID   string      `json:"batch_id"`
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	At        time.Time   `json:"at"`
}
