package image

import (
	"time"
)

// Stage names the step an image run has reached.
type Stage string

const (
	StagePending           Stage = "pending"
	StageValidating        Stage = "validating"
	StageFetching          Stage = "fetching"
	StageCapResizing       Stage = "cap_resizing"
	StageComputingVariants Stage = "computing_variants"
	StageStoring           Stage = "storing"
	StageComplete          Stage = "complete"
	StageFailed            Stage = "failed"
)

// Format selects the encoder for an output.
type Format string

const (
	// FormatOriginal re-encodes with the codec implied by the source extension.
	FormatOriginal Format = "original"
	FormatWebP     Format = "webp"
)

// VariantSpec is one configured resize target.
type VariantSpec struct {
	Label   string
	Width   int
	Quality int
}

// TransformOptions drives a single Transform call. Width 0 keeps the native width.
type TransformOptions struct {
	Width   int
	Quality int
	Format  Format
	// SourceExt picks the codec for FormatOriginal.
	SourceExt string
}

// ValidationResult is the verdict of a pre-fetch URL check.
type ValidationResult struct {
	IsValid     bool   `json:"isValid"`
	Message     string `json:"message"`
	ContentType string `json:"contentType,omitempty"`
}

// Result is the output of one successful image run.
type Result struct {
	SourceURL string            `json:"source_url"`
	Canonical string            `json:"canonical_url"`
	Outputs   map[string]string `json:"outputs"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Duration  time.Duration     `json:"duration"`
}

// ItemResult is the outcome of one URL in a batch: Outputs on success,
// Error and Kind otherwise.
type ItemResult struct {
	URL     string            `json:"url"`
	OK      bool              `json:"ok"`
	Stage   Stage             `json:"stage"`
	Outputs map[string]string `json:"outputs,omitempty"`
	Kind    string            `json:"kind,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// BatchReport lists item outcomes in input order.
type BatchReport struct {
	ID        string        `json:"id"`
	Items     []ItemResult  `json:"items"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
