package image

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"image-pipeline-server/internal/domain/eventbus"
	platformerrors "image-pipeline-server/internal/platform/errors"
	"image-pipeline-server/internal/platform/logging"
	"image-pipeline-server/internal/platform/observability"
)

// Fetcher retrieves the raw bytes of a source image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Validator is the pre-fetch URL check.
type Validator interface {
	Validate(ctx context.Context, url string) ValidationResult
}

// Store persists artifacts and resolves their public URLs.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	URL(key string) string
}

// StageError records the stage an image run failed at.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failing stage carried by err, or StageFailed.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageFailed
}

// Options wires the pipeline collaborators. Validator and Bus are optional.
type Options struct {
	Fetcher     Fetcher
	Validator   Validator
	Store       Store
	Transformer *Transformer
	Keys        KeyDeriver
	Variants    []VariantSpec

	MaxSize         int
	MaxQuality      int
	MaxSourcePixels int64
	StoreOriginal   bool

	VariantConcurrency int
	BatchConcurrency   int
	MaxInflightImages  int64

	Bus    *eventbus.Bus
	Logger *logging.Logger
}

// Pipeline turns one source URL into its stored derivative set.
type Pipeline struct {
	fetcher     Fetcher
	validator   Validator
	store       Store
	transformer *Transformer
	keys        KeyDeriver
	variants    []VariantSpec

	maxSize       int
	maxQuality    int
	storeOriginal bool

	variantConcurrency int
	batchConcurrency   int

	inflight *semaphore.Weighted
	active   atomic.Int64

	bus    *eventbus.Bus
	logger *logging.Logger
}

func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Transformer == nil {
		opts.Transformer = NewTransformerWithLimit(opts.MaxSourcePixels)
	}
	if opts.Keys.Strategy == "" {
		opts.Keys = NewKeyDeriver(opts.Keys.Directory, NamingHashed)
	}
	if len(opts.Variants) == 0 {
		opts.Variants = DefaultVariants()
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.MaxQuality <= 0 {
		opts.MaxQuality = DefaultQuality
	}
	if opts.VariantConcurrency <= 0 {
		opts.VariantConcurrency = 4
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 4
	}
	if opts.MaxInflightImages <= 0 {
		opts.MaxInflightImages = 8
	}
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger
	}

	return &Pipeline{
		fetcher:            opts.Fetcher,
		validator:          opts.Validator,
		store:              opts.Store,
		transformer:        opts.Transformer,
		keys:               opts.Keys,
		variants:           opts.Variants,
		maxSize:            opts.MaxSize,
		maxQuality:         opts.MaxQuality,
		storeOriginal:      opts.StoreOriginal,
		variantConcurrency: opts.VariantConcurrency,
		batchConcurrency:   opts.BatchConcurrency,
		inflight:           semaphore.NewWeighted(opts.MaxInflightImages),
		bus:                opts.Bus,
		logger:             opts.Logger,
	}, nil
}

// InFlight reports how many images are currently between fetch and store.
func (p *Pipeline) InFlight() int64 {
	return p.active.Load()
}

// Variants returns the configured resize targets.
func (p *Pipeline) Variants() []VariantSpec {
	return p.variants
}

// Process validates, fetches and transforms rawURL and stores every artifact.
// The returned map holds exactly one URL per OutputIDs entry. Errors are
// *StageError values wrapping a kind-tagged error.
func (p *Pipeline) Process(ctx context.Context, rawURL string) (*Result, error) {
	start := time.Now()
	ctx, end := observability.StartSpan(ctx, "pipeline", "process", slog.String("url", rawURL))

	res, err := p.process(ctx, rawURL)
	end(err)

	if err != nil {
		observability.RecordMetric(ctx, "pipeline.images_failed", 1, map[string]string{"stage": string(StageOf(err))})
		p.logger.WarnTag("PIPELINE", "%s failed at %s: %v", rawURL, StageOf(err), err)
		p.bus.Publish(eventbus.EventImageFailed, eventbus.ImageFailedEvent{
			SourceURL: sourceKey(rawURL),
			Stage:     string(StageOf(err)),
			Kind:      string(platformerrors.KindOf(err)),
			Error:     platformerrors.MessageOf(err),
			At:        time.Now(),
		})
		return nil, err
	}

	res.Duration = time.Since(start)
	observability.RecordMetric(ctx, "pipeline.images_processed", 1, nil)
	observability.RecordDuration(ctx, "pipeline.process_duration", start, nil)
	p.logger.InfoTag("PIPELINE", "%s processed in %s (%d outputs)", rawURL, res.Duration.Round(time.Millisecond), len(res.Outputs))
	p.bus.Publish(eventbus.EventImageProcessed, eventbus.ImageProcessedEvent{
		SourceURL: res.Canonical,
		Outputs:   res.Outputs,
		Duration:  res.Duration,
		At:        time.Now(),
	})
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, rawURL string) (*Result, error) {
	// validating
	if shape := CheckShape(rawURL); !shape.IsValid {
		return nil, fail(StageValidating, platformerrors.New(platformerrors.KindValidation, "image.validate", shape.Message))
	}
	canonical, err := CanonicalURL(rawURL)
	if err != nil {
		return nil, fail(StageValidating, err)
	}
	if p.validator != nil {
		if verdict := p.validator.Validate(ctx, rawURL); !verdict.IsValid {
			return nil, fail(StageValidating, platformerrors.New(platformerrors.KindValidation, "image.validate", verdict.Message))
		}
	}

	if err := p.inflight.Acquire(ctx, 1); err != nil {
		return nil, fail(StageFetching, platformerrors.Wrap(platformerrors.KindFetch, "image.fetch", "cancelled while waiting for a slot", err))
	}
	defer p.inflight.Release(1)
	p.active.Add(1)
	defer p.active.Add(-1)

	// fetching
	data, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, fail(StageFetching, platformerrors.Wrap(platformerrors.KindFetch, "image.fetch", "failed to fetch image", err))
	}

	// cap_resizing
	src, err := p.transformer.Decode(data)
	if err != nil {
		return nil, fail(StageCapResizing, err)
	}
	_, urlExt := SourceName(canonical)
	ext := src.OutputExt(urlExt)

	maxData := data
	if src.Width > p.maxSize {
		maxData, err = p.transformer.Render(src, TransformOptions{
			Width:     p.maxSize,
			Quality:   p.maxQuality,
			Format:    FormatOriginal,
			SourceExt: ext,
		})
		if err != nil {
			return nil, fail(StageCapResizing, err)
		}
	}

	// computing_variants fans out render+store units; storing is reached
	// once every unit has rendered.
	outputs := make(map[string]string, 1+2*len(p.variants))
	var mu sync.Mutex
	put := func(ctx context.Context, key string, payload []byte, ids ...string) error {
		if err := p.store.Put(ctx, key, payload); err != nil {
			return fail(StageStoring, platformerrors.Wrap(platformerrors.KindStorage, "image.store", "failed to store "+key, err))
		}
		mu.Lock()
		for _, id := range ids {
			outputs[id] = p.store.URL(key)
		}
		mu.Unlock()
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.variantConcurrency)

	if p.storeOriginal {
		g.Go(func() error {
			return put(gctx, p.keys.DeriveKey(canonical, "", ext), data)
		})
	}
	g.Go(func() error {
		return put(gctx, p.keys.DeriveKey(canonical, MaxLabel, ext), maxData, MaxLabel)
	})

	for _, v := range p.variants {
		if v.Width > src.Width {
			p.logger.WarnTag("PIPELINE", "%s: variant %s upscales %dpx to %dpx", rawURL, v.Label, src.Width, v.Width)
			observability.RecordMetric(ctx, "pipeline.upscaled", 1, map[string]string{"label": v.Label})
		}
		formats := []Format{FormatOriginal, FormatWebP}
		if ext == "webp" {
			// both ids would land on the same key; render it once
			formats = formats[:1]
		}
		for _, format := range formats {
			ids, keyExt := []string{v.Label}, ext
			switch {
			case format == FormatWebP:
				ids, keyExt = []string{v.Label + WebPSuffix}, "webp"
			case ext == "webp":
				ids = append(ids, v.Label+WebPSuffix)
			}
			key := p.keys.DeriveKey(canonical, v.Label, keyExt)
			opts := TransformOptions{Width: v.Width, Quality: v.Quality, Format: format, SourceExt: ext}

			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return fail(StageComputingVariants, err)
				}
				payload, err := p.transformer.Render(src, opts)
				if err != nil {
					return fail(StageComputingVariants, err)
				}
				return put(gctx, key, payload, ids...)
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		SourceURL: rawURL,
		Canonical: canonical,
		Outputs:   outputs,
		Width:     src.Width,
		Height:    src.Height,
	}, nil
}

func fail(stage Stage, err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

func sourceKey(rawURL string) string {
	if canonical, err := CanonicalURL(rawURL); err == nil {
		return canonical
	}
	return rawURL
}
