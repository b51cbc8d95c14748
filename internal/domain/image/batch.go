package image

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"image-pipeline-server/internal/domain/eventbus"
	platformerrors "image-pipeline-server/internal/platform/errors"
	"image-pipeline-server/internal/platform/observability"
)

// ProcessBatch runs Process for every URL and captures each outcome. A failed
// item never stops its siblings. Items are reported in input order; URLs that
// share a canonical form are processed once and reported at every position.
func (p *Pipeline) ProcessBatch(ctx context.Context, urls []string) *BatchReport {
	report := &BatchReport{
		ID:        uuid.NewString(),
		Items:     make([]ItemResult, len(urls)),
		StartedAt: time.Now(),
	}

	var order []string
	positions := make(map[string][]int, len(urls))
	for i, raw := range urls {
		key := sourceKey(strings.TrimSpace(raw))
		if _, seen := positions[key]; !seen {
			order = append(order, key)
		}
		positions[key] = append(positions[key], i)
	}

	p.logger.InfoTag("BATCH", "batch %s: %d urls (%d distinct)", report.ID, len(urls), len(order))

	var g errgroup.Group
	g.SetLimit(p.batchConcurrency)
	for _, key := range order {
		idx := positions[key]
		g.Go(func() error {
			item := p.runItem(ctx, urls[idx[0]])
			for _, i := range idx {
				item.URL = urls[i]
				report.Items[i] = item
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, item := range report.Items {
		if item.OK {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	report.Duration = time.Since(report.StartedAt)

	observability.RecordMetric(ctx, "batch.completed", 1, nil)
	p.logger.InfoTag("BATCH", "batch %s done in %s: %d ok, %d failed",
		report.ID, report.Duration.Round(time.Millisecond), report.Succeeded, report.Failed)

	p.bus.Publish(eventbus.EventBatchCompleted, toBatchEvent(report))
	return report
}

func (p *Pipeline) runItem(ctx context.Context, rawURL string) ItemResult {
	res, err := p.Process(ctx, rawURL)
	if err != nil {
		return ItemResult{
			URL:   rawURL,
			Stage: StageOf(err),
			Kind:  string(platformerrors.KindOf(err)),
			Error: platformerrors.MessageOf(err),
		}
	}
	return ItemResult{URL: rawURL, OK: true, Stage: StageComplete, Outputs: res.Outputs}
}

func toBatchEvent(report *BatchReport) eventbus.BatchCompletedEvent {
	items := make([]eventbus.BatchItem, 0, len(report.Items))
	for _, it := range report.Items {
		items = append(items, eventbus.BatchItem{
			URL:     it.URL,
			OK:      it.OK,
			Stage:   string(it.Stage),
			Outputs: it.Outputs,
			Kind:    it.Kind,
			Error:   it.Error,
		})
	}
	return eventbus.BatchCompletedEvent{
		BatchID:   report.ID,
		Items:     items,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		At:        time.Now(),
	}
}
