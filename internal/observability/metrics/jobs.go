// Package metrics provides standardised metric emission helpers.
package metrics

import (
	"time"

	obserrors "github.com/sproutlog/sproutlog/internal/observability/errors"
	"github.com/sproutlog/sproutlog/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// ExportMetric captures details about an export-job lifecycle event.
type ExportMetric struct {
	Format     string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitExportLifecycle emits standardised export-job lifecycle metrics.
func EmitExportLifecycle(sink statsd.Sink, in ExportMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"format":     in.Format,
		"transition": in.Transition,
		"result":     in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("export.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("export.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
