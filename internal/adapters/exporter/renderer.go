package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sproutlog/sproutlog/internal/core"
	"github.com/sproutlog/sproutlog/internal/domain/model"
)

const defaultReportWindow = 7 * 24 * time.Hour

// EventRenderer renders report sections from the tracked event storage.
// A section with no events renders headers only; absence of data is not an
// error. PDF output here is the plain-text layout handed to the document
// pipeline downstream; this process never does binary PDF composition.
type EventRenderer struct {
	events core.EventReader
	window time.Duration
	clock  func() time.Time
}

// EventRendererOptions groups dependencies for EventRenderer.
type EventRendererOptions struct {
	Events core.EventReader
	Window time.Duration    // Optional: report lookback window, defaults to 7 days
	Clock  func() time.Time // Optional: time source, defaults to time.Now
}

// NewEventRenderer constructs a new EventRenderer.
func NewEventRenderer(opts EventRendererOptions) (*EventRenderer, error) {
	if opts.Events == nil {
		return nil, errors.New("EventReader is required")
	}

	window := opts.Window
	if window <= 0 {
		window = defaultReportWindow
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &EventRenderer{events: opts.Events, window: window, clock: clock}, nil
}

// RenderSection renders one report section for the child.
func (r *EventRenderer) RenderSection(ctx context.Context, req core.RenderSectionRequest) ([]byte, error) {
	now := r.clock().UTC()
	from := now.Add(-r.window)

	if req.Section == core.SectionChart {
		return r.renderChart(ctx, req, from, now)
	}

	kind, err := kindForSection(req.Section)
	if err != nil {
		return nil, err
	}

	events, err := r.events.EventsInRange(ctx, req.ChildID, kind, from, now)
	if err != nil {
		return nil, fmt.Errorf("load %s events: %w", kind, err)
	}

	if req.Format == model.ExportFormatCSV {
		return renderEventsCSV(req.Section, events)
	}
	return renderEventsText(req.Section, events), nil
}

// renderChart summarizes daily activity counts across all kinds.
func (r *EventRenderer) renderChart(ctx context.Context, req core.RenderSectionRequest, from, to time.Time) ([]byte, error) {
	type dayKey struct {
		day  string
		kind model.EventKind
	}
	counts := map[dayKey]int{}

	for _, kind := range []model.EventKind{model.EventKindFeeding, model.EventKindDiaper, model.EventKindNap} {
		events, err := r.events.EventsInRange(ctx, req.ChildID, kind, from, to)
		if err != nil {
			return nil, fmt.Errorf("load %s events for chart: %w", kind, err)
		}
		for _, e := range events {
			counts[dayKey{day: e.OccurredAt.UTC().Format("2006-01-02"), kind: kind}]++
		}
	}

	keys := make([]dayKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].day != keys[j].day {
			return keys[i].day < keys[j].day
		}
		return keys[i].kind < keys[j].kind
	})

	if req.Format == model.ExportFormatCSV {
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write([]string{"day", "kind", "count"}); err != nil {
			return nil, fmt.Errorf("write chart header: %w", err)
		}
		for _, k := range keys {
			if err := w.Write([]string{k.day, string(k.kind), fmt.Sprintf("%d", counts[k])}); err != nil {
				return nil, fmt.Errorf("write chart row: %w", err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("flush chart: %w", err)
		}
		return buf.Bytes(), nil
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "== %s ==\n", core.SectionChart)
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s  %-8s %d\n", k.day, k.kind, counts[k])
	}
	return buf.Bytes(), nil
}

func kindForSection(section core.ReportSection) (model.EventKind, error) {
	switch section {
	case core.SectionFeedings:
		return model.EventKindFeeding, nil
	case core.SectionDiapers:
		return model.EventKindDiaper, nil
	case core.SectionNaps:
		return model.EventKindNap, nil
	default:
		return "", fmt.Errorf("unknown report section %q", section)
	}
}

func renderEventsCSV(section core.ReportSection, events []model.TrackedEvent) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"section", "kind", "occurred_at"}); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, e := range events {
		if err := w.Write([]string{string(section), string(e.Kind), e.OccurredAt.UTC().Format(time.RFC3339)}); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush section: %w", err)
	}
	return buf.Bytes(), nil
}

func renderEventsText(section core.ReportSection, events []model.TrackedEvent) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "== %s ==\n", section)
	for _, e := range events {
		fmt.Fprintf(&buf, "%s  %s\n", e.OccurredAt.UTC().Format(time.RFC3339), e.Kind)
	}
	return buf.Bytes()
}
