package preview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aqw/HTCrystalBall/internal/inventory"
	"github.com/aqw/HTCrystalBall/internal/observability"
)

type Options struct {
	Logger  zerolog.Logger
	Metrics *observability.Registry
	// Workers is the evaluation fan-out. 1 evaluates sequentially.
	Workers int
	// ParallelThreshold is the slot count below which fan-out is skipped.
	ParallelThreshold int
}

type Engine struct {
	log       zerolog.Logger
	metrics   *observability.Registry
	workers   int
	threshold int
}

// SlotSummary is the capacity view of one evaluated slot.
type SlotSummary struct {
	Node       string              `json:"node"`
	Class      inventory.SlotClass `json:"type"`
	TotalSlots int                 `json:"total_slots"`
	CPUs       int                 `json:"cores"`
	DiskGiB    float64             `json:"disk"`
	MemoryGiB  float64             `json:"ram"`
	GPUs       int                 `json:"gpus,omitempty"`
}

type Result struct {
	RunID   string        `json:"run_id"`
	Request JobRequest    `json:"request"`
	Slots   []SlotSummary `json:"slots"`
	Preview []FitResult   `json:"preview"`
}

func NewEngine(opts Options) *Engine {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.Default
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	threshold := opts.ParallelThreshold
	if threshold <= 0 {
		threshold = 256
	}
	return &Engine{log: opts.Logger, metrics: metrics, workers: workers, threshold: threshold}
}

// Preview evaluates req against every slot of the classes it targets and
// returns the ranked result. The snapshot is only read.
func (e *Engine) Preview(ctx context.Context, snap inventory.Snapshot, req JobRequest) (*Result, error) {
	runID := uuid.NewString()
	_, span := observability.StartSpan(ctx, "preview.run",
		attribute.String("preview.run_id", runID),
		attribute.Int("preview.cpu", req.CPUCores),
		attribute.Int("preview.gpu", req.GPUUnits),
		attribute.Float64("preview.ram_gib", req.RAMGiB),
		attribute.Int("preview.replicas", req.replicas()),
	)
	defer span.End()
	log := e.log.With().Str("run_id", runID).Logger()

	if err := req.Validate(); err != nil {
		var missing *MissingResourceError
		reason := "invalid"
		if errors.As(err, &missing) {
			reason = "missing_" + missing.Resource
		}
		e.metrics.IncCounter(observability.MetricPreviewAborted, map[string]string{"reason": reason}, 1)
		span.SetStatus(codes.Error, err.Error())
		log.Warn().Err(err).Msg("aborting preview")
		return nil, err
	}
	for _, q := range req.DefaultedUnits {
		log.Info().Str("quantity", q).Str("unit", req.unitFor(q)).Msg("no unit given, assuming default")
	}
	e.warnUnknownClasses(log, snap)

	var slots []inventory.Slot
	for _, class := range req.Classes() {
		slots = append(slots, inventory.FilterByClass(snap, class)...)
	}
	if len(slots) == 0 {
		log.Warn().Strs("classes", classNames(req.Classes())).Msg("no slots of the requested classes in inventory")
	}

	start := time.Now()
	results := e.evaluateAll(slots, req)
	e.record(log, results)

	summaries := make([]SlotSummary, len(slots))
	for i, s := range slots {
		summaries[i] = summarize(s)
	}
	ranked := Rank(results, req.MaxNodes)

	e.metrics.IncCounter(observability.MetricPreviewRuns, nil, 1)
	span.SetAttributes(attribute.Int("preview.slots", len(slots)), attribute.Int("preview.returned", len(ranked)))
	log.Debug().
		Int("slots", len(slots)).
		Int("returned", len(ranked)).
		Dur("elapsed", time.Since(start)).
		Msg("preview evaluated")

	return &Result{RunID: runID, Request: req, Slots: summaries, Preview: ranked}, nil
}

// evaluateAll keeps results in slot order whether or not it fans out.
func (e *Engine) evaluateAll(slots []inventory.Slot, req JobRequest) []FitResult {
	results := make([]FitResult, len(slots))
	if e.workers == 1 || len(slots) < e.threshold {
		for i, s := range slots {
			results[i] = Evaluate(s, req)
		}
		return results
	}

	chunk := (len(slots) + e.workers - 1) / e.workers
	var wg sync.WaitGroup
	for lo := 0; lo < len(slots); lo += chunk {
		hi := min(lo+chunk, len(slots))
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				results[i] = Evaluate(slots[i], req)
			}
		}(lo, hi)
	}
	wg.Wait()
	return results
}

func (e *Engine) record(log zerolog.Logger, results []FitResult) {
	for _, r := range results {
		labels := map[string]string{"class": string(r.Class)}
		e.metrics.IncCounter(observability.MetricSlotsEvaluated, labels, 1)
		if r.Fits {
			e.metrics.IncCounter(observability.MetricSlotsFitting, labels, 1)
		}
		if !r.CPUUsage.Available || !r.RAMUsage.Available {
			log.Warn().Str("node", r.Node).Str("class", string(r.Class)).Msg("slot reports zero cpu or memory capacity")
		}
		if r.GPUUsage != nil && !r.GPUUsage.Available {
			log.Info().Str("node", r.Node).Msg("no GPU resource on slot")
		}
	}
}

func (e *Engine) warnUnknownClasses(log zerolog.Logger, snap inventory.Snapshot) {
	for _, node := range snap.Nodes {
		for _, s := range node.Slots {
			if !s.Class.Valid() {
				log.Warn().Str("node", node.Name).Str("class", string(s.Class)).Msg("skipping slot with unknown class")
			}
		}
	}
}

func summarize(s inventory.Slot) SlotSummary {
	return SlotSummary{
		Node:       s.Node,
		Class:      s.Class,
		TotalSlots: s.TotalSlots,
		CPUs:       s.CPUs,
		DiskGiB:    s.DiskGiB,
		MemoryGiB:  s.MemoryGiB,
		GPUs:       s.GPUs,
	}
}

func classNames(classes []inventory.SlotClass) []string {
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = string(c)
	}
	return out
}
