package preview

import (
	"math"

	"github.com/aqw/HTCrystalBall/internal/inventory"
)

// Usage is the share of one slot dimension a single job would take.
// Available is false when the slot has none of that resource.
type Usage struct {
	Requested float64 `json:"requested"`
	Capacity  float64 `json:"capacity"`
	Fraction  float64 `json:"fraction"`
	Available bool    `json:"available"`
}

func newUsage(requested, capacity float64) Usage {
	if capacity <= 0 {
		return Usage{Requested: requested, Capacity: capacity}
	}
	return Usage{Requested: requested, Capacity: capacity, Fraction: requested / capacity, Available: true}
}

// Percent is the display percentage, rounded half to even.
func (u Usage) Percent() int {
	return int(math.RoundToEven(u.Fraction * 100))
}

func (u Usage) fits() bool {
	return u.Available && u.Requested <= u.Capacity
}

type FitResult struct {
	Node  string              `json:"node"`
	Class inventory.SlotClass `json:"type"`
	Slot  inventory.Slot      `json:"slot"`
	Fits  bool                `json:"fits"`

	CPUUsage Usage `json:"core_usage"`
	RAMUsage Usage `json:"ram_usage"`
	// GPUUsage is only set for gpu slots.
	GPUUsage *Usage `json:"gpu_usage,omitempty"`

	MaxConcurrentJobs int     `json:"sim_jobs"`
	WallTimeOnIdleMin float64 `json:"wall_time_on_idle"`
}

// Evaluate checks how req fits one slot. It never modifies slot and never
// divides by a zero capacity: such a dimension is marked unavailable and the
// slot does not fit.
func Evaluate(slot inventory.Slot, req JobRequest) FitResult {
	res := FitResult{
		Node:     slot.Node,
		Class:    slot.Class,
		Slot:     slot,
		CPUUsage: newUsage(float64(req.CPUCores), float64(slot.CPUs)),
		RAMUsage: newUsage(req.RAMGiB, slot.MemoryGiB),
	}
	switch slot.Class {
	case inventory.ClassDynamic:
		evaluateDynamic(&res, req)
	case inventory.ClassStatic:
		evaluateStatic(&res, req)
	case inventory.ClassGPU:
		evaluateGPU(&res, req)
	}
	return res
}

func evaluateDynamic(res *FitResult, req JobRequest) {
	if !res.CPUUsage.fits() || !res.RAMUsage.fits() {
		return
	}
	res.Fits = true
	parallel := perInstance(res.Slot, req, false)
	res.MaxConcurrentJobs = parallel
	res.WallTimeOnIdleMin = wallTime(req, float64(parallel))
}

// Static instances are never shared: every instance runs one job at a time,
// and jobs queue on an instance once all of them are busy.
func evaluateStatic(res *FitResult, req JobRequest) {
	if !res.CPUUsage.fits() || !res.RAMUsage.fits() || res.Slot.TotalSlots < 1 {
		return
	}
	res.Fits = true
	res.MaxConcurrentJobs = res.Slot.TotalSlots
	perInst := perInstance(res.Slot, req, false)
	res.WallTimeOnIdleMin = wallTime(req, float64(perInst)*float64(res.Slot.TotalSlots))
}

func evaluateGPU(res *FitResult, req JobRequest) {
	gpu := newUsage(float64(req.GPUUnits), float64(res.Slot.GPUs))
	res.GPUUsage = &gpu
	if !gpu.fits() || !res.CPUUsage.fits() || !res.RAMUsage.fits() {
		return
	}
	res.Fits = true
	parallel := perInstance(res.Slot, req, true)
	res.MaxConcurrentJobs = parallel
	res.WallTimeOnIdleMin = wallTime(req, float64(parallel)*float64(res.Slot.GPUs))
}

// perInstance is how many copies of req one slot instance holds at once. A
// zero RAM or GPU request leaves that dimension out.
func perInstance(slot inventory.Slot, req JobRequest, withGPU bool) int {
	n := floorDiv(float64(slot.CPUs), float64(req.CPUCores))
	if req.RAMGiB > 0 {
		n = min(n, floorDiv(slot.MemoryGiB, req.RAMGiB))
	}
	if withGPU && req.GPUUnits > 0 {
		n = min(n, floorDiv(float64(slot.GPUs), float64(req.GPUUnits)))
	}
	return n
}

func floorDiv(capacity, request float64) int {
	if request <= 0 {
		return math.MaxInt32
	}
	return int(math.Floor(capacity / request))
}

// wallTime is the number of rounds needed to run every replica at the given
// parallelism, times the duration of one job.
func wallTime(req JobRequest, parallel float64) float64 {
	if req.DurationMin <= 0 || parallel <= 0 {
		return 0
	}
	rounds := math.Ceil(float64(req.replicas()) / parallel)
	return rounds * req.DurationMin
}
