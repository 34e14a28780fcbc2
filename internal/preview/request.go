// Package preview answers "where would this job fit?" against a slot
// inventory snapshot without submitting anything to the cluster.
package preview

import (
	"sort"
	"strconv"
	"strings"

	"github.com/aqw/HTCrystalBall/internal/inventory"
	"github.com/aqw/HTCrystalBall/internal/units"
)

// RawRequest carries the job description as typed by a user: counts as
// integers, quantities as strings with optional units.
type RawRequest struct {
	CPU      int
	GPU      int
	RAM      string
	Disk     string
	Jobs     int
	Time     string
	MaxNodes int
}

// JobRequest is the normalized request: storage in GiB, duration in minutes.
type JobRequest struct {
	CPUCores    int     `json:"cpu"`
	GPUUnits    int     `json:"gpu"`
	RAMGiB      float64 `json:"ram_gib"`
	DiskGiB     float64 `json:"disk_gib"`
	Replicas    int     `json:"jobs"`
	DurationMin float64 `json:"duration_min"`
	MaxNodes    int     `json:"maxnodes"`

	// Units as given or defaulted, kept for display.
	RAMUnit      string `json:"ram_unit,omitempty"`
	DiskUnit     string `json:"disk_unit,omitempty"`
	DurationUnit string `json:"duration_unit,omitempty"`
	// DefaultedUnits names the quantities given without a unit.
	DefaultedUnits []string `json:"defaulted_units,omitempty"`
}

type MissingResourceError struct {
	Resource string
}

func (e *MissingResourceError) Error() string {
	switch e.Resource {
	case "cpu":
		return "no number of CPU workers given"
	case "ram":
		return "no RAM amount given"
	default:
		return "no " + e.Resource + " amount given"
	}
}

// NewJobRequest validates the raw quantities and converts them to canonical
// units. Missing CPU or RAM is not an error here; Validate reports it.
func NewJobRequest(raw RawRequest) (JobRequest, error) {
	if raw.CPU < 0 {
		return JobRequest{}, &units.InvalidQuantityError{Kind: "cpu", Value: strconv.Itoa(raw.CPU)}
	}
	if raw.GPU < 0 {
		return JobRequest{}, &units.InvalidQuantityError{Kind: "gpu", Value: strconv.Itoa(raw.GPU)}
	}
	if raw.Jobs < 0 {
		return JobRequest{}, &units.InvalidQuantityError{Kind: "jobs", Value: strconv.Itoa(raw.Jobs)}
	}
	if raw.MaxNodes < 0 {
		return JobRequest{}, &units.InvalidQuantityError{Kind: "maxnodes", Value: strconv.Itoa(raw.MaxNodes)}
	}
	ram := strings.TrimSpace(raw.RAM)
	disk := strings.TrimSpace(raw.Disk)
	dur := strings.TrimSpace(raw.Time)
	for _, q := range []string{ram, disk} {
		if q == "" {
			continue
		}
		if err := units.ValidateStorage(q); err != nil {
			return JobRequest{}, err
		}
	}
	if err := units.ValidateDuration(dur); err != nil {
		return JobRequest{}, err
	}

	ramAmount, ramUnit := units.ParseQuantity(ram, units.DefaultStorageUnit)
	diskAmount, diskUnit := units.ParseQuantity(disk, units.DefaultStorageUnit)
	durAmount, durUnit := units.ParseQuantity(dur, units.DefaultDurationUnit)

	var defaulted []string
	for name, q := range map[string]string{"ram": ram, "disk": disk, "time": dur} {
		if q != "" && q[len(q)-1] >= '0' && q[len(q)-1] <= '9' {
			defaulted = append(defaulted, name)
		}
	}
	sort.Strings(defaulted)

	replicas := raw.Jobs
	if replicas == 0 {
		replicas = 1
	}
	return JobRequest{
		CPUCores:     raw.CPU,
		GPUUnits:     raw.GPU,
		RAMGiB:       units.ToGiB(ramAmount, ramUnit),
		DiskGiB:      units.ToGiB(diskAmount, diskUnit),
		Replicas:     replicas,
		DurationMin:  units.ToMinutes(durAmount, durUnit),
		MaxNodes:     raw.MaxNodes,
		RAMUnit:      ramUnit,
		DiskUnit:     diskUnit,
		DurationUnit: durUnit,

		DefaultedUnits: defaulted,
	}, nil
}

// Validate reports the first required resource that is missing.
func (r JobRequest) Validate() error {
	if r.CPUCores <= 0 {
		return &MissingResourceError{Resource: "cpu"}
	}
	if r.RAMGiB <= 0 {
		return &MissingResourceError{Resource: "ram"}
	}
	return nil
}

// Classes returns the slot classes a request is evaluated against, in order.
// GPU jobs only ever land on gpu slots; everything else is tried on dynamic
// and then static slots.
func (r JobRequest) Classes() []inventory.SlotClass {
	if r.GPUUnits > 0 {
		return []inventory.SlotClass{inventory.ClassGPU}
	}
	return []inventory.SlotClass{inventory.ClassDynamic, inventory.ClassStatic}
}

func (r JobRequest) replicas() int {
	if r.Replicas < 1 {
		return 1
	}
	return r.Replicas
}

func (r JobRequest) unitFor(quantity string) string {
	switch quantity {
	case "ram":
		return r.RAMUnit
	case "disk":
		return r.DiskUnit
	default:
		return r.DurationUnit
	}
}
