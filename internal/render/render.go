// Package render prints preview results as aligned text tables.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/aqw/HTCrystalBall/internal/inventory"
	"github.com/aqw/HTCrystalBall/internal/preview"
)

const notApplicable = "------"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func row(tw *tabwriter.Writer, cols ...string) {
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
}

// Result prints the preview table, preceded by the request and slot tables in
// verbose mode. Rows are printed in the order they were ranked.
func Result(w io.Writer, res *preview.Result, verbose bool) error {
	if verbose {
		if err := Inputs(w, res.Request); err != nil {
			return err
		}
		fmt.Fprintln(w)
		if err := Slots(w, res.Slots); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return Preview(w, res.Preview, verbose)
}

func Inputs(w io.Writer, req preview.JobRequest) error {
	tw := newTable(w)
	row(tw, "CPUS", "RAM", "DISK", "GPUS", "JOBS", "JOB_DURATION", "MAXNODES")
	row(tw,
		strconv.Itoa(req.CPUCores),
		fmt.Sprintf("%.2f GiB", req.RAMGiB),
		fmt.Sprintf("%.2f GiB", req.DiskGiB),
		strconv.Itoa(req.GPUUnits),
		strconv.Itoa(req.Replicas),
		fmt.Sprintf("%.2f min", req.DurationMin),
		maxNodes(req.MaxNodes),
	)
	return tw.Flush()
}

func Slots(w io.Writer, slots []preview.SlotSummary) error {
	tw := newTable(w)
	row(tw, "NODE", "TYPE", "TOTAL_SLOTS", "CORES", "GPUS", "RAM", "DISK")
	for _, s := range slots {
		gpus := notApplicable
		if s.Class == inventory.ClassGPU {
			gpus = strconv.Itoa(s.GPUs)
		}
		row(tw,
			s.Node,
			string(s.Class),
			strconv.Itoa(s.TotalSlots),
			strconv.Itoa(s.CPUs),
			gpus,
			formatNumber(s.MemoryGiB)+" GiB",
			formatNumber(s.DiskGiB)+" GiB",
		)
	}
	return tw.Flush()
}

func Preview(w io.Writer, rows []preview.FitResult, verbose bool) error {
	tw := newTable(w)
	if verbose {
		row(tw, "NODE", "TYPE", "FITS", "CORE_USAGE", "RAM_USAGE", "GPU_USAGE", "SIM_JOBS", "WALL_TIME_ON_IDLE")
	} else {
		row(tw, "TYPE", "FITS", "SIM_JOBS", "WALL_TIME_ON_IDLE")
	}
	for _, r := range rows {
		fits := "NO"
		if r.Fits {
			fits = "YES"
		}
		wall := formatNumber(r.WallTimeOnIdleMin) + " min"
		if verbose {
			row(tw, r.Node, string(r.Class), fits, CoreUsage(r), RAMUsage(r), GPUUsage(r), strconv.Itoa(r.MaxConcurrentJobs), wall)
		} else {
			row(tw, string(r.Class), fits, strconv.Itoa(r.MaxConcurrentJobs), wall)
		}
	}
	return tw.Flush()
}

// CoreUsage formats as "4/32 (12%)".
func CoreUsage(r preview.FitResult) string {
	u := r.CPUUsage
	if !u.Available {
		return "No CPU resource!"
	}
	return fmt.Sprintf("%d/%d (%d%%)", int(u.Requested), int(u.Capacity), u.Percent())
}

// RAMUsage formats as "16.00/128 GiB (12%)".
func RAMUsage(r preview.FitResult) string {
	u := r.RAMUsage
	if !u.Available {
		return "No RAM resource!"
	}
	return fmt.Sprintf("%.2f/%s GiB (%d%%)", u.Requested, formatNumber(u.Capacity), u.Percent())
}

func GPUUsage(r preview.FitResult) string {
	if r.GPUUsage == nil {
		return notApplicable
	}
	u := *r.GPUUsage
	if !u.Available {
		return "No GPU resource!"
	}
	return fmt.Sprintf("%d/%d (%d%%)", int(u.Requested), int(u.Capacity), u.Percent())
}

func JSON(w io.Writer, res *preview.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func maxNodes(n int) string {
	if n <= 0 {
		return "all"
	}
	return strconv.Itoa(n)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
