package inventory

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ClassAd is one startd ad reduced to the attributes the inventory needs.
type ClassAd map[string]string

var classAdKeys = map[string]bool{
	"SlotType":        true,
	"UtsnameNodename": true,
	"Name":            true,
	"TotalSlotCpus":   true,
	"TotalSlotDisk":   true,
	"TotalSlotMemory": true,
	"TotalSlots":      true,
	"TotalSlotGPUs":   true,
}

// ParseClassAds reads a `condor_status -long` dump: "Key = Value" lines with
// a blank line between ads. Identical ads are kept once.
func ParseClassAds(r io.Reader) ([]ClassAd, error) {
	var (
		ads []ClassAd
		cur = ClassAd{}
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		for _, ad := range ads {
			if ad.equal(cur) {
				cur = ClassAd{}
				return
			}
		}
		ads = append(ads, cur)
		cur = ClassAd{}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		key, value, ok := strings.Cut(line, " = ")
		if !ok {
			return nil, fmt.Errorf("classad line %d: expected 'Key = Value'", lineNo)
		}
		key = strings.ReplaceAll(strings.TrimSpace(key), "'", "")
		if !classAdKeys[key] {
			continue
		}
		value = strings.ReplaceAll(strings.TrimSpace(value), "'", "")
		if key == "Name" {
			value, _, _ = strings.Cut(value, "@")
		}
		cur[key] = strings.ReplaceAll(value, `"`, "")
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read classads: %w", err)
	}
	flush()
	return ads, nil
}

func (a ClassAd) equal(b ClassAd) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// FromClassAds folds ads into a snapshot grouped by node. Partitionable and
// dynamic ads become gpu slots on nodes whose name mentions "gpu" and which
// report GPUs, dynamic otherwise. Memory arrives in MiB and disk in KiB.
// Ads with an unrecognized slot type are skipped and counted.
func FromClassAds(ads []ClassAd) (Snapshot, int, error) {
	var (
		snap    Snapshot
		index   = map[string]int{}
		skipped int
	)
	for i, ad := range ads {
		node := ad["UtsnameNodename"]
		if node == "" {
			skipped++
			continue
		}
		slot, ok, err := slotFromClassAd(ad)
		if err != nil {
			return Snapshot{}, 0, fmt.Errorf("classad %d (%s): %w", i, node, err)
		}
		if !ok {
			skipped++
			continue
		}
		pos, seen := index[node]
		if !seen {
			pos = len(snap.Nodes)
			index[node] = pos
			snap.Nodes = append(snap.Nodes, Node{Name: node})
		}
		if !containsSlot(snap.Nodes[pos].Slots, slot) {
			snap.Nodes[pos].Slots = append(snap.Nodes[pos].Slots, slot)
		}
	}
	return snap, skipped, nil
}

func slotFromClassAd(ad ClassAd) (Slot, bool, error) {
	cpus, err := adNumber(ad, "TotalSlotCpus")
	if err != nil {
		return Slot{}, false, err
	}
	disk, err := adNumber(ad, "TotalSlotDisk")
	if err != nil {
		return Slot{}, false, err
	}
	mem, err := adNumber(ad, "TotalSlotMemory")
	if err != nil {
		return Slot{}, false, err
	}
	total, err := adNumber(ad, "TotalSlots")
	if err != nil {
		return Slot{}, false, err
	}
	slot := Slot{
		TotalSlots: int(total),
		CPUs:       int(cpus),
		MemoryGiB:  round2(mem / (1 << 10)),
		DiskGiB:    round2(disk / (1 << 20)),
	}
	switch ad["SlotType"] {
	case "Partitionable", "Dynamic":
		gpus, err := adNumber(ad, "TotalSlotGPUs")
		if err != nil {
			gpus = 0
		}
		if strings.Contains(ad["UtsnameNodename"], "gpu") && int(gpus) != 0 {
			slot.Class = ClassGPU
			slot.GPUs = int(gpus)
		} else {
			slot.Class = ClassDynamic
		}
	case "Static":
		slot.Class = ClassStatic
	default:
		return Slot{}, false, nil
	}
	return slot, true, nil
}

func adNumber(ad ClassAd, key string) (float64, error) {
	raw, ok := ad[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func containsSlot(slots []Slot, s Slot) bool {
	for _, have := range slots {
		if have == s {
			return true
		}
	}
	return false
}
