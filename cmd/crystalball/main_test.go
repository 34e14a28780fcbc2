package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aqw/HTCrystalBall/internal/inventory"
	"github.com/aqw/HTCrystalBall/internal/preview"
	"github.com/aqw/HTCrystalBall/internal/units"
)

const slotsJSON = `{"slots":[
 {"UtsnameNodename":"cpu1","slot_size":[{"SlotType":"dynamic","TotalSlots":1,"TotalSlotCpus":32,"TotalSlotMemory":500,"TotalSlotDisk":500}]},
 {"UtsnameNodename":"cpu2","slot_size":[{"SlotType":"static","TotalSlots":10,"TotalSlotCpus":8,"TotalSlotMemory":64,"TotalSlotDisk":50}]}
]}`

func writeSlots(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slots.json")
	if err := os.WriteFile(path, []byte(slotsJSON), 0o600); err != nil {
		t.Fatalf("write slots: %v", err)
	}
	t.Setenv("CRYSTALBALL_CONFIG", "")
	t.Setenv("CRYSTALBALL_SLOTS", path)
	t.Setenv("CRYSTALBALL_LOG_FORMAT", "json")
	return path
}

func TestPreviewCommandPrintsRankedTable(t *testing.T) {
	writeSlots(t)
	var stdout, stderr bytes.Buffer
	err := runPreview(context.Background(), []string{"-c", "4", "--ram", "16GB", "-j", "20", "-t", "1h", "-v"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("preview: %v\n%s", err, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "4/32 (12%)") || !strings.Contains(out, "cpu2") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	table := out[strings.Index(out, "CORE_USAGE"):]
	if strings.Index(table, "cpu2") > strings.Index(table, "cpu1") {
		t.Fatalf("static slot with 10 jobs should rank first:\n%s", table)
	}
}

func TestPreviewCommandJSONAndSlotsFlag(t *testing.T) {
	writeSlots(t)
	other := filepath.Join(t.TempDir(), "other.yaml")
	yamlSlots := "slots:\n  - UtsnameNodename: gpu1\n    slot_size:\n      - SlotType: gpu\n        TotalSlots: 1\n        TotalSlotCpus: 8\n        TotalSlotMemory: 64\n        TotalSlotDisk: 100\n        TotalSlotGPUs: 2\n"
	if err := os.WriteFile(other, []byte(yamlSlots), 0o600); err != nil {
		t.Fatalf("write yaml slots: %v", err)
	}
	var stdout, stderr bytes.Buffer
	err := runPreview(context.Background(), []string{"--cpu", "2", "-r", "8", "-g", "1", "--slots", other, "--json"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("preview: %v\n%s", err, stderr.String())
	}
	if !strings.Contains(stdout.String(), `"node": "gpu1"`) || !strings.Contains(stdout.String(), `"sim_jobs": 2`) {
		t.Fatalf("unexpected json:\n%s", stdout.String())
	}
}

func TestPreviewCommandErrors(t *testing.T) {
	writeSlots(t)
	var stdout, stderr bytes.Buffer
	err := runPreview(context.Background(), []string{"-r", "4G"}, &stdout, &stderr)
	var missing *preview.MissingResourceError
	if !errors.As(err, &missing) || missing.Resource != "cpu" {
		t.Fatalf("expected missing cpu, got %v", err)
	}
	err = runPreview(context.Background(), []string{"-c", "1", "-r", "4 GB"}, &stdout, &stderr)
	var invalid *units.InvalidQuantityError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
}

func TestFetchCommandWritesInventory(t *testing.T) {
	t.Setenv("CRYSTALBALL_CONFIG", "")
	t.Setenv("CRYSTALBALL_LOG_FORMAT", "json")
	out := filepath.Join(t.TempDir(), "config", "slots.json")
	dump := "SlotType = \"Static\"\nUtsnameNodename = \"n1\"\nTotalSlotCpus = 2\nTotalSlotDisk = 10485760\nTotalSlotMemory = 8192\nTotalSlots = 6\n\n"
	var stderr bytes.Buffer
	if err := runFetch(context.Background(), []string{"--out", out}, strings.NewReader(dump), &stderr); err != nil {
		t.Fatalf("fetch: %v\n%s", err, stderr.String())
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	snap, err := inventory.Decode(f, inventory.FormatJSON)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	s := snap.Nodes[0].Slots[0]
	if snap.Nodes[0].Name != "n1" || s.Class != inventory.ClassStatic || s.MemoryGiB != 8 || s.DiskGiB != 10 || s.TotalSlots != 6 {
		t.Fatalf("unexpected inventory %+v", snap)
	}
}
