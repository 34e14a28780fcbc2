package inventory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aqw/HTCrystalBall/internal/observability"
)

const sampleJSON = `{"slots":[
 {"UtsnameNodename":"cpu1","slot_size":[
   {"SlotType":"dynamic","TotalSlots":1,"TotalSlotCpus":32,"TotalSlotMemory":128,"TotalSlotDisk":500},
   {"SlotType":"static","TotalSlots":12,"TotalSlotCpus":1,"TotalSlotMemory":5,"TotalSlotDisk":20}]},
 {"UtsnameNodename":"gpu1","slot_size":[
   {"SlotType":"gpu","TotalSlots":1,"TotalSlotCpus":8,"TotalSlotMemory":64,"TotalSlotDisk":200,"TotalSlotGPUs":4}]}
]}`

func testOptions() Options {
	return Options{Logger: zerolog.Nop(), Metrics: observability.NewRegistry()}
}

func TestFilterByClassTagsNodeAndPreservesOrder(t *testing.T) {
	snap, err := Decode(strings.NewReader(sampleJSON), FormatJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	dyn, static, gpu := snap.Partition()
	if len(dyn) != 1 || len(static) != 1 || len(gpu) != 1 {
		t.Fatalf("unexpected partition sizes %d/%d/%d", len(dyn), len(static), len(gpu))
	}
	if gpu[0].Node != "gpu1" || gpu[0].GPUs != 4 {
		t.Fatalf("gpu slot not tagged: %+v", gpu[0])
	}
	if snap.Nodes[1].Slots[0].Node != "" {
		t.Fatalf("filter must not mutate the snapshot")
	}
	if got := FilterByClass(Snapshot{}, ClassStatic); len(got) != 0 {
		t.Fatalf("empty snapshot should yield no slots")
	}
}

func TestOpenDispatchesByScheme(t *testing.T) {
	cases := map[string]string{
		"config/slots.json":          "*inventory.FileSource",
		"file:///tmp/slots.yaml":     "*inventory.FileSource",
		"https://example.org/s.json": "*inventory.HTTPSource",
		"s3://bucket/slots.json":     "*inventory.MinIOSource",
	}
	for in, want := range cases {
		src, err := Open(in, testOptions())
		if err != nil {
			t.Fatalf("open %s: %v", in, err)
		}
		if got := typeName(src); got != want {
			t.Fatalf("open %s: got %s want %s", in, got, want)
		}
	}

	_, err := Open("ftp://host/slots.json", testOptions())
	var unknown *UnknownSourceError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownSourceError, got %v", err)
	}
	if _, err := Open("s3://bucket-only", testOptions()); err == nil {
		t.Fatalf("expected error for object location without key")
	}
}

func typeName(src Source) string {
	switch src.(type) {
	case *FileSource:
		return "*inventory.FileSource"
	case *HTTPSource:
		return "*inventory.HTTPSource"
	case *MinIOSource:
		return "*inventory.MinIOSource"
	default:
		return "other"
	}
}

func TestFileSourceReadsJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	snap, err := Decode(strings.NewReader(sampleJSON), FormatJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, name := range []string{"slots.json", "slots.yaml"} {
		p := filepath.Join(dir, name)
		if err := Write(context.Background(), snap, p, testOptions()); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		opts := testOptions()
		src, err := Open(p, opts)
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		got, err := src.Load(context.Background())
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if got.SlotCount() != 3 || got.Nodes[1].Slots[0].GPUs != 4 {
			t.Fatalf("%s: unexpected snapshot %+v", name, got)
		}
		if opts.Metrics.Counter(observability.MetricInventoryLoads, map[string]string{"source": "file"}) != 1 {
			t.Fatalf("%s: load counter not incremented", name)
		}
		if opts.Metrics.Gauge(observability.MetricInventorySlots, map[string]string{"class": "static"}) != 1 {
			t.Fatalf("%s: slot gauge not set", name)
		}
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	src, _ := Open(filepath.Join(t.TempDir(), "nope.json"), testOptions())
	if _, err := src.Load(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestHTTPSourceRetriesAndDecodes(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleJSON))
	}))
	defer srv.Close()

	opts := testOptions()
	opts.HTTPRetries = 2
	src, err := Open(srv.URL+"/slots", opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	hs := src.(*HTTPSource)
	hs.http.RetryWaitMin = 0
	hs.http.RetryWaitMax = 0
	snap, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.SlotCount() != 3 || calls != 2 {
		t.Fatalf("expected 3 slots after one retry, got %d slots in %d calls", snap.SlotCount(), calls)
	}
}

func TestHTTPSourceReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()
	src, _ := Open(srv.URL+"/slots.json", testOptions())
	_, err := src.Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}

func TestStaticSourceHandsOutCopies(t *testing.T) {
	snap, _ := Decode(strings.NewReader(sampleJSON), FormatJSON)
	src := NewStaticSource(snap)
	a, _ := src.Load(context.Background())
	a.Nodes[0].Slots[0].CPUs = 1
	b, _ := src.Load(context.Background())
	if b.Nodes[0].Slots[0].CPUs != 32 {
		t.Fatalf("static source leaked a mutable reference")
	}
}

const sampleDump = `Name = "slot1@cpu1.example.org"
SlotType = "Partitionable"
UtsnameNodename = "cpu1"
TotalSlotCpus = 32
TotalSlotDisk = 524288000
TotalSlotMemory = 131072
TotalSlots = 1
TotalSlotGPUs = 0
Machine = "cpu1.example.org"

Name = "slot1@cpu1.example.org"
SlotType = "Partitionable"
UtsnameNodename = "cpu1"
TotalSlotCpus = 32
TotalSlotDisk = 524288000
TotalSlotMemory = 131072
TotalSlots = 1
TotalSlotGPUs = 0

Name = "slot2@cpu1.example.org"
SlotType = "Static"
UtsnameNodename = "cpu1"
TotalSlotCpus = 1
TotalSlotDisk = 20971520
TotalSlotMemory = 5120
TotalSlots = 12

Name = "slot1@gpu-node1"
SlotType = "Dynamic"
UtsnameNodename = "gpu-node1"
TotalSlotCpus = 8
TotalSlotDisk = 1048576
TotalSlotMemory = 1536
TotalSlots = 1
TotalSlotGPUs = 2
`

func TestParseClassAdsAndFold(t *testing.T) {
	ads, err := ParseClassAds(strings.NewReader(sampleDump))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ads) != 3 {
		t.Fatalf("expected duplicate ad to be dropped, got %d ads", len(ads))
	}
	if ads[0]["Name"] != "slot1" {
		t.Fatalf("name should be cut at @, got %q", ads[0]["Name"])
	}
	if _, ok := ads[0]["Machine"]; ok {
		t.Fatalf("unlisted attributes must be ignored")
	}

	snap, skipped, err := FromClassAds(ads)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if skipped != 0 || len(snap.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d (skipped %d)", len(snap.Nodes), skipped)
	}
	cpu := snap.Nodes[0]
	if cpu.Name != "cpu1" || len(cpu.Slots) != 2 {
		t.Fatalf("unexpected cpu node: %+v", cpu)
	}
	if cpu.Slots[0].Class != ClassDynamic || cpu.Slots[0].MemoryGiB != 128 || cpu.Slots[0].DiskGiB != 500 {
		t.Fatalf("unexpected dynamic slot: %+v", cpu.Slots[0])
	}
	if cpu.Slots[1].Class != ClassStatic || cpu.Slots[1].TotalSlots != 12 || cpu.Slots[1].MemoryGiB != 5 {
		t.Fatalf("unexpected static slot: %+v", cpu.Slots[1])
	}
	gpu := snap.Nodes[1].Slots[0]
	if gpu.Class != ClassGPU || gpu.GPUs != 2 || gpu.MemoryGiB != 1.5 || gpu.DiskGiB != 1 {
		t.Fatalf("unexpected gpu slot: %+v", gpu)
	}
}

func TestFromClassAdsSkipsUnknownTypes(t *testing.T) {
	ads := []ClassAd{{
		"SlotType": "Weird", "UtsnameNodename": "n", "TotalSlotCpus": "1",
		"TotalSlotDisk": "1", "TotalSlotMemory": "1", "TotalSlots": "1",
	}}
	snap, skipped, err := FromClassAds(ads)
	if err != nil || skipped != 1 || len(snap.Nodes) != 0 {
		t.Fatalf("expected one skipped ad, got %d nodes skipped=%d err=%v", len(snap.Nodes), skipped, err)
	}

	ads[0]["SlotType"] = "Static"
	ads[0]["TotalSlotCpus"] = "many"
	if _, _, err := FromClassAds(ads); err == nil {
		t.Fatalf("expected error for non-numeric cpus")
	}
}

func TestParseClassAdsRejectsMalformedLine(t *testing.T) {
	if _, err := ParseClassAds(strings.NewReader("SlotType=Static\n")); err == nil {
		t.Fatalf("expected error for line without ' = '")
	}
}

type countingSource struct {
	loads int
	snap  Snapshot
	err   error
}

func (c *countingSource) String() string { return "counting" }

func (c *countingSource) Load(context.Context) (Snapshot, error) {
	c.loads++
	if c.err != nil {
		return Snapshot{}, c.err
	}
	return c.snap.Clone(), nil
}

func TestStoreLoadsOnceAndKeepsLastGoodSnapshot(t *testing.T) {
	snap, _ := Decode(strings.NewReader(sampleJSON), FormatJSON)
	src := &countingSource{snap: snap}
	store := NewStore(src)
	for i := 0; i < 3; i++ {
		if _, err := store.Snapshot(context.Background()); err != nil {
			t.Fatalf("snapshot: %v", err)
		}
	}
	if src.loads != 1 {
		t.Fatalf("expected a single load, got %d", src.loads)
	}

	src.err = errors.New("collector down")
	if _, err := store.Reload(context.Background()); err == nil {
		t.Fatalf("expected reload error")
	}
	got, err := store.Snapshot(context.Background())
	if err != nil || got.SlotCount() != 3 {
		t.Fatalf("previous snapshot should survive a failed reload: %v", err)
	}
	if store.LoadedAt().IsZero() {
		t.Fatalf("load time not recorded")
	}
}
