package inventory

import "strings"

type SlotClass string

const (
	ClassDynamic SlotClass = "dynamic"
	ClassStatic  SlotClass = "static"
	ClassGPU     SlotClass = "gpu"
)

// Classes lists the slot classes in evaluation order.
var Classes = []SlotClass{ClassDynamic, ClassStatic, ClassGPU}

func (c SlotClass) Valid() bool {
	return c == ClassDynamic || c == ClassStatic || c == ClassGPU
}

func ParseSlotClass(v string) (SlotClass, bool) {
	switch SlotClass(strings.ToLower(strings.TrimSpace(v))) {
	case ClassDynamic:
		return ClassDynamic, true
	case ClassStatic:
		return ClassStatic, true
	case ClassGPU:
		return ClassGPU, true
	default:
		return "", false
	}
}

// Slot is one slot size on a node. Capacities are per slot instance; memory
// and disk are in GiB. Node is not part of the slot-size record on disk and
// is filled in by FilterByClass.
type Slot struct {
	Node       string    `json:"-" yaml:"-"`
	Class      SlotClass `json:"SlotType" yaml:"SlotType"`
	TotalSlots int       `json:"TotalSlots" yaml:"TotalSlots"`
	CPUs       int       `json:"TotalSlotCpus" yaml:"TotalSlotCpus"`
	MemoryGiB  float64   `json:"TotalSlotMemory" yaml:"TotalSlotMemory"`
	DiskGiB    float64   `json:"TotalSlotDisk" yaml:"TotalSlotDisk"`
	GPUs       int       `json:"TotalSlotGPUs,omitempty" yaml:"TotalSlotGPUs,omitempty"`
}

type Node struct {
	Name  string `json:"UtsnameNodename" yaml:"UtsnameNodename"`
	Slots []Slot `json:"slot_size" yaml:"slot_size"`
}

// Snapshot is the cluster slot inventory as written by the fetch step.
type Snapshot struct {
	Nodes []Node `json:"slots" yaml:"slots"`
}

func (s Snapshot) SlotCount() int {
	n := 0
	for _, node := range s.Nodes {
		n += len(node.Slots)
	}
	return n
}
