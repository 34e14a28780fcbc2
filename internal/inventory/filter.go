package inventory

// FilterByClass returns copies of every slot of the given class, in node
// then slot order, each tagged with its node's name. The snapshot is left
// untouched.
func FilterByClass(snap Snapshot, class SlotClass) []Slot {
	var out []Slot
	for _, node := range snap.Nodes {
		for _, slot := range node.Slots {
			if slot.Class != class {
				continue
			}
			slot.Node = node.Name
			out = append(out, slot)
		}
	}
	return out
}

// Slots flattens the snapshot in node order, tagging every slot.
func (s Snapshot) Slots() []Slot {
	out := make([]Slot, 0, s.SlotCount())
	for _, node := range s.Nodes {
		for _, slot := range node.Slots {
			slot.Node = node.Name
			out = append(out, slot)
		}
	}
	return out
}

func (s Snapshot) Partition() (dynamic, static, gpu []Slot) {
	return FilterByClass(s, ClassDynamic), FilterByClass(s, ClassStatic), FilterByClass(s, ClassGPU)
}

// CountByClass is used for the inventory gauges.
func (s Snapshot) CountByClass() map[SlotClass]int {
	out := make(map[SlotClass]int, len(Classes))
	for _, c := range Classes {
		out[c] = 0
	}
	for _, node := range s.Nodes {
		for _, slot := range node.Slots {
			out[slot.Class]++
		}
	}
	return out
}
