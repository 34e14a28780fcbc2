package crystalapi

// Response is the envelope every endpoint answers with.
type Response struct {
	Ok    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// PreviewRequest mirrors the command line flags. Quantities keep their units,
// e.g. "16GiB" or "2h".
type PreviewRequest struct {
	CPU      int    `json:"cpu"`
	GPU      int    `json:"gpu,omitempty"`
	RAM      string `json:"ram"`
	Disk     string `json:"disk,omitempty"`
	Jobs     int    `json:"jobs,omitempty"`
	Time     string `json:"time,omitempty"`
	MaxNodes int    `json:"maxnodes,omitempty"`
}

type SlotView struct {
	Node       string  `json:"node"`
	Type       string  `json:"type"`
	TotalSlots int     `json:"total_slots"`
	Cores      int     `json:"cores"`
	RAMGiB     float64 `json:"ram"`
	DiskGiB    float64 `json:"disk"`
	GPUs       int     `json:"gpus,omitempty"`
}

type SlotsResponse struct {
	Source   string     `json:"source"`
	LoadedAt string     `json:"loaded_at,omitempty"`
	Total    int        `json:"total"`
	Slots    []SlotView `json:"slots"`
}

type ReloadResponse struct {
	Source   string `json:"source"`
	Nodes    int    `json:"nodes"`
	Slots    int    `json:"slots"`
	LoadedAt string `json:"loaded_at"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
