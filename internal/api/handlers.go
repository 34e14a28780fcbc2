package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aqw/HTCrystalBall/internal/inventory"
	"github.com/aqw/HTCrystalBall/internal/preview"
	"github.com/aqw/HTCrystalBall/internal/units"
	"github.com/aqw/HTCrystalBall/pkg/crystalapi"
)

func (s *Server) listSlots(c *gin.Context) {
	snap, err := s.store.Snapshot(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusServiceUnavailable, fmt.Errorf("load inventory: %w", err))
		return
	}
	slots := snap.Slots()
	if raw := c.Query("class"); raw != "" {
		class, ok := inventory.ParseSlotClass(raw)
		if !ok {
			writeError(c, http.StatusBadRequest, fmt.Errorf("unknown slot class %q", raw))
			return
		}
		slots = inventory.FilterByClass(snap, class)
	}
	views := make([]crystalapi.SlotView, 0, len(slots))
	for _, sl := range slots {
		views = append(views, slotView(sl))
	}
	c.JSON(http.StatusOK, crystalapi.Response{Ok: true, Data: crystalapi.SlotsResponse{
		Source:   s.store.Source(),
		LoadedAt: formatTime(s.store.LoadedAt()),
		Total:    len(views),
		Slots:    views,
	}})
}

func (s *Server) reloadSlots(c *gin.Context) {
	snap, err := s.store.Reload(c.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Str("source", s.store.Source()).Msg("inventory reload failed")
		writeError(c, http.StatusBadGateway, fmt.Errorf("reload inventory: %w", err))
		return
	}
	c.JSON(http.StatusOK, crystalapi.Response{Ok: true, Data: crystalapi.ReloadResponse{
		Source:   s.store.Source(),
		Nodes:    len(snap.Nodes),
		Slots:    snap.SlotCount(),
		LoadedAt: formatTime(s.store.LoadedAt()),
	}})
}

func (s *Server) preview(c *gin.Context) {
	var body crystalapi.PreviewRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	req, err := preview.NewJobRequest(preview.RawRequest{
		CPU:      body.CPU,
		GPU:      body.GPU,
		RAM:      body.RAM,
		Disk:     body.Disk,
		Jobs:     body.Jobs,
		Time:     body.Time,
		MaxNodes: body.MaxNodes,
	})
	if err != nil {
		var invalid *units.InvalidQuantityError
		if errors.As(err, &invalid) {
			writeError(c, http.StatusBadRequest, err)
			return
		}
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	snap, err := s.store.Snapshot(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusServiceUnavailable, fmt.Errorf("load inventory: %w", err))
		return
	}
	res, err := s.engine.Preview(c.Request.Context(), snap, req)
	if err != nil {
		var missing *preview.MissingResourceError
		if errors.As(err, &missing) {
			writeError(c, http.StatusUnprocessableEntity, err)
			return
		}
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, crystalapi.Response{Ok: true, Data: res})
}

func slotView(s inventory.Slot) crystalapi.SlotView {
	return crystalapi.SlotView{
		Node:       s.Node,
		Type:       string(s.Class),
		TotalSlots: s.TotalSlots,
		Cores:      s.CPUs,
		RAMGiB:     s.MemoryGiB,
		DiskGiB:    s.DiskGiB,
		GPUs:       s.GPUs,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
