package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ljhyeon/Fish-in-Water/internal/domain"
	"github.com/ljhyeon/Fish-in-Water/internal/service"
)

// SweepRunner triggers one lease-guarded lifecycle sweep.
type SweepRunner interface {
	RunNow(ctx context.Context) (*service.SweepReport, error)
}

// AdminHandler serves the operational lifecycle overrides.
type AdminHandler struct {
	lifecycle *service.LifecycleService
	sweeps    SweepRunner
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(lifecycle *service.LifecycleService, sweeps SweepRunner) *AdminHandler {
	return &AdminHandler{lifecycle: lifecycle, sweeps: sweeps}
}

// RunSweep godoc
// POST /api/admin/sweep
func (h *AdminHandler) RunSweep(c *gin.Context) {
	report, err := h.sweeps.RunNow(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "sweep failed")
		return
	}

	failures := make(map[string]string, len(report.Failures))
	for id, ferr := range report.Failures {
		failures[id.String()] = ferr.Error()
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"activated": report.Activated,
		"closed":    report.Closed,
		"failures":  failures,
		"skipped":   report.Skipped,
	})
}

// ActivateAuction godoc
// POST /api/admin/auctions/:id/activate
func (h *AdminHandler) ActivateAuction(c *gin.Context) {
	h.override(c, h.lifecycle.Activate)
}

// CloseAuction godoc
// POST /api/admin/auctions/:id/close
func (h *AdminHandler) CloseAuction(c *gin.Context) {
	h.override(c, h.lifecycle.Close)
}

func (h *AdminHandler) override(c *gin.Context, apply func(ctx context.Context, id uuid.UUID) error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AUCTION_ID", "invalid auction id")
		return
	}
	if err := apply(c.Request.Context(), id); err != nil {
		switch {
		case domain.IsNotFound(err):
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "auction not found")
		case domain.IsConflict(err):
			respondError(c, http.StatusConflict, "ERR_INVALID_TRANSITION", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not transition auction")
		}
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"auction_id": id})
}
