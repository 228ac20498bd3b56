package handler

import (
	"net/http"

	"go.uber.org/zap"

	"shaka/internal/httputil"
	"shaka/internal/model"
	"shaka/internal/service"
	"shaka/internal/transport/http/middleware"
)

type ReportHandler struct {
	reportService *service.ReportService
	logger        *zap.Logger
}

func NewReportHandler(reportService *service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reportService: reportService, logger: logger.Named("report_handler")}
}

// Create handles POST /reports
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.CreateReportRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	report, err := h.reportService.Create(r.Context(), userID, &req)
	if err != nil {
		h.logger.Error("Create report FAILED", zap.String("user", userID), zap.Error(err))
		httputil.WriteInternalError(w, "Failed to create report")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, report)
}
