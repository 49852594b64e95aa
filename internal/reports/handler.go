package reports

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"luma-ledger/ledger-backend/internal/auth"
	"luma-ledger/ledger-backend/internal/reports/dashboard"
	"luma-ledger/ledger-backend/internal/reports/export"
)

// Handler handles HTTP requests for reporting operations
type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/dashboard", h.getDashboard)

	reports := router.Group("/reports")
	{
		reports.GET("", h.listReports)
		reports.GET("/export", h.exportReport)
	}
}

// getDashboard handles GET /dashboard?year=&start_date=&end_date=
func (h *Handler) getDashboard(c *gin.Context) {
	companyID, ok := auth.CompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var filter dashboard.Filter
	if y := c.Query("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
			return
		}
		filter.Year = &year
	}
	for param, dst := range map[string]**time.Time{"start_date": &filter.From, "end_date": &filter.To} {
		v := c.Query(param)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s, use YYYY-MM-DD", param)})
			return
		}
		*dst = &t
	}

	d, err := h.service.Dashboard(c.Request.Context(), companyID, filter)
	if err != nil {
		h.logger.Error("Failed to build dashboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, d)
}

// listReports handles GET /reports
func (h *Handler) listReports(c *gin.Context) {
	companyID, ok := auth.CompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	reports, err := h.service.ListReports(c.Request.Context(), companyID)
	if err != nil {
		h.logger.Error("Failed to list reports", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"total": len(reports), "reports": reports})
}

// exportReport handles GET /reports/export?year=&format=pdf|xlsx|csv
func (h *Handler) exportReport(c *gin.Context) {
	companyID, ok := auth.CompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	year := time.Now().UTC().Year()
	if y := c.Query("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
			return
		}
		year = parsed
	}

	result, err := h.service.ExportAnnual(c.Request.Context(), ExportRequest{
		CompanyID:   companyID,
		Year:        year,
		Format:      export.Format(c.DefaultQuery("format", string(export.FormatPDF))),
		RequestedBy: auth.Subject(c),
	})
	switch {
	case errors.Is(err, export.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be pdf, xlsx or csv"})
		return
	case errors.Is(err, ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("No emission data found for year %d", year)})
		return
	case err != nil:
		h.logger.Error("Failed to export report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.FileName))
	c.Header("X-Report-ID", result.Report.ID.String())
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
