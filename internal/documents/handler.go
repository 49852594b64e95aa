package documents

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"luma-ledger/ledger-backend/internal/auth"
	"luma-ledger/ledger-backend/internal/pipeline"
)

type Handler struct {
	service       Service
	maxUploadSize int64
}

func NewHandler(service Service, maxUploadSize int64) *Handler {
	return &Handler{service: service, maxUploadSize: maxUploadSize}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	docs := rg.Group("/documents")
	{
		docs.POST("", h.Upload)
		docs.GET("", h.List)
		docs.GET("/:id", h.GetMetadata)
		docs.POST("/:id/analyze", h.Analyze)
		docs.GET("/:id/status", h.Status)
		docs.GET("/:id/records", h.Records)
	}
}

func (h *Handler) Upload(c *gin.Context) {
	companyID, ok := auth.CompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	doc, err := h.service.UploadDocument(c.Request.Context(), UploadRequest{
		CompanyID:   companyID,
		FileName:    file.Filename,
		FileSize:    file.Size,
		FileContent: f,
		UploadedBy:  auth.Subject(c),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) List(c *gin.Context) {
	companyID, ok := auth.CompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var filter ListFilter
	if s := c.Query("status"); s != "" {
		status := DocumentStatus(s)
		filter.Status = &status
	}
	if ft := c.Query("file_type"); ft != "" {
		fileType := FileType(ft)
		filter.FileType = &fileType
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	docs, err := h.service.ListDocuments(c.Request.Context(), companyID, filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, docs)
}

func (h *Handler) GetMetadata(c *gin.Context) {
	companyID, id, ok := ids(c)
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(c.Request.Context(), companyID, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) Analyze(c *gin.Context) {
	companyID, id, ok := ids(c)
	if !ok {
		return
	}

	result, err := h.service.AnalyzeDocument(c.Request.Context(), companyID, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Status(c *gin.Context) {
	companyID, id, ok := ids(c)
	if !ok {
		return
	}

	status, err := h.service.GetStatus(c.Request.Context(), companyID, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *Handler) Records(c *gin.Context) {
	companyID, id, ok := ids(c)
	if !ok {
		return
	}

	records, err := h.service.ListRecords(c.Request.Context(), companyID, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"document_id": id, "records": records, "count": len(records)})
}

func ids(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	companyID, ok := auth.CompanyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, uuid.Nil, false
	}
	return companyID, id, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
	case errors.Is(err, ErrAlreadyProcessing):
		c.JSON(http.StatusConflict, gin.H{"error": ErrAlreadyProcessing.Error()})
	case errors.Is(err, ErrUnsupportedFileType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "file type not allowed, use pdf, csv, xlsx, png or jpg"})
	case errors.Is(err, pipeline.ErrNoDataExtracted):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": NoDataMessage})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
