package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stroydoc/upd-processor/internal/model"
	"github.com/stroydoc/upd-processor/internal/service"
)

// Config holds server configuration
type Config struct {
	Address       string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxUploadSize int64
	Debug         bool
}

// Server represents the HTTP API server
type Server struct {
	config        *Config
	router        *gin.Engine
	uploads       service.UploadService
	distributions service.DistributionService
}

// NewServer creates a new API server
func NewServer(config *Config, uploads service.UploadService, distributions service.DistributionService) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.MaxUploadSize == 0 {
		config.MaxUploadSize = 10 << 20
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if config.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config:        config,
		router:        router,
		uploads:       uploads,
		distributions: distributions,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/documents", s.handleUpload)
		v1.GET("/documents", s.handleList)
		v1.GET("/documents/:id", s.handleDetail)
		v1.POST("/documents/:id/distributions", s.handleDistribute)
		v1.GET("/documents/:id/distributions", s.handleListDistributions)
		v1.POST("/documents/:id/archive", s.handleArchive)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleUpload accepts either a multipart form with a "file" field or the
// raw document bytes with an X-Filename header.
func (s *Server) handleUpload(c *gin.Context) {
	data, filename, err := s.readUpload(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return
	}

	result, err := s.uploads.Upload(c.Request.Context(), data, filename)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newUploadResponse(result))
}

func (s *Server) readUpload(c *gin.Context) ([]byte, string, error) {
	if file, err := c.FormFile("file"); err == nil {
		if file.Size > s.config.MaxUploadSize {
			return nil, "", errors.New("file exceeds upload size limit")
		}
		f, err := file.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, s.config.MaxUploadSize+1))
		if err != nil {
			return nil, "", err
		}
		return data, file.Filename, nil
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, s.config.MaxUploadSize+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > s.config.MaxUploadSize {
		return nil, "", errors.New("file exceeds upload size limit")
	}
	filename := c.GetHeader("X-Filename")
	if filename == "" {
		filename = "document.xml"
	}
	return data, filename, nil
}

func (s *Server) handleList(c *gin.Context) {
	status := model.DocumentStatus(c.Query("status"))
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 50)

	docs, total, err := s.uploads.List(c.Request.Context(), status, page, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	out := make([]DocumentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, newDocumentResponse(&docs[i]))
	}
	c.JSON(http.StatusOK, ListResponse{Documents: out, Total: total, Page: page, Limit: limit})
}

func (s *Server) handleDetail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid document id"})
		return
	}

	doc, err := s.uploads.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDocumentResponse(doc))
}

func (s *Server) handleDistribute(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid document id"})
		return
	}

	var req DistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	instructions := make([]service.Instruction, 0, len(req.Instructions))
	for _, in := range req.Instructions {
		amount, err := decimal.NewFromString(in.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid distributed_amount"})
			return
		}
		qty := decimal.Zero
		if in.Quantity != "" {
			qty, err = decimal.NewFromString(in.Quantity)
			if err != nil {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid distributed_quantity"})
				return
			}
		}
		instructions = append(instructions, service.Instruction{
			LineItemID:        in.LineItemID,
			CostObjectID:      in.CostObjectID,
			MaterialRequestID: in.MaterialRequestID,
			Quantity:          qty,
			Amount:            amount,
		})
	}

	result, err := s.distributions.Distribute(c.Request.Context(), id, instructions)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, DistributionResponse{
		Status:             result.Status,
		FullyDistributed:   result.FullyDistributed,
		DistributedAmount:  result.DistributedAmount,
		EntriesCreated:     result.EntriesCreated,
		CostEntriesCreated: result.CostEntriesCreated,
	})
}

func (s *Server) handleListDistributions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid document id"})
		return
	}
	entries, err := s.distributions.Entries(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) handleArchive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid document id"})
		return
	}
	doc, err := s.uploads.Archive(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDocumentResponse(doc))
}

// writeError maps the error taxonomy to HTTP statuses: security violations
// and malformed input are client errors, structural parse failures and
// distribution rejections are unprocessable, unknown documents are 404.
func (s *Server) writeError(c *gin.Context, err error) {
	var secErr *model.SecurityError
	var parseErr *model.ParseError
	var distErr *model.DistributionError
	var valErr *model.ValidationError

	switch {
	case errors.As(err, &secErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: secErr.Error(), Reason: secErr.Rule})
	case errors.As(err, &parseErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: parseErr.Error()})
	case errors.As(err, &distErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: distErr.Error(), Reason: distErr.Reason})
	case errors.As(err, &valErr):
		c.JSON(http.StatusConflict, ErrorResponse{Error: valErr.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "document not found"})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
