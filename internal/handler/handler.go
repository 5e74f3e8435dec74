// Package handler exposes the portal over HTTP.
package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"resultportal/internal/auth"
	"resultportal/internal/cloudinary"
	"resultportal/internal/httpmiddleware"
	"resultportal/internal/ingest"
	"resultportal/internal/queue"
	"resultportal/internal/results"
)

// Archiver stores uploaded workbooks out of band.
type Archiver interface {
	UploadRaw(ctx context.Context, data []byte, filename, publicID string) (*cloudinary.UploadResult, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators behind the routes. Archive, Events and Limiter
// are optional.
type Deps struct {
	Auth           *auth.Service
	Results        *results.Service
	Pipeline       *ingest.Pipeline
	Archive        Archiver
	Events         queue.Publisher
	Limiter        httpmiddleware.Limiter
	Health         map[string]HealthCheck
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// Handler serves the /api routes.
type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 10 << 20
	}
	return &Handler{Deps: d}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.healthz)

	api := r.Group("/api")
	api.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "College Result Portal API"})
	})
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	authRoutes := api.Group("")
	if h.Limiter != nil {
		authRoutes.Use(httpmiddleware.RateLimit(h.Limiter, h.Logger))
	}
	authRoutes.POST("/login", h.login)
	authRoutes.POST("/verify-otp", h.verifyOTP)

	api.GET("/verify-token", h.verifyToken)
	api.GET("/student/result", h.studentResult)

	admin := api.Group("/admin", auth.RequireAdmin(h.Auth))
	admin.POST("/save", h.save)
	admin.POST("/upload", h.upload)
}

func (h *Handler) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, check := range h.Health {
		ok := check(ctx)
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "username and password required"})
		return
	}

	res, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid Username or Password"})
		return
	case errors.Is(err, auth.ErrChallengeDeliveryFailed):
		c.JSON(http.StatusBadGateway, gin.H{"detail": "OTP sending failed"})
		return
	case err != nil:
		h.Logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Login failed"})
		return
	}

	if !res.OTPRequired {
		c.JSON(http.StatusOK, gin.H{
			"message":      "Login successful (OTP skipped - not configured)",
			"otp_required": false,
			"token":        res.Token,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "OTP sent",
		"otp_required": true,
		"session_id":   res.ChallengeID,
	})
}

func (h *Handler) verifyOTP(c *gin.Context) {
	var req struct {
		Code      string `json:"code" binding:"required"`
		SessionID string `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "code required"})
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "code required"})
		return
	}
	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = req.SessionID
	}

	token, err := h.Auth.VerifyChallenge(c.Request.Context(), sessionID, code)
	switch {
	case errors.Is(err, auth.ErrOTPUnavailable):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "OTP verification not available"})
	case errors.Is(err, auth.ErrInvalidChallenge):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid session"})
	case errors.Is(err, auth.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid OTP"})
	case errors.Is(err, auth.ErrChallengeDeliveryFailed):
		c.JSON(http.StatusBadGateway, gin.H{"detail": "OTP verification failed"})
	case err != nil:
		h.Logger.Error("otp verification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "OTP verification failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Verified", "token": token})
	}
}

func (h *Handler) verifyToken(c *gin.Context) {
	_, err := h.Auth.Authorize(auth.TokenFromRequest(c))
	c.JSON(http.StatusOK, gin.H{"valid": err == nil})
}

func adminName(c *gin.Context) string {
	if v, ok := c.Get(auth.IdentityKey); ok {
		if id, ok := v.(auth.AdminIdentity); ok {
			return id.Username
		}
	}
	return ""
}

func (h *Handler) save(c *gin.Context) {
	var rec results.StudentRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid student record"})
		return
	}

	outcome, err := h.Results.Save(c.Request.Context(), rec, adminName(c))
	if errors.Is(err, results.ErrRollNoRequired) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Roll No required"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Error Saving Student"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": string(outcome)})
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"detail": "file field required"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".xls" && ext != ".xlsx" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Please upload an Excel file (.xls or .xlsx)"})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "read file failed"})
		return
	}

	ctx := c.Request.Context()
	sum, err := h.Pipeline.IngestReader(ctx, bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, ingest.ErrIngestionFailed) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Error processing Excel file"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Error processing Excel file"})
		return
	}

	var archiveURL string
	if h.Archive != nil {
		res, err := h.Archive.UploadRaw(ctx, data, header.Filename, sum.BatchID)
		if err != nil {
			h.Logger.Warn("workbook archive failed", zap.String("batch_id", sum.BatchID), zap.Error(err))
		} else {
			archiveURL = res.SecureURL
		}
	}

	evt := queue.ImportCompleted{
		BatchID:      sum.BatchID,
		Filename:     header.Filename,
		Sheets:       sum.Sheets,
		RowsUpserted: sum.RowsUpserted,
		RowsSkipped:  sum.RowsSkipped,
		RowsFailed:   sum.RowsFailed,
		ArchiveURL:   archiveURL,
		By:           adminName(c),
		At:           time.Now().UTC(),
	}
	if err := queue.PublishJSON(ctx, h.Events, queue.TypeImportCompleted, evt); err != nil {
		h.Logger.Warn("publish import.completed failed", zap.String("batch_id", sum.BatchID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Excel uploaded successfully",
		"batch_id":      sum.BatchID,
		"sheets":        sum.Sheets,
		"rows_upserted": sum.RowsUpserted,
		"rows_skipped":  sum.RowsSkipped,
		"rows_failed":   sum.RowsFailed,
		"archive_url":   archiveURL,
	})
}

type resultResponse struct {
	RollNo  string                  `json:"rollNo"`
	Name    string                  `json:"name"`
	Course  string                  `json:"course"`
	DOB     string                  `json:"dob"`
	Results []results.SubjectResult `json:"results"`
}

func (h *Handler) studentResult(c *gin.Context) {
	rollNo, dob := c.Query("rollNo"), c.Query("dob")
	if rollNo == "" || dob == "" {
		c.JSON(http.StatusOK, gin.H{"message": "Roll No and DOB required"})
		return
	}

	rec, ok, err := h.Results.Lookup(c.Request.Context(), rollNo, dob)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Error fetching result"})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"message": "No result found"})
		return
	}
	out := resultResponse{RollNo: rec.RollNo, Name: rec.Name, Course: rec.Course, DOB: rec.DOB, Results: rec.Subjects}
	if out.Results == nil {
		out.Results = []results.SubjectResult{}
	}
	c.JSON(http.StatusOK, out)
}
