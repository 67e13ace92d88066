package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go.ngs.io/weather-maps-api/internal/domain"
	"go.ngs.io/weather-maps-api/internal/usecase"
)

// ImageFetcher returns image URLs for a forecast, rendering missing ones.
type ImageFetcher interface {
	Fetch(ctx context.Context, plot domain.PlotType, model domain.ModelID, r domain.TimeRange) ([]domain.Image, error)
	Pending(rel string) bool
}

// TimeLister lists the base and valid times of a model.
type TimeLister interface {
	BaseTimes(ctx context.Context, model domain.ModelID, plot domain.PlotType, query *time.Time) ([]domain.TimeOption, error)
	ValidTimes(ctx context.Context, model domain.ModelID, plot domain.PlotType, query *time.Time) ([][]domain.TimeOption, error)
}

// Comparer serves the legacy side-by-side gallery.
type Comparer interface {
	Compare(ctx context.Context, plot domain.PlotType, base int64) (usecase.Aligned, error)
	Sample(model domain.ModelID) (string, error)
}

// ModelSwitcher is the legacy process-wide model selection.
type ModelSwitcher interface {
	Current() domain.ModelID
	Switch(model string) (domain.ModelID, error)
}

// Handler handles HTTP requests for weather map images.
type Handler struct {
	images  ImageFetcher
	times   TimeLister
	gallery Comparer
	current ModelSwitcher
	log     *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(images ImageFetcher, times TimeLister, gallery Comparer, current ModelSwitcher, log *zap.Logger) *Handler {
	return &Handler{
		images:  images,
		times:   times,
		gallery: gallery,
		current: current,
		log:     log,
	}
}

// fetchRequest is the body of POST /data/{plotType}/{model}.
type fetchRequest struct {
	BaseTime  *int64  `json:"baseTime" binding:"required"`
	ValidTime []int64 `json:"validTime"`
}

// GetImages handles POST /data/{plotType}/{model}.
func (h *Handler) GetImages(c *gin.Context) {
	plot, err := domain.ParsePlotType(c.Param("plotType"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	model, err := domain.ParseModel(c.Param("model"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req fetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid time range: %v", err)})
		return
	}
	r := domain.TimeRange{BaseTime: *req.BaseTime, ValidTime: req.ValidTime}

	images, err := h.images.Fetch(c.Request.Context(), plot, model, r)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

// timeQuery parses the model path parameter and the variableType and
// queryTime query parameters shared by the discovery endpoints.
func (h *Handler) timeQuery(c *gin.Context) (domain.ModelID, domain.PlotType, *time.Time, error) {
	model, err := domain.ParseModel(c.Param("model"))
	if err != nil {
		return "", "", nil, err
	}
	plot, err := domain.ParsePlotType(c.Query("variableType"))
	if err != nil {
		return "", "", nil, err
	}
	var query *time.Time
	if s := c.Query("queryTime"); s != "" {
		t, err := domain.ParseQueryTime(s)
		if err != nil {
			return "", "", nil, err
		}
		query = &t
	}
	return model, plot, query, nil
}

// GetBaseTimes handles GET /base-times/{model}.
func (h *Handler) GetBaseTimes(c *gin.Context) {
	model, plot, query, err := h.timeQuery(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	options, err := h.times.BaseTimes(c.Request.Context(), model, plot, query)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, options)
}

// GetValidTimes handles GET /valid-times/{model}.
func (h *Handler) GetValidTimes(c *gin.Context) {
	model, plot, query, err := h.timeQuery(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	options, err := h.times.ValidTimes(c.Request.Context(), model, plot, query)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, options)
}

// GetCurrentModel handles GET /current-model. The body is the bare model
// name as a JSON string.
func (h *Handler) GetCurrentModel(c *gin.Context) {
	c.JSON(http.StatusOK, h.current.Current())
}

type switchRequest struct {
	ModelType string `json:"model_type" binding:"required"`
}

// SwitchModel handles POST /switch-model.
func (h *Handler) SwitchModel(c *gin.Context) {
	var req switchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}
	id, err := h.current.Switch(req.ModelType)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.log.Info("current model switched", zap.String("model", string(id)))
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": fmt.Sprintf("Switched to %s model", id),
	})
}

// GetGallery handles GET /data/{variable}/{base_time}.
func (h *Handler) GetGallery(c *gin.Context) {
	plot, err := domain.ParsePlotType(c.Param("variable"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	base, err := strconv.ParseInt(c.Param("base_time"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid base time: %v", err)})
		return
	}
	aligned, err := h.gallery.Compare(c.Request.Context(), plot, base)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, aligned)
}

// GetSampleImage handles GET /data/rand/init_random_image/{model}. The body
// is the image path below the static mount as a JSON string.
func (h *Handler) GetSampleImage(c *gin.Context) {
	model, err := domain.ParseModel(c.Param("model"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	rel, err := h.gallery.Sample(model)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, "/"+rel)
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// statusClientClosedRequest is reported when the client went away before the
// response was ready.
const statusClientClosedRequest = 499

// statusFor maps an error code to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	switch domain.CodeOf(err) {
	case domain.CodeInvalidArgument:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeUpstream:
		return http.StatusBadGateway
	case domain.CodeNotSupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	switch {
	case status == statusClientClosedRequest, status == http.StatusGatewayTimeout:
		h.log.Info("request abandoned",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	case status >= http.StatusInternalServerError:
		h.log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
