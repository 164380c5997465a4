package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cdash/internal/aggregate"
	"cdash/internal/api"
	"cdash/internal/dashboard"
	apierrors "cdash/internal/errors"
	"cdash/internal/filter"
	"cdash/internal/format"
	"cdash/internal/health"
	"cdash/internal/querycache"
	"cdash/internal/storage"
	"cdash/internal/summary"
)

// Handlers serves the dashboard routes.
type Handlers struct {
	svc     *dashboard.Service
	monitor *health.Monitor
	ledger  *storage.Storage
	logger  *zap.Logger
	now     func() time.Time
}

// NewHandlers wires the handlers. monitor and ledger may be nil.
func NewHandlers(svc *dashboard.Service, monitor *health.Monitor, ledger *storage.Storage, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		svc:     svc,
		monitor: monitor,
		ledger:  ledger,
		logger:  logger,
		now:     time.Now,
	}
}

// fail maps a query error to an HTTP answer.
func (h *Handlers) fail(c *gin.Context, err error) {
	code := http.StatusBadGateway
	switch {
	case apierrors.IsNotFound(err):
		code = http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusServiceUnavailable
	case errors.Is(err, querycache.ErrMutationPending):
		code = http.StatusConflict
	case errors.Is(err, dashboard.ErrEmptyResponse):
		code = http.StatusBadRequest
	}
	_ = c.Error(err)
	c.JSON(code, gin.H{"error": apierrors.QueryFailed(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid complaint id")
		return 0, false
	}
	return id, true
}

// GetHealth handles GET /health.
func (h *Handlers) GetHealth(c *gin.Context) {
	if h.monitor == nil {
		c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
		return
	}
	st := h.monitor.GetStatus()
	code := http.StatusOK
	if st.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, st)
}

// GetOverview handles GET /api/overview. Failed panels are reported inside
// the body; the request itself only fails when it is cancelled.
func (h *Handlers) GetOverview(c *gin.Context) {
	o, err := h.svc.Overview(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// FilterFromQuery reads the filter slots from search, status, category and
// sentiment. An absent sentiment leaves that slot unconstrained.
func FilterFromQuery(c *gin.Context) filter.State {
	state := filter.New().
		WithSearch(c.Query("search")).
		WithStatus(c.DefaultQuery("status", filter.All)).
		WithCategory(c.DefaultQuery("category", filter.All))
	if s, ok := c.GetQuery("sentiment"); ok && s != "" && s != filter.All {
		state = state.WithSentiment(&s)
	}
	return state
}

// GetComplaints handles GET /api/complaints.
func (h *Handlers) GetComplaints(c *gin.Context) {
	table, err := h.svc.ComplaintTable(c.Request.Context(), FilterFromQuery(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

// GetComplaint handles GET /api/complaints/:id.
func (h *Handlers) GetComplaint(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	r, err := h.svc.Complaint(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard.NewRow(r))
}

// PostGenerateResponse handles POST /api/complaints/:id/response.
func (h *Handlers) PostGenerateResponse(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	resp, err := h.svc.GenerateResponse(id).Execute(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"complaint_id": resp.ComplaintID,
		"response":     resp.Text(),
		"coupon":       resp.Coupon,
	})
}

// GetResponse handles GET /api/complaints/:id/response, the stored reply.
func (h *Handlers) GetResponse(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Response(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type editRequest struct {
	Text string `json:"text" binding:"required"`
}

// PutResponse handles PUT /api/complaints/:id/response with {"text": "..."}.
func (h *Handlers) PutResponse(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	text, err := h.svc.EditResponse(id, req.Text).Execute(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"complaint_id": id, "edited_response": text})
}

func dimension(c *gin.Context) (aggregate.DimensionExtractor, bool) {
	switch c.DefaultQuery("dimension", "tag") {
	case "tag":
		return aggregate.TagDimension, true
	case "category":
		return aggregate.CategoryDimension, true
	default:
		badRequest(c, "dimension must be tag or category")
		return nil, false
	}
}

// GetMatrix handles GET /api/matrix?dimension=tag|category.
func (h *Handlers) GetMatrix(c *gin.Context) {
	extract, ok := dimension(c)
	if !ok {
		return
	}
	m, err := h.svc.Matrix(c.Request.Context(), extract)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard.NewMatrixView(m))
}

// GetMatrixPNG handles GET /api/matrix.png, the heatmap as an image.
func (h *Handlers) GetMatrixPNG(c *gin.Context) {
	extract, ok := dimension(c)
	if !ok {
		return
	}
	m, err := h.svc.Matrix(c.Request.Context(), extract)
	if err != nil {
		h.fail(c, err)
		return
	}
	if m.Empty() {
		c.JSON(http.StatusNotFound, gin.H{"error": dashboard.NoData})
		return
	}
	title := "Tags x Status"
	if c.Query("dimension") == "category" {
		title = "Categorias x Status"
	}
	img, err := summary.RenderHeatmap(m, title, h.now())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", img)
}

// GetBenchmark handles GET /api/benchmark?competitor_id=&limit=&expanded=.
func (h *Handlers) GetBenchmark(c *gin.Context) {
	var params api.BestResponsesParams
	if v := c.Query("competitor_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(c, "invalid competitor_id")
			return
		}
		params.CompetitorID = id
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(c, "invalid limit")
			return
		}
		params.Limit = n
	}
	expanded := &format.Expander{}
	if v := c.Query("expanded"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(c, "invalid expanded id")
			return
		}
		expanded.Toggle(id)
	}

	b, err := h.svc.Benchmark(c.Request.Context(), params, expanded)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type ledgerEntry struct {
	ComplaintID int64     `json:"complaint_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Coupon      string    `json:"coupon,omitempty"`
}

// GetResponses handles GET /api/responses, the generated response ledger.
func (h *Handlers) GetResponses(c *gin.Context) {
	out := []ledgerEntry{}
	if h.ledger != nil {
		for _, e := range h.ledger.List() {
			out = append(out, ledgerEntry{ComplaintID: e.ComplaintID, GeneratedAt: e.GeneratedAt, Coupon: e.Coupon})
		}
	}
	c.JSON(http.StatusOK, gin.H{"total": len(out), "responses": out})
}

// PostInvalidate handles POST /api/cache/invalidate?prefix=a&prefix=b/c.
// Without a prefix every entry is invalidated.
func (h *Handlers) PostInvalidate(c *gin.Context) {
	raw := c.QueryArray("prefix")
	prefixes := make([]querycache.Key, 0, len(raw))
	for _, p := range raw {
		prefixes = append(prefixes, querycache.ParseKey(p))
	}
	if len(prefixes) == 0 {
		prefixes = append(prefixes, querycache.Key{})
	}

	n := h.svc.Cache().Invalidate(prefixes...)
	h.logger.Info("cache invalidated over HTTP", zap.Strings("prefixes", raw), zap.Int("entries", n))
	c.JSON(http.StatusOK, gin.H{"invalidated": n})
}
