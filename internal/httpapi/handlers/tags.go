package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cognicore/tagvault/internal/httpapi/middleware"
	"github.com/cognicore/tagvault/internal/httpapi/response"
	"github.com/cognicore/tagvault/internal/logger"
	"github.com/cognicore/tagvault/pkg/tagvault/capture"
	"github.com/cognicore/tagvault/pkg/tagvault/ingest"
	"github.com/cognicore/tagvault/pkg/tagvault/internalerr"
	"github.com/cognicore/tagvault/pkg/tagvault/query"
	"github.com/cognicore/tagvault/pkg/tagvault/store"
	"github.com/cognicore/tagvault/pkg/tagvault/taxonomy"
)

// Ingester is the ingestion entry point used by the handlers.
type Ingester interface {
	Ingest(ctx context.Context, candidates []string) (ingest.Result, error)
}

type TagHandler struct {
	ingester     Ingester
	store        store.Store
	tax          *taxonomy.Taxonomy
	log          *logger.Logger
	maxBodyBytes int64
}

func NewTagHandler(ing Ingester, st store.Store, tax *taxonomy.Taxonomy, log *logger.Logger, maxBodyBytes int64) *TagHandler {
	if tax == nil {
		tax = taxonomy.Default()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TagHandler{
		ingester:     ing,
		store:        st,
		tax:          tax,
		log:          log,
		maxBodyBytes: maxBodyBytes,
	}
}

type genresRequest struct {
	Genres json.RawMessage `json:"genres"`
}

type ingestResponse struct {
	Message string `json:"message"`
	ingest.Result
}

type tagView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type categoryView struct {
	Position    int    `json:"position"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Count       int    `json:"count"`
}

// POST /api/genres
func (h *TagHandler) IngestGenres(c *gin.Context) {
	h.limitBody(c)

	var req genresRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		if h.tooLarge(c, err) {
			return
		}
		h.invalid(c, errors.New("request body must be a JSON object"))
		return
	}

	var genres []string
	if len(req.Genres) == 0 || json.Unmarshal(req.Genres, &genres) != nil || len(genres) == 0 {
		h.invalid(c, errors.New("invalid input: 'genres' must be a non-empty array of strings"))
		return
	}

	h.ingest(c, genres)
}

// POST /api/capture
func (h *TagHandler) Capture(c *gin.Context) {
	h.limitBody(c)

	payload, err := c.GetRawData()
	if err != nil {
		if h.tooLarge(c, err) {
			return
		}
		h.invalid(c, fmt.Errorf("read body: %w", err))
		return
	}
	names, err := capture.Extract(payload)
	if err != nil {
		h.invalid(c, err)
		return
	}
	if len(names) == 0 {
		h.invalid(c, errors.New("capture payload contains no tags"))
		return
	}

	h.ingest(c, names)
}

func (h *TagHandler) ingest(c *gin.Context, names []string) {
	res, err := h.ingester.Ingest(c.Request.Context(), names)
	switch {
	case errors.Is(err, internalerr.ErrInvalidInput):
		h.invalid(c, err)
		return
	case err != nil:
		h.log.Error("ingest failed",
			"request_id", middleware.GetRequestID(c),
			"received", res.Received,
			"added", res.Added,
			"error", err,
		)
		_ = c.Error(err)
		response.RespondInternal(c)
		return
	}

	if res.New == 0 {
		c.JSON(http.StatusOK, ingestResponse{Message: "All received tags already exist.", Result: res})
		return
	}
	c.JSON(http.StatusCreated, ingestResponse{
		Message: fmt.Sprintf("Successfully added %d new tags.", res.Added),
		Result:  res,
	})
}

// GET /api/genres
func (h *TagHandler) ListGenres(c *gin.Context) {
	sortBy, err := query.ParseSort(c.Query("sort"))
	if err != nil {
		h.invalid(c, err)
		return
	}
	filter := query.Filter{
		Search:     c.Query("q"),
		Categories: c.QueryArray("category"),
		Sort:       sortBy,
	}

	tags, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		h.log.Error("list tags failed", "request_id", middleware.GetRequestID(c), "error", err)
		_ = c.Error(err)
		response.RespondInternal(c)
		return
	}

	tags = filter.Apply(tags)
	out := make([]tagView, 0, len(tags))
	for _, tag := range tags {
		out = append(out, tagView{ID: tag.ID, Name: tag.Name, Category: tag.Category})
	}
	response.RespondOK(c, out)
}

// GET /api/categories
func (h *TagHandler) ListCategories(c *gin.Context) {
	counts, err := h.store.CategoryCounts(c.Request.Context())
	if err != nil {
		h.log.Error("count categories failed", "request_id", middleware.GetRequestID(c), "error", err)
		_ = c.Error(err)
		response.RespondInternal(c)
		return
	}

	entries := h.tax.Entries()
	out := make([]categoryView, 0, len(entries))
	for i, e := range entries {
		out = append(out, categoryView{
			Position:    i + 1,
			Label:       e.Label,
			Description: e.Description,
			Count:       counts[e.Label],
		})
	}
	response.RespondOK(c, out)
}

func (h *TagHandler) invalid(c *gin.Context, err error) {
	response.RespondError(c, http.StatusBadRequest, response.CodeInvalidInput, err)
}

// tooLarge answers 413 when err comes from the body size limit.
func (h *TagHandler) tooLarge(c *gin.Context, err error) bool {
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) {
		return false
	}
	response.RespondError(c, http.StatusRequestEntityTooLarge, response.CodeTooLarge,
		fmt.Errorf("request body exceeds %d bytes", maxErr.Limit))
	return true
}

func (h *TagHandler) limitBody(c *gin.Context) {
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}
}
