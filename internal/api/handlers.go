package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"salesboard/internal/engine"
	"salesboard/internal/export"
	"salesboard/internal/models"
	"salesboard/internal/telemetry"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type snapshot struct {
	dashboard *engine.Dashboard
	loadedAt  time.Time
}

// Handler serves the dashboard panels. It answers 503 until SetData
// publishes the first dashboard.
type Handler struct {
	data    atomic.Pointer[snapshot]
	topN    int
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

func NewHandler(topN int, logger zerolog.Logger, metrics *telemetry.Metrics) *Handler {
	if topN <= 0 {
		topN = engine.DefaultTopN
	}
	return &Handler{topN: topN, logger: logger, metrics: metrics}
}

// SetData publishes d to all subsequent requests.
func (h *Handler) SetData(d *engine.Dashboard) {
	h.data.Store(&snapshot{dashboard: d, loadedAt: time.Now().UTC()})
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/status", h.GetStatus)
	api.GET("/periods", h.GetPeriods)
	api.GET("/periods/:current/references", h.GetReferences)
	api.GET("/sales/monthly", h.GetMonthlySales)
	api.GET("/sales/weekly/all", h.GetAllWeeklySales)
	api.GET("/sales/total", h.GetTotalSales)
	api.GET("/sales/holiday", h.GetHolidaySales)
	api.GET("/sales/weekly", h.GetWeeklySales)
	api.GET("/stores/count", h.GetStoreCount)
	api.GET("/stores/top", h.GetTopStores)
	api.GET("/departments/top", h.GetTopDepartments)
	api.GET("/dashboard", h.GetDashboard)
	api.GET("/export.xlsx", h.GetExport)
}

type selectionQuery struct {
	Current   string `query:"current"`
	Reference string `query:"reference"`
	Limit     int    `query:"limit" validate:"omitempty,min=1,max=50"`
}

type storesQuery struct {
	Period string `query:"period"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=50"`
}

type indicatorResponse struct {
	CurrentPeriod   string `json:"current_period"`
	ReferencePeriod string `json:"reference_period"`
	models.Indicator
}

type countResponse struct {
	CurrentPeriod   string `json:"current_period"`
	ReferencePeriod string `json:"reference_period"`
	models.CountIndicator
}

var errNotLoaded = echo.NewHTTPError(http.StatusServiceUnavailable, "dataset is still loading")

func (h *Handler) dashboard() (*engine.Dashboard, error) {
	s := h.data.Load()
	if s == nil {
		h.metrics.ObserveComparison("not_ready")
		return nil, errNotLoaded
	}
	return s.dashboard, nil
}

// selection binds and validates the period query, filling omitted selectors
// with the first label and its first reference option.
func (h *Handler) selection(c echo.Context) (*engine.Dashboard, selectionQuery, error) {
	var q selectionQuery
	d, err := h.dashboard()
	if err != nil {
		return nil, q, err
	}
	if err := c.Bind(&q); err != nil {
		return nil, q, err
	}
	if err := c.Validate(&q); err != nil {
		return nil, q, err
	}
	if q.Current == "" {
		q.Current = d.DefaultCurrent()
	}
	if q.Reference == "" {
		if q.Reference, err = d.DefaultReference(q.Current); err != nil {
			return nil, q, h.fail(c, err)
		}
	}
	if q.Limit == 0 {
		q.Limit = h.topN
	}
	return d, q, nil
}

// fail maps engine errors onto HTTP responses.
func (h *Handler) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, engine.ErrIncompleteSelection):
		h.metrics.ObserveComparison("incomplete")
		return echo.NewHTTPError(http.StatusNoContent).SetInternal(err)
	case errors.Is(err, engine.ErrUnknownPeriod):
		h.logger.Warn().Err(err).Str("route", c.Path()).Msg("period lookup miss")
		h.metrics.ObserveComparison("unknown_period")
		return echo.NewHTTPError(http.StatusNotFound, err.Error()).SetInternal(err)
	}
	h.metrics.ObserveComparison("error")
	return err
}

func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func paginate[T any](c echo.Context, rows []T) error {
	total := len(rows)
	limit, offset := getPaginationParams(c, total)

	page := []T{}
	if offset < total {
		end := min(offset+limit, total)
		page = rows[offset:end]
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   page,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) GetStatus(c echo.Context) error {
	s := h.data.Load()
	if s == nil {
		return c.JSON(http.StatusServiceUnavailable, models.Status{})
	}
	store := s.dashboard.Store()
	return c.JSON(http.StatusOK, models.Status{
		Ready:       true,
		Rows:        store.Len(),
		Periods:     len(store.PeriodDict),
		Fingerprint: fingerprint(store),
		LoadedAt:    s.loadedAt,
	})
}

func (h *Handler) GetPeriods(c echo.Context) error {
	d, err := h.dashboard()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.PeriodList{Periods: d.Periods(), DefaultCurrent: d.DefaultCurrent()})
}

func (h *Handler) GetReferences(c echo.Context) error {
	d, err := h.dashboard()
	if err != nil {
		return err
	}
	current := c.Param("current")
	opts, err := d.PeriodOptions(current)
	if err != nil {
		return h.fail(c, err)
	}
	out := models.ReferenceOptions{Current: current, Options: opts}
	if len(opts) > 0 {
		out.DefaultReference = opts[0]
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetMonthlySales(c echo.Context) error {
	d, err := h.dashboard()
	if err != nil {
		return err
	}
	return paginate(c, d.Monthly())
}

func (h *Handler) GetAllWeeklySales(c echo.Context) error {
	d, err := h.dashboard()
	if err != nil {
		return err
	}
	return paginate(c, d.Weekly())
}

func (h *Handler) GetTotalSales(c echo.Context) error {
	return h.indicator(c, (*engine.Dashboard).TotalSales)
}

func (h *Handler) GetHolidaySales(c echo.Context) error {
	return h.indicator(c, (*engine.Dashboard).HolidaySales)
}

func (h *Handler) indicator(c echo.Context, get func(*engine.Dashboard, string, string) (float64, float64, error)) error {
	d, q, err := h.selection(c)
	if err != nil {
		return err
	}
	cur, ref, err := get(d, q.Current, q.Reference)
	if err != nil {
		return h.fail(c, err)
	}
	h.metrics.ObserveComparison("ok")
	return c.JSON(http.StatusOK, indicatorResponse{
		CurrentPeriod:   q.Current,
		ReferencePeriod: q.Reference,
		Indicator:       withDisplay(engine.Indicator(cur, ref)),
	})
}

func (h *Handler) GetStoreCount(c echo.Context) error {
	d, q, err := h.selection(c)
	if err != nil {
		return err
	}
	cur, ref, err := d.StoreCount(q.Current, q.Reference)
	if err != nil {
		return h.fail(c, err)
	}
	h.metrics.ObserveComparison("ok")
	return c.JSON(http.StatusOK, countResponse{
		CurrentPeriod:   q.Current,
		ReferencePeriod: q.Reference,
		CountIndicator:  withCountDisplay(models.CountIndicator{Current: cur, Reference: ref, Delta: cur - ref}),
	})
}

func (h *Handler) GetWeeklySales(c echo.Context) error {
	d, q, err := h.selection(c)
	if err != nil {
		return err
	}
	cur, ref, err := d.WeeklySeries(q.Current, q.Reference)
	if err != nil {
		return h.fail(c, err)
	}
	h.metrics.ObserveComparison("ok")
	return c.JSON(http.StatusOK, models.WeeklyComparison{Current: cur, Reference: ref})
}

func (h *Handler) GetTopDepartments(c echo.Context) error {
	d, q, err := h.selection(c)
	if err != nil {
		return err
	}
	rows, err := d.TopDepartments(q.Current, q.Reference, q.Limit)
	if err != nil {
		return h.fail(c, err)
	}
	h.metrics.ObserveComparison("ok")
	return c.JSON(http.StatusOK, models.DeptChart{
		Header: engine.DeptHeader(q.Current, q.Reference),
		Rows:   rows,
		Range:  deptRange(rows),
	})
}

func (h *Handler) GetTopStores(c echo.Context) error {
	d, err := h.dashboard()
	if err != nil {
		return err
	}
	var q storesQuery
	if err := c.Bind(&q); err != nil {
		return err
	}
	if err := c.Validate(&q); err != nil {
		return err
	}
	if q.Period == "" {
		q.Period = d.DefaultCurrent()
	}
	if q.Limit == 0 {
		q.Limit = h.topN
	}
	rows, err := d.TopStores(q.Period, q.Limit)
	if err != nil {
		return h.fail(c, err)
	}
	h.metrics.ObserveComparison("ok")
	return c.JSON(http.StatusOK, models.StoreChart{Title: q.Period, Rows: rows, Range: storeRange(rows)})
}

// comparison evaluates every panel for the request's selection.
func (h *Handler) comparison(c echo.Context) (*engine.Dashboard, *models.Comparison, error) {
	d, q, err := h.selection(c)
	if err != nil {
		return nil, nil, err
	}
	cmp, err := d.Compare(q.Current, q.Reference, q.Limit)
	if err != nil {
		return nil, nil, h.fail(c, err)
	}
	h.metrics.ObserveComparison("ok")
	present(cmp)
	return d, cmp, nil
}

func (h *Handler) GetDashboard(c echo.Context) error {
	d, cmp, err := h.comparison(c)
	if err != nil {
		return err
	}
	etag := `"` + fingerprint(d.Store()) + `"`
	c.Response().Header().Set("ETag", etag)
	if c.Request().Header.Get("If-None-Match") == etag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSON(http.StatusOK, cmp)
}

func (h *Handler) GetExport(c echo.Context) error {
	d, cmp, err := h.comparison(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, d, cmp); err != nil {
		return fmt.Errorf("api: export workbook: %w", err)
	}
	name := fmt.Sprintf("salesboard_%s_%s.xlsx", cmp.Current, cmp.Reference)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func fingerprint(store *engine.ColumnStore) string {
	return fmt.Sprintf("%016x", store.Fingerprint)
}
