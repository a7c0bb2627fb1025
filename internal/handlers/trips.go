package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/cabtrips/internal/backend"
	"github.com/ukydev/cabtrips/internal/export"
	"github.com/ukydev/cabtrips/internal/middleware"
	"github.com/ukydev/cabtrips/internal/models"
	"github.com/ukydev/cabtrips/internal/session"
	"github.com/ukydev/cabtrips/internal/triplist"
)

var ErrViewNotOpen = errors.New("view is not open")

const (
	dateLayout = "2006-01-02"
	xlsxType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// DateBackend looks trips up by day for admins.
type DateBackend interface {
	TripsByDate(ctx context.Context, token string, day time.Time) ([]map[string]any, error)
}

// TripsPage is the answer of a one-shot trip query.
type TripsPage struct {
	Role       models.Role           `json:"role"`
	Trips      []triplist.TripRow    `json:"trips"`
	Stats      models.AggregateStats `json:"stats"`
	Sort       models.SortSpec       `json:"sort"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
	TotalItems int                   `json:"total_items"`
	Pager      []triplist.PageItem   `json:"pager"`
	Stale      bool                  `json:"stale"`
	Message    string                `json:"message,omitempty"`
}

// ActionResponse is the trip after an action plus the refreshed view.
type ActionResponse struct {
	Trip     models.Trip       `json:"trip"`
	Snapshot triplist.Snapshot `json:"snapshot"`
}

// TripsHandler serves trip views and one-shot trip queries.
type TripsHandler struct {
	views     *ViewRegistry
	source    TripSource
	dates     DateBackend
	formatter export.Formatter
	clock     triplist.Clock
	loc       *time.Location
	pageSize  int
}

// NewTripsHandler returns a handler over the registry's views.
func NewTripsHandler(views *ViewRegistry, source TripSource, dates DateBackend, opts ViewOptions) *TripsHandler {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &TripsHandler{
		views:     views,
		source:    source,
		dates:     dates,
		formatter: export.Formatter{Location: loc},
		clock:     clock,
		loc:       loc,
		pageSize:  opts.PageSize,
	}
}

// view resolves the view named by the request, opening and loading it on
// first use.
func (h *TripsHandler) view(w http.ResponseWriter, r *http.Request) (*triplist.View, bool) {
	s, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "Session not found", http.StatusUnauthorized)
		return nil, false
	}
	role := models.Role(chi.URLParam(r, "role"))
	owner, err := ViewOwner(s, role, r.URL.Query().Get("user"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	v, created, err := h.views.Open(s, role, owner)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if created {
		if err := v.Refresh(r.Context()); err != nil && !h.tolerable(err) {
			h.views.CloseView(s.ID, role, owner)
			writeError(w, r, err)
			return nil, false
		}
	}
	return v, true
}

// tolerable reports whether a refresh error leaves the view usable. The
// failure is then shown as the snapshot's message.
func (h *TripsHandler) tolerable(err error) bool {
	return !errors.Is(err, backend.ErrUnauthorized) &&
		!errors.Is(err, triplist.ErrStaleResponse) &&
		!errors.Is(err, triplist.ErrViewClosed)
}

// Snapshot returns the current page of a view.
func (h *TripsHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

// Refresh reloads a view from the backend.
func (h *TripsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	if err := v.Refresh(r.Context()); err != nil && !h.tolerable(err) {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

// SetCriteria replaces the filters of a view.
func (h *TripsHandler) SetCriteria(w http.ResponseWriter, r *http.Request) {
	var c models.FilterCriteria
	if err := decodeJSON(r, &c); err != nil {
		badRequest(w, err.Error())
		return
	}
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	if err := v.SetCriteria(c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

// SearchRequest changes the search term. Flush applies it without waiting
// for the debounce delay.
type SearchRequest struct {
	Term  string `json:"term"`
	Flush bool   `json:"flush"`
}

// SetSearch schedules a search term change.
func (h *TripsHandler) SetSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	v.SetSearch(req.Term)
	status := http.StatusAccepted
	if req.Flush {
		v.FlushSearch()
		status = http.StatusOK
	}
	writeJSON(w, status, v.Snapshot())
}

// ToggleSort selects the sort key, flipping direction when already active.
func (h *TripsHandler) ToggleSort(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	if _, err := v.ToggleSort(models.SortKey(chi.URLParam(r, "key"))); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

// Page moves to the next, previous or a numbered page.
func (h *TripsHandler) Page(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")
	var n int
	if target != "next" && target != "prev" {
		var err error
		if n, err = strconv.Atoi(target); err != nil {
			badRequest(w, "page must be next, prev or a number")
			return
		}
	}
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	switch target {
	case "next":
		v.Next()
	case "prev":
		v.Prev()
	default:
		v.Goto(n)
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

// PageSizeRequest changes how many trips a page holds.
type PageSizeRequest struct {
	Size int `json:"size"`
}

// SetPageSize changes the page size and returns to the first page.
func (h *TripsHandler) SetPageSize(w http.ResponseWriter, r *http.Request) {
	var req PageSizeRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.Size < 1 || req.Size > 100 {
		writeError(w, r, models.ValidationErrors{"size": "page size must be between 1 and 100"})
		return
	}
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	v.SetPageSize(req.Size)
	writeJSON(w, http.StatusOK, v.Snapshot())
}

// Close closes a view.
func (h *TripsHandler) Close(w http.ResponseWriter, r *http.Request) {
	s, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "Session not found", http.StatusUnauthorized)
		return
	}
	role := models.Role(chi.URLParam(r, "role"))
	owner, err := ViewOwner(s, role, r.URL.Query().Get("user"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !h.views.CloseView(s.ID, role, owner) {
		writeError(w, r, ErrViewNotOpen)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Action runs a trip action such as accept, complete or rate.
func (h *TripsHandler) Action(w http.ResponseWriter, r *http.Request) {
	action := triplist.Action(chi.URLParam(r, "action"))
	var args triplist.ActionArgs
	switch action {
	case triplist.ActionAccept, triplist.ActionStart, triplist.ActionComplete, triplist.ActionCancel, triplist.ActionRebook:
	case triplist.ActionRate:
		if err := decodeJSON(r, &args); err != nil {
			badRequest(w, err.Error())
			return
		}
		if args.Rating < 1 || args.Rating > 5 {
			writeError(w, r, models.ValidationErrors{"rating": "rating must be between 1 and 5"})
			return
		}
	default:
		badRequest(w, fmt.Sprintf("unknown action %q", action))
		return
	}

	v, ok := h.view(w, r)
	if !ok {
		return
	}
	trip, err := v.Perform(r.Context(), chi.URLParam(r, "id"), action, args)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{Trip: trip, Snapshot: v.Snapshot()})
}

// ExportCSV downloads the filtered trips of a view as CSV.
func (h *TripsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	name := export.Filename(v.Profile().Role, h.clock().In(h.loc), "csv")
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := h.formatter.WriteCSV(w, v.Filtered()); err != nil {
		log.WithError(err).Warn("Failed to write CSV export")
	}
}

// ExportXLSX downloads the filtered trips and their totals as a workbook.
func (h *TripsHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.formatter.WriteXLSX(&buf, v.Filtered(), v.Stats()); err != nil {
		writeError(w, r, err)
		return
	}
	name := export.Filename(v.Profile().Role, h.clock().In(h.loc), "xlsx")
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		log.WithError(err).Warn("Failed to write XLSX export")
	}
}

// List runs the whole pipeline once from query parameters, without keeping
// a view. Admins may pass date=YYYY-MM-DD to look trips up by day.
func (h *TripsHandler) List(w http.ResponseWriter, r *http.Request) {
	s, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "Session not found", http.StatusUnauthorized)
		return
	}
	q := r.URL.Query()
	role := s.Role
	if raw := q.Get("role"); raw != "" {
		role = models.Role(raw)
	}
	owner, err := ViewOwner(s, role, q.Get("user"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	profile, _ := h.views.opts.Profile(role)

	criteria, spec, page, size, err := ParseTripQuery(q, h.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if size == 0 {
		size = h.pageSize
	}

	res, err := h.load(r.Context(), s, q.Get("date"), owner, profile)
	if err != nil {
		writeError(w, r, err)
		return
	}

	now := h.clock()
	trips := profile.Normalizer(h.loc).NormalizeAll(res.Records)
	filtered := triplist.Sort(triplist.Filter(trips, criteria, now), spec)
	pager := triplist.NewPaginator(size)
	pager.SetTotal(len(filtered))
	if page > 0 {
		pager.Goto(page)
	}

	visible := triplist.Paginate(pager, filtered)
	rows := make([]triplist.TripRow, 0, len(visible))
	for _, t := range visible {
		rows = append(rows, triplist.TripRow{Trip: t, Actions: profile.Actions(t)})
	}
	writeJSON(w, http.StatusOK, TripsPage{
		Role:       role,
		Trips:      rows,
		Stats:      triplist.Aggregate(filtered),
		Sort:       spec,
		Page:       pager.Page(),
		PageSize:   pager.PageSize(),
		TotalPages: pager.TotalPages(),
		TotalItems: pager.TotalItems(),
		Pager:      pager.Window(),
		Stale:      res.Stale,
		Message:    res.Message,
	})
}

func (h *TripsHandler) load(ctx context.Context, s *session.Session, date, owner string, profile triplist.Profile) (triplist.FetchResult, error) {
	if date == "" {
		return h.source.Fetch(ctx, s.Token, owner, profile.Scope)
	}
	if profile.Scope != triplist.ScopeAll {
		return triplist.FetchResult{}, models.ValidationErrors{"date": "date lookup is only available in the admin view"}
	}
	day, err := time.ParseInLocation(dateLayout, date, h.loc)
	if err != nil {
		return triplist.FetchResult{}, models.ValidationErrors{"date": "date must be YYYY-MM-DD"}
	}
	records, err := h.dates.TripsByDate(ctx, s.Token, day)
	if err != nil {
		return triplist.FetchResult{}, err
	}
	return triplist.FetchResult{Records: records}, nil
}

// ParseTripQuery reads filter, sort and page parameters. Dates are days in
// loc. Page and size are 0 when absent.
func ParseTripQuery(q url.Values, loc *time.Location) (models.FilterCriteria, models.SortSpec, int, int, error) {
	errs := models.ValidationErrors{}
	c := models.FilterCriteria{
		Range:   models.DateRange(strings.ToLower(q.Get("range"))),
		Status:  strings.ToLower(q.Get("status")),
		Payment: strings.ToLower(q.Get("payment")),
		Search:  q.Get("search"),
	}
	day := func(field string) *time.Time {
		raw := q.Get(field)
		if raw == "" {
			return nil
		}
		t, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			errs.Add(field, "date must be YYYY-MM-DD")
			return nil
		}
		return &t
	}
	c.From = day("from")
	c.To = day("to")
	number := func(field string) float64 {
		raw := q.Get(field)
		if raw == "" {
			return 0
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs.Add(field, "must be a number")
		}
		return f
	}
	c.MinFare = number("min_fare")
	c.MaxFare = number("max_fare")

	spec := models.DefaultSort
	if key := q.Get("sort"); key != "" {
		spec.Key = models.SortKey(key)
		if !spec.Key.IsValid() {
			errs.Add("sort", "sort must be date, fare, distance or rating")
		}
	}
	switch dir := models.SortDirection(q.Get("dir")); dir {
	case "":
	case models.Ascending, models.Descending:
		spec.Dir = dir
	default:
		errs.Add("dir", "dir must be asc or desc")
	}

	integer := func(field string) int {
		raw := q.Get(field)
		if raw == "" {
			return 0
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			errs.Add(field, "must be a positive integer")
			return 0
		}
		return n
	}
	page := integer("page")
	size := integer("page_size")

	if len(errs) == 0 {
		if err := triplist.ValidateCriteria(c); err != nil {
			return c, spec, 0, 0, err
		}
	}
	return c, spec, page, size, errs.Err()
}
