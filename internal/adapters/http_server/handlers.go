package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"ratecascade/internal/app"
	"ratecascade/internal/domain"
)

type Handlers struct{ Svc *app.CascadeService }

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/hotels/{hotelID}/assignments", h.applyAssignment)
	s.mux.Post("/v1/hotels/{hotelID}/cascade/external", h.cascadeExternal)
	s.mux.Post("/v1/hotels/{hotelID}/reconcile", h.reconcile)
	s.mux.Get("/v1/hotels/{hotelID}/prices", h.listPrices)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func hotelID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "hotelID"), 10, 64)
	return id, err == nil && id > 0
}

func parseDate(s string) (time.Time, error) { return time.Parse("2006-01-02", s) }

func parseRange(from, to string) (domain.DateRange, error) {
	f, err := parseDate(from)
	if err != nil {
		return domain.DateRange{}, err
	}
	t, err := parseDate(to)
	if err != nil {
		return domain.DateRange{}, err
	}
	return domain.NewDateRange(f, t), nil
}

type affectedResponse struct {
	AffectedRows int               `json:"affectedRows"`
	Tuples       []domain.TupleRef `json:"tuples"`
}

func writeAffected(w http.ResponseWriter, res domain.AffectedResult) {
	writeJSON(w, http.StatusOK, affectedResponse{AffectedRows: res.Rows, Tuples: res.Tuples})
}

func mapServiceErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAssignment):
		writeProblem(w, http.StatusBadRequest, "Invalid Assignment", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		log.Error().Err(err).Msg("cascade request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "cascade failed")
	}
}

type assignmentRequest struct {
	RoomProductID       int64    `json:"roomProductId"`
	RatePlanID          int64    `json:"ratePlanId"`
	Method              string   `json:"method"`
	AdjustmentValue     float64  `json:"adjustmentValue"`
	AdjustmentUnit      string   `json:"adjustmentUnit"`
	TargetRoomProductID *int64   `json:"targetRoomProductId,omitempty"`
	TargetRatePlanID    *int64   `json:"targetRatePlanId,omitempty"`
	PMSCode             *string  `json:"pmsCode,omitempty"`
	FixedPrice          *float64 `json:"fixedPrice,omitempty"`
	From                string   `json:"from"`
	To                  string   `json:"to"`
}

func (h *Handlers) applyAssignment(w http.ResponseWriter, r *http.Request) {
	hid, ok := hotelID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid Hotel", "hotelID must be a positive number")
		return
	}
	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	rng, err := parseRange(req.From, req.To)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Range", "from/to must be YYYY-MM-DD")
		return
	}
	a := domain.PricingAssignment{
		HotelID:             hid,
		RoomProductID:       req.RoomProductID,
		RatePlanID:          req.RatePlanID,
		Method:              domain.PricingMethod(req.Method),
		AdjustmentValue:     req.AdjustmentValue,
		AdjustmentUnit:      domain.AdjustmentUnit(req.AdjustmentUnit),
		TargetRoomProductID: req.TargetRoomProductID,
		TargetRatePlanID:    req.TargetRatePlanID,
		PMSCode:             req.PMSCode,
		FixedPrice:          req.FixedPrice,
	}
	res, err := h.Svc.ApplyPricingAssignment(r.Context(), a, rng)
	if err != nil {
		mapServiceErr(w, err)
		return
	}
	writeAffected(w, res)
}

type externalRequest struct {
	PMSRateCode     string `json:"pmsRateCode"`
	RoomProductCode string `json:"roomProductCode,omitempty"`
	From            string `json:"from"`
	To              string `json:"to"`
}

func (h *Handlers) cascadeExternal(w http.ResponseWriter, r *http.Request) {
	hid, ok := hotelID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid Hotel", "hotelID must be a positive number")
		return
	}
	var req externalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if req.PMSRateCode == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "pmsRateCode is required")
		return
	}
	rng, err := parseRange(req.From, req.To)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Range", "from/to must be YYYY-MM-DD")
		return
	}
	res, err := h.Svc.CascadeFromExternalUpdate(r.Context(), hid, req.PMSRateCode, req.RoomProductCode, rng)
	if err != nil {
		mapServiceErr(w, err)
		return
	}
	writeAffected(w, res)
}

type reconcileRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (h *Handlers) reconcile(w http.ResponseWriter, r *http.Request) {
	hid, ok := hotelID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid Hotel", "hotelID must be a positive number")
		return
	}
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	rng, err := parseRange(req.From, req.To)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Range", "from/to must be YYYY-MM-DD")
		return
	}
	res, err := h.Svc.ReconcileAll(r.Context(), hid, rng)
	if err != nil {
		mapServiceErr(w, err)
		return
	}
	writeAffected(w, res)
}

func (h *Handlers) listPrices(w http.ResponseWriter, r *http.Request) {
	hid, ok := hotelID(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid Hotel", "hotelID must be a positive number")
		return
	}
	q := r.URL.Query()
	productID, err1 := strconv.ParseInt(q.Get("roomProductId"), 10, 64)
	planID, err2 := strconv.ParseInt(q.Get("ratePlanId"), 10, 64)
	if err1 != nil || err2 != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Query", "roomProductId and ratePlanId are required")
		return
	}
	rng, err := parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Range", "from/to must be YYYY-MM-DD")
		return
	}
	rows, err := h.Svc.Prices(r.Context(), hid, productID, planID, rng)
	if err != nil {
		mapServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
