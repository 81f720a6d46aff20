package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/suretyops/internal/domain"
	"github.com/punchamoorthee/suretyops/internal/ledger"
	"github.com/punchamoorthee/suretyops/internal/service"
)

// Metrics
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surety_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "surety_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	ledgerOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surety_ledger_ops_total",
		Help: "Core ledger operations, labeled by outcome",
	}, []string{"op", "outcome"})
)

type Handler struct {
	svc *service.SuretyService
}

func NewHandler(svc *service.SuretyService) *Handler {
	return &Handler{svc: svc}
}

// Register wires every route onto the /api/v1 subrouter.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/operational", h.GetOperational).Methods("GET")
	r.HandleFunc("/operational", h.SetOperational).Methods("PUT")
	r.HandleFunc("/callers/authorize", h.AuthorizeCaller).Methods("POST")
	r.HandleFunc("/callers/deauthorize", h.DeauthorizeCaller).Methods("POST")
	r.HandleFunc("/airlines", h.RegisterAirline).Methods("POST")
	r.HandleFunc("/airlines/{account}", h.GetAirline).Methods("GET")
	r.HandleFunc("/airlines/{account}/fund", h.Fund).Methods("POST")
	r.HandleFunc("/policies", h.Buy).Methods("POST")
	r.HandleFunc("/policies/credit", h.CreditInsurees).Methods("POST")
	r.HandleFunc("/passengers/{account}/balance", h.GetBalance).Methods("GET")
	r.HandleFunc("/passengers/{account}/journal", h.GetJournal).Methods("GET")
	r.HandleFunc("/passengers/{account}/withdraw", h.Pay).Methods("POST")
	r.HandleFunc("/oracles", h.RegisterOracle).Methods("POST")
	r.HandleFunc("/oracles/requests", h.OpenRequests).Methods("GET")
	r.HandleFunc("/oracles/responses", h.SubmitOracleResponse).Methods("POST")
	r.HandleFunc("/oracles/{account}/indexes", h.GetIndexes).Methods("GET")
	r.HandleFunc("/flights/status-request", h.FetchFlightStatus).Methods("POST")
	r.HandleFunc("/flights/{airline}/{flight}/{timestamp}", h.GetFlightStatus).Methods("GET")
}

// statusForError maps ledger error kinds onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotOperational):
		return http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrNotOwner), errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrAirlineNotFound), errors.Is(err, ledger.ErrOracleNotFound), errors.Is(err, ledger.ErrNoOpenRequest):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrOracleExists):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

type setOperationalRequest struct {
	Caller      domain.Account `json:"caller"`
	Operational bool           `json:"operational"`
}

type callerRequest struct {
	Caller  domain.Account `json:"caller"`
	Account domain.Account `json:"account"`
}

type registerAirlineRequest struct {
	Name      string         `json:"name"`
	Candidate domain.Account `json:"candidate"`
	Sponsor   domain.Account `json:"sponsor"`
}

type fundRequest struct {
	Amount int64 `json:"amount"`
}

type buyRequest struct {
	Airline   domain.Account `json:"airline"`
	Flight    string         `json:"flight"`
	Timestamp int64          `json:"timestamp"`
	Passenger domain.Account `json:"passenger"`
	Premium   int64          `json:"premium"`
}

type creditRequest struct {
	Caller    domain.Account    `json:"caller"`
	Airline   domain.Account    `json:"airline"`
	Flight    string            `json:"flight"`
	Timestamp int64             `json:"timestamp"`
	Status    domain.StatusCode `json:"status"`
}

type registerOracleRequest struct {
	Account domain.Account `json:"account"`
	Fee     int64          `json:"fee"`
}

type fetchStatusRequest struct {
	Airline   domain.Account `json:"airline"`
	Flight    string         `json:"flight"`
	Timestamp int64          `json:"timestamp"`
	Requester domain.Account `json:"requester"`
}

type oracleResponseRequest struct {
	Index     int               `json:"index"`
	Airline   domain.Account    `json:"airline"`
	Flight    string            `json:"flight"`
	Timestamp int64             `json:"timestamp"`
	Status    domain.StatusCode `json:"status"`
	Oracle    domain.Account    `json:"oracle"`
}

func (h *Handler) GetOperational(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, "GET", "/operational", http.StatusOK,
		map[string]bool{"operational": h.svc.Ledger().IsOperational()})
}

func (h *Handler) SetOperational(w http.ResponseWriter, r *http.Request) {
	var req setOperationalRequest
	if !decode(w, r, "PUT", "/operational", &req) {
		return
	}
	if err := h.svc.SetOperational(r.Context(), req.Caller, req.Operational); err != nil {
		respondOpError(w, "PUT", "/operational", "set_operational", err)
		return
	}
	ledgerOpsTotal.WithLabelValues("set_operational", "ok").Inc()
	respondWithJSON(w, "PUT", "/operational", http.StatusOK, map[string]bool{"operational": req.Operational})
}

func (h *Handler) AuthorizeCaller(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !decode(w, r, "POST", "/callers/authorize", &req) {
		return
	}
	if err := h.svc.AuthorizeCaller(r.Context(), req.Caller, req.Account); err != nil {
		respondOpError(w, "POST", "/callers/authorize", "authorize_caller", err)
		return
	}
	ledgerOpsTotal.WithLabelValues("authorize_caller", "ok").Inc()
	respondWithJSON(w, "POST", "/callers/authorize", http.StatusOK, map[string]string{"authorized": string(req.Account)})
}

func (h *Handler) DeauthorizeCaller(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if !decode(w, r, "POST", "/callers/deauthorize", &req) {
		return
	}
	if err := h.svc.DeauthorizeCaller(r.Context(), req.Caller, req.Account); err != nil {
		respondOpError(w, "POST", "/callers/deauthorize", "deauthorize_caller", err)
		return
	}
	ledgerOpsTotal.WithLabelValues("deauthorize_caller", "ok").Inc()
	respondWithJSON(w, "POST", "/callers/deauthorize", http.StatusOK, map[string]string{"deauthorized": string(req.Account)})
}

func (h *Handler) RegisterAirline(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/airlines"))
	defer timer.ObserveDuration()

	var req registerAirlineRequest
	if !decode(w, r, "POST", "/airlines", &req) {
		return
	}
	if req.Candidate == "" || req.Sponsor == "" {
		respondWithError(w, "POST", "/airlines", http.StatusUnprocessableEntity, "candidate and sponsor are required")
		return
	}
	res, err := h.svc.RegisterAirline(r.Context(), req.Name, req.Candidate, req.Sponsor)
	if err != nil {
		respondOpError(w, "POST", "/airlines", "register_airline", err)
		return
	}
	ledgerOpsTotal.WithLabelValues("register_airline", "ok").Inc()
	code := http.StatusAccepted
	if res.Admitted {
		code = http.StatusCreated
	}
	respondWithJSON(w, "POST", "/airlines", code, res)
}

func (h *Handler) GetAirline(w http.ResponseWriter, r *http.Request) {
	account := domain.Account(mux.Vars(r)["account"])
	a, ok := h.svc.Ledger().AirlineInfo(account)
	if !ok {
		respondWithError(w, "GET", "/airlines/{account}", http.StatusNotFound, "airline not registered")
		return
	}
	respondWithJSON(w, "GET", "/airlines/{account}", http.StatusOK, a)
}

func (h *Handler) Fund(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/airlines/{account}/fund"))
	defer timer.ObserveDuration()

	var req fundRequest
	if !decode(w, r, "POST", "/airlines/{account}/fund", &req) {
		return
	}
	account := domain.Account(mux.Vars(r)["account"])
	a, err := h.svc.Fund(r.Context(), account, req.Amount)
	if err != nil {
		respondOpError(w, "POST", "/airlines/{account}/fund", "fund", err)
		return
	}
	ledgerOpsTotal.WithLabelValues("fund", "ok").Inc()
	respondWithJSON(w, "POST", "/airlines/{account}/fund", http.StatusOK, a)
}

func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/policies"))
	defer timer.ObserveDuration()

	var req buyRequest
	if !decode(w, r, "POST", "/policies", &req) {
		return
	}
	key := domain.FlightKey{Airline: req.Airline, Flight: req.Flight, Timestamp: req.Timestamp}
	p, err := h.svc.Buy(r.Context(), key, req.Passenger, req.Premium)
	if err != nil {
		respondOpError(w, "POST", "/policies", "buy", err)
		return
	}
	ledgerOpsTotal.WithLabelValues("buy", "ok").Inc()
	respondWithJSON(w, "POST", "/policies", http.StatusCreated, p)
}

func (h *Handler) CreditInsurees(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if !decode(w, r, "POST", "/policies/credit", &req) {
		return
	}
	key := domain.FlightKey{Airline: req.Airline, Flight: req.Flight, Timestamp: req.Timestamp}
	credited, err := h.svc.CreditInsurees(r.Context(), req.Caller, key, req.Status)
	if err != nil {
		respondOpError(w, "POST", "/policies/credit", "credit_insurees", err)
		return
	}
	ledgerOpsTotal.WithLabelValues("credit_insurees", "ok").Inc()
	respondWithJSON(w, "POST", "/policies/credit", http.StatusOK, map[string]int{"credited": credited})
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := domain.Account(mux.Vars(r)["account"])
	respondWithJSON(w, "GET", "/passengers/{account}/balance", http.StatusOK,
		map[string]int64{"balance": h.svc.Ledger().Balance(account)})
}

func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	account := domain.Account(mux.Vars(r)["account"])
	entries, err := h.svc.JournalByActor(r.Context(), account)
	if err != nil {
		respondWithError(w, "GET", "/passengers/{account}/journal", http.StatusInternalServerError, "journal unavailable")
		return
	}
	if entries == nil {
		entries = []domain.JournalEntry{}
	}
	respondWithJSON(w, "GET", "/passengers/{account}/journal", http.StatusOK, entries)
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/passengers/{account}/withdraw"))
	defer timer.ObserveDuration()

	account := domain.Account(mux.Vars(r)["account"])
	amount, err := h.svc.Pay(r.Context(), account)
	if err != nil {
		respondOpError(w, "POST", "/passengers/{account}/withdraw", "pay", err)
		return
	}
	ledgerOpsTotal.WithLabelValues("pay", "ok").Inc()
	respondWithJSON(w, "POST", "/passengers/{account}/withdraw", http.StatusOK, map[string]int64{"amount": amount})
}

func (h *Handler) RegisterOracle(w http.ResponseWriter, r *http.Request) {
	var req registerOracleRequest
	if !decode(w, r, "POST", "/oracles", &req) {
		return
	}
	reg, err := h.svc.RegisterOracle(r.Context(), req.Account, req.Fee)
	if err != nil {
		respondOpError(w, "POST", "/oracles", "register_oracle", err)
		return
	}
	ledgerOpsTotal.WithLabelValues("register_oracle", "ok").Inc()
	respondWithJSON(w, "POST", "/oracles", http.StatusCreated, reg)
}

func (h *Handler) GetIndexes(w http.ResponseWriter, r *http.Request) {
	account := domain.Account(mux.Vars(r)["account"])
	indexes, err := h.svc.Ledger().MyIndexes(account)
	if err != nil {
		respondOpError(w, "GET", "/oracles/{account}/indexes", "my_indexes", err)
		return
	}
	respondWithJSON(w, "GET", "/oracles/{account}/indexes", http.StatusOK, map[string][3]int{"indexes": indexes})
}

func (h *Handler) FetchFlightStatus(w http.ResponseWriter, r *http.Request) {
	var req fetchStatusRequest
	if !decode(w, r, "POST", "/flights/status-request", &req) {
		return
	}
	key := domain.FlightKey{Airline: req.Airline, Flight: req.Flight, Timestamp: req.Timestamp}
	index, err := h.svc.FetchFlightStatus(r.Context(), req.Requester, key)
	if err != nil {
		respondOpError(w, "POST", "/flights/status-request", "fetch_flight_status", err)
		return
	}
	ledgerOpsTotal.WithLabelValues("fetch_flight_status", "ok").Inc()
	respondWithJSON(w, "POST", "/flights/status-request", http.StatusCreated, map[string]int{"index": index})
}

func (h *Handler) OpenRequests(w http.ResponseWriter, r *http.Request) {
	requests := h.svc.Ledger().OpenRequests()
	if requests == nil {
		requests = []domain.StatusRequestView{}
	}
	respondWithJSON(w, "GET", "/oracles/requests", http.StatusOK, requests)
}

func (h *Handler) SubmitOracleResponse(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/oracles/responses"))
	defer timer.ObserveDuration()

	var req oracleResponseRequest
	if !decode(w, r, "POST", "/oracles/responses", &req) {
		return
	}
	key := domain.FlightKey{Airline: req.Airline, Flight: req.Flight, Timestamp: req.Timestamp}
	res, err := h.svc.SubmitOracleResponse(r.Context(), req.Oracle, req.Index, key, req.Status)
	if err != nil {
		respondOpError(w, "POST", "/oracles/responses", "submit_oracle_response", err)
		return
	}
	ledgerOpsTotal.WithLabelValues("submit_oracle_response", "ok").Inc()
	respondWithJSON(w, "POST", "/oracles/responses", http.StatusOK, res)
}

func (h *Handler) GetFlightStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ts, err := strconv.ParseInt(vars["timestamp"], 10, 64)
	if err != nil {
		respondWithError(w, "GET", "/flights/{key}", http.StatusBadRequest, "timestamp must be an integer")
		return
	}
	key := domain.FlightKey{
		Airline:   domain.Account(vars["airline"]),
		Flight:    vars["flight"],
		Timestamp: ts,
	}
	status, ok := h.svc.Ledger().FlightStatus(key)
	if !ok {
		respondWithError(w, "GET", "/flights/{key}", http.StatusNotFound, "no finalized status for that flight")
		return
	}
	respondWithJSON(w, "GET", "/flights/{key}", http.StatusOK, map[string]domain.StatusCode{"status": status})
}

// Helpers

func decode(w http.ResponseWriter, r *http.Request, method, endpoint string, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, method, endpoint, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func respondOpError(w http.ResponseWriter, method, endpoint, op string, err error) {
	ledgerOpsTotal.WithLabelValues(op, "error").Inc()
	respondWithError(w, method, endpoint, statusForError(err), err.Error())
}

func respondWithError(w http.ResponseWriter, method, endpoint string, code int, msg string) {
	respondWithJSON(w, method, endpoint, code, map[string]string{"error": msg})
}

func respondWithJSON(w http.ResponseWriter, method, endpoint string, code int, payload any) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
