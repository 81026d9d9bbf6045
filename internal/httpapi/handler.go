// Package httpapi exposes the launch engine's REST surface.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/neopad/engine/internal/domain/asset"
	"github.com/neopad/engine/internal/faults"
	"github.com/neopad/engine/internal/metrics"
	"github.com/neopad/engine/internal/trading"
	"github.com/neopad/engine/pkg/logger"
)

type handler struct {
	svc *trading.Service
	log *logger.Logger
}

// NewHandler returns the engine's HTTP router.
func NewHandler(svc *trading.Service, log *logger.Logger) http.Handler {
	h := &handler{svc: svc, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/assets", h.registerAsset).Methods(http.MethodPost)
	r.HandleFunc("/assets", h.listAssets).Methods(http.MethodGet)
	r.HandleFunc("/assets/{id}", h.getAsset).Methods(http.MethodGet)
	r.HandleFunc("/assets/{id}/trades", h.listTrades).Methods(http.MethodGet)
	r.HandleFunc("/assets/{id}/quote/buy", h.quoteBuy).Methods(http.MethodPost)
	r.HandleFunc("/assets/{id}/quote/sell", h.quoteSell).Methods(http.MethodPost)
	r.HandleFunc("/assets/{id}/buy", h.buildBuy).Methods(http.MethodPost)
	r.HandleFunc("/assets/{id}/sell", h.buildSell).Methods(http.MethodPost)
	r.HandleFunc("/assets/{id}/confirm", h.confirmBuy).Methods(http.MethodPost)

	return metrics.InstrumentHandler(r)
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) registerAsset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Symbol      string `json:"symbol"`
		Decimals    int    `json:"decimals"`
		Curve       string `json:"curve"`
		Strength    int    `json:"strength"`
		Creator     string `json:"creator"`
		CreatorBps  int64  `json:"creator_bps"`
		ProtocolBps int64  `json:"protocol_bps"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.svc.RegisterAsset(r.Context(), trading.RegisterAssetRequest{
		Symbol:      payload.Symbol,
		Decimals:    payload.Decimals,
		Curve:       asset.CurveType(payload.Curve),
		Strength:    asset.Strength(payload.Strength),
		Creator:     payload.Creator,
		CreatorBps:  payload.CreatorBps,
		ProtocolBps: payload.ProtocolBps,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.svc.ListAssets(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *handler) getAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetAsset(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handler) listTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.svc.ListTrades(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

type quotePayload struct {
	BaseAmount float64 `json:"base_amount"`
}

func (h *handler) quoteBuy(w http.ResponseWriter, r *http.Request) {
	var payload quotePayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q, err := h.svc.QuoteBuy(r.Context(), mux.Vars(r)["id"], payload.BaseAmount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *handler) quoteSell(w http.ResponseWriter, r *http.Request) {
	var payload quotePayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	q, err := h.svc.QuoteSell(r.Context(), mux.Vars(r)["id"], payload.BaseAmount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type buildPayload struct {
	Counterparty string  `json:"counterparty"`
	BaseAmount   float64 `json:"base_amount"`
	ValidUntil   uint64  `json:"valid_until"`
}

func (h *handler) buildBuy(w http.ResponseWriter, r *http.Request) {
	var payload buildPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.svc.BuildBuy(r.Context(), trading.BuildRequest{
		AssetID:      mux.Vars(r)["id"],
		Counterparty: payload.Counterparty,
		BaseAmount:   payload.BaseAmount,
		ValidUntil:   payload.ValidUntil,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *handler) buildSell(w http.ResponseWriter, r *http.Request) {
	var payload buildPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.svc.BuildSell(r.Context(), trading.BuildRequest{
		AssetID:      mux.Vars(r)["id"],
		Counterparty: payload.Counterparty,
		BaseAmount:   payload.BaseAmount,
		ValidUntil:   payload.ValidUntil,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *handler) confirmBuy(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Payer            string  `json:"payer"`
		PaymentReference string  `json:"payment_reference"`
		BaseAmount       float64 `json:"base_amount"`
		ValidUntil       uint64  `json:"valid_until"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.svc.ConfirmBuy(r.Context(), trading.ConfirmBuyRequest{
		AssetID:          mux.Vars(r)["id"],
		Payer:            payload.Payer,
		PaymentReference: payload.PaymentReference,
		BaseAmount:       payload.BaseAmount,
		ValidUntil:       payload.ValidUntil,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// fail maps the fault taxonomy onto HTTP statuses and logs server-side
// failures with their cause.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch faults.KindOf(err) {
	case faults.Validation:
		return http.StatusBadRequest
	case faults.PaymentUnverified:
		return http.StatusPaymentRequired
	case faults.NotReady:
		return http.StatusServiceUnavailable
	case faults.ExternalDependency:
		return http.StatusBadGateway
	default:
		// ConfigurationDrift is an operator problem, not a caller problem.
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
