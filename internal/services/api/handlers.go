// Package api is the HTTP and websocket surface: measurement ingestion,
// aggregation queries, metric and alert listings, the per-device live
// subscription, and the operational endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/devicepulse/backend/internal/model"
	"github.com/devicepulse/backend/internal/services/aggregate"
	"github.com/devicepulse/backend/internal/services/fanout"
	"github.com/devicepulse/backend/internal/services/ingest"
	"github.com/devicepulse/backend/internal/storage"
)

type API struct {
	devices *storage.DeviceStore
	alerts  *storage.AlertStore
	orch    *ingest.Orchestrator
	engine  *aggregate.Engine
	hub     *fanout.Hub
	log     *slog.Logger
}

func New(
	devices *storage.DeviceStore,
	alerts *storage.AlertStore,
	orch *ingest.Orchestrator,
	engine *aggregate.Engine,
	hub *fanout.Hub,
	log *slog.Logger,
) *API {
	if log == nil {
		log = slog.Default()
	}
	return &API{
		devices: devices,
		alerts:  alerts,
		orch:    orch,
		engine:  engine,
		hub:     hub,
		log:     log,
	}
}

type measurementRequest struct {
	Metric    string           `json:"metric"`
	Value     *decimal.Decimal `json:"value"`
	Unit      string           `json:"unit"`
	Timestamp *time.Time       `json:"timestamp"`
}

// HandleIngest accepts one measurement for the device in the path.
// POST /api/devices/{deviceID}/measurements/
func (a *API) HandleIngest(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := a.deviceIDParam(w, r)
	if !ok {
		return
	}
	var req measurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Malformed JSON body."})
		return
	}

	m, err := a.orch.Ingest(r.Context(), deviceID, ingest.Sample{
		Metric:    req.Metric,
		Value:     req.Value,
		Unit:      req.Unit,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		a.writeIngestError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) writeIngestError(w http.ResponseWriter, err error) {
	var verr *ingest.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, verr.Fields)
	case errors.Is(err, ingest.ErrDeviceNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
	default:
		a.log.Error("api: ingest failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Internal server error."})
	}
}

// HandleAggregatedData answers the statistics query.
// GET /api/devices/{deviceID}/aggregated-data/?metric=&period=&limit=
func (a *API) HandleAggregatedData(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := a.requireDevice(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	period, err := aggregate.ParsePeriod(q.Get("period"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"period": {"Period must be one of: last_24h, last_7d, last_30d, all."},
		})
		return
	}

	limit := aggregate.DefaultLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string][]string{
				"limit": {"Limit must be a positive integer."},
			})
			return
		}
		limit = n
	}

	res, err := a.engine.Aggregate(r.Context(), deviceID, q.Get("metric"), period, limit)
	if err != nil {
		a.log.Error("api: aggregation failed", "device", deviceID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Internal server error."})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleMetrics lists the distinct metric names for a device.
// GET /api/devices/{deviceID}/metrics/
func (a *API) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := a.requireDevice(w, r)
	if !ok {
		return
	}
	names, err := a.engine.Metrics(r.Context(), deviceID)
	if err != nil {
		a.log.Error("api: metrics list failed", "device", deviceID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Internal server error."})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"metrics": names})
}

// HandleAlerts lists a device's alerts, newest first.
// GET /api/devices/{deviceID}/alerts/
func (a *API) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := a.requireDevice(w, r)
	if !ok {
		return
	}
	alerts, err := a.alerts.ForDevice(r.Context(), deviceID, 0)
	if err != nil {
		a.log.Error("api: alerts list failed", "device", deviceID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Internal server error."})
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(alerts),
		"results": alerts,
	})
}

func (a *API) deviceIDParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "deviceID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return 0, false
	}
	return uint(id), true
}

// requireDevice parses the path id and confirms the device exists; reads
// against unknown devices get the same 404 as writes.
func (a *API) requireDevice(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, ok := a.deviceIDParam(w, r)
	if !ok {
		return 0, false
	}
	if _, err := a.devices.ByID(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		} else {
			a.log.Error("api: device lookup failed", "device", id, "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Internal server error."})
		}
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
