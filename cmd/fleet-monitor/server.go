package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mtab3000/simple-monitor/pkg/database"
)

// router builds the JSON API consumed by external collectors and
// dashboards.
func (a *app) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/samples", a.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/api/status", a.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/fleet", a.handleFleet).Methods(http.MethodGet)
	r.HandleFunc("/api/alerts", a.handleAlerts).Methods(http.MethodGet)
	r.HandleFunc("/api/analytics/fleet", a.handleFleetAnalytics).Methods(http.MethodGet)

	m := r.PathPrefix("/api/miners/{ip}").Subrouter()
	m.HandleFunc("/trends", a.handleTrends).Methods(http.MethodGet)
	m.HandleFunc("/history", a.handleHistory).Methods(http.MethodGet)
	m.HandleFunc("/score", a.handleScore).Methods(http.MethodGet)
	m.HandleFunc("/anomalies", a.handleAnomalies).Methods(http.MethodGet)
	m.HandleFunc("/growth", a.handleGrowth).Methods(http.MethodGet)
	m.HandleFunc("/maintenance", a.handleMaintenance).Methods(http.MethodGet)
	m.HandleFunc("/optimal-settings", a.handleOptimalSettings).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	return r
}

func (a *app) handleIngest(w http.ResponseWriter, r *http.Request) {
	var batch []*database.SampleInput
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, "invalid sample batch: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := a.pipeline.Ingest(r.Context(), batch); err != nil {
		a.logger.Error("ingest failed", zap.Error(err))
		http.Error(w, "ingest failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(batch)})
}

func (a *app) handleStatus(w http.ResponseWriter, r *http.Request) {
	current, err := a.repo.LatestSamples(r.Context())
	if err != nil {
		a.serverError(w, "status query failed", err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (a *app) handleFleet(w http.ResponseWriter, r *http.Request) {
	summary, err := a.pipeline.FleetSummary(r.Context())
	if err != nil {
		a.serverError(w, "fleet summary failed", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *app) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	unresolvedOnly := r.URL.Query().Get("unresolved") == "true"

	alerts, err := a.repo.ListAlerts(r.Context(), nil, unresolvedOnly, limit)
	if err != nil {
		a.serverError(w, "alert query failed", err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (a *app) handleFleetAnalytics(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	insights, err := a.analyzer.FleetInsights(r.Context(), days)
	if err != nil {
		a.serverError(w, "fleet analytics failed", err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

func (a *app) handleTrends(w http.ResponseWriter, r *http.Request) {
	miner, ok := a.minerFromRequest(w, r)
	if !ok {
		return
	}
	trends, err := a.rollups.Trends(r.Context(), miner.ID, queryInt(r, "hours", a.cfg.TrendHours))
	if err != nil {
		a.serverError(w, "trend query failed", err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func (a *app) handleHistory(w http.ResponseWriter, r *http.Request) {
	miner, ok := a.minerFromRequest(w, r)
	if !ok {
		return
	}
	from, to, err := timeRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	samples, err := a.repo.SamplesInRange(r.Context(), miner.ID, from, to)
	if err != nil {
		a.serverError(w, "history query failed", err)
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

func (a *app) handleScore(w http.ResponseWriter, r *http.Request) {
	miner, ok := a.minerFromRequest(w, r)
	if !ok {
		return
	}
	score, err := a.analyzer.EfficiencyScore(r.Context(), miner.ID, queryInt(r, "hours", a.cfg.TrendHours))
	if err != nil {
		a.serverError(w, "score computation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (a *app) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	miner, ok := a.minerFromRequest(w, r)
	if !ok {
		return
	}
	anomalies, err := a.analyzer.DetectAnomalies(r.Context(), miner.ID, queryInt(r, "hours", a.cfg.TrendHours))
	if err != nil {
		a.serverError(w, "anomaly detection failed", err)
		return
	}
	writeJSON(w, http.StatusOK, anomalies)
}

func (a *app) handleGrowth(w http.ResponseWriter, r *http.Request) {
	miner, ok := a.minerFromRequest(w, r)
	if !ok {
		return
	}
	growth, err := a.analyzer.GrowthMetrics(r.Context(), miner.ID, queryInt(r, "days", a.cfg.GrowthDays))
	if err != nil {
		a.serverError(w, "growth analysis failed", err)
		return
	}
	writeJSON(w, http.StatusOK, growth)
}

func (a *app) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	miner, ok := a.minerFromRequest(w, r)
	if !ok {
		return
	}
	prediction, err := a.analyzer.PredictMaintenance(r.Context(), miner.ID)
	if err != nil {
		a.serverError(w, "maintenance prediction failed", err)
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

func (a *app) handleOptimalSettings(w http.ResponseWriter, r *http.Request) {
	miner, ok := a.minerFromRequest(w, r)
	if !ok {
		return
	}
	settings, err := a.analyzer.OptimalSettings(r.Context(), miner.ID)
	if err != nil {
		a.serverError(w, "settings optimization failed", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// minerFromRequest resolves the {ip} path variable; writes a 404 and
// returns false when the miner is unknown.
func (a *app) minerFromRequest(w http.ResponseWriter, r *http.Request) (*database.Miner, bool) {
	ip := mux.Vars(r)["ip"]
	miner, err := a.repo.GetMinerByIP(r.Context(), ip)
	if err != nil {
		a.serverError(w, "miner lookup failed", err)
		return nil, false
	}
	if miner == nil {
		http.Error(w, "unknown miner: "+ip, http.StatusNotFound)
		return nil, false
	}
	return miner, true
}

func (a *app) serverError(w http.ResponseWriter, msg string, err error) {
	a.logger.Error(msg, zap.Error(err))
	http.Error(w, msg, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// timeRange parses optional from/to RFC 3339 query parameters,
// defaulting to the last 24 hours.
func timeRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from, to := now.Add(-24*time.Hour), now

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from timestamp: %w", err)
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to timestamp: %w", err)
		}
		to = t
	}
	return from, to, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
