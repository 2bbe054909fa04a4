package main

import (
	"encoding/json"
	"net/http"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/readings"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// latestFunc returns the current readings and whether a valid telegram was seen yet.
type latestFunc func() ([]readings.Reading, bool)

func newServer(latest latestFunc, ws http.Handler, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		response := map[string]string{
			"message": "P1 Meter Bridge API",
			"status":  "running",
		}
		writeJSON(w, http.StatusOK, response)
	})

	mux.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		rs, ok := latest()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "No readings available yet",
			})
			return
		}
		writeJSON(w, http.StatusOK, rs)
	})

	mux.Handle("/ws", ws)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
