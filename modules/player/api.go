package player

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// RegisterRoutes attaches the transport API to the shared HTTP server.
// This is the boundary the GUI layer talks to: commands in, status and a
// status event stream out.
func (p *Player) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/status", p.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/play", p.handlePlay).Methods(http.MethodPost)
	r.HandleFunc("/api/stop", p.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/api/volume", p.handleVolume).Methods(http.MethodPost)
	r.HandleFunc("/api/events", p.handleEvents).Methods(http.MethodGet)
}

type playRequest struct {
	StationID string `json:"station_id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
}

type volumeRequest struct {
	Volume float64 `json:"volume"`
}

func (p *Player) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, p.Status())
}

func (p *Player) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var st Station
	switch {
	case req.URL != "":
		st = Station{ID: req.StationID, Name: req.Name, URL: req.URL}
		if st.ID == "" {
			st.ID = req.URL
		}
	case req.StationID != "":
		if p.resolve == nil {
			writeError(w, http.StatusServiceUnavailable, "no station directory available")
			return
		}
		resolved, err := p.resolve(r.Context(), req.StationID)
		if err != nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("station %q: %v", req.StationID, err))
			return
		}
		st = resolved
	default:
		writeError(w, http.StatusBadRequest, "station_id or url required")
		return
	}

	if err := p.Play(st); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p.Status())
}

func (p *Player) handleStop(w http.ResponseWriter, r *http.Request) {
	p.Stop()
	writeJSON(w, http.StatusOK, p.Status())
}

func (p *Player) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Volume < 0 || req.Volume > 1 {
		writeError(w, http.StatusBadRequest, "volume must be in [0, 1]")
		return
	}

	p.SetVolume(req.Volume)
	writeJSON(w, http.StatusOK, p.Status())
}

// handleEvents streams status transitions as server-sent events. The
// current status is sent immediately, then every transition as it happens.
func (p *Player) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id := uuid.New().String()
	ch := p.Subscribe(id)
	defer p.Unsubscribe(id)

	sendSSE(w, flusher, p.Status())

	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return
			}
			sendSSE(w, flusher, st)
		case <-r.Context().Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
