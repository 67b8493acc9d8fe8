package directory

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes attaches the station listing API to the shared HTTP
// server. Without a category parameter it lists known stations; with one
// it searches the TuneIn directory.
func (d *Directory) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/stations", d.handleStations).Methods(http.MethodGet)
}

func (d *Directory) handleStations(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	var (
		stations []Station
		err      error
	)
	if category == "" {
		stations = d.List()
	} else {
		stations, err = d.Search(r.Context(), category)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stations)
}
