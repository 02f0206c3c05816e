package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/penne-app/penne/internal/services"
)

// handleListHalls returns every hall with its current open status
func (h *Handlers) handleListHalls(w http.ResponseWriter, r *http.Request) {
	halls, err := h.Halls.ListHalls(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	now := time.Now()
	out := make([]services.HallStatus, 0, len(halls))
	for _, hall := range halls {
		out = append(out, services.HallStatus{DiningHall: hall, Open: services.IsOpen(hall, now)})
	}
	respondOK(w, out)
}

// handleGetHall returns one hall
func (h *Handlers) handleGetHall(w http.ResponseWriter, r *http.Request) {
	hall, err := h.Halls.GetHall(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, hall)
}

// handleGetMenu returns a hall's dishes for one meal grouped by station.
// Without ?meal= the first meal type of the day is used.
func (h *Handlers) handleGetMenu(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	if _, err := h.Halls.GetHall(ctx, name); err != nil {
		respondError(w, err)
		return
	}

	mealTypes, err := h.Menu.MealTypes(ctx, name)
	if err != nil {
		respondError(w, err)
		return
	}
	meal := strings.TrimSpace(r.URL.Query().Get("meal"))
	if meal == "" && len(mealTypes) > 0 {
		meal = mealTypes[0]
	}

	resp := MenuResponse{Hall: name, MealType: meal, MealTypes: mealTypes, Stations: []services.StationMenu{}}
	if meal != "" {
		dishes, err := h.Menu.ListMenu(ctx, name, meal)
		if err != nil {
			respondError(w, err)
			return
		}
		resp.Stations = services.GroupByStation(dishes)
	}
	respondOK(w, resp)
}
