package api

import (
	"errors"
	"net/http"
	"strconv"

	"dronenav/internal/fleet"
	"dronenav/internal/model"
)

// fleetFailed logs an unreachable inventory service. Callers answer as if
// the fleet were empty.
func (s *Server) fleetFailed(r *http.Request, err error) {
	s.Log.Warn("fleet source failed, answering empty", "path", r.URL.Path, "err", err)
}

// DronesWithCoolingHandler handles GET /api/v1/dronesWithCooling/{state}
func (s *Server) DronesWithCoolingHandler(w http.ResponseWriter, r *http.Request) {
	state, err := strconv.ParseBool(r.PathValue("state"))
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	ids, err := s.Fleet.DronesWithCooling(r.Context(), state)
	if err != nil {
		s.fleetFailed(r, err)
	}
	writeJSON(w, http.StatusOK, nonNilIDs(ids))
}

// DroneDetailsHandler handles GET /api/v1/droneDetails/{id}
func (s *Server) DroneDetailsHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, ok, err := s.Fleet.Drone(r.Context(), id)
	if err != nil {
		s.fleetFailed(r, err)
	}
	if !ok {
		writeProblem(w, http.StatusNotFound, "Not Found", "Drone with ID "+id+" not found", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// QueryAsPathHandler handles GET /api/v1/queryAsPath/{attribute}/{value}
func (s *Server) QueryAsPathHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Fleet.QueryByAttribute(r.Context(), r.PathValue("attribute"), r.PathValue("value"))
	if err != nil {
		s.fleetFailed(r, err)
	}
	writeJSON(w, http.StatusOK, nonNilIDs(ids))
}

// QueryHandler handles POST /api/v1/query
func (s *Server) QueryHandler(w http.ResponseWriter, r *http.Request) {
	var queries []model.Query
	if err := decodeJSON(r, &queries); err != nil {
		s.badRequest(w, r, err)
		return
	}
	for _, q := range queries {
		if q.Attribute == "" {
			s.badRequest(w, r, errors.New("attribute is required"))
			return
		}
		if err := fleet.ValidOperator(q.Operator); err != nil {
			s.badRequest(w, r, err)
			return
		}
	}
	ids, err := s.Fleet.Query(r.Context(), queries)
	if err != nil {
		s.fleetFailed(r, err)
	}
	writeJSON(w, http.StatusOK, nonNilIDs(ids))
}

// AvailableDronesHandler handles POST /api/v1/queryAvailableDrones
func (s *Server) AvailableDronesHandler(w http.ResponseWriter, r *http.Request) {
	orders, ok := s.readOrders(w, r)
	if !ok {
		return
	}
	ids, err := s.Fleet.AvailableDroneIDs(r.Context(), orders)
	if err != nil {
		s.fleetFailed(r, err)
	}
	writeJSON(w, http.StatusOK, nonNilIDs(ids))
}

func (s *Server) readOrders(w http.ResponseWriter, r *http.Request) ([]model.Order, bool) {
	var in []orderIn
	if err := decodeJSON(r, &in); err != nil {
		s.badRequest(w, r, err)
		return nil, false
	}
	orders, err := parseOrders(in)
	if err != nil {
		s.badRequest(w, r, err)
		return nil, false
	}
	return orders, true
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
