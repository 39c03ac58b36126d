package api

import (
	"net/http"

	"dronenav/internal/geo"
)

// UIDHandler returns the service identifier as plain text.
func (s *Server) UIDHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.Cfg.UID))
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	s.Log.Debug("bad request", "path", r.URL.Path, "err", err)
	writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), r.URL.Path)
}

// DistanceHandler handles POST /api/v1/distanceTo
func (s *Server) DistanceHandler(w http.ResponseWriter, r *http.Request) {
	var req pairIn
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	a, b, err := req.positions()
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, geo.Distance(a, b))
}

// IsCloseHandler handles POST /api/v1/isCloseTo
func (s *Server) IsCloseHandler(w http.ResponseWriter, r *http.Request) {
	var req pairIn
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	a, b, err := req.positions()
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, geo.IsClose(a, b))
}

// NextPositionHandler handles POST /api/v1/nextPosition
func (s *Server) NextPositionHandler(w http.ResponseWriter, r *http.Request) {
	var req nextPositionIn
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	start, err := req.Start.position("start")
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	if req.Angle == nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "angle is required", r.URL.Path)
		return
	}
	next, err := geo.Step(start, *req.Angle)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

// InRegionHandler handles POST /api/v1/isInRegion
func (s *Server) InRegionHandler(w http.ResponseWriter, r *http.Request) {
	var req inRegionIn
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	p, region, err := req.parse()
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	in, err := geo.InRegion(p, region)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}
