/*
Copyright © 2019 the COSFlux authors.
This file is part of COSFlux.

COSFlux is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

COSFlux is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with COSFlux.  If not, see <http://www.gnu.org/licenses/>.
*/

package cosutil

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/cosflux/cosflux/internal/monitor"
	"github.com/cosflux/cosflux/internal/store"
	"github.com/ctessum/sparse"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Server serves stored site series, summaries of a δ34S field, and
// metrics over HTTP.
type Server struct {
	store    store.Repository
	delta    *sparse.DenseArray
	scenario string
	log      logrus.FieldLogger
	metrics  *monitor.Collector
	gatherer prometheus.Gatherer
}

// NewServer creates a new server. delta, with dimensions
// (time, level, lat, lon), may be nil, as may repo. scenario is the
// scenario queried when a request does not name one.
func NewServer(repo store.Repository, delta *sparse.DenseArray, scenario string, log logrus.FieldLogger, metrics *monitor.Collector, gatherer prometheus.Gatherer) *Server {
	return &Server{
		store:    repo,
		delta:    delta,
		scenario: scenario,
		log:      log,
		metrics:  metrics,
		gatherer: gatherer,
	}
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/sites", s.instrument("/sites", s.listSites)).Methods("GET")
	r.Handle("/sites/{code}/series", s.instrument("/sites/series", s.series)).Methods("GET")
	r.Handle("/delta/{step:[0-9]+}", s.instrument("/delta", s.deltaSummary)).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		s.sendJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	}).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// statusRecorder records the status code written to a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records the duration and status of each request to route.
func (s *Server) instrument(route string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		d := time.Since(start)
		if s.metrics != nil {
			s.metrics.RequestDuration.WithLabelValues(route).Observe(d.Seconds())
			s.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		}
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": d,
		}).Debug("request")
	})
}

// errorResponse is the body of an error response.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// sendJSON writes data as JSON, or a 500 error if data cannot be encoded.
func (s *Server) sendJSON(w http.ResponseWriter, data interface{}, status int) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		s.log.WithError(err).Error("encoding response")
		buf.Reset()
		status = http.StatusInternalServerError
		json.NewEncoder(&buf).Encode(errorResponse{
			Error:   http.StatusText(status),
			Message: "failed to encode response",
			Code:    status,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) sendError(w http.ResponseWriter, message string, status int) {
	s.sendJSON(w, errorResponse{Error: http.StatusText(status), Message: message, Code: status}, status)
}

func (s *Server) scenarioParam(r *http.Request) string {
	if sc := r.URL.Query().Get("scenario"); sc != "" {
		return sc
	}
	return s.scenario
}

// listSites handles GET /sites.
func (s *Server) listSites(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.sendError(w, "no database configured", http.StatusServiceUnavailable)
		return
	}
	sites, err := s.store.ListSites(r.Context(), s.scenarioParam(r))
	if err != nil {
		s.log.WithError(err).Error("listing sites")
		s.sendError(w, "failed to list sites", http.StatusInternalServerError)
		return
	}
	s.sendJSON(w, sites, http.StatusOK)
}

// series handles GET /sites/{code}/series. The variable defaults to
// Delta.
func (s *Server) series(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.sendError(w, "no database configured", http.StatusServiceUnavailable)
		return
	}
	code := mux.Vars(r)["code"]
	variable := r.URL.Query().Get("variable")
	if variable == "" {
		variable = "Delta"
	}
	pts, err := s.store.Series(r.Context(), code, s.scenarioParam(r), variable)
	if err != nil {
		s.log.WithError(err).WithField("site", code).Error("reading series")
		s.sendError(w, "failed to read series", http.StatusInternalServerError)
		return
	}
	if len(pts) == 0 {
		s.sendError(w, "no series for site "+code, http.StatusNotFound)
		return
	}
	s.sendJSON(w, pts, http.StatusOK)
}

// Summary holds statistics of a field at one time step.
type Summary struct {
	Step  int     `json:"step"`
	Min   float64 `json:"min"`
	Mean  float64 `json:"mean"`
	Max   float64 `json:"max"`
	Cells int     `json:"cells"`

	// Undefined is the number of cells whose value is NaN or infinite.
	Undefined int `json:"undefined"`
}

// Summarize returns the statistics of the finite values of field, with
// dimensions (time, level, lat, lon), at the given step.
func Summarize(field *sparse.DenseArray, step int) (Summary, bool) {
	if step < 0 || step >= field.Shape[0] {
		return Summary{}, false
	}
	nc := len(field.Elements) / field.Shape[0]
	sum := Summary{Step: step, Cells: nc}
	vals := make([]float64, 0, nc)
	for _, v := range field.Elements[step*nc : (step+1)*nc] {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			sum.Undefined++
			continue
		}
		vals = append(vals, v)
	}
	if len(vals) > 0 {
		sum.Min, sum.Max = floats.Min(vals), floats.Max(vals)
		sum.Mean = stat.Mean(vals, nil)
	}
	return sum, true
}

// deltaSummary handles GET /delta/{step}.
func (s *Server) deltaSummary(w http.ResponseWriter, r *http.Request) {
	if s.delta == nil {
		s.sendError(w, "no model output loaded", http.StatusServiceUnavailable)
		return
	}
	step, err := strconv.Atoi(mux.Vars(r)["step"])
	if err != nil {
		s.sendError(w, "invalid step", http.StatusBadRequest)
		return
	}
	sum, ok := Summarize(s.delta, step)
	if !ok {
		s.sendError(w, "step out of range", http.StatusNotFound)
		return
	}
	s.sendJSON(w, sum, http.StatusOK)
}
