package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/stressguard/internal/alert"
	"github.com/felixgeelhaar/stressguard/internal/errors"
	"github.com/felixgeelhaar/stressguard/internal/questionnaire"
	"github.com/felixgeelhaar/stressguard/internal/store"
)

const maxAlertBody = 4 << 10

// apiError is the body of every non-2xx API response
type apiError struct {
	Error struct {
		Code    string `json:"code,omitempty"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	var body apiError
	body.Error.Code = string(errors.CodeOf(err))
	body.Error.Message = err.Error()
	writeJSON(w, status, body)
}

// questionnaireSummary is a list entry of GET /api/v1/questionnaires
type questionnaireSummary struct {
	ID          questionnaire.ID       `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Duration    string                 `json:"duration"`
	Purpose     string                 `json:"purpose"`
	Questions   int                    `json:"questions"`
	Scale       []questionnaire.Option `json:"scale"`
	MaxTotal    int                    `json:"max_total"`
}

func (s *Server) engine() *questionnaire.Engine {
	if s.router != nil {
		return s.router.Engine()
	}
	return questionnaire.NewEngine()
}

// handleListQuestionnaires handles GET /api/v1/questionnaires
func (s *Server) handleListQuestionnaires(w http.ResponseWriter, r *http.Request) {
	defs := s.engine().Definitions()
	out := make([]questionnaireSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, questionnaireSummary{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Duration:    d.Duration,
			Purpose:     d.Purpose,
			Questions:   len(d.Questions),
			Scale:       d.Scale,
			MaxTotal:    d.MaxTotal,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetQuestionnaire handles GET /api/v1/questionnaires/{id}
func (s *Server) handleGetQuestionnaire(w http.ResponseWriter, r *http.Request) {
	id := questionnaire.ID(chi.URLParam(r, "id"))
	d, err := s.engine().Definition(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleListResults handles GET /api/v1/results?questionnaire=ID&limit=N
func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New(errors.ErrCodeStoreOpen, "results store disabled"))
		return
	}

	f := store.ResultFilter{Questionnaire: questionnaire.ID(r.URL.Query().Get("questionnaire"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.NewConfigInvalidError("limit must be a non-negative integer"))
			return
		}
		f.Limit = n
	}

	results, err := s.results.ListResults(r.Context(), f)
	if err != nil {
		s.logger.WithError(err).Error("list results failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if results == nil {
		results = []*questionnaire.Result{}
	}
	writeJSON(w, http.StatusOK, results)
}

// handlePostAlert handles POST /api/v1/alerts with a {bvp, eda, temp} body,
// the same payload the TCP receiver accepts
func (s *Server) handlePostAlert(w http.ResponseWriter, r *http.Request) {
	var reading alert.Reading
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAlertBody))
	if err := dec.Decode(&reading); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(errors.ErrCodeAlertDecode, "decode alert", err))
		return
	}

	a := alert.Classify(reading)
	a.ID = uuid.New().String()
	a.Seq = s.alertSeq.Add(1)
	a.Source = r.RemoteAddr
	a.ReceivedAt = time.Now().UTC()

	s.logger.Info("stress alert received",
		"seq", a.Seq,
		"eda", reading.EDA,
		"zone", string(a.Zone),
		"source", a.Source)
	if s.metrics != nil {
		s.metrics.AlertsReceived.WithLabelValues(string(a.Zone)).Inc()
	}

	if s.alerts != nil {
		if err := s.alerts.RecordAlert(r.Context(), a); err != nil {
			s.logger.WithError(err).Error("store alert failed")
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusAccepted, a)
}
