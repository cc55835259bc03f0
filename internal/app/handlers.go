package app

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/klabast/wb-services/signup-calendar/internal/ledger"
	"github.com/klabast/wb-services/signup-calendar/internal/mirror"
	"github.com/klabast/wb-services/signup-calendar/internal/storage"
)

// refresh re-reads a shared backend when read-through is on. It writes the
// 500 itself and reports false on failure.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) bool {
	if !s.readThrough {
		return true
	}
	if err := s.ledger.Reload(r.Context()); err != nil {
		s.writeInternal(w, r, ErrFailedToRead, err)
		return false
	}
	return true
}

// HandleHealth reports liveness and how the server is deployed.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:           "ok",
		Timestamp:        s.clock().UTC(),
		Mode:             s.cfg.Mode(),
		Storage:          string(s.cfg.Storage.Type),
		RemoteConfigured: s.cfg.RemoteConfigured(),
	})
}

// HandleSlots returns the remaining slot dates and the offered preferences.
func (s *Server) HandleSlots(w http.ResponseWriter, r *http.Request) {
	cal := s.ledger.Calendar()
	s.writeJSON(w, http.StatusOK, SlotsResponse{
		Weekday:         cal.Weekday.String(),
		Dates:           cal.Dates(s.clock()),
		SlotPreferences: s.ledger.SlotPreferences(),
	})
}

// HandleSubscribe serves the slot dates as an iCalendar subscription feed.
func (s *Server) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if !s.refresh(w, r) {
		return
	}
	cal := s.ledger.Calendar()
	now := s.clock()

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	if err := writeSubscriptionICS(w, cal.Dates(now), s.ledger.Public(), cal.Weekday, now); err != nil {
		s.log.Warn("error writing subscription feed", zap.Error(err))
	}
}

// HandleCalendar returns the full ledger.
func (s *Server) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	if !s.refresh(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.ledger.All())
}

// HandlePublicCalendar returns the ledger without contact details.
func (s *Server) HandlePublicCalendar(w http.ResponseWriter, r *http.Request) {
	if !s.refresh(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.ledger.Public())
}

// HandleAddAttendee records a signup.
func (s *Server) HandleAddAttendee(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req AttendeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	_, err := s.ledger.Add(r.Context(), req.DateKey, req.Name, req.Phone, req.Mass)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, StatusResponse{Success: true, Message: "Attendee added successfully"})
	case errors.Is(err, ledger.ErrConflict):
		s.writeError(w, r, http.StatusBadRequest, ErrNameExists)
	case errors.Is(err, ledger.ErrValidation):
		s.writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		s.writeInternal(w, r, ErrFailedToAdd, err)
	}
}

// HandleAttendees returns the signups for one date, [] when there are none.
func (s *Server) HandleAttendees(w http.ResponseWriter, r *http.Request) {
	if !s.refresh(w, r) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.ledger.ByDate(r.PathValue("dateKey")))
}

func (s *Server) downloadJSON(variant ledger.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.refresh(w, r) {
			return
		}
		body, err := s.ledger.ExportJSON(variant)
		if err != nil {
			s.writeInternal(w, r, ErrFailedToGenerateJSON, err)
			return
		}
		name := ledger.ExportFilename(s.cfg.ArtifactPrefix, variant, s.clock(), "json")
		s.writeAttachment(w, "application/json; charset=utf-8", name, body)
	}
}

func (s *Server) downloadCSV(variant ledger.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.refresh(w, r) {
			return
		}
		name := ledger.ExportFilename(s.cfg.ArtifactPrefix, variant, s.clock(), "csv")
		s.writeAttachment(w, "text/csv; charset=utf-8", name, []byte(s.ledger.ExportCSV(variant)))
	}
}

func (s *Server) writeCSV(variant ledger.Variant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.refresh(w, r) {
			return
		}
		name, err := mirror.Write(r.Context(), s.store, s.ledger.All(), variant, s.cfg.ArtifactPrefix, s.clock())
		if err != nil {
			s.writeInternal(w, r, ErrFailedToWriteCSV, err)
			return
		}
		s.log.Info("csv written", zap.String("file", name), zap.String("variant", string(variant)))
		s.writeJSON(w, http.StatusOK, StatusResponse{
			Success:  true,
			Message:  "CSV file written successfully",
			Filename: name,
		})
	}
}

// HandleCSVFiles lists stored CSV artifacts, newest first.
func (s *Server) HandleCSVFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListArtifacts(r.Context())
	if err != nil {
		s.writeInternal(w, r, ErrFailedToListCSV, err)
		return
	}
	if files == nil {
		files = []storage.ArtifactInfo{}
	}
	s.writeJSON(w, http.StatusOK, files)
}

// HandleCSVDownload sends a stored CSV artifact.
func (s *Server) HandleCSVDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if !storage.ValidArtifactName(name) {
		s.writeError(w, r, http.StatusBadRequest, ErrInvalidFilename)
		return
	}
	body, err := s.store.GetArtifact(r.Context(), name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, ErrFileNotFound)
		return
	case errors.Is(err, storage.ErrInvalidName):
		s.writeError(w, r, http.StatusBadRequest, ErrInvalidFilename)
		return
	case err != nil:
		s.writeInternal(w, r, ErrFailedToDownload, err)
		return
	}
	s.writeAttachment(w, "text/csv; charset=utf-8", name, body)
}

// HandleNotFound answers unmatched routes.
func (s *Server) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusNotFound, ErrNotFound)
}
