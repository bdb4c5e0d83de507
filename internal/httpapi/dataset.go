package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/keeper-security/ksm-profile/pkg/dataset"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	s.mu.Lock()
	ds, err := s.profile.DataSet()
	s.mu.Unlock()

	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if ds == nil {
		s.respondError(w, r, fmt.Errorf("%w: profile has no data", errNotFound))
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		if err := dataset.Encode(w, ds); err != nil {
			s.logger.Error("failed to encode data set", "error", err)
			return
		}
	case "csv":
		name := r.URL.Query().Get("table")
		table := ds.Table(name)
		if table == nil {
			s.respondError(w, r, fmt.Errorf("%w: table %q", errNotFound, name))
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".csv"))
		if err := dataset.WriteCSV(w, table); err != nil {
			s.logger.Error("failed to write csv", "table", name, "error", err)
			return
		}
	default:
		s.respondError(w, r, fmt.Errorf("%w: unknown format %q", errBadRequest, format))
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveExport(start)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ds, err := dataset.Decode(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	s.mu.Lock()
	err = s.profile.SetDataSet(ds)
	s.mu.Unlock()

	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveImport(start)
	}
	w.WriteHeader(http.StatusNoContent)
}
