package api

import (
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/devicepulse/backend/internal/services/archive"
)

// Health reports dependency liveness. The archive writer is optional; when
// absent only the database counts.
type Health struct {
	db      *gorm.DB
	archive *archive.Writer
}

func NewHealth(db *gorm.DB, arch *archive.Writer) *Health {
	return &Health{db: db, archive: arch}
}

func (h *Health) dbOK(r *http.Request) bool {
	sqlDB, err := h.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(r.Context()) == nil
}

// HandleHealthz answers ok / degraded / down.
func (h *Health) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	type status struct {
		Status          string  `json:"status"`
		DatabaseOK      bool    `json:"database_ok"`
		ArchiveEnabled  bool    `json:"archive_enabled"`
		LastWriteErrorS float64 `json:"last_archive_error_age_sec"`
	}
	st := status{
		DatabaseOK:      h.dbOK(r),
		ArchiveEnabled:  h.archive != nil,
		LastWriteErrorS: h.archive.LastErrorAge().Seconds(),
	}
	archiveOK := h.archive == nil || h.archive.LastErrorAge() > 30*time.Second

	switch {
	case st.DatabaseOK && archiveOK:
		st.Status = "ok"
	case st.DatabaseOK:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleReadyz is 200 only when every dependency is usable.
func (h *Health) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	ready := h.dbOK(r) && (h.archive == nil || h.archive.LastErrorAge() > 5*time.Second)
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]bool{"ready": ready})
}
