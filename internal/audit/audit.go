// Package audit records notable authentication and membership events.
// Recording is best-effort: a failed audit write never fails the operation
// that triggered it.
package audit

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"teamsched/internal/models"
)

// Recorder appends audit log rows.
type Recorder struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewRecorder returns a Recorder writing through db.
func NewRecorder(db *gorm.DB, log zerolog.Logger) *Recorder {
	return &Recorder{db: db, log: log}
}

// Record appends one audit entry. metadata may be nil.
func (r *Recorder) Record(ctx context.Context, actorID *uint, action, targetType string, targetID uint, metadata map[string]any) {
	if r == nil || r.db == nil {
		return
	}

	entry := models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
	}
	if targetID != 0 {
		id := strconv.FormatUint(uint64(targetID), 10)
		entry.TargetID = &id
	}
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			entry.Metadata = raw
		}
	}

	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		r.log.Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
}
