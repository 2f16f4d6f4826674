package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"lv-backoffice/internal/events"
	"lv-backoffice/internal/model"
	"lv-backoffice/internal/store"

	"github.com/google/uuid"
)

// Entry is one lifecycle transition to be recorded.
type Entry struct {
	Action     string
	ActorID    string
	ActorName  string
	TargetType string
	TargetID   string
	Before     any
	After      any
	Reason     string
}

// Recorder persists audit records and broadcasts them on the review bus.
// Writes are best-effort: a failed audit write must never roll back the
// ledger mutation it describes, so Write runs async and swallows errors
// into the log.
type Recorder struct {
	st  store.Store
	bus *events.Bus
	log *slog.Logger
}

func NewRecorder(st store.Store, bus *events.Bus, log *slog.Logger) *Recorder {
	return &Recorder{st: st, bus: bus, log: log}
}

func (r *Recorder) Write(e Entry) {
	rec := model.AuditRecord{
		ID:         uuid.NewString(),
		Action:     e.Action,
		ActorID:    e.ActorID,
		ActorName:  e.ActorName,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Before:     snapshot(e.Before),
		After:      snapshot(e.After),
		Reason:     e.Reason,
		CreatedAt:  time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.st.Audit().Append(ctx, rec); err != nil {
			r.log.Warn("audit write failed", "action", rec.Action, "target", rec.TargetID, "error", err)
		}
		if r.bus != nil {
			r.bus.Publish(events.Event{Type: "audit", Data: rec})
		}
	}()
}

func snapshot(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
