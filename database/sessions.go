package database

import (
	"context"
	"time"

	"consulta-backend/calendar"
	"consulta-backend/models"

	"gorm.io/gorm"
)

// SessionSource serves stored sessions as calendar events, so the aggregator can run
// over what sync last materialized instead of calling Google.
type SessionSource struct {
	db *gorm.DB
}

func NewSessionSource(db *gorm.DB) *SessionSource {
	return &SessionSource{db: db}
}

// Events ignores calendarID; the sessions table mirrors a single calendar.
func (s *SessionSource) Events(ctx context.Context, _ string, from, to time.Time) ([]calendar.Event, error) {
	var rows []models.Session
	err := s.db.WithContext(ctx).
		Where("starts_at >= ? AND starts_at < ?", from.UTC(), to.UTC()).
		Order("starts_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]calendar.Event, 0, len(rows))
	for _, r := range rows {
		ev := calendar.Event{
			ID:      r.GoogleEventID,
			Title:   r.Title,
			Start:   r.StartsAt,
			End:     r.EndsAt,
			ColorID: r.Color,
		}
		if r.Status == models.SessionCancelled {
			ev.Status = calendar.StatusCancelled
		}
		out = append(out, ev)
	}
	return out, nil
}
