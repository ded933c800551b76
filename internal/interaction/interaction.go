// Package interaction persists one record per visitor who reached the
// showroom entrance.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownBackend = errors.New("unknown interaction backend")
	ErrNotConfigured  = errors.New("interaction backend not configured")
)

type Record struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Name      string    `json:"name"`
	Product   string    `json:"product"`
	Timestamp time.Time `json:"timestamp"`
}

type Store interface {
	Save(ctx context.Context, rec *Record) error
	// List returns the newest records first.
	List(ctx context.Context, limit int) ([]Record, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Publisher announces saved records to other systems.
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}

// Service saves records and publishes them when a publisher is set.
type Service struct {
	store     Store
	publisher Publisher
	logger    *logrus.Logger
	now       func() time.Time
}

func NewService(st Store, pub Publisher, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{store: st, publisher: pub, logger: logger, now: time.Now}
}

// Record fills in the ID and a missing timestamp, then saves rec. A publish
// failure is logged and does not fail the call.
func (s *Service) Record(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	rec.Timestamp = rec.Timestamp.UTC()
	if err := s.store.Save(ctx, &rec); err != nil {
		return Record{}, fmt.Errorf("save interaction: %w", err)
	}
	fields := logrus.Fields{"id": rec.ID, "name": rec.Name, "product": rec.Product}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, rec); err != nil {
			s.logger.WithError(err).WithFields(fields).Warn("failed to publish interaction")
		}
	}
	s.logger.WithFields(fields).Info("interaction saved")
	return rec, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.store.List(ctx, limit)
}

func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }
