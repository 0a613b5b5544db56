package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dscengine/core/events"
	"dscengine/observability"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Record is one indexed event. Account and Counterparty hold the two parties
// an event can name so both sides can query it.
type Record struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Type         string    `gorm:"index;not null" json:"type"`
	Account      string    `gorm:"index" json:"account,omitempty"`
	Counterparty string    `gorm:"index" json:"counterparty,omitempty"`
	Asset        string    `json:"asset,omitempty"`
	Amount       string    `json:"amount,omitempty"`
	Attributes   string    `gorm:"type:text" json:"-"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
}

// TableName pins the table name independently of the struct name.
func (Record) TableName() string { return "dsc_events" }

// Decoded returns the raw attribute map stored with the record.
func (r Record) Decoded() map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(r.Attributes) == "" {
		return out
	}
	_ = json.Unmarshal([]byte(r.Attributes), &out)
	return out
}

// Filter narrows a List query. Zero values match everything.
type Filter struct {
	Account string
	Type    string
	Limit   int
}

// Open connects to the configured database. postgres:// and postgresql://
// DSNs use the Postgres driver, anything else is handed to sqlite.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("eventstore: dsn required")
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("eventstore: open: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates the event table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}

// Store persists emitted events and serves them back by account or type.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// New wraps an already migrated database handle.
func New(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger, now: time.Now}
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	if s == nil || now == nil {
		return
	}
	s.now = now
}

// Emit implements events.Emitter. Write failures are logged; emitters never
// report back to the operation that produced the event.
func (s *Store) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	if err := s.Append(context.Background(), evt); err != nil {
		s.logger.Error("eventstore: append failed",
			slog.String("event_type", evt.EventType()),
			slog.Any("error", err))
	}
}

// Append indexes a single event.
func (s *Store) Append(ctx context.Context, evt events.Event) error {
	flat := evt.Event()
	if flat == nil {
		return errors.New("eventstore: event has no payload")
	}
	attrs, err := json.Marshal(flat.Attributes)
	if err != nil {
		return fmt.Errorf("eventstore: encode attributes: %w", err)
	}
	account, counterparty := parties(flat.Attributes)
	record := Record{
		ID:           uuid.New(),
		Type:         flat.Type,
		Account:      account,
		Counterparty: counterparty,
		Asset:        firstOf(flat.Attributes, "asset", "token"),
		Amount:       firstOf(flat.Attributes, "amount", "debtCovered", "total"),
		Attributes:   string(attrs),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("eventstore: insert: %w", err)
	}
	observability.Events().RecordEvent(flat.Type)
	return nil
}

// List returns matching events oldest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	query := s.db.WithContext(ctx).Model(&Record{})
	if account := strings.TrimSpace(filter.Account); account != "" {
		query = query.Where("account = ? OR counterparty = ?", account, account)
	}
	if eventType := strings.TrimSpace(filter.Type); eventType != "" {
		query = query.Where("type = ?", eventType)
	}
	var records []Record
	if err := query.Order("created_at ASC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("eventstore: list: %w", err)
	}
	return records, nil
}

func parties(attrs map[string]string) (string, string) {
	account := firstOf(attrs, "account", "from", "onBehalfOf", "debtor")
	counterparty := firstOf(attrs, "to", "payer", "liquidator")
	if counterparty == account {
		counterparty = ""
	}
	return account, counterparty
}

func firstOf(attrs map[string]string, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(attrs[key]); value != "" {
			return value
		}
	}
	return ""
}
