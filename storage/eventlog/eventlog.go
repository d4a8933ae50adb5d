// Package eventlog keeps a queryable history of committed contract events in
// SQLite so backends can page through escrow activity without replaying
// state.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paylinkchain/core/events"
	"paylinkchain/core/types"
)

// ErrPathRequired is returned when the backing store path is missing.
var ErrPathRequired = errors.New("eventlog: path must be configured")

// Record is one persisted event.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq        uint64    `gorm:"uniqueIndex;not null"`
	Type       string    `gorm:"size:64;index"`
	Commitment string    `gorm:"size:64;index"`
	Account    string    `gorm:"size:96;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time
}

// Query filters List. Zero fields are ignored.
type Query struct {
	Type       string
	Commitment string
	Account    string
	AfterSeq   uint64
	Limit      int
}

// Store persists events through gorm.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger

	mu  sync.Mutex
	seq uint64
}

// Open initialises the store at path. Use "file::memory:" for an in-process
// database.
func Open(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := gorm.Open(sqlite.Open(trimmed), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	store := &Store{db: db, logger: slog.Default()}
	var last Record
	res := db.Order("seq desc").Limit(1).Find(&last)
	if res.Error != nil {
		return nil, fmt.Errorf("load sequence: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		store.seq = last.Seq
	}
	return store, nil
}

// SetLogger overrides the logger used for write failures.
func (s *Store) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Append stores evt and returns its sequence number.
func (s *Store) Append(ctx context.Context, evt *types.Event) (uint64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("eventlog not configured")
	}
	if evt == nil {
		return 0, fmt.Errorf("nil event")
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return 0, fmt.Errorf("encode attributes: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := Record{
		ID:         uuid.New(),
		Seq:        s.seq + 1,
		Type:       evt.Type,
		Commitment: evt.Attributes["commitment"],
		Account:    primaryAccount(evt),
		Attributes: string(attrs),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	s.seq = rec.Seq
	return rec.Seq, nil
}

func primaryAccount(evt *types.Event) string {
	for _, key := range []string{"owner", "account", "admin", "to"} {
		if v := evt.Attributes[key]; v != "" {
			return v
		}
	}
	return ""
}

// Emit implements events.Emitter. The node calls it serially after commit, so
// sequence numbers follow commit order.
func (s *Store) Emit(evt events.Event) {
	payload, ok := evt.(events.Payload)
	if !ok || payload.Event() == nil {
		return
	}
	if _, err := s.Append(context.Background(), payload.Event()); err != nil {
		s.logger.Error("eventlog append failed", slog.String("type", payload.EventType()), slog.Any("error", err))
	}
}

// List returns events matching q in sequence order.
func (s *Store) List(ctx context.Context, q Query) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("eventlog not configured")
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	tx := s.db.WithContext(ctx).Model(&Record{}).Where("seq > ?", q.AfterSeq)
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.Commitment != "" {
		tx = tx.Where("commitment = ?", strings.ToLower(q.Commitment))
	}
	if q.Account != "" {
		tx = tx.Where("account = ?", q.Account)
	}
	var rows []Record
	if err := tx.Order("seq asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		attrs := map[string]string{}
		if row.Attributes != "" {
			if err := json.Unmarshal([]byte(row.Attributes), &attrs); err != nil {
				return nil, fmt.Errorf("decode event %d: %w", row.Seq, err)
			}
		}
		out = append(out, Entry{
			Seq:       row.Seq,
			ID:        row.ID.String(),
			Event:     types.Event{Type: row.Type, Attributes: attrs},
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

// Entry is the API shape returned by List.
type Entry struct {
	Seq       uint64      `json:"seq"`
	ID        string      `json:"id"`
	Event     types.Event `json:"event"`
	CreatedAt time.Time   `json:"createdAt"`
}
