package eventlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"signescrow/core/events"
)

const (
	defaultBuffer    = 1024
	defaultBatchSize = 128
	flushInterval    = 250 * time.Millisecond
	maxQueryLimit    = 500
)

// ErrUnsupportedDriver is returned by Open for unknown drivers.
var ErrUnsupportedDriver = errors.New("eventlog: unsupported driver")

// Filter narrows a Query. Zero values match everything.
type Filter struct {
	Contract     string
	Type         string
	TxHash       string
	FromSequence uint32
	Limit        int
}

// Store archives committed events through gorm. Emit never blocks the ledger;
// rows are written by Run.
type Store struct {
	db      *gorm.DB
	queue   chan events.Committed
	logger  *slog.Logger
	dropped atomic.Uint64

	flushMu sync.Mutex
}

// Open connects to the archive database and migrates the schema. Supported
// drivers are "sqlite" and "postgres".
func Open(driver, dsn string, log *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", driver, err)
	}
	return New(db, log)
}

// New wraps an open gorm handle.
func New(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("eventlog: nil database")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return &Store{
		db:     db,
		queue:  make(chan events.Committed, defaultBuffer),
		logger: log,
	}, nil
}

// Emit implements events.Emitter. Only committed contract events are archived.
func (s *Store) Emit(evt events.Event) {
	committed, ok := evt.(events.Committed)
	if !ok || committed.Event == nil {
		return
	}
	select {
	case s.queue <- committed:
	default:
		s.dropped.Add(1)
	}
}

// Dropped reports events lost because the queue was full.
func (s *Store) Dropped() uint64 { return s.dropped.Load() }

// Run writes queued events until ctx is done, then flushes what is left.
func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()
	pending := make([]events.Committed, 0, defaultBatchSize)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if err := s.write(context.Background(), pending); err != nil {
			s.logger.Error("event archive write failed", slog.Int("events", len(pending)), slog.Any("error", err))
		}
		pending = pending[:0]
	}
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case evt := <-s.queue:
					pending = append(pending, evt)
				default:
					flush()
					return nil
				}
			}
		case evt := <-s.queue:
			pending = append(pending, evt)
			if len(pending) >= defaultBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Append writes events synchronously.
func (s *Store) Append(ctx context.Context, batch ...events.Committed) error {
	return s.write(ctx, batch)
}

func (s *Store) write(ctx context.Context, batch []events.Committed) error {
	rows := make([]*Record, 0, len(batch))
	for _, c := range batch {
		rec, err := recordFrom(c)
		if err != nil {
			return err
		}
		if rec != nil {
			rows = append(rows, rec)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	return s.db.WithContext(ctx).CreateInBatches(rows, defaultBatchSize).Error
}

// Query returns archived events in commit order.
func (s *Store) Query(ctx context.Context, f Filter) ([]events.Committed, error) {
	limit := f.Limit
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	q := s.db.WithContext(ctx).Model(&Record{})
	if f.Contract != "" {
		q = q.Where("contract = ?", f.Contract)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.TxHash != "" {
		q = q.Where("tx_hash = ?", f.TxHash)
	}
	if f.FromSequence > 0 {
		q = q.Where("sequence >= ?", f.FromSequence)
	}
	var rows []Record
	if err := q.Order("sequence asc").Order("id asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("eventlog: query: %w", err)
	}
	out := make([]events.Committed, 0, len(rows))
	for i := range rows {
		c, err := rows[i].Committed()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
