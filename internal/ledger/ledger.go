package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"main/internal/schema"
	"main/pkg/conn"
)

// FillRecord is one executed trade with the accounting that resulted from
// it, persisted for post-session analysis.
type FillRecord struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	OrderID  uint64 `gorm:"index"`
	Side     string `gorm:"size:4"`
	Price    int64
	Qty      int64
	Fee      int64
	Position int64
	Realized int64
	FilledAt time.Time `gorm:"index"`
}

// TableName pins the table the engine writes to.
func (FillRecord) TableName() string { return "fills" }

// Ledger persists fills to PostgreSQL off the event loop. Writes go
// through a buffered queue; when the queue is full the record is dropped
// with a warning rather than stalling quoting.
type Ledger struct {
	db *gorm.DB
	ch chan FillRecord
	wg sync.WaitGroup

	closeOnce sync.Once
}

// New migrates the fills table and creates a ledger over the client.
func New(client *conn.Client, queueSize int) (*Ledger, error) {
	db := client.DB()
	if db == nil {
		return nil, errors.New("postgres client is nil")
	}
	if err := db.AutoMigrate(&FillRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate fills table")
	}
	if queueSize <= 0 {
		queueSize = 1 << 10
	}
	return &Ledger{
		db: db,
		ch: make(chan FillRecord, queueSize),
	}, nil
}

// Start runs the insert loop until the context ends or Close is called.
func (l *Ledger) Start(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for rec := range l.ch {
			if err := l.db.WithContext(ctx).Create(&rec).Error; err != nil {
				logs.Errorf("ledger insert order %d: %v", rec.OrderID, err)
			}
		}
	}()
}

// TryRecord enqueues one fill without blocking.
func (l *Ledger) TryRecord(fill schema.Fill, position schema.Quantity, realized schema.Notional, at time.Time) {
	rec := FillRecord{
		OrderID:  fill.OrderID,
		Side:     sideLabel(fill.Side),
		Price:    int64(fill.Price),
		Qty:      int64(fill.Qty),
		Fee:      int64(fill.Fee),
		Position: int64(position),
		Realized: int64(realized),
		FilledAt: at.UTC(),
	}
	select {
	case l.ch <- rec:
	default:
		logs.Warnf("ledger queue full, dropping fill for order %d", fill.OrderID)
	}
}

// RecentFills returns the most recent fills, newest first.
func (l *Ledger) RecentFills(ctx context.Context, limit int) ([]FillRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var fills []FillRecord
	err := l.db.WithContext(ctx).
		Order("filled_at desc").
		Limit(limit).
		Find(&fills).Error
	if err != nil {
		return nil, errors.Wrap(err, "query fills")
	}
	return fills, nil
}

// Close drains the queue and stops the insert loop.
func (l *Ledger) Close() {
	l.closeOnce.Do(func() { close(l.ch) })
	l.wg.Wait()
}

func sideLabel(side schema.OrderSide) string {
	if side == schema.OrderSideAsk {
		return "ask"
	}
	return "bid"
}
