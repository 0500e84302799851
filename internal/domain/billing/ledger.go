package billing

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger remembers which webhook events were applied and what was paid.
type Ledger interface {
	// MarkProcessed returns false when the event id was already recorded.
	MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error)
	// Forget drops an event id so that a failed event can be retried.
	Forget(ctx context.Context, eventID string) error
	RecordPayment(ctx context.Context, p *Payment) error
	// PaymentsFor lists an account's payments, newest first.
	PaymentsFor(ctx context.Context, email string) ([]Payment, error)
}

type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	res := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ProcessedEvent{EventID: eventID, Type: eventType})
	if res.Error != nil {
		return false, fmt.Errorf("mark event %s processed: %w", eventID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (l *GormLedger) Forget(ctx context.Context, eventID string) error {
	if err := l.db.WithContext(ctx).Where("event_id = ?", eventID).Delete(&ProcessedEvent{}).Error; err != nil {
		return fmt.Errorf("forget event %s: %w", eventID, err)
	}
	return nil
}

func (l *GormLedger) RecordPayment(ctx context.Context, p *Payment) error {
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "stripe_session_id"}}, DoNothing: true}).
		Create(p).Error
	if err != nil {
		return fmt.Errorf("record payment for session %s: %w", p.StripeSessionID, err)
	}
	return nil
}

func (l *GormLedger) PaymentsFor(ctx context.Context, email string) ([]Payment, error) {
	var payments []Payment
	if err := l.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("load payments for %s: %w", email, err)
	}
	return payments, nil
}

// MemoryLedger keeps the ledger in process. It is used when no database is
// configured and in tests.
type MemoryLedger struct {
	mu       sync.Mutex
	events   map[string]string
	Payments []Payment
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{events: map[string]string{}}
}

func (l *MemoryLedger) MarkProcessed(_ context.Context, eventID, eventType string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.events[eventID]; ok {
		return false, nil
	}
	l.events[eventID] = eventType
	return true, nil
}

func (l *MemoryLedger) Forget(_ context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.events, eventID)
	return nil
}

func (l *MemoryLedger) RecordPayment(_ context.Context, p *Payment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.Payments {
		if existing.StripeSessionID == p.StripeSessionID {
			return nil
		}
	}
	p.ID = uint(len(l.Payments) + 1)
	l.Payments = append(l.Payments, *p)
	return nil
}

func (l *MemoryLedger) PaymentsFor(_ context.Context, email string) ([]Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []Payment{}
	for i := len(l.Payments) - 1; i >= 0; i-- {
		if l.Payments[i].Email == email {
			out = append(out, l.Payments[i])
		}
	}
	return out, nil
}
