package reconcile

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/slotbook-backend/internal/orders"
	"github.com/angelmondragon/slotbook-backend/internal/slots"
	"github.com/angelmondragon/slotbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/slotbook-backend/pkg/errors"
	"github.com/angelmondragon/slotbook-backend/pkg/logger"
	"github.com/angelmondragon/slotbook-backend/pkg/metrics"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox"
	"github.com/angelmondragon/slotbook-backend/pkg/outbox/payloads"
)

// JobName identifies reconciliation runs in locks, logs and metrics.
const JobName = "slot-reconcile"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SlotReport is the before/after view of one slot.
type SlotReport struct {
	ID       string           `json:"id"`
	Date     string           `json:"date"`
	Window   enums.SlotWindow `json:"window"`
	Capacity int              `json:"capacity"`
	Before   int              `json:"before"`
	After    int              `json:"after"`
}

// DailyBooked totals one calendar day after correction.
type DailyBooked struct {
	Date     string `json:"date"`
	Booked   int    `json:"booked"`
	Capacity int    `json:"capacity"`
}

// Report describes one reconciliation run.
type Report struct {
	From        string        `json:"from"`
	To          string        `json:"to"`
	Days        int           `json:"days"`
	Slots       []SlotReport  `json:"slots"`
	Corrected   int           `json:"corrected"`
	DailyBooked []DailyBooked `json:"dailyBooked"`
}

// Params wires the reconciler.
type Params struct {
	Tx       txRunner
	Slots    slots.Repository
	Orders   orders.Repository
	Outbox   outbox.Emitter
	Metrics  *metrics.ReservationMetrics
	Logger   *logger.Logger
	MaxDays  int
	Location *time.Location
}

// Service recomputes slot counters from the orders that actually hold them.
type Service struct {
	tx       txRunner
	slots    slots.Repository
	orders   orders.Repository
	outbox   outbox.Emitter
	metrics  *metrics.ReservationMetrics
	logg     *logger.Logger
	maxDays  int
	location *time.Location
	now      func() time.Time
}

// NewService validates the dependencies.
func NewService(p Params) (*Service, error) {
	switch {
	case p.Tx == nil:
		return nil, errors.New("transaction runner required")
	case p.Slots == nil:
		return nil, errors.New("slots repository required")
	case p.Orders == nil:
		return nil, errors.New("orders repository required")
	case p.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	case p.MaxDays <= 0:
		return nil, errors.New("max days must be positive")
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		tx:       p.Tx,
		slots:    p.Slots,
		orders:   p.Orders,
		outbox:   p.Outbox,
		metrics:  p.Metrics,
		logg:     p.Logger,
		maxDays:  p.MaxDays,
		location: loc,
		now:      time.Now,
	}, nil
}

// MaxDays is the widest window a run accepts.
func (s *Service) MaxDays() int {
	return s.maxDays
}

// Reconcile overwrites the reserved counter of every existing slot from today
// through today+days-1 with the number of non-canceled orders holding it.
func (s *Service) Reconcile(ctx context.Context, days int) (*Report, error) {
	if days < 1 || days > s.maxDays {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "days out of range").
			WithDetails(map[string]any{"days": days, "max": s.maxDays})
	}
	start, _ := time.Parse(slots.DateLayout, slots.Today(s.now(), s.location))
	dates := slots.DateRange(start, days)

	var report *Report
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		report = &Report{From: dates[0], To: dates[len(dates)-1], Days: days}

		slotsRepo := s.slots.WithTx(tx)
		rows, err := slotsRepo.ListRange(ctx, report.From, report.To, true)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock slots")
		}
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		counts, err := s.orders.WithTx(tx).CountActiveBySlot(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count active holds")
		}

		daily := make(map[string]*DailyBooked, len(dates))
		for _, d := range dates {
			daily[d] = &DailyBooked{Date: d}
		}

		report.Slots = make([]SlotReport, 0, len(rows))
		for _, row := range rows {
			actual := counts[row.ID]
			entry := SlotReport{
				ID:       row.ID,
				Date:     row.Date,
				Window:   row.Window,
				Capacity: row.Capacity,
				Before:   row.Reserved,
				After:    actual,
			}
			report.Slots = append(report.Slots, entry)
			if d, ok := daily[row.Date]; ok {
				d.Booked += actual
				d.Capacity += row.Capacity
			}
			if actual == row.Reserved {
				continue
			}
			if err := slotsRepo.SetReserved(ctx, row.ID, actual); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "correct slot")
			}
			report.Corrected++
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventSlotReconciled,
				AggregateType: enums.AggregateSlot,
				AggregateID:   row.ID,
				Data:          payloads.SlotReconciledEvent{SlotID: row.ID, Before: row.Reserved, After: actual},
			}); err != nil {
				return err
			}
		}

		report.DailyBooked = make([]DailyBooked, 0, len(dates))
		for _, d := range dates {
			report.DailyBooked = append(report.DailyBooked, *daily[d])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddCorrections(report.Corrected)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"from":      report.From,
			"to":        report.To,
			"slots":     len(report.Slots),
			"corrected": report.Corrected,
		})
		s.logg.Info(logCtx, "reconcile.completed")
	}
	return report, nil
}

// Job adapts a reconciliation run to the job runner.
type Job struct {
	service *Service
	days    int
	last    *Report
}

// NewJob builds a job reconciling the next days days.
func NewJob(service *Service, days int) *Job {
	return &Job{service: service, days: days}
}

func (j *Job) Name() string { return JobName }

func (j *Job) Run(ctx context.Context) error {
	report, err := j.service.Reconcile(ctx, j.days)
	if err != nil {
		return err
	}
	j.last = report
	return nil
}

// Report returns the result of the last successful run.
func (j *Job) Report() *Report {
	return j.last
}
