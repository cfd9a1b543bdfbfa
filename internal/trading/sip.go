package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"basket-trader/internal/engine"
	errs "basket-trader/internal/errors"
	"basket-trader/internal/logging"
	"basket-trader/internal/models"
	"basket-trader/internal/store"
	"basket-trader/pkg/utils"
)

// SIPService manages systematic investment plan schedules and their
// daily execution.
type SIPService struct {
	store  store.DataStore
	invest *InvestmentService
	log    zerolog.Logger
	now    func() time.Time
}

// NewSIPService creates a new SIP service.
func NewSIPService(ds store.DataStore, invest *InvestmentService, log zerolog.Logger) *SIPService {
	return &SIPService{
		store:  ds,
		invest: invest,
		log:    log.With().Str("component", "sip").Logger(),
		now:    time.Now,
	}
}

// CreateSIPParams holds the inputs for creating a SIP schedule.
type CreateSIPParams struct {
	BasketID   string
	Amount     decimal.Decimal
	Frequency  models.SIPFrequency
	DayOfWeek  time.Weekday // weekly only; zero value (Sunday) defaults to Monday
	DayOfMonth int          // monthly only; zero defaults to 1
	StartDate  time.Time    // zero value defaults to today
	EndDate    *time.Time   // optional
}

// Create validates and persists a new SIP schedule. The first execution
// is due on the start date.
func (s *SIPService) Create(ctx context.Context, p CreateSIPParams) (*models.SIPSchedule, error) {
	basket, err := s.store.GetBasket(ctx, p.BasketID)
	if err != nil {
		return nil, err
	}
	if len(basket.Constituents) == 0 {
		return nil, errs.ErrBasketEmpty
	}
	if !p.Amount.IsPositive() {
		return nil, errs.NewValidationError("amount", p.Amount.String(), "must be positive")
	}

	switch p.Frequency {
	case models.SIPDaily, models.SIPWeekly, models.SIPMonthly:
	default:
		return nil, errs.NewValidationError("frequency", string(p.Frequency), "must be DAILY, WEEKLY, or MONTHLY")
	}

	dayOfWeek := p.DayOfWeek
	if p.Frequency == models.SIPWeekly && dayOfWeek == time.Sunday {
		// Sunday is not a trading day; the zero value means unset.
		dayOfWeek = time.Monday
	}

	dayOfMonth := p.DayOfMonth
	if p.Frequency == models.SIPMonthly {
		if dayOfMonth == 0 {
			dayOfMonth = 1
		}
		if dayOfMonth < 1 || dayOfMonth > 31 {
			return nil, errs.NewValidationError("day_of_month", fmt.Sprintf("%d", dayOfMonth), "must be between 1 and 31")
		}
	}

	start := engine.DateOnly(p.StartDate)
	today := engine.DateOnly(s.now())
	if p.StartDate.IsZero() || start.Before(today) {
		start = today
	}
	if p.EndDate != nil && engine.DateOnly(*p.EndDate).Before(start) {
		return nil, errs.NewValidationError("end_date", p.EndDate.Format("2006-01-02"), "must not be before the start date")
	}

	now := s.now()
	sip := &models.SIPSchedule{
		ID:                uuid.NewString(),
		BasketID:          p.BasketID,
		Amount:            p.Amount,
		Frequency:         p.Frequency,
		DayOfWeek:         dayOfWeek,
		DayOfMonth:        dayOfMonth,
		StartDate:         start,
		EndDate:           p.EndDate,
		NextExecutionDate: start,
		Status:            models.SIPActive,
		TotalInvested:     decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.store.SaveSIP(ctx, sip); err != nil {
		return nil, fmt.Errorf("saving SIP: %w", err)
	}

	s.log.Info().
		Str("sip_id", sip.ID).
		Str("basket_id", sip.BasketID).
		Str("frequency", string(sip.Frequency)).
		Str("amount", sip.Amount.String()).
		Msg("SIP created")
	return sip, nil
}

// Pause suspends an active SIP.
func (s *SIPService) Pause(ctx context.Context, sipID string) (*models.SIPSchedule, error) {
	return s.transition(ctx, sipID, func(sip models.SIPSchedule) (models.SIPSchedule, error) {
		return engine.PauseSIP(sip)
	})
}

// Resume reactivates a paused SIP. The next execution is recomputed
// from today rather than backfilling missed installments.
func (s *SIPService) Resume(ctx context.Context, sipID string) (*models.SIPSchedule, error) {
	return s.transition(ctx, sipID, func(sip models.SIPSchedule) (models.SIPSchedule, error) {
		return engine.ResumeSIP(sip, s.now())
	})
}

// Cancel permanently cancels a SIP.
func (s *SIPService) Cancel(ctx context.Context, sipID string) (*models.SIPSchedule, error) {
	return s.transition(ctx, sipID, func(sip models.SIPSchedule) (models.SIPSchedule, error) {
		return engine.CancelSIP(sip)
	})
}

func (s *SIPService) transition(ctx context.Context, sipID string, fn func(models.SIPSchedule) (models.SIPSchedule, error)) (*models.SIPSchedule, error) {
	sip, err := s.store.GetSIP(ctx, sipID)
	if err != nil {
		return nil, err
	}

	updated, err := fn(*sip)
	if err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.now()

	if err := s.store.SaveSIP(ctx, &updated); err != nil {
		return nil, fmt.Errorf("saving SIP: %w", err)
	}
	return &updated, nil
}

// Get returns a SIP schedule by ID.
func (s *SIPService) Get(ctx context.Context, sipID string) (*models.SIPSchedule, error) {
	return s.store.GetSIP(ctx, sipID)
}

// List returns SIP schedules, optionally filtered by status.
func (s *SIPService) List(ctx context.Context, status models.SIPStatus) ([]models.SIPSchedule, error) {
	return s.store.ListSIPs(ctx, status)
}

// Run executes one installment of a SIP for the given day. The schedule
// advances only after the investment succeeds and the execution is
// recorded; a second run on the same day fails with
// ErrAlreadyExecutedToday and leaves the schedule untouched.
func (s *SIPService) Run(ctx context.Context, sipID string, today time.Time) (*models.SIPExecution, error) {
	sip, err := s.store.GetSIP(ctx, sipID)
	if err != nil {
		return nil, err
	}

	today = engine.DateOnly(today)
	alreadyRan, err := s.store.HasSIPExecution(ctx, sip.ID, today)
	if err != nil {
		return nil, err
	}

	updated, err := engine.ExecuteSIP(*sip, today, alreadyRan)
	if errors.Is(err, errs.ErrSIPCompleted) {
		// End date passed: persist the terminal state.
		updated.UpdatedAt = s.now()
		if serr := s.store.SaveSIP(ctx, &updated); serr != nil {
			return nil, fmt.Errorf("saving completed SIP: %w", serr)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	result, err := s.invest.Invest(ctx, sip.BasketID, sip.Amount)
	if err != nil {
		return nil, fmt.Errorf("SIP installment failed: %w", err)
	}

	orderCount := 0
	for _, r := range result.Orders {
		if r.Accepted {
			orderCount++
		}
	}

	exec := &models.SIPExecution{
		ID:            uuid.NewString(),
		SIPID:         sip.ID,
		ExecutionDate: today,
		Amount:        sip.Amount,
		OrderCount:    orderCount,
		CreatedAt:     s.now(),
	}
	if err := s.store.RecordSIPExecution(ctx, exec); err != nil {
		// A concurrent run beat us to the day; the unique guard holds.
		return nil, err
	}

	updated.UpdatedAt = s.now()
	if err := s.store.SaveSIP(ctx, &updated); err != nil {
		return nil, fmt.Errorf("saving SIP: %w", err)
	}

	logging.LogSIPRun(s.log, sip.ID, sip.BasketID, sip.Amount.String(), orderCount)
	return exec, nil
}

// ExecuteDue runs every active SIP whose next execution date has
// arrived. Weekends are skipped entirely; an overdue schedule catches up
// on the next trading day. Failures are logged per schedule and do not
// stop the sweep.
func (s *SIPService) ExecuteDue(ctx context.Context, today time.Time) []*models.SIPExecution {
	today = engine.DateOnly(today)
	log := logging.WithOperation(s.log, "sip_sweep")

	if !utils.IsTradingDay(today) {
		log.Info().Time("date", today).Msg("Not a trading day, sweep skipped")
		return nil
	}

	sips, err := s.store.ListSIPs(ctx, models.SIPActive)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list active SIPs")
		return nil
	}

	var executed []*models.SIPExecution
	for _, sip := range sips {
		if sip.NextExecutionDate.After(today) {
			continue
		}

		exec, err := s.Run(ctx, sip.ID, today)
		if err != nil {
			if errors.Is(err, errs.ErrAlreadyExecutedToday) || errors.Is(err, errs.ErrSIPCompleted) {
				log.Debug().Str("sip_id", sip.ID).Err(err).Msg("SIP skipped")
			} else {
				log.Error().Str("sip_id", sip.ID).Err(err).Msg("SIP execution failed")
			}
			continue
		}
		executed = append(executed, exec)
	}

	return executed
}

// SIPRunner triggers the daily SIP sweep on a cron schedule in IST.
type SIPRunner struct {
	cron *cron.Cron
	svc  *SIPService
	log  zerolog.Logger
}

// NewSIPRunner creates a runner that fires the sweep per the cron spec.
// An empty spec defaults to 9:30 IST on weekdays, shortly after market
// open.
func NewSIPRunner(svc *SIPService, log zerolog.Logger, spec string) (*SIPRunner, error) {
	if spec == "" {
		spec = "30 9 * * 1-5"
	}

	r := &SIPRunner{
		cron: cron.New(cron.WithLocation(utils.IndiaLocation)),
		svc:  svc,
		log:  log.With().Str("component", "sip_runner").Logger(),
	}

	if _, err := r.cron.AddFunc(spec, r.sweep); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return r, nil
}

// Start begins the cron schedule.
func (r *SIPRunner) Start() {
	r.cron.Start()
	r.log.Info().Msg("SIP runner started")
}

// Stop halts the cron schedule and waits for a running sweep to finish.
func (r *SIPRunner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info().Msg("SIP runner stopped")
}

func (r *SIPRunner) sweep() {
	today := utils.TodayIST()
	executed := r.svc.ExecuteDue(context.Background(), today)
	r.log.Info().
		Time("date", today).
		Int("executed", len(executed)).
		Msg("SIP sweep complete")
}
