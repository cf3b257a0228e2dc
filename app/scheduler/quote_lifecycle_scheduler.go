// Package scheduler runs the background lifecycle workers for quotes and sessions
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/kajiya-works/kajiya/app/services"
	"github.com/kajiya-works/kajiya/config"
	"github.com/kajiya-works/kajiya/models"
	"github.com/kajiya-works/kajiya/repository"
	"github.com/kajiya-works/kajiya/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	quotesExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_lifecycle_expired_total",
		Help: "Total number of quotes moved to expired by the background sweep",
	})

	quotesAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_lifecycle_abandoned_total",
		Help: "Total number of stale draft quotes moved to abandoned",
	})

	sweepErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_lifecycle_sweep_errors_total",
		Help: "Total number of errors per lifecycle sweep",
	}, []string{"sweep"})

	materialRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "material_price_refreshes_total",
		Help: "Total number of material price feed refreshes by outcome",
	}, []string{"outcome"})
)

// Quotes inside this window before expiry trigger a warning email
const expiryWarningWindow = 72 * time.Hour

// QuoteLifecycleScheduler periodically expires sent quotes past their expiry,
// abandons stale drafts, cleans up sessions, and refreshes material prices
type QuoteLifecycleScheduler struct {
	quoteRepo      repository.QuoteRepository
	customerRepo   repository.CustomerRepository
	sessionRepo    repository.CustomerSessionRepository
	auditRepo      repository.AuditLogRepository
	notifier       services.NotificationService
	materialPrices services.MaterialPriceService
	db             *gorm.DB
	logger         *log.Logger

	cfg      config.SchedulerConfig
	priceCfg config.MaterialPriceConfig

	// Quote IDs already warned about upcoming expiry. In-memory is enough:
	// a restart at worst repeats one email per quote.
	warnedMu sync.Mutex
	warned   map[uint]struct{}

	logFile *os.File
}

// NewQuoteLifecycleScheduler creates the lifecycle scheduler
func NewQuoteLifecycleScheduler(
	quoteRepo repository.QuoteRepository,
	customerRepo repository.CustomerRepository,
	sessionRepo repository.CustomerSessionRepository,
	auditRepo repository.AuditLogRepository,
	notifier services.NotificationService,
	materialPrices services.MaterialPriceService,
	db *gorm.DB,
	cfg config.SchedulerConfig,
	priceCfg config.MaterialPriceConfig,
) *QuoteLifecycleScheduler {
	if cfg.ExpireInterval <= 0 {
		cfg.ExpireInterval = 5 * time.Minute
	}
	if cfg.AbandonInterval <= 0 {
		cfg.AbandonInterval = time.Hour
	}
	if cfg.AbandonAfter <= 0 {
		cfg.AbandonAfter = utils.AbandonedQuoteWindow
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}

	s := &QuoteLifecycleScheduler{
		quoteRepo:      quoteRepo,
		customerRepo:   customerRepo,
		sessionRepo:    sessionRepo,
		auditRepo:      auditRepo,
		notifier:       notifier,
		materialPrices: materialPrices,
		db:             db,
		cfg:            cfg,
		priceCfg:       priceCfg,
		warned:         make(map[uint]struct{}),
	}

	if err := s.initSchedulerLogger(); err != nil {
		s.logger = log.Default()
		s.logger.Printf("scheduler: failed to initialize file logger: %v", err)
	}

	return s
}

// initSchedulerLogger configures a logger that writes to both stdout and a persistent file under data/ (or /data)
func (s *QuoteLifecycleScheduler) initSchedulerLogger() error {
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		logPath := filepath.Join(dir, "scheduler.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		s.logFile = f
		mw := io.MultiWriter(os.Stdout, f)
		s.logger = log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create scheduler log file in any candidate directory")
}

// Start launches the worker loops and returns a stop function
func (s *QuoteLifecycleScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go s.runLoop(ctx, s.cfg.ExpireInterval, "expire", s.expireSweep)
	go s.runLoop(ctx, s.cfg.AbandonInterval, "abandon", s.abandonSweep)

	if s.cfg.SessionCleanupEnable {
		go s.runLoop(ctx, time.Hour, "session_cleanup", s.sessionCleanup)
	}

	if s.materialPrices != nil && s.priceCfg.RefreshInterval > 0 {
		go s.runLoop(ctx, s.priceCfg.RefreshInterval, "material_refresh", s.refreshMaterialPrices)
	}

	return func() {
		cancel()
		if s.logFile != nil {
			s.logFile.Close()
		}
	}
}

func (s *QuoteLifecycleScheduler) runLoop(ctx context.Context, interval time.Duration, name string, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := fn(ctx); err != nil {
		sweepErrorsTotal.WithLabelValues(name).Inc()
		s.logger.Printf("scheduler: %s sweep failed: %v", name, err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				sweepErrorsTotal.WithLabelValues(name).Inc()
				s.logger.Printf("scheduler: %s sweep failed: %v", name, err)
			}
		}
	}
}

// expireSweep expires quotes past their expiry timestamp and warns customers
// whose quotes are approaching it
func (s *QuoteLifecycleScheduler) expireSweep(ctx context.Context) error {
	now := utils.UTCNow()

	upcoming, err := s.quoteRepo.ListExpiring(ctx, now.Add(expiryWarningWindow), s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("list expiring quotes: %w", err)
	}

	expired := 0
	for _, quote := range upcoming {
		if quote.ExpiresAt == nil {
			continue
		}

		if quote.ExpiresAt.After(now) {
			s.maybeWarn(ctx, quote, now)
			continue
		}

		if err := s.expireQuote(ctx, quote); err != nil {
			sweepErrorsTotal.WithLabelValues("expire").Inc()
			s.logger.Printf("scheduler: expire quote %s failed: %v", quote.UUID, err)
			continue
		}
		expired++
	}

	if expired > 0 {
		s.logger.Printf("scheduler: expired %d quotes", expired)
	}
	return nil
}

func (s *QuoteLifecycleScheduler) expireQuote(ctx context.Context, quote *models.Quote) error {
	if err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.quoteRepo.UpdateStatus(txCtx, quote.ID, models.QuoteStatusExpired); err != nil {
			return err
		}
		return s.auditRepo.Save(txCtx, s.lifecycleAudit(quote, models.AuditActionQuoteExpired,
			fmt.Sprintf("Quote %s expired automatically", quote.UUID)))
	}); err != nil {
		return err
	}

	quotesExpiredTotal.Inc()
	s.forgetWarned(quote.ID)
	return nil
}

// maybeWarn sends at most one expiry warning per quote while it sits inside
// the warning window
func (s *QuoteLifecycleScheduler) maybeWarn(ctx context.Context, quote *models.Quote, now time.Time) {
	if s.notifier == nil || quote.Status != models.QuoteStatusSent {
		return
	}

	s.warnedMu.Lock()
	_, already := s.warned[quote.ID]
	if !already {
		s.warned[quote.ID] = struct{}{}
	}
	s.warnedMu.Unlock()
	if already {
		return
	}

	customer, err := s.customerRepo.ByID(ctx, quote.CustomerID)
	if err != nil || customer == nil {
		s.logger.Printf("scheduler: load customer %d for expiry warning failed: %v", quote.CustomerID, err)
		return
	}

	daysLeft := int(quote.ExpiresAt.Sub(now).Hours()/24) + 1
	if err := s.notifier.SendExpiryWarning(customer.Email, quote.UUID.String(), daysLeft); err != nil {
		s.logger.Printf("scheduler: expiry warning for quote %s failed: %v", quote.UUID, err)
		s.forgetWarned(quote.ID)
	}
}

func (s *QuoteLifecycleScheduler) forgetWarned(quoteID uint) {
	s.warnedMu.Lock()
	delete(s.warned, quoteID)
	s.warnedMu.Unlock()
}

// abandonSweep moves draft quotes untouched past the abandon window to abandoned
func (s *QuoteLifecycleScheduler) abandonSweep(ctx context.Context) error {
	cutoff := utils.UTCNow().Add(-s.cfg.AbandonAfter)

	stale, err := s.quoteRepo.ListStaleDrafts(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("list stale drafts: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	abandoned := 0
	for _, quote := range stale {
		if err := repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
			if err := s.quoteRepo.UpdateStatus(txCtx, quote.ID, models.QuoteStatusAbandoned); err != nil {
				return err
			}
			return s.auditRepo.Save(txCtx, s.lifecycleAudit(quote, models.AuditActionQuoteAbandoned,
				fmt.Sprintf("Draft quote %s abandoned after inactivity", quote.UUID)))
		}); err != nil {
			sweepErrorsTotal.WithLabelValues("abandon").Inc()
			s.logger.Printf("scheduler: abandon quote %s failed: %v", quote.UUID, err)
			continue
		}
		quotesAbandonedTotal.Inc()
		abandoned++
	}

	if abandoned > 0 {
		s.logger.Printf("scheduler: abandoned %d stale drafts", abandoned)
	}
	return nil
}

func (s *QuoteLifecycleScheduler) sessionCleanup(ctx context.Context) error {
	if err := s.sessionRepo.CleanupExpiredSessions(ctx); err != nil {
		return fmt.Errorf("cleanup expired sessions: %w", err)
	}
	return nil
}

func (s *QuoteLifecycleScheduler) refreshMaterialPrices(ctx context.Context) error {
	if err := s.materialPrices.Refresh(ctx); err != nil {
		materialRefreshTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("refresh material prices: %w", err)
	}
	materialRefreshTotal.WithLabelValues("success").Inc()
	return nil
}

func (s *QuoteLifecycleScheduler) lifecycleAudit(quote *models.Quote, action, description string) *models.AuditLog {
	metadata, _ := json.Marshal(map[string]any{
		"quote_uuid": quote.UUID.String(),
		"status":     string(quote.Status),
		"actor":      "scheduler",
	})

	return &models.AuditLog{
		CustomerID:  &quote.CustomerID,
		Action:      action,
		Description: &description,
		Metadata:    metadata,
		Success:     utils.ToPtr(true),
	}
}
