package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BradenHooton/farmgate/internal/metrics"
	"github.com/BradenHooton/farmgate/internal/models"
	pkglogger "github.com/BradenHooton/farmgate/pkg/logger"
)

// Mailer delivers an OTP code to an address
type Mailer interface {
	SendOTP(ctx context.Context, to, code string) error
}

// Notifier accepts OTP mail for delivery and never reports failure to the
// caller.
type Notifier interface {
	Notify(ctx context.Context, n OTPNotification)
}

// OTPNotification is one queued OTP mail
type OTPNotification struct {
	AccountID int64
	Email     string
	Code      string
}

type NotificationConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// NotificationService delivers OTP mail on a small worker pool. Each delivery
// writes a PENDING notification row, sends the mail and flips the row to
// SENT or FAILED. When the queue is full or the service is closed the
// notification is dropped and counted.
type NotificationService struct {
	repo    NotificationRepository
	mailer  Mailer
	config  NotificationConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	ch      chan OTPNotification
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64

	// mu orders enqueues against Close so nothing lands after the drain
	mu     sync.RWMutex
	closed bool
}

func NewNotificationService(repo NotificationRepository, mailer Mailer, config NotificationConfig, logger *slog.Logger, m *metrics.Metrics) *NotificationService {
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 15 * time.Second
	}

	s := &NotificationService{
		repo:    repo,
		mailer:  mailer,
		config:  config,
		logger:  logger,
		metrics: m,
		ch:      make(chan OTPNotification, config.QueueSize),
		done:    make(chan struct{}),
	}

	s.wg.Add(config.Workers)
	for i := 0; i < config.Workers; i++ {
		go s.run()
	}

	return s
}

func (s *NotificationService) run() {
	defer s.wg.Done()

	for {
		select {
		case n := <-s.ch:
			s.deliver(n)
		case <-s.done:
			for {
				select {
				case n := <-s.ch:
					s.deliver(n)
				default:
					return
				}
			}
		}
	}
}

// Notify queues n without blocking
func (s *NotificationService) Notify(ctx context.Context, n OTPNotification) {
	if s == nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.drop(ctx, n, "otp notification dropped, service closed")
		return
	}

	select {
	case s.ch <- n:
	default:
		s.drop(ctx, n, "otp notification dropped, queue full")
	}
}

func (s *NotificationService) drop(ctx context.Context, n OTPNotification, msg string) {
	s.dropped.Add(1)
	s.metrics.NotificationDropped()
	s.logger.WarnContext(ctx, msg, slog.Int64("user_account_id", n.AccountID))
}

func (s *NotificationService) deliver(n OTPNotification) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.SendTimeout)
	defer cancel()

	record, err := s.repo.Create(ctx, &models.Notification{
		AccountID:   n.AccountID,
		Channel:     models.NotificationChannelEmail,
		MessageType: models.NotificationTypeOTP,
		Status:      models.NotificationStatusPending,
	})
	if err != nil {
		s.logger.Error("failed to record notification",
			slog.Int64("user_account_id", n.AccountID),
			slog.Any("error", err))
		s.metrics.SideEffectFailed("notification")
		record = nil
	}

	status := models.NotificationStatusSent
	if err := s.mailer.SendOTP(ctx, n.Email, n.Code); err != nil {
		status = models.NotificationStatusFailed
		s.logger.Error("failed to send otp email",
			slog.Int64("user_account_id", n.AccountID),
			slog.String("email", pkglogger.SanitizedEmail(n.Email)),
			slog.Any("error", err))
		s.metrics.SideEffectFailed("mail")
	}

	if record == nil {
		return
	}
	if err := s.repo.UpdateStatus(ctx, record.ID, status); err != nil {
		s.logger.Error("failed to update notification status",
			slog.Int64("notification_id", record.ID),
			slog.String("status", status),
			slog.Any("error", err))
		s.metrics.SideEffectFailed("notification")
	}
}

// Close stops accepting work and waits for queued notifications to finish
func (s *NotificationService) Close() {
	if s == nil {
		return
	}

	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Dropped returns how many notifications were discarded
func (s *NotificationService) Dropped() uint64 {
	if s == nil {
		return 0
	}
	return s.dropped.Load()
}
