package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/shiftledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shiftledger/pkg/errors"
	"github.com/angelmondragon/shiftledger/pkg/logger"
	"github.com/angelmondragon/shiftledger/pkg/metrics"
)

const (
	kindOpened     = "shift_opened"
	kindClosed     = "shift_closed"
	kindTerminated = "shift_terminated"

	defaultSendTimeout = 30 * time.Second
	defaultMaxInFlight = 32
)

type settingsLoader interface {
	Get(ctx context.Context, storeID string) (*models.StoreNotificationSetting, error)
}

// ServiceParams wires the shift notification service. Metrics and Location
// are optional; times default to UTC. Timeout bounds one delivery and
// MaxInFlight caps concurrent deliveries; zero picks the defaults.
type ServiceParams struct {
	Settings    settingsLoader
	Notifier    Notifier
	Logger      *logger.Logger
	Metrics     *metrics.ShiftMetrics
	Location    *time.Location
	Timeout     time.Duration
	MaxInFlight int
}

// Service sends shift lifecycle summaries to stores that enabled them.
// Deliveries run in the background, detached from the caller's context, so a
// slow chat API never holds up a shift write. Problems are logged and
// counted, never returned.
type Service struct {
	settings settingsLoader
	notifier Notifier
	logg     *logger.Logger
	metrics  *metrics.ShiftMetrics
	loc      *time.Location
	timeout  time.Duration
	slots    chan struct{}

	mu       sync.Mutex
	closed   bool
	inFlight sync.WaitGroup
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Settings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification settings repository required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	maxInFlight := params.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	return &Service{
		settings: params.Settings,
		notifier: params.Notifier,
		logg:     params.Logger,
		metrics:  params.Metrics,
		loc:      loc,
		timeout:  timeout,
		slots:    make(chan struct{}, maxInFlight),
	}, nil
}

func (s *Service) ShiftOpened(ctx context.Context, shift *models.Shift) {
	if shift == nil {
		return
	}
	s.dispatch(ctx, kindOpened, shift, openedMessage(shift, s.loc))
}

func (s *Service) ShiftClosed(ctx context.Context, shift *models.Shift) {
	if shift == nil {
		return
	}
	s.dispatch(ctx, kindClosed, shift, closedMessage(shift, s.loc))
}

func (s *Service) ShiftTerminated(ctx context.Context, shift *models.Shift) {
	if shift == nil {
		return
	}
	s.dispatch(ctx, kindTerminated, shift, terminatedMessage(shift, s.loc))
}

// Close stops accepting notifications and waits for in-flight deliveries
// until ctx ends.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch hands the message to a background delivery. The message is built
// by the caller, so the goroutine never touches the caller's shift.
func (s *Service) dispatch(ctx context.Context, kind string, shift *models.Shift, message string) {
	storeID, shiftID := shift.StoreID, shift.ID.String()
	ctx = s.logg.WithFields(context.WithoutCancel(ctx), map[string]any{
		"store_id":          storeID,
		"shift_id":          shiftID,
		"notification_kind": kind,
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logg.Warn(ctx, "shift notification dropped, service closed")
		s.metrics.IncNotificationFailure(kind)
		return
	}
	select {
	case s.slots <- struct{}{}:
	default:
		s.mu.Unlock()
		s.logg.Warn(ctx, "shift notification dropped, too many in flight")
		s.metrics.IncNotificationFailure(kind)
		return
	}
	s.inFlight.Add(1)
	s.mu.Unlock()

	go func() {
		defer func() {
			<-s.slots
			s.inFlight.Done()
		}()
		sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		s.deliver(sendCtx, kind, storeID, message)
	}()
}

func (s *Service) deliver(ctx context.Context, kind, storeID, message string) {

	setting, err := s.settings.Get(ctx, storeID)
	if err != nil {
		s.logg.Error(ctx, "notification settings unavailable", pkgerrors.Wrap(pkgerrors.CodeNotification, err, "load settings"))
		s.metrics.IncNotificationFailure(kind)
		return
	}
	if !setting.Deliverable() {
		return
	}

	if !s.notifier.Send(ctx, message, Destination{Token: setting.TelegramBotToken, ChatID: setting.TelegramChatID}) {
		s.logg.Warn(ctx, "shift notification failed")
		s.metrics.IncNotificationFailure(kind)
		return
	}
	s.logg.Debug(ctx, "shift notification sent")
}
