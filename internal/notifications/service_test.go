package notifications

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shiftledger/pkg/db/models"
	"github.com/angelmondragon/shiftledger/pkg/enums"
	"github.com/angelmondragon/shiftledger/pkg/logger"
	"github.com/angelmondragon/shiftledger/pkg/metrics"
)

type fakeSettings struct {
	setting *models.StoreNotificationSetting
	err     error
}

func (f fakeSettings) Get(context.Context, string) (*models.StoreNotificationSetting, error) {
	return f.setting, f.err
}

type recordingNotifier struct {
	messages []string
	dests    []Destination
	ok       bool
}

func (r *recordingNotifier) Send(_ context.Context, message string, dest Destination) bool {
	r.messages = append(r.messages, message)
	r.dests = append(r.dests, dest)
	return r.ok
}

func enabledSetting() *models.StoreNotificationSetting {
	return &models.StoreNotificationSetting{
		StoreID:                   "store-1",
		ShiftNotificationsEnabled: true,
		TelegramBotToken:          "bot-token",
		TelegramChatID:            "-1001",
	}
}

func decimalPtr(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}

func closedShift(diff string) *models.Shift {
	end := time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)
	notes := "tutup <normal>"
	return &models.Shift{
		ID:                uuid.MustParse("0a1b2c3d-0000-4000-8000-000000000000"),
		StoreID:           "store-1",
		CashierName:       "Dewi",
		Status:            enums.ShiftStatusClosed,
		StartTime:         time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		EndTime:           &end,
		InitialCash:       decimal.NewFromInt(500000),
		TransactionsCount: 3,
		TotalSales:        decimal.NewFromInt(1250000),
		TotalCashSales:    decimal.NewFromInt(1000000),
		TotalNonCashSales: decimal.NewFromInt(250000),
		ExpectedCash:      decimalPtr("1500000"),
		FinalCash:         decimalPtr("1500000"),
		CashDifference:    decimalPtr(diff),
		ExpectedNonCash:   decimalPtr("250000"),
		FinalNonCash:      decimalPtr("250000"),
		NonCashDifference: decimalPtr("0"),
		Notes:             &notes,
	}
}

func newService(t *testing.T, settings settingsLoader, notifier Notifier, m *metrics.ShiftMetrics) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Settings: settings,
		Notifier: notifier,
		Logger:   logger.New(logger.Options{ServiceName: "notifications-test", Output: io.Discard}),
		Metrics:  m,
	})
	require.NoError(t, err)
	return svc
}

// flush waits for the service's background deliveries.
func flush(t *testing.T, svc *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Close(ctx))
}

func TestShiftClosedMarksDirection(t *testing.T) {
	cases := map[string]string{
		"-20000": "⚠️ KURANG",
		"15000":  "➕ LEBIH",
		"0":      "✅ PAS",
	}
	for diff, marker := range cases {
		notifier := &recordingNotifier{ok: true}
		svc := newService(t, fakeSettings{setting: enabledSetting()}, notifier, nil)

		svc.ShiftClosed(context.Background(), closedShift(diff))
		flush(t, svc)

		require.Len(t, notifier.messages, 1, diff)
		msg := notifier.messages[0]
		assert.Contains(t, msg, marker, diff)
		assert.Contains(t, msg, "#0A1B2C3D")
		assert.Contains(t, msg, "Total Penjualan: Rp 1.250.000")
		assert.Contains(t, msg, "tutup &lt;normal&gt;")
		assert.Equal(t, Destination{Token: "bot-token", ChatID: "-1001"}, notifier.dests[0])
	}
}

func TestShiftOpenedSummary(t *testing.T) {
	notifier := &recordingNotifier{ok: true}
	svc := newService(t, fakeSettings{setting: enabledSetting()}, notifier, nil)

	shift := closedShift("0")
	shift.Status = enums.ShiftStatusActive
	svc.ShiftOpened(context.Background(), shift)
	flush(t, svc)

	require.Len(t, notifier.messages, 1)
	msg := notifier.messages[0]
	assert.Contains(t, msg, "SHIFT DIBUKA")
	assert.Contains(t, msg, "Kasir: Dewi")
	assert.Contains(t, msg, "01 Mar 2026 08:00")
	assert.Contains(t, msg, "Modal Awal: Rp 500.000")
}

func TestDisabledStoreSendsNothing(t *testing.T) {
	notifier := &recordingNotifier{ok: true}
	setting := enabledSetting()
	setting.ShiftNotificationsEnabled = false

	disabled := newService(t, fakeSettings{setting: setting}, notifier, nil)
	disabled.ShiftClosed(context.Background(), closedShift("0"))
	flush(t, disabled)
	missing := newService(t, fakeSettings{}, notifier, nil)
	missing.ShiftTerminated(context.Background(), closedShift("0"))
	flush(t, missing)

	assert.Empty(t, notifier.messages)
}

func TestFailuresAreSwallowedAndCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewShiftMetrics(reg)

	failing := &recordingNotifier{ok: false}
	rejected := newService(t, fakeSettings{setting: enabledSetting()}, failing, m)
	rejected.ShiftTerminated(context.Background(), closedShift("0"))
	flush(t, rejected)
	unavailable := newService(t, fakeSettings{err: errors.New("db down")}, failing, m)
	unavailable.ShiftOpened(context.Background(), closedShift("0"))
	flush(t, unavailable)

	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, family := range families {
		if family.GetName() != "shiftledger_shifts_notification_failures_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(2), total)
	assert.Len(t, failing.messages, 1)
}

func TestTerminatedMessageOmitsReconciliation(t *testing.T) {
	notifier := &recordingNotifier{ok: true}
	shift := closedShift("0")
	shift.TerminatedByAdmin = true
	shift.ExpectedCash = nil
	shift.CashDifference = nil

	svc := newService(t, fakeSettings{setting: enabledSetting()}, notifier, nil)
	svc.ShiftTerminated(context.Background(), shift)
	flush(t, svc)

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "DIHENTIKAN ADMIN")
	assert.False(t, strings.Contains(notifier.messages[0], "Selisih"))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "Rp 0", formatMoney(decimal.Zero))
	assert.Equal(t, "Rp 999", formatMoney(decimal.NewFromInt(999)))
	assert.Equal(t, "Rp 1.000", formatMoney(decimal.NewFromInt(1000)))
	assert.Equal(t, "Rp 12.345.678", formatMoney(decimal.NewFromInt(12345678)))
	assert.Equal(t, "-Rp 20.000", formatMoney(decimal.NewFromInt(-20000)))
	assert.Equal(t, "Rp 2.500,25", formatMoney(decimal.RequireFromString("2500.25")))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

type fakeSender struct {
	err error
}

func (f fakeSender) SendMessage(context.Context, string, string, string) error { return f.err }

func TestTelegramNotifierReportsDelivery(t *testing.T) {
	assert.True(t, NewTelegramNotifier(fakeSender{}, nil).Send(context.Background(), "hi", Destination{Token: "t", ChatID: "c"}))
	assert.False(t, NewTelegramNotifier(fakeSender{err: errors.New("boom")}, nil).Send(context.Background(), "hi", Destination{Token: "t", ChatID: "c"}))
}

// stallingNotifier blocks until released or until its context ends.
type stallingNotifier struct {
	release chan struct{}
	started chan struct{}
	ctxErr  chan error
}

func newStallingNotifier() *stallingNotifier {
	return &stallingNotifier{
		release: make(chan struct{}),
		started: make(chan struct{}, 8),
		ctxErr:  make(chan error, 8),
	}
}

func (n *stallingNotifier) Send(ctx context.Context, _ string, _ Destination) bool {
	n.started <- struct{}{}
	select {
	case <-n.release:
		n.ctxErr <- ctx.Err()
		return true
	case <-ctx.Done():
		n.ctxErr <- ctx.Err()
		return false
	}
}

func TestDeliveryDoesNotBlockCaller(t *testing.T) {
	notifier := newStallingNotifier()
	svc := newService(t, fakeSettings{setting: enabledSetting()}, notifier, nil)

	start := time.Now()
	svc.ShiftOpened(context.Background(), closedShift("0"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	<-notifier.started
	close(notifier.release)
	flush(t, svc)
	assert.NoError(t, <-notifier.ctxErr)
}

func TestDeliverySurvivesCallerCancellation(t *testing.T) {
	notifier := newStallingNotifier()
	svc := newService(t, fakeSettings{setting: enabledSetting()}, notifier, nil)

	ctx, cancel := context.WithCancel(context.Background())
	svc.ShiftClosed(ctx, closedShift("0"))
	<-notifier.started
	cancel()
	close(notifier.release)
	flush(t, svc)

	assert.NoError(t, <-notifier.ctxErr, "request cancellation must not abort delivery")
}

func TestDeliveryIsBoundedByTimeout(t *testing.T) {
	reg := prometheus.NewRegistry()
	notifier := newStallingNotifier()
	svc, err := NewService(ServiceParams{
		Settings: fakeSettings{setting: enabledSetting()},
		Notifier: notifier,
		Logger:   logger.New(logger.Options{ServiceName: "notifications-test", Output: io.Discard}),
		Metrics:  metrics.NewShiftMetrics(reg),
		Timeout:  20 * time.Millisecond,
	})
	require.NoError(t, err)

	svc.ShiftTerminated(context.Background(), closedShift("0"))
	flush(t, svc)

	assert.ErrorIs(t, <-notifier.ctxErr, context.DeadlineExceeded)
	assert.Equal(t, float64(1), notificationFailures(t, reg))
}

func TestDeliveriesBeyondCapacityAreDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	notifier := newStallingNotifier()
	svc, err := NewService(ServiceParams{
		Settings:    fakeSettings{setting: enabledSetting()},
		Notifier:    notifier,
		Logger:      logger.New(logger.Options{ServiceName: "notifications-test", Output: io.Discard}),
		Metrics:     metrics.NewShiftMetrics(reg),
		MaxInFlight: 1,
	})
	require.NoError(t, err)

	svc.ShiftOpened(context.Background(), closedShift("0"))
	<-notifier.started
	svc.ShiftClosed(context.Background(), closedShift("0"))
	assert.Equal(t, float64(1), notificationFailures(t, reg))

	close(notifier.release)
	flush(t, svc)

	svc.ShiftTerminated(context.Background(), closedShift("0"))
	assert.Equal(t, float64(2), notificationFailures(t, reg), "closed service drops new notifications")
}

func notificationFailures(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, family := range families {
		if family.GetName() != "shiftledger_shifts_notification_failures_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}
