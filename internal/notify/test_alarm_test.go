package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hitoshi/passalarm/internal/model"
	"github.com/hitoshi/passalarm/internal/repository"
)

// mockUserRepo はUserRepositoryのモック実装。
// テストで使用しないメソッドはゼロ値を返す。
type mockUserRepo struct {
	updateLastTestedPhoneFunc func(ctx context.Context, id, phone string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error)    { return nil, nil }
func (m *mockUserRepo) FindByEmail(ctx context.Context, e string) (*model.User, error)  { return nil, nil }
func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error              { return nil }
func (m *mockUserRepo) UpdateContact(ctx context.Context, id, email, phone string) error { return nil }
func (m *mockUserRepo) UpdateChannels(ctx context.Context, id string, e, s bool) error  { return nil }
func (m *mockUserRepo) UpdateSubscription(ctx context.Context, id string, sub bool) error {
	return nil
}
func (m *mockUserRepo) UpdateLastTestedPhone(ctx context.Context, id, phone string) error {
	if m.updateLastTestedPhoneFunc != nil {
		return m.updateLastTestedPhoneFunc(ctx, id, phone)
	}
	return nil
}
func (m *mockUserRepo) ListNotifiable(ctx context.Context) ([]*model.User, error) { return nil, nil }
func (m *mockUserRepo) CountSubscribed(ctx context.Context) (int, error)          { return 0, nil }
func (m *mockUserRepo) MonthlySignups(ctx context.Context, months int) ([]repository.MonthlyCount, error) {
	return nil, nil
}
func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error { return nil }

func newTestAlarmService(d *Dispatcher, userRepo repository.UserRepository) *TestAlarmService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTestAlarmService(d, userRepo, logger)
}

// TestTestAlarm_RecordsTestedPhone は成功したテストSMSの番号が記録されることを検証する。
func TestTestAlarm_RecordsTestedPhone(t *testing.T) {
	var recordedPhone string
	userRepo := &mockUserRepo{
		updateLastTestedPhoneFunc: func(ctx context.Context, id, phone string) error {
			recordedPhone = phone
			return nil
		},
	}

	d := newTestDispatcher(&mockComposer{message: "msg"}, &mockEmailSender{}, &mockSMSSender{}, &mockLogRepo{})
	svc := newTestAlarmService(d, userRepo)

	user := testUser()
	outcome, err := svc.Send(context.Background(), user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.SentCount() != 2 {
		t.Errorf("SentCount = %d, want 2", outcome.SentCount())
	}
	if recordedPhone != user.PhoneNumber {
		t.Errorf("recorded phone = %q, want %q", recordedPhone, user.PhoneNumber)
	}
}

// TestTestAlarm_NotSubscribed はサブスクリプション無効時のエラーを検証する。
func TestTestAlarm_NotSubscribed(t *testing.T) {
	d := newTestDispatcher(&mockComposer{message: "msg"}, &mockEmailSender{}, &mockSMSSender{}, &mockLogRepo{})
	svc := newTestAlarmService(d, &mockUserRepo{})

	user := testUser()
	user.IsSubscribed = false

	_, err := svc.Send(context.Background(), user)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotSubscribed {
		t.Errorf("expected %s error, got %v", model.ErrCodeNotSubscribed, err)
	}
}

// TestTestAlarm_DeniedRepeat はSMSのみ有効で同一番号の場合に
// テスト拒否エラーを返し、番号を記録しないことを検証する。
func TestTestAlarm_DeniedRepeat(t *testing.T) {
	userRepo := &mockUserRepo{
		updateLastTestedPhoneFunc: func(ctx context.Context, id, phone string) error {
			t.Error("UpdateLastTestedPhone should not be called for denied test")
			return nil
		},
	}

	d := newTestDispatcher(&mockComposer{message: "msg"}, &mockEmailSender{}, &mockSMSSender{}, &mockLogRepo{})
	svc := newTestAlarmService(d, userRepo)

	user := testUser()
	user.EmailEnabled = false
	user.LastTestedPhone = user.PhoneNumber

	_, err := svc.Send(context.Background(), user)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeTestDenied {
		t.Errorf("expected %s error, got %v", model.ErrCodeTestDenied, err)
	}
}
