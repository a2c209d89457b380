// Package auth はパスワード認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/passalarm/internal/model"
	"github.com/hitoshi/passalarm/internal/repository"
	"github.com/hitoshi/passalarm/internal/validate"
)

// minPasswordLength はパスワードの最小文字数。
const minPasswordLength = 6

// CustomerRegistration は顧客の登録リクエストを表す。
type CustomerRegistration struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
	Phone           string
	ReferralCode    string // 紹介リンク経由の場合のみ
}

// PartnerRegistration はパートナー（アフィリエイト）の登録リクエストを表す。
type PartnerRegistration struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
}

// ReferralService はレフェラルコードの発行・帰属のインターフェース。
type ReferralService interface {
	// IssueCode はパートナーのレフェラルコードを発行する。
	IssueCode(ctx context.Context, userID string) (string, error)
	// AttributeSignup は登録時のコードを解決してコード所有者の
	// ユーザーIDを返す。未知のコードは空文字を返す。
	AttributeSignup(ctx context.Context, code string) (string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	referral    ReferralService
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	referral ReferralService,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		referral:    referral,
		config:      config,
	}
}

// RegisterCustomer は顧客アカウントを作成してセッションを発行する。
// 紹介コード付きの場合はコードを解決し、有効なら紹介元として記録する。
func (s *Service) RegisterCustomer(ctx context.Context, req CustomerRegistration) (*model.User, *model.Session, error) {
	phone := ""
	if req.Phone != "" {
		if !validate.Phone(req.Phone) {
			return nil, nil, model.NewInvalidPhoneError()
		}
		phone = validate.NormalizePhone(req.Phone)
	}

	referredBy := ""
	if req.ReferralCode != "" {
		ownerID, err := s.referral.AttributeSignup(ctx, req.ReferralCode)
		if err != nil {
			return nil, nil, fmt.Errorf("紹介コードの帰属に失敗しました: %w", err)
		}
		if ownerID != "" {
			referredBy = req.ReferralCode
		}
	}

	user, err := s.register(ctx, req.Name, req.Email, req.Password, req.PasswordConfirm, func(u *model.User) {
		u.PhoneNumber = phone
		u.EmailEnabled = true
		u.SMSEnabled = phone != ""
		u.ReferredBy = referredBy
	})
	if err != nil {
		return nil, nil, err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("顧客アカウントを作成しました",
		slog.String("user_id", user.ID),
		slog.Bool("referred", referredBy != ""),
	)
	return user, session, nil
}

// RegisterPartner はパートナーアカウントを作成し、
// レフェラルコードを発行してセッションを発行する。
func (s *Service) RegisterPartner(ctx context.Context, req PartnerRegistration) (*model.User, *model.Session, error) {
	user, err := s.register(ctx, req.Name, req.Email, req.Password, req.PasswordConfirm, func(u *model.User) {
		u.IsAffiliate = true
	})
	if err != nil {
		return nil, nil, err
	}

	if _, err := s.referral.IssueCode(ctx, user.ID); err != nil {
		return nil, nil, fmt.Errorf("レフェラルコードの発行に失敗しました: %w", err)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("パートナーアカウントを作成しました",
		slog.String("user_id", user.ID),
	)
	return user, session, nil
}

// register は両登録フロー共通の検証とユーザー作成を行う。
func (s *Service) register(ctx context.Context, name, email, password, passwordConfirm string, customize func(*model.User)) (*model.User, error) {
	if !validate.Email(email) {
		return nil, model.NewInvalidEmailError()
	}
	if len(password) < minPasswordLength {
		return nil, model.NewPasswordTooShortError()
	}
	if password != passwordConfirm {
		return nil, model.NewPasswordMismatchError()
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	customize(user)

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	return user, nil
}

// Login はメールアドレスとパスワードを検証してセッションを発行する。
// ユーザー不在とパスワード不一致は同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("ユーザーがログインしました", slog.String("user_id", user.ID))
	return user, session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	slog.Info("ユーザーがログアウトしました", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの検索に失敗しました: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("セッションIDの生成に失敗しました: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
