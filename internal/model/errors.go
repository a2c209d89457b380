// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, alarm, affiliate, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidEmail       = "INVALID_EMAIL"
	ErrCodeInvalidPhone       = "INVALID_PHONE"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodePasswordTooShort   = "PASSWORD_TOO_SHORT"
	ErrCodePasswordMismatch   = "PASSWORD_MISMATCH"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeNotSubscribed      = "NOT_SUBSCRIBED"
	ErrCodeNoChannelsEnabled  = "NO_CHANNELS_ENABLED"
	ErrCodeTestDenied         = "TEST_DENIED"
	ErrCodeNotConfigured      = "NOT_CONFIGURED"
	ErrCodeProviderFailure    = "PROVIDER_FAILURE"
	ErrCodeUnknownProduct     = "UNKNOWN_PRODUCT"
	ErrCodeProfileIncomplete  = "PROFILE_INCOMPLETE"
	ErrCodePayoutBelowMinimum = "PAYOUT_BELOW_MINIMUM"
	ErrCodeNotAffiliate       = "NOT_AFFILIATE"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeValidation         = "VALIDATION_ERROR"
)

// NewValidationError はフィールド単位の検証エラーを生成する。
func NewValidationError(field, message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   fmt.Sprintf("%s の入力内容を確認してください。", field),
	}
}

// NewInvalidEmailError は無効なメールアドレスエラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "メールアドレスの形式が正しくありません。",
		Category: "validation",
		Action:   "name@example.com の形式で入力してください。",
	}
}

// NewInvalidPhoneError は無効な電話番号エラーを生成する。
func NewInvalidPhoneError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPhone,
		Message:  "電話番号の形式が正しくありません。",
		Category: "validation",
		Action:   "国番号付き（+49...）で、+の後に7〜15桁の数字を入力してください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスで登録してください。",
	}
}

// NewPasswordTooShortError はパスワード長不足エラーを生成する。
func NewPasswordTooShortError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooShort,
		Message:  "パスワードは6文字以上で入力してください。",
		Category: "validation",
		Action:   "6文字以上のパスワードを設定してください。",
	}
}

// NewPasswordMismatchError はパスワード確認不一致エラーを生成する。
func NewPasswordMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordMismatch,
		Message:  "パスワードと確認用パスワードが一致しません。",
		Category: "validation",
		Action:   "同じパスワードを2回入力してください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザーの存在有無は区別せず同一メッセージを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewNotSubscribedError はサブスクリプション未契約エラーを生成する。
func NewNotSubscribedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotSubscribed,
		Message:  "サブスクリプションが有効ではありません。",
		Category: "alarm",
		Action:   "先にアラーム監視の契約を有効化してください。",
	}
}

// NewNoChannelsEnabledError は通知チャネル未選択エラーを生成する。
func NewNoChannelsEnabledError() *APIError {
	return &APIError{
		Code:     ErrCodeNoChannelsEnabled,
		Message:  "有効な通知チャネルがありません。",
		Category: "alarm",
		Action:   "メールまたはSMSのいずれかを有効にしてください。",
	}
}

// NewTestDeniedError は同一番号への再テスト拒否エラーを生成する。
func NewTestDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeTestDenied,
		Message:  "この番号は既にテスト済みです。",
		Category: "alarm",
		Action:   "別の電話番号に変更してから再度テストしてください。",
	}
}

// NewUnknownProductError は未知のパス識別子エラーを生成する。
func NewUnknownProductError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownProduct,
		Message:  fmt.Sprintf("未知のパスが指定されました: %s", productID),
		Category: "alarm",
		Action:   "gold または silver を指定してください。",
	}
}

// NewProfileIncompleteError はパートナープロフィール未完成エラーを生成する。
func NewProfileIncompleteError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileIncomplete,
		Message:  "払い出しにはプロフィールの必須項目をすべて入力する必要があります。",
		Category: "affiliate",
		Action:   "設定タブで住所とPayPalメールアドレスを入力してください。",
	}
}

// NewPayoutBelowMinimumError は最低払い出し額未満エラーを生成する。
func NewPayoutBelowMinimumError(minimum float64) *APIError {
	return &APIError{
		Code:     ErrCodePayoutBelowMinimum,
		Message:  fmt.Sprintf("残高が最低払い出し額（%.0f EUR）に達していません。", minimum),
		Category: "affiliate",
		Action:   "残高が最低額に達するまでお待ちください。",
	}
}

// NewNotAffiliateError はパートナー契約がないユーザーのエラーを生成する。
func NewNotAffiliateError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAffiliate,
		Message:  "パートナー契約がありません。",
		Category: "affiliate",
		Action:   "パートナープログラムに登録してください。",
	}
}

// NewForbiddenError は管理者権限エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作には管理者権限が必要です。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}
