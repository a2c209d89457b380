// Package model はドメインモデルを定義する。
package model

import "time"

// AvailabilityStatus は追跡対象パスの在庫状態を表す。
type AvailabilityStatus string

const (
	// StatusSoldOut は売り切れ状態を示す。
	StatusSoldOut AvailabilityStatus = "SOLD_OUT"
	// StatusAvailable は購入可能状態を示す。
	StatusAvailable AvailabilityStatus = "AVAILABLE"
	// StatusError は最後の確認がエラーだったことを示す。
	StatusError AvailabilityStatus = "ERROR"
)

// IsValid はステータスが定義済みの値かどうかを返す。
func (s AvailabilityStatus) IsValid() bool {
	switch s {
	case StatusSoldOut, StatusAvailable, StatusError:
		return true
	}
	return false
}

// 追跡対象のパス識別子。
const (
	ProductGold   = "gold"
	ProductSilver = "silver"
)

// TrackedProducts は追跡対象の全パス識別子を返す。
func TrackedProducts() []string {
	return []string{ProductGold, ProductSilver}
}

// ProductDisplayName はパス識別子の表示名を返す。
// 未知の識別子の場合はそのまま返す。
func ProductDisplayName(productID string) string {
	switch productID {
	case ProductGold:
		return "ResortPass Gold"
	case ProductSilver:
		return "ResortPass Silver"
	}
	return productID
}

// StateSource は在庫状態の取得元を表す。
type StateSource string

const (
	// SourceLive は外部プロバイダーからの実データを示す。
	SourceLive StateSource = "live"
	// SourceDemo は管理画面で切り替えるデモ状態を示す。
	SourceDemo StateSource = "demo"
)

// ProductState は1パスの最新の在庫状態を表す。
// CheckedAtによるlast-write-winsで更新する（ロックは取らない）。
type ProductState struct {
	ProductID      string
	Status         AvailabilityStatus
	PreviousStatus AvailabilityStatus
	Source         StateSource
	CheckedAt      time.Time
}

// BecameAvailable は前回からAVAILABLEへの遷移エッジかどうかを返す。
// AVAILABLEのまま変化していない場合はfalse。
func (p *ProductState) BecameAvailable() bool {
	return p.Status == StatusAvailable && p.PreviousStatus != StatusAvailable
}
