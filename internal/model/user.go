// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 顧客とパートナー（アフィリエイト）の両方をカバーする。
type User struct {
	ID              string
	Name            string
	Email           string
	PhoneNumber     string
	PasswordHash    string
	IsSubscribed    bool
	IsAffiliate     bool
	IsAdmin         bool
	EmailEnabled    bool
	SMSEnabled      bool
	ReferredBy      string // 紹介元パートナーのレフェラルコード
	LastTestedPhone string // テスト送信の悪用防止に使う前回テスト番号
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EnabledChannels は有効化されている通知チャネルの集合を返す。
func (u *User) EnabledChannels() []NotificationChannel {
	var channels []NotificationChannel
	if u.EmailEnabled {
		channels = append(channels, ChannelEmail)
	}
	if u.SMSEnabled {
		channels = append(channels, ChannelSMS)
	}
	return channels
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// AffiliateProfile はパートナーの支払・住所情報を表す。
// 全必須項目が揃っていないと払い出しはできない。
type AffiliateProfile struct {
	UserID      string
	FirstName   string
	LastName    string
	Street      string
	HouseNumber string
	Zip         string
	City        string
	Country     string
	CompanyName string // 任意
	VatID       string // 任意
	PaypalEmail string
	UpdatedAt   time.Time
}

// IsComplete は払い出しに必要な必須項目が全て入力済みかを返す。
func (p *AffiliateProfile) IsComplete() bool {
	return p.FirstName != "" &&
		p.LastName != "" &&
		p.Street != "" &&
		p.HouseNumber != "" &&
		p.Zip != "" &&
		p.City != "" &&
		p.Country != "" &&
		p.PaypalEmail != ""
}

// AffiliateStat は月次のアフィリエイト実績を表す。
type AffiliateStat struct {
	UserID      string
	Month       string // "2025-01" 形式
	Clicks      int
	Conversions int
	Earnings    float64
	PaidOut     bool
}
