// Package validate は連絡先入力のバリデーションを提供する。
// 登録フォームとダッシュボードの連絡先更新の両方で使用される。
package validate

import (
	"regexp"
	"strings"
)

// emailPattern はメールアドレスの形式チェック。
// local@domain.tld の形（ドメインにドット必須）のみ受け付ける。
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// phonePattern は正規化後の電話番号の形式チェック。
// 先頭が+で、その後に7〜15桁の数字。
var phonePattern = regexp.MustCompile(`^\+\d{7,15}$`)

// Email はメールアドレスの形式が妥当かを返す。
func Email(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizePhone は電話番号から空白とハイフンを除去して返す。
// 入力は "+49 170 1234567" のような表記を許容する。
func NormalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(phone)
}

// Phone は電話番号の形式が妥当かを返す。
// 空白・ハイフンを除去した上で、国番号付き（+と7〜15桁）であることを要求する。
func Phone(phone string) bool {
	return phonePattern.MatchString(NormalizePhone(phone))
}
