// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService は生成AIプロバイダーが返すメッセージをサニタイズする。
// 通知メッセージはプレーンテキストとしてメール/SMS本文とログに入るため、
// bluemondayのStrictPolicyで全HTMLタグを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はプレーンテキストサニタイズのインターフェースを定義する。
// 生成メッセージの保存前および配信前に使用される。
type TextSanitizerService interface {
	// Sanitize は入力からHTMLタグを全て除去したプレーンテキストを返す。
	// エンティティはデコードし、前後の空白を除去する。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicy（許可タグなし）を使用するため、scriptタグはもちろん
// 単純な装飾タグもすべて除去される。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを全て除去したプレーンテキストを返す。
func (s *textSanitizer) Sanitize(raw string) string {
	stripped := s.policy.Sanitize(raw)
	// StrictPolicyは残ったテキストをエンティティエスケープするため戻す
	return strings.TrimSpace(html.UnescapeString(stripped))
}
