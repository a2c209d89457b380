package probe

import (
	"strings"

	"github.com/hitoshi/passalarm/internal/model"
)

// soldOutMarkers は売り切れを示すテキストパターン。
// 「nicht verfügbar」が「verfügbar」を含むため、売り切れ判定を先に行う。
var soldOutMarkers = []string{
	"ausverkauft",
	"nicht verfügbar",
	"nicht erhältlich",
	"vergriffen",
	"sold out",
	"out of stock",
}

// availableMarkers は購入可能を示すテキストパターン。
var availableMarkers = []string{
	"verfügbar",
	"erhältlich",
	"jetzt buchbar",
	"available",
	"in stock",
}

// classifyMarkerText はテキストから在庫状態を判定する。
// どのパターンにも一致しない場合は第2戻り値がfalseになる。
func classifyMarkerText(text string) (model.AvailabilityStatus, bool) {
	lower := strings.ToLower(text)

	for _, marker := range soldOutMarkers {
		if strings.Contains(lower, marker) {
			return model.StatusSoldOut, true
		}
	}
	for _, marker := range availableMarkers {
		if strings.Contains(lower, marker) {
			return model.StatusAvailable, true
		}
	}
	return "", false
}

// productKeyword はテキスト照合に使用するパスのキーワードを返す。
// 商品ページやフィードはドイツ語表記（Silber）の場合があるため両方を返す。
func productKeywords(productID string) []string {
	switch productID {
	case model.ProductGold:
		return []string{"gold"}
	case model.ProductSilver:
		return []string{"silver", "silber"}
	}
	return []string{productID}
}

// mentionsProduct はテキストが指定パスに言及しているかを返す。
func mentionsProduct(text, productID string) bool {
	lower := strings.ToLower(text)
	for _, kw := range productKeywords(productID) {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
