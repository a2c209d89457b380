package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/passalarm/internal/model"
)

// feedMaxBodySize はアナウンスフィードの最大読み取りサイズ。
const feedMaxBodySize = 1 << 20 // 1MB

// checkFeed は在庫アナウンスのRSS/Atomフィードから在庫状態を取得する。
// パスごとに最新の言及記事を探し、記事がない場合は売り切れ扱いとする
// （フィードは状態変化のみをアナウンスする前提）。
func (p *Prober) checkFeed(ctx context.Context, feedURL string) (map[string]model.AvailabilityStatus, error) {
	if err := p.ssrfGuard.ValidateURL(feedURL); err != nil {
		return nil, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "PassAlarm/1.0 Availability Checker")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	client := p.ssrfGuard.NewSafeClient(p.timeout)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("フィードへのリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("フィードがHTTP %dを返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, feedMaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取りに失敗: %w", err)
	}

	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗: %w", err)
	}

	statuses := make(map[string]model.AvailabilityStatus, len(model.TrackedProducts()))
	for _, productID := range model.TrackedProducts() {
		statuses[productID] = latestFeedStatus(parsedFeed.Items, productID)
	}
	return statuses, nil
}

// latestFeedStatus はパスに言及する最新記事から在庫状態を判定する。
// 言及記事がない、またはマーカーが読めない場合は売り切れ扱い。
func latestFeedStatus(items []*gofeed.Item, productID string) model.AvailabilityStatus {
	var latest *gofeed.Item
	for _, item := range items {
		text := item.Title + " " + item.Description
		if !mentionsProduct(text, productID) {
			continue
		}
		if latest == nil {
			latest = item
			continue
		}
		// 公開日時が取れる場合のみ比較する。取れない場合はフィード順を信頼する。
		if item.PublishedParsed != nil && latest.PublishedParsed != nil &&
			item.PublishedParsed.After(*latest.PublishedParsed) {
			latest = item
		}
	}

	if latest == nil {
		return model.StatusSoldOut
	}
	if status, ok := classifyMarkerText(latest.Title + " " + latest.Description); ok {
		return status
	}
	return model.StatusSoldOut
}
