package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/hitoshi/passalarm/internal/model"
)

// pageMaxBodySize は商品ページの最大読み取りサイズ。
const pageMaxBodySize = 2 << 20 // 2MB

// markerScanWindow はパス名の出現位置から在庫マーカーを探す
// 後続テキストセグメント数。パス名と在庫表示は近接している前提。
const markerScanWindow = 5

// checkPage は商品ページのHTMLをスクレイプして在庫状態を取得する。
func (p *Prober) checkPage(ctx context.Context, pageURL string) (map[string]model.AvailabilityStatus, error) {
	if err := p.ssrfGuard.ValidateURL(pageURL); err != nil {
		return nil, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "PassAlarm/1.0 Availability Checker")
	req.Header.Set("Accept", "text/html, application/xhtml+xml, */*")

	client := p.ssrfGuard.NewSafeClient(p.timeout)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("商品ページへのリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("商品ページがHTTP %dを返しました", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, pageMaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("HTMLのパースに失敗: %w", err)
	}

	segments := collectTextSegments(doc)

	statuses := make(map[string]model.AvailabilityStatus, len(model.TrackedProducts()))
	for _, productID := range model.TrackedProducts() {
		status, ok := findProductStatus(segments, productID)
		if !ok {
			statuses[productID] = model.StatusError
			continue
		}
		statuses[productID] = status
	}
	return statuses, nil
}

// collectTextSegments はHTMLツリーからテキストセグメントを文書順で収集する。
// script/styleの中身は無視する。
func collectTextSegments(doc *html.Node) []string {
	var segments []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				segments = append(segments, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return segments
}

// findProductStatus はパス名が出現するセグメントと、その後続の
// 近接セグメントから在庫マーカーを探す。
func findProductStatus(segments []string, productID string) (model.AvailabilityStatus, bool) {
	for i, seg := range segments {
		if !mentionsProduct(seg, productID) {
			continue
		}

		end := i + markerScanWindow
		if end >= len(segments) {
			end = len(segments) - 1
		}
		for j := i; j <= end; j++ {
			if status, ok := classifyMarkerText(segments[j]); ok {
				return status, true
			}
		}
	}
	return "", false
}
