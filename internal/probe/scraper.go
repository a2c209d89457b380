package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hitoshi/passalarm/internal/model"
)

// defaultScraperAPIBase はスクレイピングAPI（Browse.ai互換）のベースURL。
const defaultScraperAPIBase = "https://api.browse.ai/v2"

// scraperMaxBodySize はスクレイピングAPIレスポンスの最大読み取りサイズ。
const scraperMaxBodySize = 1 << 20 // 1MB

// scraperTaskList はスクレイピングAPIのタスク一覧レスポンス。
// 最新タスクのcapturedTextsにパスごとの在庫テキストが入る。
type scraperTaskList struct {
	Result struct {
		RobotTasks struct {
			Items []struct {
				CapturedTexts map[string]string `json:"capturedTexts"`
			} `json:"items"`
		} `json:"robotTasks"`
	} `json:"result"`
}

// checkScraper はスクレイピングAPIの最新タスク結果から在庫状態を取得する。
func (p *Prober) checkScraper(ctx context.Context, settings *model.SystemSettings) (map[string]model.AvailabilityStatus, error) {
	reqURL := fmt.Sprintf("%s/robots/%s/tasks?pageSize=1", p.scraperAPIBase, settings.ScraperRobotID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+settings.ScraperAPIKey)
	req.Header.Set("Accept", "application/json")

	client := p.ssrfGuard.NewSafeClient(p.timeout)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("スクレイピングAPIへのリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("スクレイピングAPIがHTTP %dを返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, scraperMaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取りに失敗: %w", err)
	}

	var taskList scraperTaskList
	if err := json.Unmarshal(body, &taskList); err != nil {
		return nil, fmt.Errorf("レスポンスのパースに失敗: %w", err)
	}

	items := taskList.Result.RobotTasks.Items
	if len(items) == 0 {
		return nil, fmt.Errorf("スクレイピングタスクの実行結果がありません")
	}
	captured := items[0].CapturedTexts

	statuses := make(map[string]model.AvailabilityStatus, len(model.TrackedProducts()))
	for _, productID := range model.TrackedProducts() {
		text, ok := captured[productID]
		if !ok {
			statuses[productID] = model.StatusError
			continue
		}
		status, ok := classifyMarkerText(text)
		if !ok {
			statuses[productID] = model.StatusError
			continue
		}
		statuses[productID] = status
	}
	return statuses, nil
}
