// Package binance 实现 Binance K 线数据源。
// REST 接口拉取历史 K 线，WebSocket 订阅实时 K 线流；
// 两者共同为监控器提供初始窗口与增量更新。
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"chan-structure-scanner/internal/core/model"
	"chan-structure-scanner/internal/util/timeutil"
)

// DefaultRESTURL 现货 K 线 REST 地址
const DefaultRESTURL = "https://api.binance.com"

// RESTClient 历史 K 线 REST 客户端
type RESTClient struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewRESTClient 创建 REST 客户端
// 参数 baseURL: 接口地址，空串使用默认现货地址
// 参数 timeout: 单次请求超时
func NewRESTClient(baseURL string, timeout time.Duration, logger *zap.Logger) *RESTClient {
	if baseURL == "" {
		baseURL = DefaultRESTURL
	}
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond)
	return &RESTClient{
		http:   http,
		logger: logger.Named("binance-rest"),
	}
}

// Klines 拉取最近 limit 根已收盘 K 线，按时间升序返回
// Binance 单次上限 1000 根，超出部分分页拉取。
func (c *RESTClient) Klines(ctx context.Context, symbol, interval string, limit int) ([]model.Bar, error) {
	if limit <= 0 {
		limit = 500
	}

	var bars []model.Bar
	var endTime int64
	for len(bars) < limit {
		batch := limit - len(bars)
		if batch > 1000 {
			batch = 1000
		}

		page, err := c.klinesPage(ctx, symbol, interval, batch, endTime)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		bars = append(page, bars...)
		endTime = page[0].Time.UnixMilli() - 1
		if len(page) < batch {
			break
		}
	}

	c.logger.Info("历史 K 线拉取完成",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int("bars", len(bars)))
	return bars, nil
}

func (c *RESTClient) klinesPage(ctx context.Context, symbol, interval string, limit int, endTime int64) ([]model.Bar, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":   symbol,
			"interval": interval,
			"limit":    strconv.Itoa(limit),
		})
	if endTime > 0 {
		req.SetQueryParam("endTime", strconv.FormatInt(endTime, 10))
	}

	resp, err := req.Get("/api/v3/klines")
	if err != nil {
		return nil, fmt.Errorf("请求 K 线接口失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("K 线接口返回 %d: %s", resp.StatusCode(), resp.String())
	}

	// 每根 K 线为混合类型数组:
	// [openTime, open, high, low, close, volume, closeTime, ...]
	var raw [][]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("解析 K 线响应失败: %w", err)
	}

	bars := make([]model.Bar, 0, len(raw))
	for _, row := range raw {
		bar, err := parseKlineRow(row)
		if err != nil {
			c.logger.Debug("跳过无效 K 线", zap.Error(err))
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseKlineRow(row []json.RawMessage) (model.Bar, error) {
	var bar model.Bar
	if len(row) < 6 {
		return bar, fmt.Errorf("K 线字段不足: %d", len(row))
	}

	var openMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return bar, fmt.Errorf("openTime: %w", err)
	}
	bar.Time = timeutil.MsToTime(openMs)

	fields := []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume}
	for i, dst := range fields {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return bar, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return bar, err
		}
		*dst = v
	}

	if !bar.Valid() {
		return bar, fmt.Errorf("K 线数值无效")
	}
	return bar, nil
}
