package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chan-structure-scanner/internal/core/model"
	"chan-structure-scanner/internal/util/backoff"
	"chan-structure-scanner/internal/util/timeutil"
)

// DefaultWSURL 现货行情流 WebSocket 地址
const DefaultWSURL = "wss://stream.binance.com:9443/ws"

// StreamConfig K 线流配置
type StreamConfig struct {
	// URL WebSocket 地址，空串使用默认现货地址
	URL string
	// Symbol 交易对，如 BTCUSDT
	Symbol string
	// Interval K 线周期，如 5m
	Interval string
	// ReadTimeoutMs 读取超时（毫秒）
	ReadTimeoutMs int
	// PingIntervalMs 心跳间隔（毫秒）
	PingIntervalMs int
}

// klineMessage K 线推送消息
type klineMessage struct {
	EventType string `json:"e"`
	Kline     struct {
		OpenTime int64  `json:"t"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		Closed   bool   `json:"x"`
	} `json:"k"`
}

// subscribeRequest 订阅请求
type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// Stream Binance 实时 K 线 WebSocket 客户端
// 只输出已收盘的 K 线；未收盘的中间推送被忽略，保证下游
// 分析窗口里的每根 K 线都是最终值。
type Stream struct {
	cfg    StreamConfig
	logger *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex

	barCh chan model.Bar

	lastMsgTime int64
	backoff     *backoff.Backoff
	closed      int32
}

// NewStream 创建 K 线流客户端
func NewStream(cfg StreamConfig, logger *zap.Logger) *Stream {
	if cfg.URL == "" {
		cfg.URL = DefaultWSURL
	}
	if cfg.ReadTimeoutMs <= 0 {
		cfg.ReadTimeoutMs = 30000
	}
	return &Stream{
		cfg:     cfg,
		logger:  logger.Named("binance-ws"),
		barCh:   make(chan model.Bar, 256),
		backoff: backoff.NewDefault(),
	}
}

// Connect 建立 WebSocket 连接
func (s *Stream) Connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	header := http.Header{}
	header.Set("User-Agent", "chan-structure-scanner/1.0")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("连接 Binance WebSocket 失败: %w", err)
	}

	readTimeout := time.Duration(s.cfg.ReadTimeoutMs) * time.Millisecond
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		atomic.StoreInt64(&s.lastMsgTime, timeutil.NowNano())
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	s.conn = conn
	s.backoff.Reset()
	s.logger.Info("Binance WebSocket 连接成功", zap.String("url", s.cfg.URL))
	return nil
}

// Subscribe 订阅 K 线流
func (s *Stream) Subscribe() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("WebSocket 未连接")
	}

	// 订阅参数要求小写 symbol
	stream := fmt.Sprintf("%s@kline_%s", strings.ToLower(s.cfg.Symbol), s.cfg.Interval)
	req := subscribeRequest{
		Method: "SUBSCRIBE",
		Params: []string{stream},
		ID:     1,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("序列化订阅请求失败: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("发送订阅请求失败: %w", err)
	}

	s.logger.Info("K 线流订阅请求已发送", zap.String("stream", stream))
	return nil
}

// Run 启动客户端主循环，阻塞直到 ctx 取消或 Close
func (s *Stream) Run(ctx context.Context) {
	go s.pingLoop(ctx)
	s.readLoop(ctx)
}

func (s *Stream) readLoop(ctx context.Context) {
	readTimeout := time.Duration(s.cfg.ReadTimeoutMs) * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if atomic.LoadInt32(&s.closed) == 1 {
			return
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			s.reconnect(ctx)
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Warn("读取 Binance 消息失败", zap.Error(err))
			s.reconnect(ctx)
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		atomic.StoreInt64(&s.lastMsgTime, timeutil.NowNano())

		bar, ok, err := parseKlineMessage(data)
		if err != nil {
			s.logger.Debug("解析 K 线消息失败", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		select {
		case s.barCh <- bar:
		default:
			s.logger.Warn("barCh 已满，丢弃 K 线", zap.Time("time", bar.Time))
		}
	}
}

func (s *Stream) pingLoop(ctx context.Context) {
	intervalMs := s.cfg.PingIntervalMs
	if intervalMs <= 0 {
		intervalMs = s.cfg.ReadTimeoutMs / 2
		if intervalMs <= 0 {
			intervalMs = 15000
		}
	}

	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if atomic.LoadInt32(&s.closed) == 1 {
				return
			}

			s.connMu.Lock()
			conn := s.conn
			if conn == nil {
				s.connMu.Unlock()
				continue
			}

			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				s.connMu.Unlock()
				s.logger.Warn("发送 ping 失败", zap.Error(err))
				continue
			}
			s.connMu.Unlock()
		}
	}
}

func (s *Stream) reconnect(ctx context.Context) {
	s.closeConn()

	delay := s.backoff.Next()
	s.logger.Info("准备重连", zap.Duration("delay", delay))

	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	if err := s.Connect(ctx); err != nil {
		s.logger.Error("重连失败", zap.Error(err))
		return
	}
	if err := s.Subscribe(); err != nil {
		s.logger.Error("重新订阅失败", zap.Error(err))
	}
}

func (s *Stream) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Close 关闭客户端
func (s *Stream) Close() error {
	atomic.StoreInt32(&s.closed, 1)
	s.closeConn()
	close(s.barCh)
	s.logger.Info("Binance K 线流已关闭")
	return nil
}

// BarCh 获取已收盘 K 线输出通道
func (s *Stream) BarCh() <-chan model.Bar {
	return s.barCh
}

// parseKlineMessage 解析 K 线推送
// 返回 ok=false 表示消息合法但不是已收盘 K 线（订阅确认或中间推送）。
func parseKlineMessage(data []byte) (model.Bar, bool, error) {
	var msg klineMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return model.Bar{}, false, err
	}
	if msg.EventType != "kline" || !msg.Kline.Closed {
		return model.Bar{}, false, nil
	}

	bar := model.Bar{Time: timeutil.MsToTime(msg.Kline.OpenTime)}
	fields := []struct {
		src string
		dst *float64
	}{
		{msg.Kline.Open, &bar.Open},
		{msg.Kline.High, &bar.High},
		{msg.Kline.Low, &bar.Low},
		{msg.Kline.Close, &bar.Close},
		{msg.Kline.Volume, &bar.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(f.src, 64)
		if err != nil {
			return model.Bar{}, false, err
		}
		*f.dst = v
	}

	if !bar.Valid() {
		return model.Bar{}, false, fmt.Errorf("K 线数值无效")
	}
	return bar, true, nil
}
