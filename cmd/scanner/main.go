// Package main 是缠论结构扫描器的入口点。
// 对 K 线序列做包含合并、分型、笔、中枢的递归构建，检测三类买卖点，
// 经评分与过滤后输出交易信号；支持批量分析与实时监控两种模式。
//
// 重要：本系统仅用于研究/验证，严禁真实下单。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chan-structure-scanner/internal/backtest"
	"chan-structure-scanner/internal/config"
	"chan-structure-scanner/internal/core/classify"
	"chan-structure-scanner/internal/core/filter"
	"chan-structure-scanner/internal/core/model"
	"chan-structure-scanner/internal/core/pipeline"
	"chan-structure-scanner/internal/core/score"
	"chan-structure-scanner/internal/datafeed/binance"
	"chan-structure-scanner/internal/datafeed/csvfeed"
	"chan-structure-scanner/internal/monitor"
	"chan-structure-scanner/internal/notify"
	"chan-structure-scanner/internal/output/jsonl"
	"chan-structure-scanner/internal/store"
)

func main() {
	var (
		configPath string
		mode       string
		csvPath    string
	)
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.StringVar(&mode, "mode", "batch", "运行模式: batch 或 monitor")
	flag.StringVar(&csvPath, "csv", "", "CSV 文件路径（覆盖配置）")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if csvPath != "" {
		cfg.Feed.Source = "csv"
		cfg.Feed.CSVPath = csvPath
	}

	logger := newLogger(cfg.App.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，触发优雅退出
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	pipe := buildPipeline(cfg)

	switch mode {
	case "batch":
		err = runBatch(ctx, cfg, pipe, logger)
	case "monitor":
		err = runMonitor(ctx, cfg, pipe, logger)
	default:
		fmt.Fprintf(os.Stderr, "未知模式: %s（有效值: batch, monitor）\n", mode)
		os.Exit(1)
	}
	if err != nil && err != context.Canceled {
		logger.Error("运行失败", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func buildPipeline(cfg *config.Config) *pipeline.Pipeline {
	scorer := score.New(cfg.Scorer.Weights, cfg.Scorer.MinScore)
	flt := filter.New(filter.Config{
		CheckStructureComplete:    cfg.Filter.CheckStructureComplete,
		CheckFractalConfirmation:  cfg.Filter.CheckFractalConfirmation,
		CheckPositionClear:        cfg.Filter.CheckPositionClear,
		MinScore:                  cfg.Scorer.MinScore,
		LimitMovePercent:          cfg.Filter.LimitMovePercent,
		LowLiquidityWindowMinutes: cfg.Filter.LowLiquidityWindowMinutes,
		MinATR:                    cfg.Filter.MinATR,
		MaxStopPercent:            cfg.Filter.MaxStopPercent,
	})

	return pipeline.New(pipeline.Config{
		MACDFast:   cfg.Indicator.MACDFast,
		MACDSlow:   cfg.Indicator.MACDSlow,
		MACDSignal: cfg.Indicator.MACDSignal,
		ATRPeriod:  cfg.Indicator.ATRPeriod,
		Classify:   classify.DefaultConfig(),
	}, scorer, flt)
}

// runBatch 批量模式：一次性分析整个 CSV，输出信号并做影子回测
func runBatch(ctx context.Context, cfg *config.Config, pipe *pipeline.Pipeline, logger *zap.Logger) error {
	bars, err := loadHistory(ctx, cfg, logger)
	if err != nil {
		return err
	}

	res, err := pipe.Analyze(bars)
	if err != nil {
		return err
	}

	logger.Info("批量分析完成",
		zap.Int("bars", len(res.Bars)),
		zap.Int("merged", len(res.Merged)),
		zap.Int("fractals", len(res.Fractals)),
		zap.Int("strokes", len(res.Strokes)),
		zap.Int("centers", len(res.Centers)),
		zap.Int("signals", len(res.Signals)))

	var signalsWriter, tradesWriter *jsonl.Writer
	if cfg.Output.SignalsEnabled {
		signalsWriter, err = jsonl.NewWriter(fmt.Sprintf("%s/signals.jsonl", cfg.Output.Dir), cfg.Output.BufferSize)
		if err != nil {
			return fmt.Errorf("创建 signals writer 失败: %w", err)
		}
		defer signalsWriter.Close()
	}
	if cfg.Output.TradesEnabled {
		tradesWriter, err = jsonl.NewWriter(fmt.Sprintf("%s/trades.jsonl", cfg.Output.Dir), cfg.Output.BufferSize)
		if err != nil {
			return fmt.Errorf("创建 trades writer 失败: %w", err)
		}
		defer tradesWriter.Close()
	}

	for _, sig := range res.Signals {
		fmt.Println(notify.FormatSignal(sig))
		if signalsWriter != nil {
			_ = signalsWriter.Write(jsonl.NewSignalRecord(sig))
		}
	}

	runShadowBacktest(cfg, res, tradesWriter, logger)
	return nil
}

// runShadowBacktest 按信号时间顺序在后续 K 线上影子成交
func runShadowBacktest(cfg *config.Config, res *pipeline.Result, tradesWriter *jsonl.Writer, logger *zap.Logger) {
	accepted := res.Accepted()
	if len(accepted) == 0 {
		logger.Info("无通过过滤的信号，跳过影子回测")
		return
	}

	exec := backtest.NewExecutor(backtest.Config{
		Equity:      cfg.Backtest.Equity,
		RiskRatio:   cfg.Backtest.RiskRatio,
		MaxHoldBars: cfg.Backtest.MaxHoldBars,
	})
	calc := backtest.NewCalculator(1000)

	next := 0
	for i := range res.Bars {
		bar := res.Bars[i]

		if closed := exec.Evaluate(bar); closed != nil {
			calc.Add(closed)
			if tradesWriter != nil {
				_ = tradesWriter.Write(jsonl.NewTradeRecord(closed))
			}
		}

		// 开仓发生在信号 K 线收盘后
		for next < len(accepted) && !accepted[next].Time.After(bar.Time) {
			if _, opened, err := exec.TryOpen(accepted[next]); err != nil {
				logger.Warn("影子开仓失败", zap.Error(err))
			} else if opened {
				logger.Debug("影子开仓",
					zap.String("tag", accepted[next].Tag()),
					zap.Float64("price", accepted[next].Price))
			}
			next++
		}
	}

	stats := calc.Stats()
	logger.Info("影子回测统计",
		zap.Int64("trades", stats.Count),
		zap.Float64("win_rate", stats.WinRate),
		zap.Float64("avg_profit", stats.AvgProfit),
		zap.Float64("avg_loss", stats.AvgLoss),
		zap.Float64("ev", stats.EV),
		zap.Float64("p_required", stats.PRequired),
		zap.Float64("equity", exec.Equity()))
}

// runMonitor 实时模式：滑动窗口持续分析并推送新信号
func runMonitor(ctx context.Context, cfg *config.Config, pipe *pipeline.Pipeline, logger *zap.Logger) error {
	notifier, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}

	mon := monitor.New(pipe, notifier, cfg.Monitor.WindowBars, logger)

	switch cfg.Feed.Source {
	case "csv":
		return runCSVReplay(ctx, cfg, mon, logger)
	case "binance":
		return runBinanceLive(ctx, cfg, mon, logger)
	default:
		return fmt.Errorf("未知数据来源: %s", cfg.Feed.Source)
	}
}

// buildNotifier 按配置组装通知端，并按需接入持久化
func buildNotifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (monitor.Notifier, error) {
	var sinks []notify.Notifier
	if cfg.Notify.Console {
		sinks = append(sinks, notify.NewConsole(logger))
	}
	if cfg.Notify.WebhookURL != "" {
		timeout := time.Duration(cfg.Notify.TimeoutMs) * time.Millisecond
		sinks = append(sinks, notify.NewWebhook(cfg.Notify.WebhookURL, timeout, logger))
	}

	var base notify.Notifier = notify.NewMulti(sinks...)
	if !cfg.Store.Enabled {
		return base, nil
	}

	st, err := store.Open(ctx, cfg.Store.DSN, logger)
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = st.Close()
	}()
	return &persistingNotifier{next: base, store: st, logger: logger}, nil
}

// persistingNotifier 在转发通知前把信号落库
type persistingNotifier struct {
	next   notify.Notifier
	store  *store.Store
	logger *zap.Logger
}

func (p *persistingNotifier) Notify(sig *model.Signal) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.SaveSignal(ctx, sig); err != nil {
		p.logger.Warn("信号落库失败", zap.Error(err))
	}
	p.next.Notify(sig)
}

func (p *persistingNotifier) NotifyConfirm(sig *model.Signal) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.UpdateConfirmed(ctx, sig.ID, sig.Confirmed); err != nil {
		p.logger.Warn("确认状态落库失败", zap.Error(err))
	}
	p.next.NotifyConfirm(sig)
}

// runCSVReplay 把 CSV 当作实时流逐根重放
func runCSVReplay(ctx context.Context, cfg *config.Config, mon *monitor.Monitor, logger *zap.Logger) error {
	feed := csvfeed.New(cfg.Feed.CSVPath, logger)
	bars, err := feed.Load()
	if err != nil {
		return err
	}

	seed := cfg.Feed.HistoryBars
	if seed > len(bars) {
		seed = len(bars)
	}
	mon.Seed(bars[:seed])

	barCh := make(chan model.Bar)
	go func() {
		defer close(barCh)
		for _, bar := range bars[seed:] {
			select {
			case <-ctx.Done():
				return
			case barCh <- bar:
			}
		}
	}()

	return mon.Run(ctx, barCh)
}

// runBinanceLive 历史 K 线填充窗口后接入实时流
func runBinanceLive(ctx context.Context, cfg *config.Config, mon *monitor.Monitor, logger *zap.Logger) error {
	timeout := time.Duration(cfg.Feed.TimeoutMs) * time.Millisecond
	rest := binance.NewRESTClient(cfg.Feed.RESTURL, timeout, logger)

	bars, err := rest.Klines(ctx, cfg.Feed.Symbol, cfg.Feed.Interval, cfg.Feed.HistoryBars)
	if err != nil {
		return fmt.Errorf("拉取历史 K 线失败: %w", err)
	}
	mon.Seed(bars)

	stream := binance.NewStream(binance.StreamConfig{
		URL:            cfg.Feed.WSURL,
		Symbol:         cfg.Feed.Symbol,
		Interval:       cfg.Feed.Interval,
		ReadTimeoutMs:  cfg.Feed.ReadTimeoutMs,
		PingIntervalMs: cfg.Feed.PingIntervalMs,
	}, logger)

	startCtx, startCancel := context.WithTimeout(ctx, 10*time.Second)
	defer startCancel()
	if err := stream.Connect(startCtx); err != nil {
		return err
	}
	if err := stream.Subscribe(); err != nil {
		return err
	}
	go stream.Run(ctx)
	defer stream.Close()

	return mon.Run(ctx, stream.BarCh())
}

// loadHistory 按配置加载批量分析的 K 线
func loadHistory(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]model.Bar, error) {
	switch cfg.Feed.Source {
	case "csv":
		return csvfeed.New(cfg.Feed.CSVPath, logger).Load()
	case "binance":
		timeout := time.Duration(cfg.Feed.TimeoutMs) * time.Millisecond
		rest := binance.NewRESTClient(cfg.Feed.RESTURL, timeout, logger)
		return rest.Klines(ctx, cfg.Feed.Symbol, cfg.Feed.Interval, cfg.Feed.HistoryBars)
	default:
		return nil, fmt.Errorf("未知数据来源: %s", cfg.Feed.Source)
	}
}
