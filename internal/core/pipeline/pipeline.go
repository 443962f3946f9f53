// Package pipeline 将各分析阶段串联为一次完整的批量分析。
// 流程: 指标计算、K 线合并、分型检测、笔构建与动量附着、中枢检测、
// 逐笔买卖点分类、评分、过滤与建议生成。各阶段均为纯函数，
// 管道自身无内部状态，可安全并发调用 Analyze。
package pipeline

import (
	"fmt"

	"chan-structure-scanner/internal/core/center"
	"chan-structure-scanner/internal/core/classify"
	"chan-structure-scanner/internal/core/filter"
	"chan-structure-scanner/internal/core/fractal"
	"chan-structure-scanner/internal/core/kmerge"
	"chan-structure-scanner/internal/core/model"
	"chan-structure-scanner/internal/core/score"
	"chan-structure-scanner/internal/core/stroke"
	"chan-structure-scanner/internal/indicator"
)

// Config 管道参数
type Config struct {
	// MACDFast / MACDSlow / MACDSignal MACD 参数
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	// ATRPeriod ATR 周期
	ATRPeriod int
	// Classify 买卖点检测参数
	Classify classify.Config
}

// DefaultConfig 默认管道参数
func DefaultConfig() Config {
	return Config{
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		ATRPeriod:  14,
		Classify:   classify.DefaultConfig(),
	}
}

// Result 一次批量分析的完整产出
type Result struct {
	// Bars 输入的原始 K 线
	Bars []model.Bar
	// Merged 合成 K 线
	Merged []model.MergedBar
	// Fractals 分型
	Fractals []model.Fractal
	// Strokes 笔
	Strokes []model.Stroke
	// Centers 中枢
	Centers []model.Center
	// Signals 过评分门槛的全部信号（含被过滤拒绝的，见 Accepted 标记）
	Signals []*model.Signal
}

// Accepted 返回通过全部过滤的信号
func (r *Result) Accepted() []*model.Signal {
	var out []*model.Signal
	for _, s := range r.Signals {
		if s.Accepted {
			out = append(out, s)
		}
	}
	return out
}

// Pipeline 批量分析管道
type Pipeline struct {
	cfg      Config
	detector *classify.Detector
	scorer   *score.Scorer
	flt      *filter.Filter
}

// New 创建管道
// scorer 和 flt 为必填协作者；cfg 的零值字段回退为默认参数。
func New(cfg Config, scorer *score.Scorer, flt *filter.Filter) *Pipeline {
	def := DefaultConfig()
	if cfg.MACDFast <= 0 {
		cfg.MACDFast = def.MACDFast
	}
	if cfg.MACDSlow <= 0 {
		cfg.MACDSlow = def.MACDSlow
	}
	if cfg.MACDSignal <= 0 {
		cfg.MACDSignal = def.MACDSignal
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = def.ATRPeriod
	}
	return &Pipeline{
		cfg:      cfg,
		detector: classify.NewDetector(cfg.Classify),
		scorer:   scorer,
		flt:      flt,
	}
}

// Analyze 对一段 K 线做完整结构分析
// 数据不足以形成任何结构时返回只含已完成阶段产物的结果，不算错误。
func (p *Pipeline) Analyze(bars []model.Bar) (*Result, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("输入 K 线为空")
	}

	macd := indicator.ComputeMACD(bars, p.cfg.MACDFast, p.cfg.MACDSlow, p.cfg.MACDSignal)
	atr := indicator.ComputeATR(bars, p.cfg.ATRPeriod)

	volumes := make([]float64, len(bars))
	for i := range bars {
		volumes[i] = bars[i].Volume
	}

	res := &Result{Bars: bars}
	res.Merged = kmerge.Merge(bars)
	res.Fractals = fractal.Detect(res.Merged)
	res.Strokes = stroke.Build(res.Fractals)
	stroke.AttachMomentum(res.Strokes, res.Merged, macd.Histogram, volumes)
	res.Centers = center.Detect(res.Strokes)

	ctx := &classify.Context{
		Bars:      bars,
		Merged:    res.Merged,
		Strokes:   res.Strokes,
		Centers:   res.Centers,
		Histogram: macd.Histogram,
		ATR:       atr,
	}

	for i := range res.Strokes {
		for _, sig := range p.detector.Detect(ctx, i) {
			p.scorer.Score(sig)
			// 候选信号无论评分高低都保留在上下文中，
			// 供第二类检测回查第一类信号。
			ctx.Signals = append(ctx.Signals, sig)
			if !p.scorer.Accept(sig) {
				continue
			}
			mkt := p.marketContextAt(ctx, sig)
			if ok, _ := p.flt.Apply(sig, mkt); ok {
				sig.Advice = buildAdvice(sig)
			}
			res.Signals = append(res.Signals, sig)
		}
	}

	return res, nil
}

// marketContextAt 取信号笔终点所在原始 K 线的市场快照
func (p *Pipeline) marketContextAt(ctx *classify.Context, sig *model.Signal) filter.MarketContext {
	mkt := filter.MarketContext{}
	if sig.StrokeIndex < 0 || sig.StrokeIndex >= len(ctx.Strokes) {
		return mkt
	}
	s := &ctx.Strokes[sig.StrokeIndex]
	if s.End.MergedIndex >= len(ctx.Merged) {
		return mkt
	}
	idx := ctx.Merged[s.End.MergedIndex].LastConstituent()
	if idx < 0 || idx >= len(ctx.Bars) {
		return mkt
	}
	if idx < len(ctx.ATR) {
		mkt.ATR = ctx.ATR[idx]
	}
	bar := &ctx.Bars[idx]
	if bar.Open > 0 {
		mkt.LastBarMovePercent = (bar.Close - bar.Open) / bar.Open * 100
	}
	return mkt
}

// buildAdvice 按信号级别与评分生成仓位建议
// 基础仓位: 一类 30%，二类 25%，三类 20%；按评分在 60-100 区间
// 线性缩放，最低打六折。
func buildAdvice(sig *model.Signal) *model.Advice {
	var base float64
	switch sig.Class {
	case model.Class1:
		base = 0.30
	case model.Class2:
		base = 0.25
	default:
		base = 0.20
	}

	scale := 0.6
	if sig.Score > 60 {
		scale = 0.6 + 0.4*(sig.Score-60)/40
	}
	if scale > 1 {
		scale = 1
	}
	ratio := base * scale

	action := "买入"
	if !sig.IsBuy() {
		action = "卖出"
	}
	return &model.Advice{
		Ratio: ratio,
		Description: fmt.Sprintf("%s %s，建议仓位 %.0f%%，止损 %.2f，止盈 %.2f",
			sig.Tag(), action, ratio*100, sig.StopLoss, sig.TakeProfit),
	}
}
