package center

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"chan-structure-scanner/internal/core/model"
)

// stroke 构造指定高低区间的笔，方向按起止分型推断
func stroke(idx int, high, low float64, dir model.Trend) model.Stroke {
	start := model.Fractal{MergedIndex: idx * 5, Time: time.Unix(int64(idx)*300, 0)}
	end := model.Fractal{MergedIndex: idx*5 + 4, Time: time.Unix(int64(idx)*300+240, 0)}
	if dir == model.TrendUp {
		start.Kind = model.FractalBottom
		start.Price, start.High, start.Low = low, low+0.1, low
		end.Kind = model.FractalTop
		end.Price, end.High, end.Low = high, high, high-0.1
	} else {
		start.Kind = model.FractalTop
		start.Price, start.High, start.Low = high, high, high-0.1
		end.Kind = model.FractalBottom
		end.Price, end.High, end.Low = low, low+0.1, low
	}
	return model.Stroke{Start: start, End: end, Direction: dir}
}

func alternating(i int) model.Trend {
	if i%2 == 0 {
		return model.TrendUp
	}
	return model.TrendDown
}

func strokesFrom(highs, lows []float64) []model.Stroke {
	out := make([]model.Stroke, 0, len(highs))
	for i := range highs {
		out = append(out, stroke(i, highs[i], lows[i], alternating(i)))
	}
	return out
}

func TestDetect_ThreeStrokeCenter(t *testing.T) {
	// 高点 [110,108,112]、低点 [100,103,101] → zg=108, zd=103
	strokes := strokesFrom(
		[]float64{110, 108, 112},
		[]float64{100, 103, 101},
	)

	centers := Detect(strokes)
	if len(centers) != 1 {
		t.Fatalf("期望 1 个中枢: got %d", len(centers))
	}
	c := centers[0]
	if c.ZG != 108 || c.ZD != 103 {
		t.Errorf("中枢边界错误: zg=%v zd=%v", c.ZG, c.ZD)
	}
	if c.StartStroke != 0 || c.EndStroke != 2 {
		t.Errorf("中枢笔范围错误: [%d, %d]", c.StartStroke, c.EndStroke)
	}
	if c.GG != 112 || c.DD != 100 {
		t.Errorf("GG/DD 错误: gg=%v dd=%v", c.GG, c.DD)
	}
}

func TestDetect_NonOverlapTerminatesExtension(t *testing.T) {
	// 第四笔 [90,95] 与 [103,108] 无交集：终止延伸且不被吸收
	strokes := strokesFrom(
		[]float64{110, 108, 112, 95},
		[]float64{100, 103, 101, 90},
	)

	centers := Detect(strokes)
	if len(centers) != 1 {
		t.Fatalf("期望 1 个中枢: got %d", len(centers))
	}
	if centers[0].EndStroke != 2 {
		t.Errorf("不重叠的笔不应被吸收: end=%d", centers[0].EndStroke)
	}
}

func TestDetect_OverlapExtends(t *testing.T) {
	// 第四笔与中枢带有交集：被吸收延伸
	strokes := strokesFrom(
		[]float64{110, 108, 112, 105},
		[]float64{100, 103, 101, 99},
	)

	centers := Detect(strokes)
	if len(centers) != 1 {
		t.Fatalf("期望 1 个中枢: got %d", len(centers))
	}
	c := centers[0]
	if c.EndStroke != 3 {
		t.Errorf("重叠的笔应被吸收: end=%d", c.EndStroke)
	}
	if c.DD != 99 {
		t.Errorf("DD 应更新为延伸笔低点: %v", c.DD)
	}
	// 延伸不改变 ZG/ZD
	if c.ZG != 108 || c.ZD != 103 {
		t.Errorf("延伸不应改变中枢边界: zg=%v zd=%v", c.ZG, c.ZD)
	}
}

func TestDetect_NoOverlapNoCenter(t *testing.T) {
	// 三笔无公共区间: zg <= zd
	strokes := strokesFrom(
		[]float64{110, 120, 130},
		[]float64{100, 112, 124},
	)
	if got := Detect(strokes); len(got) != 0 {
		t.Errorf("无重叠不应产生中枢: %+v", got)
	}
}

func TestDetect_TooFewStrokes(t *testing.T) {
	strokes := strokesFrom([]float64{110, 108}, []float64{100, 103})
	if got := Detect(strokes); got != nil {
		t.Errorf("不足三笔应返回 nil: %+v", got)
	}
}

// 每个发出的中枢满足 zg > zd 且至少三笔
func TestDetect_Validity_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("zg > zd 且笔数 >= 3", prop.ForAll(
		func(highs []float64, spans []float64) bool {
			n := len(highs)
			if len(spans) < n {
				n = len(spans)
			}
			hs := make([]float64, n)
			ls := make([]float64, n)
			for i := 0; i < n; i++ {
				hs[i] = 100 + highs[i]
				ls[i] = hs[i] - 1 - spans[i]
			}

			for _, c := range Detect(strokesFrom(hs, ls)) {
				if !(c.ZG > c.ZD) {
					return false
				}
				if c.StrokeCount() < 3 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(20, gen.Float64Range(0, 30)),
		gen.SliceOfN(20, gen.Float64Range(0, 15)),
	))

	properties.TestingRun(t)
}
