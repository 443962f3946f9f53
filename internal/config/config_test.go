package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeTempConfig(t, `
app:
  name: scanner-test
  log_level: debug
feed:
  source: csv
  csv_path: ./data/btc_5m.csv
scorer:
  weights:
    structure: 30
    divergence: 30
    volume_price: 10
    time: 10
    position: 10
    sub_level: 10
    strength: 0
    confirmation: 0
  min_score: 70
monitor:
  window_bars: 800
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Name != "scanner-test" || cfg.App.LogLevel != "debug" {
		t.Errorf("app 配置错误: %+v", cfg.App)
	}
	if cfg.Scorer.Weights["structure"] != 30 || cfg.Scorer.MinScore != 70 {
		t.Errorf("scorer 配置错误: %+v", cfg.Scorer)
	}
	if cfg.Monitor.WindowBars != 800 {
		t.Errorf("monitor 配置错误: %+v", cfg.Monitor)
	}
	// 未出现的段落回退默认
	if cfg.Indicator.MACDFast != 12 || cfg.Indicator.MACDSlow != 26 {
		t.Errorf("指标默认值错误: %+v", cfg.Indicator)
	}
	if cfg.Backtest.Equity != 100000 {
		t.Errorf("回测默认值错误: %+v", cfg.Backtest)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatalf("不存在的文件应报错")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "app: [::broken")
	if _, err := Load(path); err == nil {
		t.Fatalf("非法 YAML 应报错")
	}
}

func TestSetDefaults_WeightsMerge(t *testing.T) {
	cfg := Config{}
	cfg.Scorer.Weights = map[string]float64{
		"structure":  50,
		"divergence": 30,
		"made_up":    99, // 未知键忽略
	}
	cfg.setDefaults()

	if cfg.Scorer.Weights["structure"] != 50 || cfg.Scorer.Weights["divergence"] != 30 {
		t.Errorf("显式权重被覆盖: %+v", cfg.Scorer.Weights)
	}
	if _, ok := cfg.Scorer.Weights["made_up"]; ok {
		t.Errorf("未知权重键应被忽略")
	}
	// 缺失键取默认
	if cfg.Scorer.Weights["volume_price"] != 10 {
		t.Errorf("缺失权重键未回退默认: %+v", cfg.Scorer.Weights)
	}
	if len(cfg.Scorer.Weights) != len(WeightKeys) {
		t.Errorf("合并后权重键数错误: %d", len(cfg.Scorer.Weights))
	}
}

func TestDefaultWeights_SumIs100(t *testing.T) {
	var total float64
	for _, key := range WeightKeys {
		total += DefaultWeights()[key]
	}
	if total != 100 {
		t.Errorf("默认权重和应为 100: %v", total)
	}
}

func TestValidate_WeightSumHardFailure(t *testing.T) {
	path := writeTempConfig(t, `
feed:
  source: csv
  csv_path: ./data.csv
scorer:
  weights:
    structure: 50
    divergence: 30
`)
	// 显式 80 + 其余默认 60 = 140，不归一化，直接失败
	_, err := Load(path)
	if err == nil {
		t.Fatalf("权重和偏离 100 应硬性失败")
	}
	if !strings.Contains(err.Error(), "权重总和") {
		t.Errorf("错误信息应指明权重总和: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Feed.Source = "kraken"
	cfg.Indicator.MACDFast = 30 // >= slow 26
	cfg.Backtest.RiskRatio = 0.9

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("应验证失败")
	}
	for _, want := range []string{"feed.source", "macd_fast", "risk_ratio"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("错误信息缺少 %q: %v", want, err)
		}
	}
}

func TestValidate_StoreRequiresDSN(t *testing.T) {
	cfg := Default()
	cfg.Feed.CSVPath = "./data.csv"
	cfg.Store.Enabled = true

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "store.dsn") {
		t.Errorf("启用持久化缺 DSN 应报错: %v", err)
	}
}

func TestSetDefaults_WindowBarsClamped(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 1000},
		{100, 500},
		{800, 800},
		{5000, 2000},
	}
	for _, tc := range cases {
		cfg := Config{}
		cfg.Monitor.WindowBars = tc.in
		cfg.setDefaults()
		if cfg.Monitor.WindowBars != tc.want {
			t.Errorf("window_bars %d: got %d, want %d", tc.in, cfg.Monitor.WindowBars, tc.want)
		}
	}
}
