package filter

import (
	"chan-structure-scanner/internal/core/model"
)

// ConfirmContext 信号触发后续 K 线提供的确认证据
// 由监控器在信号产生后的若干根 K 线内采集。
type ConfirmContext struct {
	// NextBarConfirms 信号后第一根 K 线是否顺势收盘
	// 买点看收涨，卖点看收跌。
	NextBarConfirms bool
	// PriceAdvanced 收盘价已顺势越过信号价
	PriceAdvanced bool
	// VolumeExpands 确认 K 线量能是否高于近期均量
	VolumeExpands bool
	// NotReturned 价格未回到触发极值之内
	// 买点要求未再创新低，卖点要求未再创新高。
	NotReturned bool
	// MomentumTurns MACD 柱是否开始向信号方向收敛或翻转
	MomentumTurns bool
	// SubLevelConfirms 次级别结构支持信号方向
	SubLevelConfirms bool
}

// Confirm 按信号级别执行确认清单并写回 Signal.Confirmed
// 清单按级别取证：一类是趋势反转判断，要求价格实际走出
// （越过信号价、触发极值未破、量能放大、次级别支持）且至少
// 三项成立；三类看同一组证据但只需两项；二类是回调延续，
// 看顺势收盘、极值未破、量能与动量，至少两项。
// 幂等，可在每根新 K 线上重复执行。
func Confirm(sig *model.Signal, cc ConfirmContext) bool {
	var checklist []bool
	need := 2
	switch sig.Class {
	case model.Class1:
		checklist = []bool{cc.PriceAdvanced, cc.NotReturned, cc.VolumeExpands, cc.SubLevelConfirms}
		need = 3
	case model.Class3:
		checklist = []bool{cc.PriceAdvanced, cc.NotReturned, cc.VolumeExpands, cc.SubLevelConfirms}
	default:
		checklist = []bool{cc.NextBarConfirms, cc.NotReturned, cc.VolumeExpands, cc.MomentumTurns}
	}

	hits := 0
	for _, ok := range checklist {
		if ok {
			hits++
		}
	}

	sig.Confirmed = hits >= need
	return sig.Confirmed
}
