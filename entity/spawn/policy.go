package spawn

// SettlePolicy 让场景稳定的推进策略
// 功能：每累计Every次事件（成功生成或失败尝试），推进Ticks步
// 说明：与引擎调用无关，可单独测试
type SettlePolicy struct {
	Every int
	Ticks int
}

var (
	// 每成功生成3辆车推进2步，让新车驶离生成点
	SuccessSettle = SettlePolicy{Every: 3, Ticks: 2}
	// 每失败5次推进3步，疏通拥堵的生成区域
	FailureBackoff = SettlePolicy{Every: 5, Ticks: 3}
)

// TicksAfter 第count次事件之后需要推进的步数
func (p SettlePolicy) TicksAfter(count int) int {
	if p.Every <= 0 || p.Ticks <= 0 || count <= 0 {
		return 0
	}
	if count%p.Every == 0 {
		return p.Ticks
	}
	return 0
}
