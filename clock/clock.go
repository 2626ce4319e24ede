package clock

import (
	"context"
	"flag"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 300, "心跳日志间隔步数")

	log = logrus.WithField("module", "clock")
)

// Stepper 推进一步仿真的能力（由仿真引擎提供）
type Stepper interface {
	AdvanceTick(ctx context.Context) error
}

// Clock 仿真时钟
// 功能：以固定帧率推进外部引擎的同步时钟，记录已推进的步数
// 说明：整个系统只有一条仿真时间线，所有推进请求都经由这里发出
type Clock struct {
	DT        float64 // 每步时间间隔（秒）
	FrameRate int     // 每秒步数

	Step int64   // 已推进的步数
	T    float64 // 当前时间（秒）

	stepper Stepper
}

// New 创建时钟
// 参数：frameRate-帧率，stepper-仿真引擎
func New(frameRate int, stepper Stepper) *Clock {
	return &Clock{
		DT:        1 / float64(frameRate),
		FrameRate: frameRate,
		stepper:   stepper,
	}
}

// Ticks 将秒数换算为步数（四舍五入）
func (c *Clock) Ticks(seconds float64) int {
	return int(math.Round(seconds * float64(c.FrameRate)))
}

// Advance 推进n步
// 功能：逐步调用引擎推进，每步检查ctx是否已取消，定期输出心跳日志
// 返回：引擎错误或ctx取消原因；出错时Step保持在最后成功的一步
func (c *Clock) Advance(ctx context.Context, n int) error {
	for range n {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.stepper.AdvanceTick(ctx); err != nil {
			return fmt.Errorf("advance tick %d: %w", c.Step+1, err)
		}
		c.Step++
		c.T = float64(c.Step) * c.DT
		if *heartBeatInterval > 0 && c.Step%int64(*heartBeatInterval) == 0 {
			log.Infof("STEP: %d (%s)", c.Step, c)
		}
	}
	return nil
}

// String 获取时钟的字符串表示（HH:MM:SS.s）
func (c *Clock) String() string {
	h, m, s := c.GetHourMinuteSecond()
	return fmt.Sprintf("%02d:%02d:%04.1f", h, m, s)
}

// GetHourMinuteSecond 获取当前时间的小时、分钟、秒
func (c *Clock) GetHourMinuteSecond() (int, int, float64) {
	hour := int(c.T) / 3600
	minute := int(c.T) % 3600 / 60
	second := c.T - float64(hour*3600+minute*60)
	return hour, minute, second
}
