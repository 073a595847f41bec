// Package calendar 提供工作日历计算
// 工作时段为每个工作日内固定的时间窗口，工作日按周一=0..周日=6 标记
package calendar

import (
	"fmt"
	"time"

	"github.com/weixiu/weixiu/pkg/errors"
	"github.com/weixiu/weixiu/pkg/model"
)

// Policy 工时跨窗口策略
type Policy int

const (
	// PolicySingleWindow 工单必须完整落在单个工作日窗口内
	PolicySingleWindow Policy = iota
	// PolicyMultiDay 工时跨越连续工作窗口累计，跳过非工作时段
	PolicyMultiDay
)

// WorkCalendar 工作日历
type WorkCalendar struct {
	startHour, startMin int
	endHour, endMin     int
	workdays            map[int]bool
}

// New 创建工作日历
// workdayStart/workdayEnd 为 HH:MM，workdays 为周一=0..周日=6 的下标列表
func New(workdayStart, workdayEnd string, workdays []int) (*WorkCalendar, error) {
	sh, sm, ok := model.ParseClock(workdayStart)
	if !ok {
		return nil, errors.InvalidInput("workday_start", fmt.Sprintf("无法解析时刻 '%s'", workdayStart))
	}
	eh, em, ok := model.ParseClock(workdayEnd)
	if !ok {
		return nil, errors.InvalidInput("workday_end", fmt.Sprintf("无法解析时刻 '%s'", workdayEnd))
	}
	if eh*60+em <= sh*60+sm {
		return nil, errors.InvalidInput("workday_end", "工作窗口结束时刻必须晚于开始时刻")
	}
	if len(workdays) == 0 {
		return nil, errors.InvalidInput("workdays", "工作日列表不能为空")
	}
	days := make(map[int]bool, len(workdays))
	for _, d := range workdays {
		if d < 0 || d > 6 {
			return nil, errors.InvalidInput("workdays", fmt.Sprintf("非法的星期下标 %d", d))
		}
		days[d] = true
	}
	return &WorkCalendar{
		startHour: sh, startMin: sm,
		endHour: eh, endMin: em,
		workdays: days,
	}, nil
}

// Default 返回默认日历：08:00-17:00，周一至周五
func Default() *WorkCalendar {
	cal, _ := New("08:00", "17:00", []int{0, 1, 2, 3, 4})
	return cal
}

// WindowStart 返回某日期工作窗口的开始时刻
func (c *WorkCalendar) WindowStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.startHour, c.startMin, 0, 0, t.Location())
}

// WindowEnd 返回某日期工作窗口的结束时刻
func (c *WorkCalendar) WindowEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.endHour, c.endMin, 0, 0, t.Location())
}

// IsWorkingDay 检查某日期是否为工作日
func (c *WorkCalendar) IsWorkingDay(t time.Time) bool {
	return c.workdays[model.WeekdayIndex(t)]
}

// IsWorkingInstant 检查某时刻是否处于工作时段内
func (c *WorkCalendar) IsWorkingInstant(t time.Time) bool {
	if !c.IsWorkingDay(t) {
		return false
	}
	return !t.Before(c.WindowStart(t)) && t.Before(c.WindowEnd(t))
}

// NextWorkingInstant 将时刻前移到下一个有效工作时刻
// 已处于工作时段内的时刻原样返回
func (c *WorkCalendar) NextWorkingInstant(t time.Time) time.Time {
	if !t.Before(c.WindowEnd(t)) || !c.IsWorkingDay(t) {
		for {
			t = t.AddDate(0, 0, 1)
			if c.IsWorkingDay(t) {
				return c.WindowStart(t)
			}
		}
	}
	if t.Before(c.WindowStart(t)) {
		return c.WindowStart(t)
	}
	return t
}

// DailyCapacity 返回单个工作窗口的时长
func (c *WorkCalendar) DailyCapacity() time.Duration {
	end := c.endHour*60 + c.endMin
	start := c.startHour*60 + c.startMin
	return time.Duration(end-start) * time.Minute
}

// EndOfDuration 从 start 起计算工时 d 的结束时刻
// PolicySingleWindow 下工单放不进当日窗口时返回 false
func (c *WorkCalendar) EndOfDuration(start time.Time, d time.Duration, policy Policy) (time.Time, bool) {
	switch policy {
	case PolicySingleWindow:
		if !c.IsWorkingInstant(start) {
			return time.Time{}, false
		}
		end := start.Add(d)
		if end.After(c.WindowEnd(start)) {
			return time.Time{}, false
		}
		return end, true
	default:
		current := c.NextWorkingInstant(start)
		remaining := d
		for remaining > 0 {
			windowEnd := c.WindowEnd(current)
			available := windowEnd.Sub(current)
			if available >= remaining {
				return current.Add(remaining), true
			}
			remaining -= available
			current = c.NextWorkingInstant(windowEnd.Add(time.Second))
		}
		return current, true
	}
}

// WorkingWindows 枚举 [tStart, tEnd) 内被裁剪到边界的每日工作窗口
func (c *WorkCalendar) WorkingWindows(tStart, tEnd time.Time) []model.TimeRange {
	var windows []model.TimeRange
	current := tStart
	for current.Before(tEnd) {
		if c.IsWorkingDay(current) {
			dayStart := c.WindowStart(current)
			dayEnd := c.WindowEnd(current)
			if dayStart.Before(tStart) {
				dayStart = tStart
			}
			if dayEnd.After(tEnd) {
				dayEnd = tEnd
			}
			if dayStart.Before(dayEnd) {
				windows = append(windows, model.TimeRange{Start: dayStart, End: dayEnd})
			}
		}
		current = current.AddDate(0, 0, 1)
	}
	return windows
}

// WindowString 返回工作窗口的 HH:MM-HH:MM 描述
func (c *WorkCalendar) WindowString() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", c.startHour, c.startMin, c.endHour, c.endMin)
}
