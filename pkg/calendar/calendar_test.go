package calendar

import (
	"testing"
	"time"

	"github.com/weixiu/weixiu/pkg/model"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation(model.TimeLayout, s, time.Local)
	if err != nil {
		t.Fatalf("解析时间失败: %v", err)
	}
	return parsed
}

func TestNew_参数校验(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		workdays []int
		wantErr  bool
	}{
		{"合法配置", "08:00", "17:00", []int{0, 1, 2, 3, 4}, false},
		{"结束早于开始", "17:00", "08:00", []int{0}, true},
		{"结束等于开始", "08:00", "08:00", []int{0}, true},
		{"无法解析的时刻", "8点", "17:00", []int{0}, true},
		{"空工作日列表", "08:00", "17:00", nil, true},
		{"星期下标越界", "08:00", "17:00", []int{7}, true},
		{"七天工作制", "00:30", "23:30", []int{0, 1, 2, 3, 4, 5, 6}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.start, tt.end, tt.workdays)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() 错误 = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNextWorkingInstant(t *testing.T) {
	cal := Default() // 08:00-17:00 周一至周五

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"工作时段内原样返回", "2025-06-02T10:30:00", "2025-06-02T10:30:00"},
		{"早于窗口推到当日开始", "2025-06-02T06:00:00", "2025-06-02T08:00:00"},
		{"晚于窗口推到次日开始", "2025-06-02T18:00:00", "2025-06-03T08:00:00"},
		{"恰在窗口结束推到次日", "2025-06-02T17:00:00", "2025-06-03T08:00:00"},
		{"周五晚间跳到下周一", "2025-06-06T19:00:00", "2025-06-09T08:00:00"},
		{"周六跳到下周一", "2025-06-07T10:00:00", "2025-06-09T08:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cal.NextWorkingInstant(mustParse(t, tt.input))
			expected := mustParse(t, tt.expected)
			if !got.Equal(expected) {
				t.Errorf("NextWorkingInstant = %v, 期望 %v", got, expected)
			}
		})
	}
}

func TestEndOfDuration_单窗口策略(t *testing.T) {
	cal := Default()

	t.Run("放得下当日窗口", func(t *testing.T) {
		start := mustParse(t, "2025-06-02T08:00:00")
		end, ok := cal.EndOfDuration(start, 4*time.Hour, PolicySingleWindow)
		if !ok {
			t.Fatal("4小时工时应放进9小时窗口")
		}
		if !end.Equal(mustParse(t, "2025-06-02T12:00:00")) {
			t.Errorf("结束时刻 = %v, 期望 12:00", end)
		}
	})

	t.Run("溢出当日窗口", func(t *testing.T) {
		start := mustParse(t, "2025-06-02T14:00:00")
		if _, ok := cal.EndOfDuration(start, 4*time.Hour, PolicySingleWindow); ok {
			t.Error("14:00起4小时会溢出17:00，应失败")
		}
	})

	t.Run("非工作时刻起点", func(t *testing.T) {
		start := mustParse(t, "2025-06-07T08:00:00")
		if _, ok := cal.EndOfDuration(start, time.Hour, PolicySingleWindow); ok {
			t.Error("周六起点应失败")
		}
	})
}

func TestEndOfDuration_多日策略(t *testing.T) {
	cal := Default()

	t.Run("单日内完成", func(t *testing.T) {
		start := mustParse(t, "2025-06-02T08:00:00")
		end, ok := cal.EndOfDuration(start, 4*time.Hour, PolicyMultiDay)
		if !ok || !end.Equal(mustParse(t, "2025-06-02T12:00:00")) {
			t.Errorf("结束时刻 = %v, 期望 12:00", end)
		}
	})

	t.Run("跨一个工作日", func(t *testing.T) {
		// 周一14:00起10小时：当日3小时，次日7小时
		start := mustParse(t, "2025-06-02T14:00:00")
		end, ok := cal.EndOfDuration(start, 10*time.Hour, PolicyMultiDay)
		if !ok {
			t.Fatal("多日策略应成功")
		}
		if !end.Equal(mustParse(t, "2025-06-03T15:00:00")) {
			t.Errorf("结束时刻 = %v, 期望周二15:00", end)
		}
	})

	t.Run("跨周末", func(t *testing.T) {
		// 周五14:00起6小时：周五3小时，周一3小时
		start := mustParse(t, "2025-06-06T14:00:00")
		end, ok := cal.EndOfDuration(start, 6*time.Hour, PolicyMultiDay)
		if !ok {
			t.Fatal("多日策略应成功")
		}
		if !end.Equal(mustParse(t, "2025-06-09T11:00:00")) {
			t.Errorf("结束时刻 = %v, 期望下周一11:00", end)
		}
	})
}

func TestWorkingWindows(t *testing.T) {
	cal := Default()

	t.Run("跨周末的一周", func(t *testing.T) {
		// 周四到下周二，覆盖周四周五周一
		windows := cal.WorkingWindows(
			mustParse(t, "2025-06-05T00:00:00"),
			mustParse(t, "2025-06-10T00:00:00"))
		if len(windows) != 3 {
			t.Fatalf("窗口数 = %d, 期望 3", len(windows))
		}
	})

	t.Run("边界裁剪", func(t *testing.T) {
		windows := cal.WorkingWindows(
			mustParse(t, "2025-06-02T10:00:00"),
			mustParse(t, "2025-06-02T15:00:00"))
		if len(windows) != 1 {
			t.Fatalf("窗口数 = %d, 期望 1", len(windows))
		}
		if !windows[0].Start.Equal(mustParse(t, "2025-06-02T10:00:00")) ||
			!windows[0].End.Equal(mustParse(t, "2025-06-02T15:00:00")) {
			t.Errorf("窗口未被裁剪到边界: %+v", windows[0])
		}
	})

	t.Run("纯周末为空", func(t *testing.T) {
		windows := cal.WorkingWindows(
			mustParse(t, "2025-06-07T00:00:00"),
			mustParse(t, "2025-06-09T00:00:00"))
		if len(windows) != 0 {
			t.Errorf("周末窗口数 = %d, 期望 0", len(windows))
		}
	})
}

func TestDailyCapacity(t *testing.T) {
	cal := Default()
	if got := cal.DailyCapacity(); got != 9*time.Hour {
		t.Errorf("DailyCapacity = %v, 期望 9h", got)
	}
	if got := cal.WindowString(); got != "08:00-17:00" {
		t.Errorf("WindowString = %s, 期望 08:00-17:00", got)
	}
}
