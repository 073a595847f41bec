// Package model 定义维修调度引擎的核心数据模型
package model

import (
	"time"
)

// Reservation 时间段占用记录
type Reservation struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	JobID string    `json:"job_id"`
}

// QuantityReservation 带数量的时间段占用记录
type QuantityReservation struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Quantity int       `json:"quantity"`
}

// WeekdayIndex 返回周一=0..周日=6 的星期下标
// 输入数据沿用该约定表示工作日
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// ParseClock 解析 HH:MM 格式的时刻，失败时返回零值
func ParseClock(s string) (hour, minute int, ok bool) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, false
	}
	return parsed.Hour(), parsed.Minute(), true
}

// Equipment 设备
// 同一设备的占用时段互不重叠
// 未设置自身日历的设备视为全天候可用
type Equipment struct {
	EquipmentID  string        `json:"equipment_id" db:"equipment_id"`
	Name         string        `json:"name" db:"name"`
	Priority     int           `json:"priority" db:"priority"` // 数值越小越先排
	WorkdayStart string        `json:"workday_start,omitempty" db:"workday_start"`
	WorkdayEnd   string        `json:"workday_end,omitempty" db:"workday_end"`
	Workdays     []int         `json:"workdays,omitempty" db:"-"`
	Schedule     []Reservation `json:"schedule,omitempty" db:"-"`
}

// restricted 检查设备是否设置了自身日历
func (e *Equipment) restricted() bool {
	return e.WorkdayStart != "" || e.WorkdayEnd != "" || len(e.Workdays) > 0
}

// clockWindow 返回设备可用时段，未设置的一侧取全天边界
func (e *Equipment) clockWindow() (startH, startM, endH, endM int) {
	startH, startM = 0, 0
	endH, endM = 24, 0
	if h, m, ok := ParseClock(e.WorkdayStart); ok {
		startH, startM = h, m
	}
	if h, m, ok := ParseClock(e.WorkdayEnd); ok {
		endH, endM = h, m
	}
	return startH, startM, endH, endM
}

// workdaySet 返回设备可用日集合，未设置时所有星期均可用
func (e *Equipment) workdaySet() map[int]bool {
	if len(e.Workdays) == 0 {
		return map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true, 5: true, 6: true}
	}
	set := make(map[int]bool, len(e.Workdays))
	for _, d := range e.Workdays {
		set[d] = true
	}
	return set
}

// WithinWindow 检查时段是否落在设备自身的可用日历内
// 起止时刻都必须落在所在日的可用窗口内
func (e *Equipment) WithinWindow(start, end time.Time) bool {
	if !e.restricted() {
		return true
	}
	startH, startM, endH, endM := e.clockWindow()
	winStart := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), startH, startM, 0, 0, t.Location())
	}
	winEnd := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), endH, endM, 0, 0, t.Location())
	}
	if start.Before(winStart(start)) || start.After(winEnd(start)) {
		return false
	}
	if end.Before(winStart(end)) || end.After(winEnd(end)) {
		return false
	}
	days := e.workdaySet()
	return days[WeekdayIndex(start)] && days[WeekdayIndex(end)]
}

// NextWindowStart 返回不早于 t 的下一个落在设备日历内的时刻
func (e *Equipment) NextWindowStart(t time.Time) time.Time {
	if !e.restricted() {
		return t
	}
	startH, startM, endH, endM := e.clockWindow()
	days := e.workdaySet()
	for i := 0; i < 8; i++ {
		day := t.AddDate(0, 0, i)
		if !days[WeekdayIndex(day)] {
			continue
		}
		ws := time.Date(day.Year(), day.Month(), day.Day(), startH, startM, 0, 0, t.Location())
		we := time.Date(day.Year(), day.Month(), day.Day(), endH, endM, 0, 0, t.Location())
		if i == 0 {
			if t.Before(ws) {
				return ws
			}
			if t.Before(we) {
				return t
			}
			continue
		}
		return ws
	}
	return t.AddDate(0, 0, 8)
}

// IsAvailable 检查设备在 [start, end) 内是否空闲
// 时段必须落在设备日历内且与已有占用不冲突
func (e *Equipment) IsAvailable(start, end time.Time) bool {
	if !e.WithinWindow(start, end) {
		return false
	}
	for _, r := range e.Schedule {
		if start.Before(r.End) && r.Start.Before(end) {
			return false
		}
	}
	return true
}

// Reserve 占用设备时段
func (e *Equipment) Reserve(start, end time.Time, jobID string) {
	e.Schedule = append(e.Schedule, Reservation{Start: start, End: end, JobID: jobID})
}

// Clone 深拷贝设备（含占用状态）
func (e *Equipment) Clone() *Equipment {
	clone := *e
	clone.Workdays = append([]int(nil), e.Workdays...)
	clone.Schedule = append([]Reservation(nil), e.Schedule...)
	return &clone
}

// Technician 维修技师
// 同一技师的派工时段互不重叠，且全部落在其个人工作时段内
type Technician struct {
	TechID       string        `json:"tech_id" db:"tech_id"`
	Name         string        `json:"name" db:"name"`
	Skills       []string      `json:"skills" db:"-"`
	HourlyRate   float64       `json:"hourly_rate" db:"hourly_rate"`
	WorkdayStart string        `json:"workday_start,omitempty" db:"workday_start"`
	WorkdayEnd   string        `json:"workday_end,omitempty" db:"workday_end"`
	Workdays     []int         `json:"workdays,omitempty" db:"-"`
	Assignments  []Reservation `json:"assignments,omitempty" db:"-"`
}

// HasSkill 检查技师是否具备某技能
func (t *Technician) HasSkill(skill string) bool {
	for _, s := range t.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// CoversSkills 检查技师是否覆盖全部所需技能
func (t *Technician) CoversSkills(required []string) bool {
	return SkillsCovered(SkillSet(t.Skills), required)
}

// workdaySet 返回工作日集合，未设置时默认周一至周五
func (t *Technician) workdaySet() map[int]bool {
	days := t.Workdays
	if len(days) == 0 {
		days = []int{0, 1, 2, 3, 4}
	}
	set := make(map[int]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	return set
}

// clockWindow 返回个人工作时段，未设置时默认 08:00-18:00
func (t *Technician) clockWindow() (startH, startM, endH, endM int) {
	startH, startM = 8, 0
	endH, endM = 18, 0
	if h, m, ok := ParseClock(t.WorkdayStart); ok {
		startH, startM = h, m
	}
	if h, m, ok := ParseClock(t.WorkdayEnd); ok {
		endH, endM = h, m
	}
	return startH, startM, endH, endM
}

// IsAvailable 检查技师在 [start, end) 内是否可派工
// 要求时段落在个人工作时段内，且与已有派工不冲突
func (t *Technician) IsAvailable(start, end time.Time) bool {
	startH, startM, endH, endM := t.clockWindow()
	dayStart := time.Date(start.Year(), start.Month(), start.Day(), startH, startM, 0, 0, start.Location())
	dayEnd := time.Date(end.Year(), end.Month(), end.Day(), endH, endM, 0, 0, end.Location())
	if start.Before(dayStart) || end.After(dayEnd) {
		return false
	}

	days := t.workdaySet()
	if !days[WeekdayIndex(start)] || !days[WeekdayIndex(end)] {
		return false
	}

	for _, a := range t.Assignments {
		if start.Before(a.End) && a.Start.Before(end) {
			return false
		}
	}
	return true
}

// Assign 登记技师派工
func (t *Technician) Assign(start, end time.Time, jobID string) {
	t.Assignments = append(t.Assignments, Reservation{Start: start, End: end, JobID: jobID})
}

// Clone 深拷贝技师（含派工状态）
func (t *Technician) Clone() *Technician {
	clone := *t
	clone.Skills = append([]string(nil), t.Skills...)
	clone.Workdays = append([]int(nil), t.Workdays...)
	clone.Assignments = append([]Reservation(nil), t.Assignments...)
	return &clone
}

// Tool 工具池
// 任一时刻重叠占用的数量之和不超过总量
type Tool struct {
	ToolID        string                `json:"tool_id" db:"tool_id"`
	Name          string                `json:"name" db:"name"`
	TotalQuantity int                   `json:"quantity" db:"quantity"`
	Reservations  []QuantityReservation `json:"reservations,omitempty" db:"-"`
}

// IsAvailable 检查 [start, end) 内是否还有 quantity 件空闲
func (t *Tool) IsAvailable(start, end time.Time, quantity int) bool {
	inUse := 0
	for _, r := range t.Reservations {
		if start.Before(r.End) && r.Start.Before(end) {
			inUse += r.Quantity
		}
	}
	return t.TotalQuantity-inUse >= quantity
}

// Reserve 占用工具
func (t *Tool) Reserve(start, end time.Time, quantity int) {
	t.Reservations = append(t.Reservations, QuantityReservation{Start: start, End: end, Quantity: quantity})
}

// Clone 深拷贝工具（含占用状态）
func (t *Tool) Clone() *Tool {
	clone := *t
	clone.Reservations = append([]QuantityReservation(nil), t.Reservations...)
	return &clone
}

// Material 物料库存
// 物料按库存扣减，不随时间释放
type Material struct {
	MaterialID    string  `json:"material_id" db:"material_id"`
	Name          string  `json:"name" db:"name"`
	TotalQuantity int     `json:"quantity" db:"quantity"`
	QuantityUsed  float64 `json:"quantity_used,omitempty" db:"-"`
}

// IsAvailable 检查库存是否足够
func (m *Material) IsAvailable(quantity int) bool {
	return float64(m.TotalQuantity)-m.QuantityUsed >= float64(quantity)
}

// Allocate 扣减库存
func (m *Material) Allocate(quantity int) {
	m.QuantityUsed += float64(quantity)
}

// Clone 深拷贝物料（含扣减状态）
func (m *Material) Clone() *Material {
	clone := *m
	return &clone
}
