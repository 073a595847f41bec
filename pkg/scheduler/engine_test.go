package scheduler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/weixiu/weixiu/pkg/errors"
	"github.com/weixiu/weixiu/pkg/model"
	"github.com/weixiu/weixiu/pkg/scheduler/optimizer"
	"github.com/weixiu/weixiu/pkg/validator"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation(model.TimeLayout, s, time.Local)
	if err != nil {
		t.Fatalf("解析时间失败: %v", err)
	}
	return parsed
}

func testBundle(t *testing.T, jobs []*model.Job) *model.PlanningBundle {
	t.Helper()
	return &model.PlanningBundle{
		TStart:       model.LocalTime(mustParse(t, "2025-06-02T08:00:00")),
		TEnd:         model.LocalTime(mustParse(t, "2025-06-06T17:00:00")),
		WorkdayStart: "08:00",
		WorkdayEnd:   "17:00",
		Workdays:     []int{0, 1, 2, 3, 4},
		Jobs:         jobs,
		Equipment: []*model.Equipment{
			{EquipmentID: "E1", Priority: 1},
			{EquipmentID: "E2", Priority: 2},
		},
		Technicians: []*model.Technician{
			{TechID: "T1", Skills: []string{"electrical"}, HourlyRate: 50,
				WorkdayStart: "08:00", WorkdayEnd: "17:00", Workdays: []int{0, 1, 2, 3, 4}},
			{TechID: "T2", Skills: []string{"mechanical"}, HourlyRate: 60,
				WorkdayStart: "08:00", WorkdayEnd: "17:00", Workdays: []int{0, 1, 2, 3, 4}},
		},
		Tools: []*model.Tool{
			{ToolID: "W1", TotalQuantity: 2},
		},
		Materials: []*model.Material{
			{MaterialID: "M1", TotalQuantity: 10},
		},
	}
}

func TestEngine_贪心端到端(t *testing.T) {
	bundle := testBundle(t, []*model.Job{
		{JobID: "J1", DurationHours: 3, EquipmentID: "E1", RequiredSkills: []string{"electrical"}},
		{JobID: "J2", DurationHours: 2, EquipmentID: "E2",
			RequiredTools:     []model.ToolRequirement{{ToolID: "W1", Quantity: 1}},
			RequiredMaterials: []model.MaterialRequirement{{MaterialID: "M1", Quantity: 2}}},
		{JobID: "J3", DurationHours: 2, EquipmentID: "E1", Precedence: []string{"J1"}},
	})

	schedule, err := NewEngine(DefaultOptions()).Generate(context.Background(), bundle, StrategyGreedy)
	if err != nil {
		t.Fatalf("排程失败: %v", err)
	}
	if schedule.Strategy != StrategyGreedy {
		t.Errorf("策略 = %s, 期望 greedy", schedule.Strategy)
	}
	if len(schedule.Assignments) != 3 {
		t.Fatalf("排定数 = %d, 期望 3", len(schedule.Assignments))
	}
	if schedule.Statistics.SchedulingRate != 100 {
		t.Errorf("排定率 = %v, 期望 100", schedule.Statistics.SchedulingRate)
	}

	if violations := validator.Validate(schedule, bundle); len(violations) != 0 {
		for _, v := range violations {
			t.Errorf("约束违反 [%s]: %s", v.Kind, v.Message)
		}
	}

	// 输出按开始时间排序
	for i := 1; i < len(schedule.Assignments); i++ {
		if schedule.Assignments[i].Start.Time().Before(schedule.Assignments[i-1].Start.Time()) {
			t.Error("派工列表应按开始时间排序")
		}
	}
}

func TestEngine_预检剔除合并(t *testing.T) {
	bundle := testBundle(t, []*model.Job{
		{JobID: "J1", DurationHours: 3, EquipmentID: "E1"},
		{JobID: "J2", DurationHours: 10, EquipmentID: "E2"},
	})

	schedule, err := NewEngine(DefaultOptions()).Generate(context.Background(), bundle, StrategyGreedy)
	if err != nil {
		t.Fatalf("排程失败: %v", err)
	}
	if len(schedule.Assignments) != 1 {
		t.Errorf("排定数 = %d, 期望 1", len(schedule.Assignments))
	}
	if len(schedule.Rejections) != 1 || schedule.Rejections[0].JobID != "J2" {
		t.Fatal("J2应在预检中被剔除")
	}
	if schedule.Statistics.TotalJobs != 2 {
		t.Errorf("总工单数 = %d, 期望 2", schedule.Statistics.TotalJobs)
	}
}

func TestEngine_前置成环(t *testing.T) {
	bundle := testBundle(t, []*model.Job{
		{JobID: "A", DurationHours: 2, EquipmentID: "E1", Precedence: []string{"B"}},
		{JobID: "B", DurationHours: 2, EquipmentID: "E1", Precedence: []string{"A"}},
	})

	_, err := NewEngine(DefaultOptions()).Generate(context.Background(), bundle, StrategyGreedy)
	if !errors.Is(err, errors.CodePrecedenceCycle) {
		t.Errorf("成环输入应返回PRECEDENCE_CYCLE, 实际 %v", err)
	}
}

func TestEngine_无效引用(t *testing.T) {
	tests := []struct {
		name string
		job  *model.Job
	}{
		{"不存在的设备", &model.Job{JobID: "J1", DurationHours: 2, EquipmentID: "nope"}},
		{"不存在的工具", &model.Job{JobID: "J1", DurationHours: 2, EquipmentID: "E1",
			RequiredTools: []model.ToolRequirement{{ToolID: "nope", Quantity: 1}}}},
		{"不存在的物料", &model.Job{JobID: "J1", DurationHours: 2, EquipmentID: "E1",
			RequiredMaterials: []model.MaterialRequirement{{MaterialID: "nope", Quantity: 1}}}},
		{"不存在的前置工单", &model.Job{JobID: "J1", DurationHours: 2, EquipmentID: "E1",
			Precedence: []string{"nope"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle := testBundle(t, []*model.Job{tt.job})
			_, err := NewEngine(DefaultOptions()).Generate(context.Background(), bundle, StrategyGreedy)
			if !errors.Is(err, errors.CodeInvalidReference) {
				t.Errorf("应返回INVALID_REFERENCE, 实际 %v", err)
			}
		})
	}
}

func TestEngine_未知技能不致命(t *testing.T) {
	bundle := testBundle(t, []*model.Job{
		{JobID: "J1", DurationHours: 2, EquipmentID: "E1", RequiredSkills: []string{"hydraulic"}},
	})

	schedule, err := NewEngine(DefaultOptions()).Generate(context.Background(), bundle, StrategyGreedy)
	if err != nil {
		t.Fatalf("未知技能不应导致整次运行失败: %v", err)
	}
	if len(schedule.Rejections) != 1 {
		t.Fatal("技能无人具备的工单应被预检剔除")
	}
	if schedule.Rejections[0].Reasons[0] != "No matching technicians with required skills." {
		t.Errorf("剔除原因 = %q", schedule.Rejections[0].Reasons[0])
	}
}

func TestEngine_无效边界(t *testing.T) {
	bundle := testBundle(t, []*model.Job{
		{JobID: "J1", DurationHours: 2, EquipmentID: "E1"},
	})
	bundle.TStart, bundle.TEnd = bundle.TEnd, bundle.TStart

	_, err := NewEngine(DefaultOptions()).Generate(context.Background(), bundle, StrategyGreedy)
	if !errors.Is(err, errors.CodeInvalidHorizon) {
		t.Errorf("倒置边界应返回INVALID_HORIZON, 实际 %v", err)
	}
}

func TestEngine_空日历(t *testing.T) {
	bundle := testBundle(t, []*model.Job{
		{JobID: "J1", DurationHours: 2, EquipmentID: "E1"},
	})
	// 周六至周日，工作日为周一至周五
	bundle.TStart = model.LocalTime(mustParse(t, "2025-06-07T08:00:00"))
	bundle.TEnd = model.LocalTime(mustParse(t, "2025-06-08T17:00:00"))

	_, err := NewEngine(DefaultOptions()).Generate(context.Background(), bundle, StrategyGreedy)
	if !errors.Is(err, errors.CodeEmptyCalendar) {
		t.Errorf("纯周末边界应返回EMPTY_CALENDAR, 实际 %v", err)
	}
}

func TestEngine_未知策略(t *testing.T) {
	bundle := testBundle(t, []*model.Job{
		{JobID: "J1", DurationHours: 2, EquipmentID: "E1"},
	})

	_, err := NewEngine(DefaultOptions()).Generate(context.Background(), bundle, "quantum")
	if !errors.Is(err, errors.CodeUnknownStrategy) {
		t.Errorf("未知策略应返回UNKNOWN_STRATEGY, 实际 %v", err)
	}
}

func TestEngine_幂等性(t *testing.T) {
	jobs := func() []*model.Job {
		return []*model.Job{
			{JobID: "J1", DurationHours: 3, EquipmentID: "E1"},
			{JobID: "J2", DurationHours: 2, EquipmentID: "E2"},
			{JobID: "J3", DurationHours: 2, EquipmentID: "E1", Precedence: []string{"J1"}},
		}
	}
	engine := NewEngine(DefaultOptions())

	s1, err := engine.Generate(context.Background(), testBundle(t, jobs()), StrategyGreedy)
	if err != nil {
		t.Fatalf("第一次排程失败: %v", err)
	}
	s2, err := engine.Generate(context.Background(), testBundle(t, jobs()), StrategyGreedy)
	if err != nil {
		t.Fatalf("第二次排程失败: %v", err)
	}

	if len(s1.Assignments) != len(s2.Assignments) {
		t.Fatal("两次运行的排定数应一致")
	}
	for i := range s1.Assignments {
		a, b := s1.Assignments[i], s2.Assignments[i]
		if a.JobID != b.JobID || !a.Start.Time().Equal(b.Start.Time()) || !a.End.Time().Equal(b.End.Time()) {
			t.Errorf("第%d条派工不一致", i)
		}
	}
}

func TestEngine_结果JSON往返(t *testing.T) {
	bundle := testBundle(t, []*model.Job{
		{JobID: "J1", DurationHours: 3, EquipmentID: "E1"},
	})

	schedule, err := NewEngine(DefaultOptions()).Generate(context.Background(), bundle, StrategyGreedy)
	if err != nil {
		t.Fatalf("排程失败: %v", err)
	}

	data, err := json.Marshal(schedule)
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	var decoded model.Schedule
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("反序列化失败: %v", err)
	}
	if len(decoded.Assignments) != 1 {
		t.Fatal("往返后派工丢失")
	}
	if !decoded.Assignments[0].Start.Time().Equal(schedule.Assignments[0].Start.Time()) {
		t.Error("往返后开始时刻不一致")
	}
}

func TestEngine_统计携带迭代次数(t *testing.T) {
	bundle := testBundle(t, []*model.Job{
		{JobID: "J1", DurationHours: 2, EquipmentID: "E1"},
		{JobID: "J2", DurationHours: 2, EquipmentID: "E2"},
	})

	opts := DefaultOptions()
	opts.Annealing = optimizer.AnnealingConfig{
		InitialTemp:     10,
		MinTemp:         0.1,
		CoolingRate:     0.8,
		InnerIterations: 20,
		Workers:         2,
		Seed:            42,
	}
	engine := NewEngine(opts)

	schedule, err := engine.Generate(context.Background(), bundle, StrategyAnnealing)
	if err != nil {
		t.Fatalf("Generate 失败: %v", err)
	}
	if schedule.Statistics.Iterations <= 0 {
		t.Errorf("退火迭代次数 = %d, 期望大于0", schedule.Statistics.Iterations)
	}

	greedy, err := engine.Generate(context.Background(), bundle, StrategyGreedy)
	if err != nil {
		t.Fatalf("Generate 失败: %v", err)
	}
	if greedy.Statistics.Iterations <= 0 {
		t.Errorf("贪心迭代次数 = %d, 期望大于0", greedy.Statistics.Iterations)
	}
}

func TestDetectCycle(t *testing.T) {
	tests := []struct {
		name      string
		jobs      []*model.Job
		wantCycle bool
	}{
		{
			name: "无环链式依赖",
			jobs: []*model.Job{
				{JobID: "A"},
				{JobID: "B", Precedence: []string{"A"}},
				{JobID: "C", Precedence: []string{"B"}},
			},
			wantCycle: false,
		},
		{
			name: "两节点环",
			jobs: []*model.Job{
				{JobID: "A", Precedence: []string{"B"}},
				{JobID: "B", Precedence: []string{"A"}},
			},
			wantCycle: true,
		},
		{
			name: "自环",
			jobs: []*model.Job{
				{JobID: "A", Precedence: []string{"A"}},
			},
			wantCycle: true,
		},
		{
			name: "菱形依赖无环",
			jobs: []*model.Job{
				{JobID: "A"},
				{JobID: "B", Precedence: []string{"A"}},
				{JobID: "C", Precedence: []string{"A"}},
				{JobID: "D", Precedence: []string{"B", "C"}},
			},
			wantCycle: false,
		},
		{
			name: "深层环",
			jobs: []*model.Job{
				{JobID: "A"},
				{JobID: "B", Precedence: []string{"A", "D"}},
				{JobID: "C", Precedence: []string{"B"}},
				{JobID: "D", Precedence: []string{"C"}},
			},
			wantCycle: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cycle := detectCycle(tt.jobs)
			if (cycle != nil) != tt.wantCycle {
				t.Errorf("detectCycle = %v, wantCycle %v", cycle, tt.wantCycle)
			}
		})
	}
}
