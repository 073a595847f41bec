package validator

import (
	"testing"
	"time"

	"github.com/google/uuid"

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

func assignment(t *testing.T, jobID, equipID, start, end string, techs ...string) model.Assignment {
	t.Helper()
	return model.Assignment{
		JobID:         jobID,
		EquipmentID:   equipID,
		Start:         model.LocalTime(mustParse(t, start)),
		End:           model.LocalTime(mustParse(t, end)),
		TechnicianIDs: techs,
	}
}

func testBundle() *model.PlanningBundle {
	return &model.PlanningBundle{
		Jobs: []*model.Job{
			{JobID: "J1", DurationHours: 3, EquipmentID: "E1"},
			{JobID: "J2", DurationHours: 2, EquipmentID: "E1"},
			{JobID: "J3", DurationHours: 2, EquipmentID: "E2", Precedence: []string{"J1"},
				RequiredTools:     []model.ToolRequirement{{ToolID: "W1", Quantity: 1}},
				RequiredMaterials: []model.MaterialRequirement{{MaterialID: "M1", Quantity: 2}}},
			{JobID: "J4", DurationHours: 2, EquipmentID: "E2",
				RequiredTools:     []model.ToolRequirement{{ToolID: "W1", Quantity: 1}},
				RequiredMaterials: []model.MaterialRequirement{{MaterialID: "M1", Quantity: 2}}},
		},
		Equipment: []*model.Equipment{
			{EquipmentID: "E1", Priority: 1},
			{EquipmentID: "E2", Priority: 2},
		},
		Technicians: []*model.Technician{
			{TechID: "T1"},
			{TechID: "T2"},
		},
		Tools: []*model.Tool{
			{ToolID: "W1", TotalQuantity: 1},
		},
		Materials: []*model.Material{
			{MaterialID: "M1", TotalQuantity: 4},
		},
	}
}

func newSchedule(assignments ...model.Assignment) *model.Schedule {
	return &model.Schedule{
		RunID:       uuid.New(),
		Strategy:    "greedy",
		Assignments: assignments,
	}
}

func countKind(violations []Violation, kind string) int {
	n := 0
	for _, v := range violations {
		if v.Kind == kind {
			n++
		}
	}
	return n
}

func TestValidate_合法排程无违反(t *testing.T) {
	schedule := newSchedule(
		assignment(t, "J1", "E1", "2025-06-02T08:00:00", "2025-06-02T11:00:00", "T1"),
		assignment(t, "J2", "E1", "2025-06-02T11:00:00", "2025-06-02T13:00:00", "T1"),
		assignment(t, "J3", "E2", "2025-06-02T11:00:00", "2025-06-02T13:00:00", "T2"),
		assignment(t, "J4", "E2", "2025-06-02T13:00:00", "2025-06-02T15:00:00", "T2"),
	)

	violations := Validate(schedule, testBundle())
	if len(violations) != 0 {
		for _, v := range violations {
			t.Errorf("意外的违反 [%s]: %s", v.Kind, v.Message)
		}
	}
}

func TestValidate_设备重叠(t *testing.T) {
	schedule := newSchedule(
		assignment(t, "J1", "E1", "2025-06-02T08:00:00", "2025-06-02T11:00:00", "T1"),
		assignment(t, "J2", "E1", "2025-06-02T10:00:00", "2025-06-02T12:00:00", "T2"),
	)

	violations := Validate(schedule, testBundle())
	if countKind(violations, "equipment_overlap") != 1 {
		t.Errorf("应检出1条设备重叠, 实际违反: %+v", violations)
	}
}

func TestValidate_技师重叠(t *testing.T) {
	schedule := newSchedule(
		assignment(t, "J1", "E1", "2025-06-02T08:00:00", "2025-06-02T11:00:00", "T1"),
		assignment(t, "J3", "E2", "2025-06-02T10:00:00", "2025-06-02T12:00:00", "T1"),
	)

	violations := Validate(schedule, testBundle())
	if countKind(violations, "technician_overlap") != 1 {
		t.Errorf("应检出1条技师重叠, 实际违反: %+v", violations)
	}
	// 前置约束同样违反: J3的前置J1尚未结束
	if countKind(violations, "precedence") != 1 {
		t.Errorf("应同时检出1条前置违反, 实际违反: %+v", violations)
	}
}

func TestValidate_工具超量(t *testing.T) {
	// J3与J4同时占用W1各1件，总量只有1件
	schedule := newSchedule(
		assignment(t, "J1", "E1", "2025-06-02T08:00:00", "2025-06-02T11:00:00", "T1"),
		assignment(t, "J3", "E2", "2025-06-02T12:00:00", "2025-06-02T14:00:00", "T2"),
		assignment(t, "J4", "E1", "2025-06-02T13:00:00", "2025-06-02T15:00:00", "T1"),
	)

	violations := Validate(schedule, testBundle())
	if countKind(violations, "tool_capacity") == 0 {
		t.Errorf("应检出工具超量, 实际违反: %+v", violations)
	}
}

func TestValidate_物料超支(t *testing.T) {
	bundle := testBundle()
	bundle.Materials[0].TotalQuantity = 4
	bundle.Jobs[3].RequiredMaterials[0].Quantity = 3

	// J3消耗2 + J4消耗3 = 5 > 库存4
	schedule := newSchedule(
		assignment(t, "J1", "E1", "2025-06-02T08:00:00", "2025-06-02T11:00:00", "T1"),
		assignment(t, "J3", "E2", "2025-06-02T11:00:00", "2025-06-02T13:00:00", "T2"),
		assignment(t, "J4", "E1", "2025-06-02T13:00:00", "2025-06-02T15:00:00", "T1"),
	)

	violations := Validate(schedule, bundle)
	if countKind(violations, "material_budget") != 1 {
		t.Errorf("应检出1条物料超支, 实际违反: %+v", violations)
	}
}

func TestValidate_前置违反(t *testing.T) {
	t.Run("前置未结束就开始", func(t *testing.T) {
		schedule := newSchedule(
			assignment(t, "J1", "E1", "2025-06-02T08:00:00", "2025-06-02T11:00:00", "T1"),
			assignment(t, "J3", "E2", "2025-06-02T09:00:00", "2025-06-02T11:00:00", "T2"),
		)

		violations := Validate(schedule, testBundle())
		if countKind(violations, "precedence") != 1 {
			t.Errorf("应检出1条前置违反, 实际违反: %+v", violations)
		}
	})

	t.Run("前置未被排定", func(t *testing.T) {
		schedule := newSchedule(
			assignment(t, "J3", "E2", "2025-06-02T08:00:00", "2025-06-02T10:00:00", "T2"),
		)

		violations := Validate(schedule, testBundle())
		if countKind(violations, "precedence") != 1 {
			t.Errorf("应检出1条前置违反, 实际违反: %+v", violations)
		}
	})
}

func TestValidate_占用时长不足(t *testing.T) {
	schedule := newSchedule(
		assignment(t, "J1", "E1", "2025-06-02T08:00:00", "2025-06-02T10:00:00", "T1"),
	)

	violations := Validate(schedule, testBundle())
	if countKind(violations, "duration") != 1 {
		t.Errorf("应检出1条时长不足, 实际违反: %+v", violations)
	}
}

func TestValidate_未知工单(t *testing.T) {
	schedule := newSchedule(
		assignment(t, "ghost", "E1", "2025-06-02T08:00:00", "2025-06-02T10:00:00", "T1"),
	)

	violations := Validate(schedule, testBundle())
	if countKind(violations, "unknown_job") != 1 {
		t.Errorf("应检出1条未知工单, 实际违反: %+v", violations)
	}
}
