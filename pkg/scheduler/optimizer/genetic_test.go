package optimizer

import (
	"context"
	"testing"

	"github.com/weixiu/weixiu/pkg/model"
)

func smallGeneticConfig(seed int64) GeneticConfig {
	return GeneticConfig{
		PopulationSize: 20,
		Generations:    15,
		TournamentSize: 3,
		CrossoverRate:  0.8,
		MutationRate:   0.1,
		Workers:        2,
		Seed:           seed,
	}
}

func TestGenetic_小规模全部排定(t *testing.T) {
	p := weekContext(t, []*model.Job{
		{JobID: "J1", DurationHours: 3, EquipmentID: "E1"},
		{JobID: "J2", DurationHours: 2, EquipmentID: "E2"},
	})

	result, err := NewGeneticSolver(smallGeneticConfig(7)).Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("遗传算法求解失败: %v", err)
	}
	if !result.Success {
		t.Fatal("求解应成功")
	}
	if len(result.Assignments)+len(result.Rejections) != 2 {
		t.Errorf("排定数+剔除数 = %d, 期望等于工单总数 2",
			len(result.Assignments)+len(result.Rejections))
	}
	assertNoResourceConflicts(t, result.Assignments)
}

func TestGenetic_输出满足约束(t *testing.T) {
	p := weekContext(t, []*model.Job{
		{JobID: "J1", DurationHours: 3, EquipmentID: "E1"},
		{JobID: "J2", DurationHours: 3, EquipmentID: "E1"},
		{JobID: "J3", DurationHours: 2, EquipmentID: "E2", RequiredSkills: []string{"mechanical"}},
	})

	result, err := NewGeneticSolver(smallGeneticConfig(11)).Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("遗传算法求解失败: %v", err)
	}
	assertNoResourceConflicts(t, result.Assignments)

	// 排定的技能工单必须由覆盖技能的技师承担
	for _, a := range result.Assignments {
		if a.JobID != "J3" {
			continue
		}
		covered := false
		for _, techID := range a.TechnicianIDs {
			if techID == "T2" {
				covered = true
			}
		}
		if !covered {
			t.Error("J3需要mechanical技能，只有T2能覆盖")
		}
	}
}

func TestGenetic_取消传播(t *testing.T) {
	p := weekContext(t, []*model.Job{
		{JobID: "J1", DurationHours: 3, EquipmentID: "E1"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewGeneticSolver(smallGeneticConfig(1)).Solve(ctx, p); err == nil {
		t.Error("已取消的上下文应返回错误")
	}
}

// assertNoResourceConflicts 检查派工之间没有设备或技师冲突
func assertNoResourceConflicts(t *testing.T, assignments []model.Assignment) {
	t.Helper()
	for i := range assignments {
		for j := i + 1; j < len(assignments); j++ {
			a, b := assignments[i], assignments[j]
			if !a.Start.Time().Before(b.End.Time()) || !b.Start.Time().Before(a.End.Time()) {
				continue
			}
			if a.EquipmentID == b.EquipmentID {
				t.Errorf("工单 %s 与 %s 在设备 %s 上重叠", a.JobID, b.JobID, a.EquipmentID)
			}
			for _, ta := range a.TechnicianIDs {
				for _, tb := range b.TechnicianIDs {
					if ta == tb {
						t.Errorf("技师 %s 被同时派给 %s 和 %s", ta, a.JobID, b.JobID)
					}
				}
			}
		}
	}
}
