// Package plan 定义一次调度运行的上下文
// 每次运行持有输入快照的独立副本，运行之间不共享可变状态
package plan

import (
	"time"

	"github.com/google/uuid"

	"github.com/weixiu/weixiu/pkg/calendar"
	"github.com/weixiu/weixiu/pkg/model"
)

// CoveragePolicy 技能覆盖策略
type CoveragePolicy string

const (
	// CoverageTeam 由最小覆盖团队共同承担全部所需技能（贪心策略使用）
	CoverageTeam CoveragePolicy = "team"
	// CoverageSingle 单一技师必须独立覆盖全部所需技能（精确模型使用）
	CoverageSingle CoveragePolicy = "single"
)

// Context 调度运行上下文
type Context struct {
	RunID    uuid.UUID
	TStart   time.Time
	TEnd     time.Time
	Cal      *calendar.WorkCalendar
	Coverage CoveragePolicy // 由所选策略在求解时设置

	Jobs           []*model.Job
	EquipmentList  []*model.Equipment
	TechnicianList []*model.Technician
	ToolList       []*model.Tool
	MaterialList   []*model.Material

	jobMap      map[string]*model.Job
	equipment   map[string]*model.Equipment
	technicians map[string]*model.Technician
	tools       map[string]*model.Tool
	materials   map[string]*model.Material

	committed map[string]model.Assignment
	order     []string
}

// NewContext 从输入快照构造运行上下文
// jobs 为预检后保留的工单；所有资源记录均深拷贝，保证运行间隔离
func NewContext(bundle *model.PlanningBundle, cal *calendar.WorkCalendar, jobs []*model.Job) *Context {
	ctx := &Context{
		RunID:       uuid.New(),
		TStart:      bundle.TStart.Time(),
		TEnd:        bundle.TEnd.Time(),
		Cal:         cal,
		Coverage:    CoverageTeam,
		jobMap:      make(map[string]*model.Job, len(jobs)),
		equipment:   make(map[string]*model.Equipment, len(bundle.Equipment)),
		technicians: make(map[string]*model.Technician, len(bundle.Technicians)),
		tools:       make(map[string]*model.Tool, len(bundle.Tools)),
		materials:   make(map[string]*model.Material, len(bundle.Materials)),
		committed:   make(map[string]model.Assignment),
	}

	for _, j := range jobs {
		clone := j.Clone()
		ctx.Jobs = append(ctx.Jobs, clone)
		ctx.jobMap[clone.JobID] = clone
	}
	for _, e := range bundle.Equipment {
		clone := e.Clone()
		ctx.EquipmentList = append(ctx.EquipmentList, clone)
		ctx.equipment[clone.EquipmentID] = clone
	}
	for _, t := range bundle.Technicians {
		clone := t.Clone()
		ctx.TechnicianList = append(ctx.TechnicianList, clone)
		ctx.technicians[clone.TechID] = clone
	}
	for _, t := range bundle.Tools {
		clone := t.Clone()
		ctx.ToolList = append(ctx.ToolList, clone)
		ctx.tools[clone.ToolID] = clone
	}
	for _, m := range bundle.Materials {
		clone := m.Clone()
		ctx.MaterialList = append(ctx.MaterialList, clone)
		ctx.materials[clone.MaterialID] = clone
	}
	return ctx
}

// Job 获取工单
func (c *Context) Job(id string) *model.Job {
	return c.jobMap[id]
}

// Equipment 获取设备
func (c *Context) Equipment(id string) *model.Equipment {
	return c.equipment[id]
}

// Technician 获取技师
func (c *Context) Technician(id string) *model.Technician {
	return c.technicians[id]
}

// Tool 获取工具
func (c *Context) Tool(id string) *model.Tool {
	return c.tools[id]
}

// Material 获取物料
func (c *Context) Material(id string) *model.Material {
	return c.materials[id]
}

// IsReady 检查工单的全部前置工单是否已排定
// 上下文之外的前置工单（已被预检剔除）视为未完成
func (c *Context) IsReady(job *model.Job) bool {
	for _, predID := range job.Precedence {
		if _, ok := c.committed[predID]; !ok {
			return false
		}
	}
	return true
}

// Commit 排定工单：占用设备、技师、工具并扣减物料
func (c *Context) Commit(job *model.Job, start, end time.Time, techIDs []string) model.Assignment {
	equip := c.equipment[job.EquipmentID]
	equip.Reserve(start, end, job.JobID)

	for _, techID := range techIDs {
		c.technicians[techID].Assign(start, end, job.JobID)
	}
	for _, req := range job.RequiredTools {
		c.tools[req.ToolID].Reserve(start, end, req.Quantity)
	}
	for _, req := range job.RequiredMaterials {
		c.materials[req.MaterialID].Allocate(req.Quantity)
	}

	a := model.Assignment{
		JobID:         job.JobID,
		EquipmentID:   job.EquipmentID,
		Start:         model.LocalTime(start),
		End:           model.LocalTime(end),
		TechnicianIDs: append([]string(nil), techIDs...),
	}
	c.committed[job.JobID] = a
	c.order = append(c.order, job.JobID)
	return a
}

// Committed 返回已排定的派工（按排定顺序）
func (c *Context) Committed() []model.Assignment {
	result := make([]model.Assignment, 0, len(c.order))
	for _, id := range c.order {
		result = append(result, c.committed[id])
	}
	return result
}

// CommittedAssignment 获取某工单的排定结果
func (c *Context) CommittedAssignment(jobID string) (model.Assignment, bool) {
	a, ok := c.committed[jobID]
	return a, ok
}

// EligibleTechnicians 返回具备全部所需技能的技师
// 无技能要求的工单所有技师均可承担
func (c *Context) EligibleTechnicians(job *model.Job) []*model.Technician {
	var eligible []*model.Technician
	for _, t := range c.TechnicianList {
		if t.CoversSkills(job.RequiredSkills) {
			eligible = append(eligible, t)
		}
	}
	return eligible
}
