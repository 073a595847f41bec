// Package model 定义维修调度引擎的核心数据模型
package model

import "time"

// ToolRequirement 工单的工具需求
type ToolRequirement struct {
	ToolID   string `json:"tool_id" db:"tool_id"`
	Quantity int    `json:"quantity" db:"quantity"`
}

// MaterialRequirement 工单的物料需求
type MaterialRequirement struct {
	MaterialID string `json:"material_id" db:"material_id"`
	Quantity   int    `json:"quantity" db:"quantity"`
}

// Job 维修工单
// 一次调度运行内只读；排定结果记录在 Assignment 中，不回写工单
type Job struct {
	JobID             string                `json:"job_id" db:"job_id"`
	Description       string                `json:"description" db:"description"`
	DurationHours     float64               `json:"duration" db:"duration"`
	EquipmentID       string                `json:"equipment_id" db:"equipment_id"`
	RequiredSkills    []string              `json:"required_skills" db:"-"`
	RequiredTools     []ToolRequirement     `json:"required_tools" db:"-"`
	RequiredMaterials []MaterialRequirement `json:"required_materials" db:"-"`
	Precedence        []string              `json:"precedence" db:"-"`
}

// Duration 返回工单工时
func (j *Job) Duration() time.Duration {
	return time.Duration(j.DurationHours * float64(time.Hour))
}

// RequiresSkill 检查工单是否需要某技能
func (j *Job) RequiresSkill(skill string) bool {
	for _, s := range j.RequiredSkills {
		if s == skill {
			return true
		}
	}
	return false
}

// HasPredecessor 检查工单是否依赖某前置工单
func (j *Job) HasPredecessor(jobID string) bool {
	for _, p := range j.Precedence {
		if p == jobID {
			return true
		}
	}
	return false
}

// Clone 深拷贝工单
func (j *Job) Clone() *Job {
	clone := *j
	clone.RequiredSkills = append([]string(nil), j.RequiredSkills...)
	clone.RequiredTools = append([]ToolRequirement(nil), j.RequiredTools...)
	clone.RequiredMaterials = append([]MaterialRequirement(nil), j.RequiredMaterials...)
	clone.Precedence = append([]string(nil), j.Precedence...)
	return &clone
}
