package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/weixiu/weixiu/pkg/model"
)

// BundleRepository 调度输入仓储
// 从主数据表装载工单、设备、技师、工具和物料
type BundleRepository struct {
	db DB
}

// NewBundleRepository 创建调度输入仓储
func NewBundleRepository(db DB) *BundleRepository {
	return &BundleRepository{db: db}
}

// LoadJobs 装载全部待排工单
func (r *BundleRepository) LoadJobs(ctx context.Context) ([]*model.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT job_id, description, duration_hours, equipment_id,
			required_skills, precedence
		FROM maintenance_jobs ORDER BY job_id
	`)
	if err != nil {
		return nil, fmt.Errorf("查询工单失败: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job := &model.Job{}
		var skills, precedence pq.StringArray
		if err := rows.Scan(&job.JobID, &job.Description, &job.DurationHours,
			&job.EquipmentID, &skills, &precedence); err != nil {
			return nil, fmt.Errorf("扫描工单失败: %w", err)
		}
		job.RequiredSkills = []string(skills)
		job.Precedence = []string(precedence)
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, job := range jobs {
		if err := r.loadJobRequirements(ctx, job); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

// loadJobRequirements 装载工单的工具与物料需求
func (r *BundleRepository) loadJobRequirements(ctx context.Context, job *model.Job) error {
	toolRows, err := r.db.QueryContext(ctx, `
		SELECT tool_id, quantity FROM job_tool_requirements WHERE job_id = $1
	`, job.JobID)
	if err != nil {
		return fmt.Errorf("查询工具需求失败: %w", err)
	}
	defer toolRows.Close()
	for toolRows.Next() {
		var req model.ToolRequirement
		if err := toolRows.Scan(&req.ToolID, &req.Quantity); err != nil {
			return fmt.Errorf("扫描工具需求失败: %w", err)
		}
		job.RequiredTools = append(job.RequiredTools, req)
	}
	if err := toolRows.Err(); err != nil {
		return err
	}

	matRows, err := r.db.QueryContext(ctx, `
		SELECT material_id, quantity FROM job_material_requirements WHERE job_id = $1
	`, job.JobID)
	if err != nil {
		return fmt.Errorf("查询物料需求失败: %w", err)
	}
	defer matRows.Close()
	for matRows.Next() {
		var req model.MaterialRequirement
		if err := matRows.Scan(&req.MaterialID, &req.Quantity); err != nil {
			return fmt.Errorf("扫描物料需求失败: %w", err)
		}
		job.RequiredMaterials = append(job.RequiredMaterials, req)
	}
	return matRows.Err()
}

// LoadEquipment 装载全部设备
func (r *BundleRepository) LoadEquipment(ctx context.Context) ([]*model.Equipment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT equipment_id, name, priority FROM equipment ORDER BY equipment_id
	`)
	if err != nil {
		return nil, fmt.Errorf("查询设备失败: %w", err)
	}
	defer rows.Close()

	var equipment []*model.Equipment
	for rows.Next() {
		eq := &model.Equipment{}
		if err := rows.Scan(&eq.EquipmentID, &eq.Name, &eq.Priority); err != nil {
			return nil, fmt.Errorf("扫描设备失败: %w", err)
		}
		equipment = append(equipment, eq)
	}
	return equipment, rows.Err()
}

// LoadTechnicians 装载全部技师
func (r *BundleRepository) LoadTechnicians(ctx context.Context) ([]*model.Technician, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tech_id, name, skills, hourly_rate,
			COALESCE(workday_start, ''), COALESCE(workday_end, ''), workdays
		FROM technicians ORDER BY tech_id
	`)
	if err != nil {
		return nil, fmt.Errorf("查询技师失败: %w", err)
	}
	defer rows.Close()

	var technicians []*model.Technician
	for rows.Next() {
		tech := &model.Technician{}
		var skills pq.StringArray
		var workdays pq.Int64Array
		if err := rows.Scan(&tech.TechID, &tech.Name, &skills, &tech.HourlyRate,
			&tech.WorkdayStart, &tech.WorkdayEnd, &workdays); err != nil {
			return nil, fmt.Errorf("扫描技师失败: %w", err)
		}
		tech.Skills = []string(skills)
		for _, d := range workdays {
			tech.Workdays = append(tech.Workdays, int(d))
		}
		technicians = append(technicians, tech)
	}
	return technicians, rows.Err()
}

// LoadTools 装载全部工具
func (r *BundleRepository) LoadTools(ctx context.Context) ([]*model.Tool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tool_id, name, quantity FROM tools ORDER BY tool_id
	`)
	if err != nil {
		return nil, fmt.Errorf("查询工具失败: %w", err)
	}
	defer rows.Close()

	var tools []*model.Tool
	for rows.Next() {
		t := &model.Tool{}
		if err := rows.Scan(&t.ToolID, &t.Name, &t.TotalQuantity); err != nil {
			return nil, fmt.Errorf("扫描工具失败: %w", err)
		}
		tools = append(tools, t)
	}
	return tools, rows.Err()
}

// LoadMaterials 装载全部物料
func (r *BundleRepository) LoadMaterials(ctx context.Context) ([]*model.Material, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT material_id, name, quantity FROM materials ORDER BY material_id
	`)
	if err != nil {
		return nil, fmt.Errorf("查询物料失败: %w", err)
	}
	defer rows.Close()

	var materials []*model.Material
	for rows.Next() {
		m := &model.Material{}
		if err := rows.Scan(&m.MaterialID, &m.Name, &m.TotalQuantity); err != nil {
			return nil, fmt.Errorf("扫描物料失败: %w", err)
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

// LoadBundle 装载完整的调度输入快照
// 排程边界与工作日历由调用方补齐
func (r *BundleRepository) LoadBundle(ctx context.Context) (*model.PlanningBundle, error) {
	jobs, err := r.LoadJobs(ctx)
	if err != nil {
		return nil, err
	}
	equipment, err := r.LoadEquipment(ctx)
	if err != nil {
		return nil, err
	}
	technicians, err := r.LoadTechnicians(ctx)
	if err != nil {
		return nil, err
	}
	tools, err := r.LoadTools(ctx)
	if err != nil {
		return nil, err
	}
	materials, err := r.LoadMaterials(ctx)
	if err != nil {
		return nil, err
	}
	return &model.PlanningBundle{
		Jobs:        jobs,
		Equipment:   equipment,
		Technicians: technicians,
		Tools:       tools,
		Materials:   materials,
	}, nil
}
