package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/weixiu/weixiu/pkg/model"
)

// ScheduleRecord 排程运行记录
type ScheduleRecord struct {
	RunID           uuid.UUID `json:"run_id"`
	Strategy        string    `json:"strategy"`
	TStart          time.Time `json:"t_start"`
	TEnd            time.Time `json:"t_end"`
	TotalJobs       int       `json:"total_jobs"`
	ScheduledJobs   int       `json:"scheduled_jobs"`
	RejectedJobs    int       `json:"rejected_jobs"`
	SchedulingRate  float64   `json:"scheduling_rate"`
	MakespanMinutes float64   `json:"makespan_minutes"`
	ElapsedMs       int64     `json:"elapsed_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// ScheduleRepository 排程运行仓储
type ScheduleRepository struct {
	db DB
}

// NewScheduleRepository 创建排程运行仓储
func NewScheduleRepository(db DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Save 持久化一次排程运行及其全部派工与剔除记录
// 底层连接支持事务时整批写入在同一事务内完成
func (r *ScheduleRepository) Save(ctx context.Context, schedule *model.Schedule, bundle *model.PlanningBundle) error {
	if runner, ok := r.db.(TxRunner); ok {
		return runner.Transaction(ctx, func(tx *sql.Tx) error {
			return saveAll(ctx, tx, schedule, bundle)
		})
	}
	return saveAll(ctx, r.db, schedule, bundle)
}

func saveAll(ctx context.Context, db DB, schedule *model.Schedule, bundle *model.PlanningBundle) error {
	now := time.Now()

	query := `
		INSERT INTO schedule_runs (
			run_id, strategy, t_start, t_end,
			total_jobs, scheduled_jobs, rejected_jobs,
			scheduling_rate, makespan_minutes, elapsed_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := db.ExecContext(ctx, query,
		schedule.RunID, schedule.Strategy, bundle.TStart.Time(), bundle.TEnd.Time(),
		schedule.Statistics.TotalJobs, schedule.Statistics.ScheduledJobs, schedule.Statistics.RejectedJobs,
		schedule.Statistics.SchedulingRate, schedule.Statistics.MakespanMinutes,
		schedule.Elapsed.Milliseconds(), now,
	)
	if err != nil {
		return fmt.Errorf("写入排程运行记录失败: %w", err)
	}

	for _, a := range schedule.Assignments {
		base := model.NewBaseModel()
		_, err := db.ExecContext(ctx, `
			INSERT INTO schedule_assignments (
				id, run_id, job_id, equipment_id,
				scheduled_start, scheduled_end, technician_ids, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, base.ID, schedule.RunID, a.JobID, a.EquipmentID,
			a.Start.Time(), a.End.Time(), pq.Array(a.TechnicianIDs), base.CreatedAt)
		if err != nil {
			return fmt.Errorf("写入派工记录失败: %w", err)
		}
	}

	for _, rej := range schedule.Rejections {
		base := model.NewBaseModel()
		reasonsJSON, _ := json.Marshal(rej.Reasons)
		_, err := db.ExecContext(ctx, `
			INSERT INTO schedule_rejections (
				id, run_id, job_id, reasons, created_at
			) VALUES ($1, $2, $3, $4, $5)
		`, base.ID, schedule.RunID, rej.JobID, reasonsJSON, base.CreatedAt)
		if err != nil {
			return fmt.Errorf("写入剔除记录失败: %w", err)
		}
	}
	return nil
}

// GetRun 获取一次运行的概要记录
func (r *ScheduleRepository) GetRun(ctx context.Context, runID uuid.UUID) (*ScheduleRecord, error) {
	query := `
		SELECT run_id, strategy, t_start, t_end,
			total_jobs, scheduled_jobs, rejected_jobs,
			scheduling_rate, makespan_minutes, elapsed_ms, created_at
		FROM schedule_runs WHERE run_id = $1
	`
	var rec ScheduleRecord
	err := r.db.QueryRowContext(ctx, query, runID).Scan(
		&rec.RunID, &rec.Strategy, &rec.TStart, &rec.TEnd,
		&rec.TotalJobs, &rec.ScheduledJobs, &rec.RejectedJobs,
		&rec.SchedulingRate, &rec.MakespanMinutes, &rec.ElapsedMs, &rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询排程运行记录失败: %w", err)
	}
	return &rec, nil
}

// GetAssignments 获取一次运行的全部派工
func (r *ScheduleRepository) GetAssignments(ctx context.Context, runID uuid.UUID) ([]model.Assignment, error) {
	query := `
		SELECT job_id, equipment_id, scheduled_start, scheduled_end, technician_ids
		FROM schedule_assignments WHERE run_id = $1
		ORDER BY scheduled_start, job_id
	`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("查询派工记录失败: %w", err)
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		var a model.Assignment
		var start, end time.Time
		var techIDs pq.StringArray
		if err := rows.Scan(&a.JobID, &a.EquipmentID, &start, &end, &techIDs); err != nil {
			return nil, fmt.Errorf("扫描派工记录失败: %w", err)
		}
		a.Start = model.LocalTime(start)
		a.End = model.LocalTime(end)
		a.TechnicianIDs = []string(techIDs)
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// List 按条件列出历史运行记录
func (r *ScheduleRepository) List(ctx context.Context, filter ListFilter) ([]*ScheduleRecord, error) {
	query := `
		SELECT run_id, strategy, t_start, t_end,
			total_jobs, scheduled_jobs, rejected_jobs,
			scheduling_rate, makespan_minutes, elapsed_ms, created_at
		FROM schedule_runs
	`
	var args []interface{}
	if filter.Strategy != "" {
		query += " WHERE strategy = $1"
		args = append(args, filter.Strategy)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询排程运行列表失败: %w", err)
	}
	defer rows.Close()

	var records []*ScheduleRecord
	for rows.Next() {
		var rec ScheduleRecord
		if err := rows.Scan(
			&rec.RunID, &rec.Strategy, &rec.TStart, &rec.TEnd,
			&rec.TotalJobs, &rec.ScheduledJobs, &rec.RejectedJobs,
			&rec.SchedulingRate, &rec.MakespanMinutes, &rec.ElapsedMs, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("扫描排程运行记录失败: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
