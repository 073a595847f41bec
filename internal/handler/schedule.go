// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/weixiu/weixiu/internal/metrics"
	"github.com/weixiu/weixiu/pkg/calendar"
	"github.com/weixiu/weixiu/pkg/errors"
	"github.com/weixiu/weixiu/pkg/model"
	"github.com/weixiu/weixiu/pkg/scheduler"
	"github.com/weixiu/weixiu/pkg/stats"
)

// ScheduleStore 排程结果持久化接口
type ScheduleStore interface {
	Save(ctx context.Context, schedule *model.Schedule, bundle *model.PlanningBundle) error
}

// BundleLoader 从主数据装载调度输入快照
type BundleLoader interface {
	LoadBundle(ctx context.Context) (*model.PlanningBundle, error)
}

// ScheduleHandler 排程处理器
type ScheduleHandler struct {
	engine  *scheduler.Engine
	store   ScheduleStore
	loader  BundleLoader
	timeout time.Duration
}

// NewScheduleHandler 创建排程处理器
// store 可为 nil，此时跳过持久化
func NewScheduleHandler(engine *scheduler.Engine, store ScheduleStore, timeout time.Duration) *ScheduleHandler {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ScheduleHandler{engine: engine, store: store, timeout: timeout}
}

// WithLoader 设置主数据装载器，启用从库生成排程
func (h *ScheduleHandler) WithLoader(loader BundleLoader) *ScheduleHandler {
	h.loader = loader
	return h
}

// GenerateRequest 排程生成请求
type GenerateRequest struct {
	Strategy string               `json:"strategy"`
	Bundle   model.PlanningBundle `json:"bundle"`
	Persist  bool                 `json:"persist,omitempty"`
}

// GenerateResponse 排程生成响应
type GenerateResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message,omitempty"`
	Schedule *model.Schedule `json:"schedule"`
	Report   *stats.Report   `json:"report,omitempty"`
}

// Generate 生成维修排程
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if req.Strategy == "" {
		req.Strategy = scheduler.StrategyGreedy
	}
	if appErr := validateGenerateRequest(&req); appErr != nil {
		respondError(w, appErr)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	schedule, err := h.engine.Generate(ctx, &req.Bundle, req.Strategy)
	if err != nil {
		metrics.RecordGeneration(req.Strategy, false, time.Since(start))
		respondEngineError(w, err)
		return
	}

	metrics.RecordGeneration(req.Strategy, true, time.Since(start))
	metrics.RecordRunStats(req.Strategy,
		schedule.Statistics.SchedulingRate, schedule.Statistics.MakespanMinutes,
		schedule.Statistics.Iterations)

	if req.Persist && h.store != nil {
		if err := h.store.Save(ctx, schedule, &req.Bundle); err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "排程结果持久化失败"))
			return
		}
	}

	resp := GenerateResponse{
		Success:  true,
		Schedule: schedule,
		Report:   buildReport(schedule, &req.Bundle),
	}
	respondJSON(w, http.StatusOK, resp)
}

// GenerateFromStoreRequest 从主数据库生成排程的请求
// 工单与资源来自库表，排程边界和工作日历由请求指定
type GenerateFromStoreRequest struct {
	Strategy     string          `json:"strategy"`
	TStart       model.LocalTime `json:"t_start"`
	TEnd         model.LocalTime `json:"t_end"`
	WorkdayStart string          `json:"workday_start,omitempty"`
	WorkdayEnd   string          `json:"workday_end,omitempty"`
	Workdays     []int           `json:"workdays,omitempty"`
	Persist      bool            `json:"persist,omitempty"`
}

// GenerateFromStore 装载库内主数据并生成排程
func (h *ScheduleHandler) GenerateFromStore(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}
	if h.loader == nil {
		respondError(w, errors.New(errors.CodeDatabaseError, "主数据装载不可用"))
		return
	}

	var req GenerateFromStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if req.Strategy == "" {
		req.Strategy = scheduler.StrategyGreedy
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	bundle, err := h.loader.LoadBundle(ctx)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "装载调度输入失败"))
		return
	}
	bundle.TStart = req.TStart
	bundle.TEnd = req.TEnd
	bundle.WorkdayStart = req.WorkdayStart
	bundle.WorkdayEnd = req.WorkdayEnd
	bundle.Workdays = req.Workdays

	schedule, err := h.engine.Generate(ctx, bundle, req.Strategy)
	if err != nil {
		metrics.RecordGeneration(req.Strategy, false, time.Since(start))
		respondEngineError(w, err)
		return
	}
	metrics.RecordGeneration(req.Strategy, true, time.Since(start))
	metrics.RecordRunStats(req.Strategy,
		schedule.Statistics.SchedulingRate, schedule.Statistics.MakespanMinutes,
		schedule.Statistics.Iterations)

	if req.Persist && h.store != nil {
		if err := h.store.Save(ctx, schedule, bundle); err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "排程结果持久化失败"))
			return
		}
	}

	respondJSON(w, http.StatusOK, GenerateResponse{
		Success:  true,
		Schedule: schedule,
		Report:   buildReport(schedule, bundle),
	})
}

// CompareRequest 方案比较请求
type CompareRequest struct {
	Strategies []string             `json:"strategies"`
	Bundle     model.PlanningBundle `json:"bundle"`
}

// CompareResponse 方案比较响应
type CompareResponse struct {
	Reports     []*stats.Report     `json:"reports"`
	Comparisons []*stats.Comparison `json:"comparisons"`
}

// Compare 用多个策略排程同一输入并比较结果
func (h *ScheduleHandler) Compare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if len(req.Strategies) < 2 {
		respondError(w, errors.New(errors.CodeInvalidInput, "至少需要两个策略参与比较"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var reports []*stats.Report
	for _, strategy := range req.Strategies {
		schedule, err := h.engine.Generate(ctx, &req.Bundle, strategy)
		if err != nil {
			respondEngineError(w, err)
			return
		}
		reports = append(reports, buildReport(schedule, &req.Bundle))
	}

	resp := CompareResponse{Reports: reports}
	for i := 1; i < len(reports); i++ {
		resp.Comparisons = append(resp.Comparisons, stats.Compare(reports[0], reports[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Strategies 返回支持的策略名列表
func (h *ScheduleHandler) Strategies(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": scheduler.Strategies(),
	})
}

// buildReport 按输入的工作日历生成统计报告
func buildReport(schedule *model.Schedule, bundle *model.PlanningBundle) *stats.Report {
	cal, err := calendarFor(bundle)
	if err != nil {
		return nil
	}
	return stats.Build(schedule, bundle, cal)
}

// calendarFor 从输入快照构造工作日历
func calendarFor(bundle *model.PlanningBundle) (*calendar.WorkCalendar, error) {
	if bundle.WorkdayStart == "" && bundle.WorkdayEnd == "" && len(bundle.Workdays) == 0 {
		return calendar.Default(), nil
	}
	start, end := bundle.WorkdayStart, bundle.WorkdayEnd
	if start == "" {
		start = "08:00"
	}
	if end == "" {
		end = "17:00"
	}
	days := bundle.Workdays
	if len(days) == 0 {
		days = []int{0, 1, 2, 3, 4}
	}
	return calendar.New(start, end, days)
}

// validateGenerateRequest 验证请求
func validateGenerateRequest(req *GenerateRequest) *errors.AppError {
	ve := &errors.ValidationErrors{}

	if req.Bundle.TStart.Time().IsZero() {
		ve.Add("bundle.t_start", "排程开始时间不能为空")
	}
	if req.Bundle.TEnd.Time().IsZero() {
		ve.Add("bundle.t_end", "排程结束时间不能为空")
	}
	if len(req.Bundle.Jobs) == 0 {
		ve.Add("bundle.jobs", "工单列表不能为空")
	}
	if len(req.Bundle.Equipment) == 0 {
		ve.Add("bundle.equipment", "设备列表不能为空")
	}

	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// respondEngineError 将引擎错误映射为HTTP响应
func respondEngineError(w http.ResponseWriter, err error) {
	if err == context.DeadlineExceeded {
		respondError(w, errors.New(errors.CodeTimeout, "排程计算超时，请缩小排程窗口或减少工单数量"))
		return
	}
	if err == context.Canceled {
		respondError(w, errors.New(errors.CodeInternal, "排程请求已取消"))
		return
	}
	if appErr, ok := err.(*errors.AppError); ok {
		respondError(w, appErr)
		return
	}
	respondError(w, errors.Wrap(err, errors.CodeInternal, "排程失败"))
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
	})
}
