package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/weixiu/weixiu/pkg/model"
	"github.com/weixiu/weixiu/pkg/scheduler"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation(model.TimeLayout, s, time.Local)
	if err != nil {
		t.Fatalf("解析时间失败: %v", err)
	}
	return parsed
}

func testBundle(t *testing.T) model.PlanningBundle {
	t.Helper()
	return model.PlanningBundle{
		TStart: model.LocalTime(mustParse(t, "2025-06-02T08:00:00")),
		TEnd:   model.LocalTime(mustParse(t, "2025-06-06T17:00:00")),
		Jobs: []*model.Job{
			{JobID: "J1", DurationHours: 3, EquipmentID: "E1"},
			{JobID: "J2", DurationHours: 2, EquipmentID: "E2"},
		},
		Equipment: []*model.Equipment{
			{EquipmentID: "E1", Priority: 1},
			{EquipmentID: "E2", Priority: 2},
		},
		Technicians: []*model.Technician{
			{TechID: "T1", HourlyRate: 50,
				WorkdayStart: "08:00", WorkdayEnd: "17:00", Workdays: []int{0, 1, 2, 3, 4}},
			{TechID: "T2", HourlyRate: 60,
				WorkdayStart: "08:00", WorkdayEnd: "17:00", Workdays: []int{0, 1, 2, 3, 4}},
		},
	}
}

// fakeStore 记录持久化调用
type fakeStore struct {
	saved int
	fail  bool
}

func (s *fakeStore) Save(ctx context.Context, schedule *model.Schedule, bundle *model.PlanningBundle) error {
	if s.fail {
		return context.DeadlineExceeded
	}
	s.saved++
	return nil
}

func newTestHandler(store ScheduleStore) *ScheduleHandler {
	engine := scheduler.NewEngine(scheduler.DefaultOptions())
	return NewScheduleHandler(engine, store, 30*time.Second)
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("序列化请求失败: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestGenerate_成功(t *testing.T) {
	h := newTestHandler(nil)

	rec := postJSON(t, h.Generate, GenerateRequest{
		Strategy: scheduler.StrategyGreedy,
		Bundle:   testBundle(t),
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("状态码 = %d, 期望 200, body: %s", rec.Code, rec.Body.String())
	}
	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if !resp.Success {
		t.Error("响应应标记成功")
	}
	if resp.Schedule == nil || len(resp.Schedule.Assignments) != 2 {
		t.Fatalf("排定数不符: %+v", resp.Schedule)
	}
	if resp.Report == nil || resp.Report.ScheduledJobs != 2 {
		t.Error("响应应附带统计报告")
	}
}

func TestGenerate_默认策略为贪心(t *testing.T) {
	h := newTestHandler(nil)

	rec := postJSON(t, h.Generate, GenerateRequest{Bundle: testBundle(t)})

	if rec.Code != http.StatusOK {
		t.Fatalf("状态码 = %d, 期望 200", rec.Code)
	}
	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if resp.Schedule.Strategy != scheduler.StrategyGreedy {
		t.Errorf("策略 = %s, 期望默认为greedy", resp.Schedule.Strategy)
	}
}

func TestGenerate_非POST拒绝(t *testing.T) {
	h := newTestHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Generate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("状态码 = %d, 期望 400", rec.Code)
	}
}

func TestGenerate_请求体不合法(t *testing.T) {
	h := newTestHandler(nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Generate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("状态码 = %d, 期望 400", rec.Code)
	}
}

func TestGenerate_缺少必填字段(t *testing.T) {
	h := newTestHandler(nil)

	rec := postJSON(t, h.Generate, GenerateRequest{
		Strategy: scheduler.StrategyGreedy,
		Bundle:   model.PlanningBundle{},
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("状态码 = %d, 期望 400", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("解析错误响应失败: %v", err)
	}
	if body["code"] != "VALIDATION_FAILED" {
		t.Errorf("错误码 = %v, 期望 VALIDATION_FAILED", body["code"])
	}
}

func TestGenerate_未知策略(t *testing.T) {
	h := newTestHandler(nil)

	rec := postJSON(t, h.Generate, GenerateRequest{
		Strategy: "quantum",
		Bundle:   testBundle(t),
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("状态码 = %d, 期望 400", rec.Code)
	}
}

func TestGenerate_持久化(t *testing.T) {
	store := &fakeStore{}
	h := newTestHandler(store)

	rec := postJSON(t, h.Generate, GenerateRequest{
		Strategy: scheduler.StrategyGreedy,
		Bundle:   testBundle(t),
		Persist:  true,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("状态码 = %d, 期望 200", rec.Code)
	}
	if store.saved != 1 {
		t.Errorf("持久化调用次数 = %d, 期望 1", store.saved)
	}
}

func TestGenerate_不带persist不持久化(t *testing.T) {
	store := &fakeStore{}
	h := newTestHandler(store)

	rec := postJSON(t, h.Generate, GenerateRequest{
		Strategy: scheduler.StrategyGreedy,
		Bundle:   testBundle(t),
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("状态码 = %d, 期望 200", rec.Code)
	}
	if store.saved != 0 {
		t.Error("未请求持久化时不应写库")
	}
}

// fakeLoader 返回固定的输入快照
type fakeLoader struct {
	bundle *model.PlanningBundle
	fail   bool
}

func (l *fakeLoader) LoadBundle(ctx context.Context) (*model.PlanningBundle, error) {
	if l.fail {
		return nil, context.DeadlineExceeded
	}
	return l.bundle, nil
}

func TestGenerateFromStore_成功(t *testing.T) {
	bundle := testBundle(t)
	loaded := model.PlanningBundle{
		Jobs:        bundle.Jobs,
		Equipment:   bundle.Equipment,
		Technicians: bundle.Technicians,
	}
	h := newTestHandler(nil).WithLoader(&fakeLoader{bundle: &loaded})

	rec := postJSON(t, h.GenerateFromStore, GenerateFromStoreRequest{
		Strategy: scheduler.StrategyGreedy,
		TStart:   bundle.TStart,
		TEnd:     bundle.TEnd,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("状态码 = %d, 期望 200, body: %s", rec.Code, rec.Body.String())
	}
	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if len(resp.Schedule.Assignments) != 2 {
		t.Errorf("排定数 = %d, 期望 2", len(resp.Schedule.Assignments))
	}
}

func TestGenerateFromStore_无装载器(t *testing.T) {
	h := newTestHandler(nil)

	rec := postJSON(t, h.GenerateFromStore, GenerateFromStoreRequest{
		Strategy: scheduler.StrategyGreedy,
	})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("状态码 = %d, 期望 500", rec.Code)
	}
}

func TestGenerateFromStore_装载失败(t *testing.T) {
	h := newTestHandler(nil).WithLoader(&fakeLoader{fail: true})

	rec := postJSON(t, h.GenerateFromStore, GenerateFromStoreRequest{
		Strategy: scheduler.StrategyGreedy,
	})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("状态码 = %d, 期望 500", rec.Code)
	}
}

func TestCompare_两策略(t *testing.T) {
	h := newTestHandler(nil)

	rec := postJSON(t, h.Compare, CompareRequest{
		Strategies: []string{scheduler.StrategyGreedy, scheduler.StrategyGreedy},
		Bundle:     testBundle(t),
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("状态码 = %d, 期望 200, body: %s", rec.Code, rec.Body.String())
	}
	var resp CompareResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if len(resp.Reports) != 2 {
		t.Fatalf("报告数 = %d, 期望 2", len(resp.Reports))
	}
	if len(resp.Comparisons) != 1 {
		t.Fatalf("对比数 = %d, 期望 1", len(resp.Comparisons))
	}
	if resp.Comparisons[0].Winner != "tie" {
		t.Errorf("同策略同输入应为平局, 实际 %s", resp.Comparisons[0].Winner)
	}
}

func TestCompare_策略不足(t *testing.T) {
	h := newTestHandler(nil)

	rec := postJSON(t, h.Compare, CompareRequest{
		Strategies: []string{scheduler.StrategyGreedy},
		Bundle:     testBundle(t),
	})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("状态码 = %d, 期望 400", rec.Code)
	}
}

func TestStrategies_列表(t *testing.T) {
	h := newTestHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Strategies(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("状态码 = %d, 期望 200", rec.Code)
	}
	var body struct {
		Strategies []string `json:"strategies"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if len(body.Strategies) != 4 {
		t.Errorf("策略数 = %d, 期望 4", len(body.Strategies))
	}
}
