// Package model 定义维修调度引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// TimeLayout 排程输入输出使用的时间格式（本地时间，不带时区）
const TimeLayout = "2006-01-02T15:04:05"

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TimeRange 时间范围
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration 返回时间范围的持续时间
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// Overlaps 检查两个时间范围是否重叠
func (tr TimeRange) Overlaps(other TimeRange) bool {
	return tr.Start.Before(other.End) && other.Start.Before(tr.End)
}

// Contains 检查时间范围是否包含某个时间点
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && t.Before(tr.End)
}

// LocalTime 本地时间，按 TimeLayout 序列化（不做时区转换）
type LocalTime time.Time

// MarshalJSON 实现 json.Marshaler
func (t LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(TimeLayout) + `"`), nil
}

// UnmarshalJSON 实现 json.Unmarshaler
func (t *LocalTime) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		return err
	}
	*t = LocalTime(parsed)
	return nil
}

// Time 返回标准库时间
func (t LocalTime) Time() time.Time {
	return time.Time(t)
}

// SkillsCovered 检查技能集合 skills 是否覆盖全部所需技能
func SkillsCovered(skills map[string]bool, required []string) bool {
	for _, r := range required {
		if !skills[r] {
			return false
		}
	}
	return true
}

// SkillSet 将技能列表转换为集合
func SkillSet(skills []string) map[string]bool {
	set := make(map[string]bool, len(skills))
	for _, s := range skills {
		set[s] = true
	}
	return set
}
