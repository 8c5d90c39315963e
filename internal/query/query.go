// Package query 提供列表接口共用的筛选、排序与分页助手。
// 调用方传入已限定范围（如按用户过滤）的 *gorm.DB，由本包完成剩余的查询拼装。
package query

import (
	"fmt"

	"gorm.io/gorm"

	"fieldCV/internal/errcode"
)

// Operator 枚举筛选条件支持的比较操作。
type Operator string

const (
	OpEqual          Operator = "eq"
	OpNotEqual       Operator = "ne"
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	OpIn             Operator = "in"
	OpNotIn          Operator = "nin"
	OpBetween        Operator = "between"
	OpLike           Operator = "like"
	OpILike          Operator = "ilike"
)

// Condition 表示一条筛选条件。
type Condition struct {
	Key     string   `json:"key"`
	Operate Operator `json:"operate"`
	Value   any      `json:"value"`
}

// Sort 表示一条排序规则，Order 取 asc 或 desc。
type Sort struct {
	Key   string `json:"key"`
	Order string `json:"order" binding:"omitempty,oneof=asc desc"`
}

// Options 是列表接口的通用查询参数。
type Options struct {
	Page      int         `json:"page" binding:"omitempty,min=1"`
	Limit     int         `json:"limit" binding:"omitempty,min=1,max=100"`
	Sort      []Sort      `json:"sort"`
	Condition []Condition `json:"condition"`
}

// Result 是分页查询的统一返回结构。
type Result[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

func (o *Options) normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = 10
	}
}

// Run 对传入的查询应用筛选、排序和分页并返回一页数据。
// 筛选与排序的列名必须出现在 allowed 白名单中，否则返回 BadRequest；
// 列名只来自白名单，因此拼入 SQL 是安全的。
func Run[T any](tx *gorm.DB, opts Options, allowed []string) (*Result[T], error) {
	opts.normalize()

	tx = tx.Model(new(T))

	filtered, err := applyConditions(tx, opts.Condition, allowed)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := filtered.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	sorted, err := applySorting(filtered, opts.Sort, allowed)
	if err != nil {
		return nil, err
	}

	var data []T
	offset := (opts.Page - 1) * opts.Limit
	if err := sorted.Offset(offset).Limit(opts.Limit).Find(&data).Error; err != nil {
		return nil, err
	}

	return &Result[T]{
		Data:       data,
		Total:      total,
		Page:       opts.Page,
		Limit:      opts.Limit,
		TotalPages: TotalPages(total, opts.Limit),
	}, nil
}

// TotalPages 按 ceil(total/limit) 计算总页数。
func TotalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

func allowedKey(key string, allowed []string) bool {
	for _, k := range allowed {
		if k == key {
			return true
		}
	}
	return false
}

func applyConditions(tx *gorm.DB, conditions []Condition, allowed []string) (*gorm.DB, error) {
	for _, cond := range conditions {
		if !allowedKey(cond.Key, allowed) {
			return nil, errcode.New(errcode.BadRequest, fmt.Sprintf("condition key %q is not allowed", cond.Key))
		}

		switch cond.Operate {
		case OpEqual:
			tx = tx.Where(cond.Key+" = ?", cond.Value)
		case OpNotEqual:
			tx = tx.Where(cond.Key+" <> ?", cond.Value)
		case OpGreaterThan:
			tx = tx.Where(cond.Key+" > ?", cond.Value)
		case OpGreaterOrEqual:
			tx = tx.Where(cond.Key+" >= ?", cond.Value)
		case OpLessThan:
			tx = tx.Where(cond.Key+" < ?", cond.Value)
		case OpLessOrEqual:
			tx = tx.Where(cond.Key+" <= ?", cond.Value)
		case OpIn:
			values, err := sliceValue(cond)
			if err != nil {
				return nil, err
			}
			tx = tx.Where(cond.Key+" IN ?", values)
		case OpNotIn:
			values, err := sliceValue(cond)
			if err != nil {
				return nil, err
			}
			tx = tx.Where(cond.Key+" NOT IN ?", values)
		case OpBetween:
			values, err := sliceValue(cond)
			if err != nil {
				return nil, err
			}
			if len(values) != 2 {
				return nil, errcode.New(errcode.BadRequest, fmt.Sprintf("between on %q expects exactly two values", cond.Key))
			}
			tx = tx.Where(cond.Key+" BETWEEN ? AND ?", values[0], values[1])
		case OpLike:
			tx = tx.Where(cond.Key+" LIKE ?", cond.Value)
		case OpILike:
			// LOWER 两侧比较以保持方言无关；PostgreSQL 的 ILIKE 等价。
			tx = tx.Where("LOWER("+cond.Key+") LIKE LOWER(?)", cond.Value)
		default:
			return nil, errcode.New(errcode.BadRequest, fmt.Sprintf("unknown operator %q", cond.Operate))
		}
	}
	return tx, nil
}

func sliceValue(cond Condition) ([]any, error) {
	values, ok := cond.Value.([]any)
	if !ok || len(values) == 0 {
		return nil, errcode.New(errcode.BadRequest, fmt.Sprintf("operator %q on %q expects a non-empty array value", cond.Operate, cond.Key))
	}
	return values, nil
}

func applySorting(tx *gorm.DB, sorts []Sort, allowed []string) (*gorm.DB, error) {
	for _, s := range sorts {
		if !allowedKey(s.Key, allowed) {
			return nil, errcode.New(errcode.BadRequest, fmt.Sprintf("sort key %q is not allowed", s.Key))
		}
		direction := "ASC"
		if s.Order == "desc" {
			direction = "DESC"
		}
		tx = tx.Order(s.Key + " " + direction)
	}
	return tx, nil
}
