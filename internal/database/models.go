package database

import (
	"time"

	"gorm.io/datatypes"
)

// Model 为所有表提供统一的审计列：id、create_time、update_time。
type Model struct {
	ID         uint      `gorm:"primaryKey"`
	CreateTime time.Time `gorm:"column:create_time;autoCreateTime"`
	UpdateTime time.Time `gorm:"column:update_time;autoUpdateTime"`
}

// User 表示系统中的账号信息。
type User struct {
	Model
	Username     string         `gorm:"uniqueIndex;size:50"`
	PasswordHash string         `gorm:"size:255"`
	Nickname     string         `gorm:"size:20"`
	AvatarURL    string         `gorm:"size:255"`
	Preferences  datatypes.JSON `gorm:"type:jsonb"`
}

// FieldGroup 表示字段组：某个用户名下的顶层字段容器。
// 同一用户下组名唯一，应用层先校验给出友好错误，存储层唯一索引兜底。
type FieldGroup struct {
	Model
	Name   string `gorm:"size:100;index:idx_field_groups_user_name,unique"`
	UserID uint   `gorm:"column:user_id;index:idx_field_groups_user_name,unique"`
	User   User
}

// TableName 指定表名。
func (FieldGroup) TableName() string { return "field_groups" }

// FieldType 表示字段值的类型，持久化为 smallint。
type FieldType int16

const (
	FieldTypeText    FieldType = 1
	FieldTypeNumber  FieldType = 2
	FieldTypeBoolean FieldType = 3
	FieldTypeArray   FieldType = 4
	FieldTypeObject  FieldType = 5
	FieldTypeDate    FieldType = 6
)

// Valid 判断枚举取值是否在合法区间内。
func (t FieldType) Valid() bool {
	return t >= FieldTypeText && t <= FieldTypeDate
}

// Field 表示一条简历内容节点。字段通过 BelongID 自引用构成每个用户的一片森林，
// 可选地挂在某个字段组下；Pos 表示同一父节点下的兄弟顺序。
// 结构化类型（数组/对象）由调用方序列化成字符串后存入 Value。
type Field struct {
	Model
	Name     string    `gorm:"size:100"`
	Type     FieldType `gorm:"type:smallint"`
	Value    *string   `gorm:"type:text"`
	GroupID  *uint     `gorm:"column:group_id;index"`
	Group    *FieldGroup
	Order    *int   `gorm:"column:order"`
	BelongID *uint  `gorm:"column:belong_id;index"`
	Belong   *Field `gorm:"foreignKey:BelongID"`
	Pos      *int
	UserID   uint `gorm:"column:user_id;index"`
	User     User
}

// TableName 指定表名。
func (Field) TableName() string { return "fields" }
