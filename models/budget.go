package models

import (
	"time"

	"gorm.io/datatypes"
)

// Budget 预算模型，settings 为客户端自定义的结构化配置，服务端不解析
type Budget struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"size:100;not null"`
	Settings  datatypes.JSON `json:"settings" swaggertype:"object"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName 设置表名
func (Budget) TableName() string {
	return "budgets"
}

// UserBudget 用户与预算的关联，是预算归属的唯一依据
type UserBudget struct {
	UserID    uint      `json:"userid" gorm:"primaryKey;autoIncrement:false"`
	BudgetID  uint      `json:"budgetid" gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 设置表名
func (UserBudget) TableName() string {
	return "user_budgets"
}

// EmptySettings 未提供 settings 时的默认值
func EmptySettings() datatypes.JSON {
	return datatypes.JSON(`{}`)
}
