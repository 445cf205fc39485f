package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense 消费记录模型，金额使用精确小数
type Expense struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	BudgetID    uint            `json:"budgetid" gorm:"index;not null"`
	Date        Date            `json:"date" gorm:"index;not null" swaggertype:"string" example:"2024-01-15"`
	Description string          `json:"description" gorm:"size:255"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null" swaggertype:"string" example:"12.50"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName 设置表名
func (Expense) TableName() string {
	return "expenses"
}

// AmountScale 金额保留的小数位数
const AmountScale = 2
