package service

import (
	"errors"

	"budget/errs"
	"budget/models"

	"gorm.io/gorm"
)

// BudgetResolver 把一个资源解析为其所属预算 ID；资源不存在时返回 errs.KindNotFound
type BudgetResolver func(db *gorm.DB) (uint, error)

// BudgetID 资源本身就是预算
func BudgetID(id uint) BudgetResolver {
	return func(db *gorm.DB) (uint, error) {
		var n int64
		if err := db.Model(&models.Budget{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return 0, errs.Database(err)
		}
		if n == 0 {
			return 0, errs.NotFound("预算不存在")
		}
		return id, nil
	}
}

// ExpenseBudget 通过消费记录找到其预算
func ExpenseBudget(expenseID uint) BudgetResolver {
	return func(db *gorm.DB) (uint, error) {
		var budgetIDs []uint
		if err := db.Model(&models.Expense{}).Where("id = ?", expenseID).Pluck("budget_id", &budgetIDs).Error; err != nil {
			return 0, errs.Database(err)
		}
		if len(budgetIDs) == 0 {
			return 0, errs.NotFound("记录不存在")
		}
		return budgetIDs[0], nil
	}
}

// Ownership 预算归属判定，user_budgets 表是唯一依据
type Ownership struct{}

// NewOwnership 创建归属判定服务
func NewOwnership() *Ownership {
	return &Ownership{}
}

// Owns 用户是否拥有预算
// 写操作应传入事务句柄，在同一事务视图内判定
func (o *Ownership) Owns(db *gorm.DB, userID, budgetID uint) (bool, error) {
	var n int64
	err := db.Model(&models.UserBudget{}).
		Where("user_id = ? AND budget_id = ?", userID, budgetID).
		Count(&n).Error
	if err != nil {
		return false, errs.Database(err)
	}
	return n > 0, nil
}

// Authorize 解析资源所属预算并校验当前用户的归属，返回预算 ID
func (o *Ownership) Authorize(db *gorm.DB, userID uint, resolve BudgetResolver) (uint, error) {
	budgetID, err := resolve(db)
	if err != nil {
		return 0, err
	}
	owns, err := o.Owns(db, userID, budgetID)
	if err != nil {
		return 0, err
	}
	if !owns {
		return 0, errs.Unauthorized("无权访问该预算")
	}
	return budgetID, nil
}

// Grant 建立用户与预算的关联
func (o *Ownership) Grant(db *gorm.DB, userID, budgetID uint) error {
	var n int64
	if err := db.Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return errs.Database(err)
	}
	if n == 0 {
		return errs.NotFound("用户不存在")
	}

	owns, err := o.Owns(db, userID, budgetID)
	if err != nil {
		return err
	}
	if owns {
		return errs.Conflict("该用户已拥有此预算")
	}

	if err := db.Create(&models.UserBudget{UserID: userID, BudgetID: budgetID}).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.Conflict("该用户已拥有此预算")
		}
		return errs.Database(err)
	}
	return nil
}

// Revoke 解除关联；预算失去所有关联后保留为孤立数据，不自动删除
func (o *Ownership) Revoke(db *gorm.DB, userID, budgetID uint) error {
	result := db.Where("user_id = ? AND budget_id = ?", userID, budgetID).Delete(&models.UserBudget{})
	if result.Error != nil {
		return errs.Database(result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.NotFound("关联不存在")
	}
	return nil
}

// BudgetsOf 用户拥有的全部预算
func (o *Ownership) BudgetsOf(db *gorm.DB, userID uint) ([]models.Budget, error) {
	budgets := make([]models.Budget, 0)
	err := db.Model(&models.Budget{}).
		Joins("JOIN user_budgets ON user_budgets.budget_id = budgets.id").
		Where("user_budgets.user_id = ?", userID).
		Order("budgets.id").
		Find(&budgets).Error
	if err != nil {
		return nil, errs.Database(err)
	}
	return budgets, nil
}

// Members 预算的全部拥有者
func (o *Ownership) Members(db *gorm.DB, budgetID uint) ([]models.User, error) {
	users := make([]models.User, 0)
	err := db.Model(&models.User{}).
		Joins("JOIN user_budgets ON user_budgets.user_id = users.id").
		Where("user_budgets.budget_id = ?", budgetID).
		Order("users.id").
		Find(&users).Error
	if err != nil {
		return nil, errs.Database(err)
	}
	return users, nil
}
