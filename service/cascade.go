package service

import (
	"errors"

	"budget/config"
	"budget/errs"
	"budget/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Cascade 级联删除协调器
// 每次删除都在单个事务内完成：任一步失败则整体回滚，外部不会观察到中间状态
type Cascade struct {
	deleteShared bool
}

// NewCascade 创建级联删除协调器
func NewCascade(cfg config.CascadeConfig) *Cascade {
	return &Cascade{deleteShared: cfg.DeleteSharedBudgets}
}

// Precheck 在删除事务内、删除之前执行的校验（通常为归属校验）
type Precheck func(tx *gorm.DB) error

// DeleteBudget 删除预算：消费记录 -> 关联 -> 预算
func (c *Cascade) DeleteBudget(db *gorm.DB, budgetID uint, precheck Precheck) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if precheck != nil {
			if err := precheck(tx); err != nil {
				return err
			}
		}
		n, err := deleteBudgets(tx, []uint{budgetID})
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.NotFound("预算不存在")
		}
		return nil
	})
}

// DeleteUser 删除用户及其预算
// 先锁定用户行，再按 DeleteBudget 的顺序删除其预算，随后删除剩余关联与用户本身
func (c *Cascade) DeleteUser(db *gorm.DB, userID uint, precheck Precheck) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if precheck != nil {
			if err := precheck(tx); err != nil {
				return err
			}
		}

		var user models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&user, userID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound("用户不存在")
			}
			return errs.Database(err)
		}

		budgetIDs, err := c.budgetsToDelete(tx, userID)
		if err != nil {
			return err
		}
		if len(budgetIDs) > 0 {
			if _, err := deleteBudgets(tx, budgetIDs); err != nil {
				return err
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.UserBudget{}).Error; err != nil {
			return errs.Database(err)
		}
		if err := tx.Delete(&models.User{}, userID).Error; err != nil {
			return errs.Database(err)
		}
		return nil
	})
}

// budgetsToDelete 删除用户时需要一并删除的预算
func (c *Cascade) budgetsToDelete(tx *gorm.DB, userID uint) ([]uint, error) {
	query := tx.Model(&models.UserBudget{}).Where("user_id = ?", userID)
	if !c.deleteShared {
		shared := tx.Session(&gorm.Session{NewDB: true}).
			Model(&models.UserBudget{}).
			Select("budget_id").
			Where("user_id <> ?", userID)
		query = query.Where("budget_id NOT IN (?)", shared)
	}

	var budgetIDs []uint
	if err := query.Order("budget_id").Pluck("budget_id", &budgetIDs).Error; err != nil {
		return nil, errs.Database(err)
	}
	return budgetIDs, nil
}

// deleteBudgets 按 消费记录 -> 关联 -> 预算 的顺序删除，返回删除的预算数
func deleteBudgets(tx *gorm.DB, budgetIDs []uint) (int64, error) {
	if err := tx.Where("budget_id IN ?", budgetIDs).Delete(&models.Expense{}).Error; err != nil {
		return 0, errs.Database(err)
	}
	if err := tx.Where("budget_id IN ?", budgetIDs).Delete(&models.UserBudget{}).Error; err != nil {
		return 0, errs.Database(err)
	}
	result := tx.Where("id IN ?", budgetIDs).Delete(&models.Budget{})
	if result.Error != nil {
		return 0, errs.Database(result.Error)
	}
	return result.RowsAffected, nil
}
