package api

import (
	"errors"
	"strings"

	"budget/config"
	"budget/errs"
	"budget/middleware"
	"budget/models"
	"budget/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxAmount decimal(12,2) 能容纳的整数部分上限
var maxAmount = decimal.New(1, 10)

// ExpenseHandler 消费记录处理器
type ExpenseHandler struct {
	store
	cfg       *config.Config
	ownership *service.Ownership
}

// NewExpenseHandler 创建消费记录处理器
func NewExpenseHandler(cfg *config.Config, db *gorm.DB, ownership *service.Ownership) *ExpenseHandler {
	return &ExpenseHandler{
		store:     newStore(db, cfg),
		cfg:       cfg,
		ownership: ownership,
	}
}

// ExpenseRequest 创建/更新消费记录请求
type ExpenseRequest struct {
	BudgetID    uint             `json:"budgetid" binding:"required" example:"1"`
	Date        *models.Date     `json:"date" binding:"required" swaggertype:"string" example:"2024-01-15"`
	Description string           `json:"description" binding:"max=255" example:"午餐"`
	Amount      *decimal.Decimal `json:"amount" binding:"required" swaggertype:"string" example:"99.99"`
}

// validate 日期必填，金额最多两位小数
func (r *ExpenseRequest) validate() error {
	if r.Date == nil || r.Date.IsZero() {
		return errs.BadRequest("日期不能为空")
	}
	return validateAmount(*r.Amount)
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(models.AmountScale)) {
		return errs.BadRequest("金额最多保留两位小数")
	}
	if amount.Abs().GreaterThanOrEqual(maxAmount) {
		return errs.BadRequest("金额超出范围")
	}
	return nil
}

// TotalResponse 预算消费总额
type TotalResponse struct {
	BudgetID uint            `json:"budgetid"`
	Total    decimal.Decimal `json:"total" swaggertype:"string" example:"1024.50"`
}

type totalRow struct {
	Total decimal.Decimal
}

// dateRange 解析 start_date / end_date，两端均可省略且均为闭区间
func dateRange(c *gin.Context) (start, end *models.Date, err error) {
	if raw := c.Query("start_date"); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			return nil, nil, errs.BadRequest("start_date 格式错误，应为: 2006-01-02")
		}
		start = &d
	}
	if raw := c.Query("end_date"); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			return nil, nil, errs.BadRequest("end_date 格式错误，应为: 2006-01-02")
		}
		end = &d
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, nil, errs.BadRequest("start_date 不能晚于 end_date")
	}
	return start, end, nil
}

// findExpenses 按日期倒序查询预算下的消费记录
func findExpenses(tx *gorm.DB, budgetID uint, start, end *models.Date) ([]models.Expense, error) {
	query := tx.Model(&models.Expense{}).Where("budget_id = ?", budgetID)
	if start != nil {
		query = query.Where("date >= ?", *start)
	}
	if end != nil {
		query = query.Where("date <= ?", *end)
	}

	expenses := make([]models.Expense, 0)
	if err := query.Order("date DESC, id DESC").Find(&expenses).Error; err != nil {
		return nil, errs.Database(err)
	}
	return expenses, nil
}

func loadExpense(tx *gorm.DB, id uint, expense *models.Expense) error {
	if err := tx.First(expense, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFound("记录不存在")
		}
		return errs.Database(err)
	}
	return nil
}

// List 获取消费记录列表
// @Summary 获取消费记录列表
// @Description 获取预算下的消费记录，按日期倒序；起止日期均为闭区间，可省略
// @Tags 消费记录
// @Produce json
// @Security BearerAuth
// @Param budgetid query int true "预算ID"
// @Param start_date query string false "开始日期 (2024-01-01)，含当天，省略则不限下界"
// @Param end_date query string false "结束日期 (2024-12-31)，含当天，省略则不限上界"
// @Success 200 {object} Response{data=[]models.Expense} "获取成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "无权访问"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/expenses [get]
func (h *ExpenseHandler) List(c *gin.Context) {
	budgetID, err := queryID(c, "budgetid")
	if err != nil {
		Fail(c, err)
		return
	}
	start, end, err := dateRange(c)
	if err != nil {
		Fail(c, err)
		return
	}
	userID := middleware.GetCurrentUserID(c)

	var expenses []models.Expense
	err = h.read(c, func(tx *gorm.DB) error {
		if _, err := h.ownership.Authorize(tx, userID, service.BudgetID(budgetID)); err != nil {
			return err
		}
		var err error
		expenses, err = findExpenses(tx, budgetID, start, end)
		return err
	})
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, expenses)
}

// Total 获取预算消费总额
// @Summary 获取消费总额
// @Description 精确求和，预算下没有记录时为 "0"
// @Tags 消费记录
// @Produce json
// @Security BearerAuth
// @Param budgetid query int true "预算ID"
// @Success 200 {object} Response{data=TotalResponse} "获取成功"
// @Failure 401 {object} Response "无权访问"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/expenses/total [get]
func (h *ExpenseHandler) Total(c *gin.Context) {
	budgetID, err := queryID(c, "budgetid")
	if err != nil {
		Fail(c, err)
		return
	}
	userID := middleware.GetCurrentUserID(c)

	var result totalRow
	err = h.read(c, func(tx *gorm.DB) error {
		if _, err := h.ownership.Authorize(tx, userID, service.BudgetID(budgetID)); err != nil {
			return err
		}
		err := tx.Model(&models.Expense{}).
			Select("COALESCE(SUM(amount), 0) AS total").
			Where("budget_id = ?", budgetID).
			Scan(&result).Error
		return errs.Database(err)
	})
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, TotalResponse{BudgetID: budgetID, Total: result.Total})
}

// Get 获取单条消费记录
// @Summary 获取单条消费记录
// @Tags 消费记录
// @Produce json
// @Security BearerAuth
// @Param id path int true "消费记录ID"
// @Success 200 {object} Response{data=models.Expense} "获取成功"
// @Failure 401 {object} Response "无权访问"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/expenses/{id} [get]
func (h *ExpenseHandler) Get(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		Fail(c, err)
		return
	}
	userID := middleware.GetCurrentUserID(c)

	var expense models.Expense
	err = h.read(c, func(tx *gorm.DB) error {
		if _, err := h.ownership.Authorize(tx, userID, service.ExpenseBudget(id)); err != nil {
			return err
		}
		return loadExpense(tx, id, &expense)
	})
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, expense)
}

// Create 创建消费记录
// @Summary 创建消费记录
// @Description 在当前用户拥有的预算下创建消费记录
// @Tags 消费记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ExpenseRequest true "消费记录信息"
// @Success 201 {object} Response{data=models.Expense} "创建成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "无权访问"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/expenses [post]
func (h *ExpenseHandler) Create(c *gin.Context) {
	var req ExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, bindError(h.cfg, err))
		return
	}
	if err := req.validate(); err != nil {
		Fail(c, err)
		return
	}
	userID := middleware.GetCurrentUserID(c)

	expense := models.Expense{
		BudgetID:    req.BudgetID,
		Date:        *req.Date,
		Description: strings.TrimSpace(req.Description),
		Amount:      *req.Amount,
	}
	err := h.transaction(c, func(tx *gorm.DB) error {
		if _, err := h.ownership.Authorize(tx, userID, service.BudgetID(req.BudgetID)); err != nil {
			return err
		}
		return errs.Database(tx.Create(&expense).Error)
	})
	if err != nil {
		Fail(c, err)
		return
	}

	Created(c, "创建成功", expense)
}

// Update 更新消费记录
// @Summary 更新消费记录
// @Description 整体替换消费记录；移动到其他预算时需同时拥有两个预算
// @Tags 消费记录
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "消费记录ID"
// @Param request body ExpenseRequest true "消费记录信息"
// @Success 200 {object} Response{data=models.Expense} "更新成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "无权访问"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/expenses/{id} [put]
func (h *ExpenseHandler) Update(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		Fail(c, err)
		return
	}

	var req ExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, bindError(h.cfg, err))
		return
	}
	if err := req.validate(); err != nil {
		Fail(c, err)
		return
	}
	userID := middleware.GetCurrentUserID(c)

	var expense models.Expense
	err = h.transaction(c, func(tx *gorm.DB) error {
		current, err := h.ownership.Authorize(tx, userID, service.ExpenseBudget(id))
		if err != nil {
			return err
		}
		if req.BudgetID != current {
			if _, err := h.ownership.Authorize(tx, userID, service.BudgetID(req.BudgetID)); err != nil {
				return err
			}
		}

		err = tx.Model(&models.Expense{}).Where("id = ?", id).Updates(map[string]interface{}{
			"budget_id":   req.BudgetID,
			"date":        *req.Date,
			"description": strings.TrimSpace(req.Description),
			"amount":      *req.Amount,
		}).Error
		if err != nil {
			return errs.Database(err)
		}
		return loadExpense(tx, id, &expense)
	})
	if err != nil {
		Fail(c, err)
		return
	}

	SuccessWithMessage(c, "更新成功", expense)
}

// Delete 删除消费记录
// @Summary 删除消费记录
// @Tags 消费记录
// @Produce json
// @Security BearerAuth
// @Param id path int true "消费记录ID"
// @Success 200 {object} Response "删除成功"
// @Failure 401 {object} Response "无权访问"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/expenses/{id} [delete]
func (h *ExpenseHandler) Delete(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		Fail(c, err)
		return
	}
	userID := middleware.GetCurrentUserID(c)

	err = h.transaction(c, func(tx *gorm.DB) error {
		if _, err := h.ownership.Authorize(tx, userID, service.ExpenseBudget(id)); err != nil {
			return err
		}
		return errs.Database(tx.Delete(&models.Expense{}, id).Error)
	})
	if err != nil {
		Fail(c, err)
		return
	}

	SuccessWithMessage(c, "删除成功", nil)
}
