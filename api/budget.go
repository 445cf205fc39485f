package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"budget/config"
	"budget/errs"
	"budget/middleware"
	"budget/models"
	"budget/service"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BudgetHandler 预算处理器
type BudgetHandler struct {
	store
	cfg       *config.Config
	ownership *service.Ownership
	cascade   *service.Cascade
}

// NewBudgetHandler 创建预算处理器
func NewBudgetHandler(cfg *config.Config, db *gorm.DB, ownership *service.Ownership, cascade *service.Cascade) *BudgetHandler {
	return &BudgetHandler{
		store:     newStore(db, cfg),
		cfg:       cfg,
		ownership: ownership,
		cascade:   cascade,
	}
}

// BudgetRequest 创建/更新预算请求
type BudgetRequest struct {
	Name     string         `json:"name" binding:"required,max=100" example:"家庭开支"`
	Settings datatypes.JSON `json:"settings" swaggertype:"object"`
}

// normalizeSettings settings 必须是 JSON 对象；未提供时返回 nil
func normalizeSettings(raw datatypes.JSON) (datatypes.JSON, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, errs.BadRequest("settings 必须是 JSON 对象")
	}
	return datatypes.JSON(trimmed), nil
}

// List 获取当前用户的预算
// @Summary 获取预算列表
// @Description 获取当前用户拥有的全部预算
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]models.Budget} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/budgets [get]
func (h *BudgetHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var budgets []models.Budget
	err := h.read(c, func(tx *gorm.DB) error {
		var err error
		budgets, err = h.ownership.BudgetsOf(tx, userID)
		return err
	})
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, budgets)
}

// Get 获取单个预算
// @Summary 获取预算详情
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response{data=models.Budget} "获取成功"
// @Failure 401 {object} Response "无权访问"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id} [get]
func (h *BudgetHandler) Get(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		Fail(c, err)
		return
	}
	userID := middleware.GetCurrentUserID(c)

	var budget models.Budget
	err = h.read(c, func(tx *gorm.DB) error {
		if _, err := h.ownership.Authorize(tx, userID, service.BudgetID(id)); err != nil {
			return err
		}
		return loadBudget(tx, id, &budget)
	})
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, budget)
}

func loadBudget(tx *gorm.DB, id uint, budget *models.Budget) error {
	if err := tx.First(budget, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.NotFound("预算不存在")
		}
		return errs.Database(err)
	}
	return nil
}

// Create 创建预算
// @Summary 创建预算
// @Description 创建预算，并在同一事务内将当前用户设为拥有者
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BudgetRequest true "预算信息"
// @Success 201 {object} Response{data=models.Budget} "创建成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/budgets [post]
func (h *BudgetHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req BudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, bindError(h.cfg, err))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		BadRequest(c, "预算名称不能为空")
		return
	}
	settings, err := normalizeSettings(req.Settings)
	if err != nil {
		Fail(c, err)
		return
	}
	if settings == nil {
		settings = models.EmptySettings()
	}

	budget := models.Budget{Name: name, Settings: settings}
	err = h.transaction(c, func(tx *gorm.DB) error {
		if err := tx.Create(&budget).Error; err != nil {
			return errs.Database(err)
		}
		if err := tx.Create(&models.UserBudget{UserID: userID, BudgetID: budget.ID}).Error; err != nil {
			return errs.Database(err)
		}
		return nil
	})
	if err != nil {
		Fail(c, err)
		return
	}

	Created(c, "创建成功", budget)
}

// Update 更新预算
// @Summary 更新预算
// @Description 修改预算名称与 settings；未提供 settings 时保持不变
// @Tags 预算
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Param request body BudgetRequest true "预算信息"
// @Success 200 {object} Response{data=models.Budget} "更新成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "无权访问"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id} [put]
func (h *BudgetHandler) Update(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		Fail(c, err)
		return
	}
	userID := middleware.GetCurrentUserID(c)

	var req BudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, bindError(h.cfg, err))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		BadRequest(c, "预算名称不能为空")
		return
	}
	settings, err := normalizeSettings(req.Settings)
	if err != nil {
		Fail(c, err)
		return
	}

	updates := map[string]interface{}{"name": name}
	if settings != nil {
		updates["settings"] = settings
	}

	var budget models.Budget
	err = h.transaction(c, func(tx *gorm.DB) error {
		if _, err := h.ownership.Authorize(tx, userID, service.BudgetID(id)); err != nil {
			return err
		}
		if err := tx.Model(&models.Budget{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return errs.Database(err)
		}
		return loadBudget(tx, id, &budget)
	})
	if err != nil {
		Fail(c, err)
		return
	}

	SuccessWithMessage(c, "更新成功", budget)
}

// Delete 删除预算
// @Summary 删除预算
// @Description 删除预算及其消费记录与全部关联
// @Tags 预算
// @Produce json
// @Security BearerAuth
// @Param id path int true "预算ID"
// @Success 200 {object} Response "删除成功"
// @Failure 401 {object} Response "无权访问"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/budgets/{id} [delete]
func (h *BudgetHandler) Delete(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		Fail(c, err)
		return
	}
	userID := middleware.GetCurrentUserID(c)

	db, cancel := h.write(c)
	defer cancel()
	err = h.cascade.DeleteBudget(db, id, func(tx *gorm.DB) error {
		_, err := h.ownership.Authorize(tx, userID, service.BudgetID(id))
		return err
	})
	if err != nil {
		Fail(c, err)
		return
	}

	SuccessWithMessage(c, "删除成功", nil)
}
