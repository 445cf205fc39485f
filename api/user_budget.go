package api

import (
	"log"

	"budget/config"
	"budget/middleware"
	"budget/models"
	"budget/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserBudgetHandler 预算共享（用户与预算关联）处理器
type UserBudgetHandler struct {
	store
	cfg       *config.Config
	ownership *service.Ownership
	email     *service.EmailService
}

// NewUserBudgetHandler 创建关联处理器
func NewUserBudgetHandler(cfg *config.Config, db *gorm.DB, ownership *service.Ownership, email *service.EmailService) *UserBudgetHandler {
	return &UserBudgetHandler{
		store:     newStore(db, cfg),
		cfg:       cfg,
		ownership: ownership,
		email:     email,
	}
}

// UserBudgetRequest 建立/解除关联请求
type UserBudgetRequest struct {
	UserID   uint `json:"userid" form:"userid" binding:"required" example:"2"`
	BudgetID uint `json:"budgetid" form:"budgetid" binding:"required" example:"1"`
}

// shareNotice 共享通知所需信息
type shareNotice struct {
	granteeEmail string
	granteeName  string
	granterName  string
	budgetName   string
}

// List 获取预算成员
// @Summary 获取预算成员
// @Description 列出拥有该预算的全部用户，请求者必须是其中之一
// @Tags 预算共享
// @Produce json
// @Security BearerAuth
// @Param budgetid query int true "预算ID"
// @Success 200 {object} Response{data=[]models.User} "获取成功"
// @Failure 401 {object} Response "无权访问"
// @Failure 404 {object} Response "预算不存在"
// @Router /api/v1/user_budgets [get]
func (h *UserBudgetHandler) List(c *gin.Context) {
	budgetID, err := queryID(c, "budgetid")
	if err != nil {
		Fail(c, err)
		return
	}
	userID := middleware.GetCurrentUserID(c)

	var members []models.User
	err = h.read(c, func(tx *gorm.DB) error {
		if _, err := h.ownership.Authorize(tx, userID, service.BudgetID(budgetID)); err != nil {
			return err
		}
		var err error
		members, err = h.ownership.Members(tx, budgetID)
		return err
	})
	if err != nil {
		Fail(c, err)
		return
	}

	Success(c, members)
}

// Create 共享预算给其他用户
// @Summary 共享预算
// @Description 请求者必须拥有该预算；目标用户不存在返回 404，已关联返回 409
// @Tags 预算共享
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UserBudgetRequest true "关联信息"
// @Success 201 {object} Response{data=models.UserBudget} "共享成功"
// @Failure 401 {object} Response "无权访问"
// @Failure 404 {object} Response "用户或预算不存在"
// @Failure 409 {object} Response "已关联"
// @Router /api/v1/user_budgets [post]
func (h *UserBudgetHandler) Create(c *gin.Context) {
	var req UserBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, bindError(h.cfg, err))
		return
	}
	userID := middleware.GetCurrentUserID(c)

	err := h.transaction(c, func(tx *gorm.DB) error {
		if _, err := h.ownership.Authorize(tx, userID, service.BudgetID(req.BudgetID)); err != nil {
			return err
		}
		return h.ownership.Grant(tx, req.UserID, req.BudgetID)
	})
	if err != nil {
		Fail(c, err)
		return
	}

	if h.email.Enabled() && req.UserID != userID {
		h.notifyShare(c, userID, req)
	}

	Created(c, "共享成功", models.UserBudget{UserID: req.UserID, BudgetID: req.BudgetID})
}

// loadShareNotice 读取通知邮件所需的用户名与预算名
func loadShareNotice(tx *gorm.DB, granterID uint, req UserBudgetRequest) (*shareNotice, error) {
	var grantee, granter models.User
	var budget models.Budget
	if err := tx.Select("id", "name", "email").First(&grantee, req.UserID).Error; err != nil {
		return nil, err
	}
	if err := tx.Select("id", "name").First(&granter, granterID).Error; err != nil {
		return nil, err
	}
	if err := tx.Select("id", "name").First(&budget, req.BudgetID).Error; err != nil {
		return nil, err
	}
	return &shareNotice{
		granteeEmail: grantee.Email,
		granteeName:  grantee.Name,
		granterName:  granter.Name,
		budgetName:   budget.Name,
	}, nil
}

// notifyShare 授权已提交，这里的失败只记录日志
func (h *UserBudgetHandler) notifyShare(c *gin.Context, granterID uint, req UserBudgetRequest) {
	requestID := middleware.GetRequestID(c)
	var notice *shareNotice
	err := h.read(c, func(tx *gorm.DB) error {
		var err error
		notice, err = loadShareNotice(tx, granterID, req)
		return err
	})
	if err != nil {
		log.Printf("[%s] 读取共享通知信息失败: %v", requestID, err)
		return
	}
	if notice.granteeEmail != "" {
		go h.notify(requestID, *notice)
	}
}

func (h *UserBudgetHandler) notify(requestID string, n shareNotice) {
	if err := h.email.SendBudgetSharedEmail(n.granteeEmail, n.granteeName, n.granterName, n.budgetName); err != nil {
		log.Printf("[%s] 发送共享通知失败: %v", requestID, err)
	}
}

// Delete 解除关联
// @Summary 解除预算共享
// @Description 参数可通过 JSON 请求体或查询参数传递；预算失去全部关联后保留
// @Tags 预算共享
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UserBudgetRequest false "关联信息"
// @Param userid query int false "用户ID"
// @Param budgetid query int false "预算ID"
// @Success 200 {object} Response "已解除关联"
// @Failure 401 {object} Response "无权访问"
// @Failure 404 {object} Response "关联不存在"
// @Router /api/v1/user_budgets [delete]
func (h *UserBudgetHandler) Delete(c *gin.Context) {
	var req UserBudgetRequest
	var err error
	if c.Request.ContentLength > 0 {
		err = c.ShouldBindJSON(&req)
	} else {
		err = c.ShouldBindQuery(&req)
	}
	if err != nil {
		Fail(c, bindError(h.cfg, err))
		return
	}
	userID := middleware.GetCurrentUserID(c)

	err = h.transaction(c, func(tx *gorm.DB) error {
		if _, err := h.ownership.Authorize(tx, userID, service.BudgetID(req.BudgetID)); err != nil {
			return err
		}
		return h.ownership.Revoke(tx, req.UserID, req.BudgetID)
	})
	if err != nil {
		Fail(c, err)
		return
	}

	SuccessWithMessage(c, "已解除关联", nil)
}
