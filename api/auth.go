package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"budget/config"
	"budget/errs"
	"budget/middleware"
	"budget/models"
	"budget/service"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const maxPasswordBytes = 72

// AuthHandler 用户注册、登录与账号管理
type AuthHandler struct {
	store
	cfg       *config.Config
	tokens    *middleware.TokenService
	cascade   *service.Cascade
	dummyHash []byte
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, db *gorm.DB, tokens *middleware.TokenService, cascade *service.Cascade) *AuthHandler {
	// 用户不存在时也做一次哈希比较，使两种登录失败耗时一致
	dummy, err := bcrypt.GenerateFromPassword([]byte("budget-login-placeholder"), cfg.Security.BcryptCost)
	if err != nil {
		panic(fmt.Sprintf("初始化登录占位哈希失败: %v", err))
	}
	return &AuthHandler{
		store:     newStore(db, cfg),
		cfg:       cfg,
		tokens:    tokens,
		cascade:   cascade,
		dummyHash: dummy,
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=50" example:"alice"`
	Password string `json:"password" binding:"required,min=6,max=72" example:"password123"`
	Email    string `json:"email" binding:"omitempty,email,max=100" example:"alice@example.com"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Name     string `json:"name" binding:"required" example:"alice"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// UpdateUserRequest 更新用户请求，未提供的字段保持不变
type UpdateUserRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=50" example:"alice"`
	Password *string `json:"password" binding:"omitempty,min=6,max=72" example:"newpassword123"`
	Email    *string `json:"email" binding:"omitempty,email,max=100" example:"alice@example.com"`
}

// AuthResponse 注册与登录返回的令牌
type AuthResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Register 用户注册
// @Summary 用户注册
// @Description 创建新用户并返回访问令牌
// @Tags 用户
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "注册信息"
// @Success 201 {object} Response{data=AuthResponse} "注册成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 409 {object} Response "用户名已存在"
// @Router /api/v1/users [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, bindError(h.cfg, err))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		BadRequest(c, "用户名不能为空")
		return
	}

	hashed, err := h.hashPassword(req.Password)
	if err != nil {
		Fail(c, err)
		return
	}

	user := models.User{
		Name:     req.Name,
		Password: string(hashed),
		Email:    strings.TrimSpace(req.Email),
	}
	db, cancel := h.write(c)
	defer cancel()
	if err := h.createUser(db, &user); err != nil {
		Fail(c, err)
		return
	}

	token, expiresAt, err := h.tokens.Issue(user.ID)
	if err != nil {
		Fail(c, errs.Internal("生成 token 失败", err))
		return
	}

	Created(c, "注册成功", AuthResponse{
		ID:        user.ID,
		Name:      user.Name,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// hashPassword bcrypt 只接受 72 字节以内的密码，按字节而非字符计数
func (h *AuthHandler) hashPassword(password string) ([]byte, error) {
	if len(password) > maxPasswordBytes {
		return nil, errs.BadRequest("密码过长，最多 72 字节")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cfg.Security.BcryptCost)
	if err != nil {
		return nil, errs.Internal("密码加密失败", err)
	}
	return hashed, nil
}

// createUser 预检查用户名，唯一索引兜底并发注册
func (h *AuthHandler) createUser(db *gorm.DB, user *models.User) error {
	var n int64
	if err := db.Model(&models.User{}).Where("name = ?", user.Name).Count(&n).Error; err != nil {
		return errs.Database(err)
	}
	if n > 0 {
		return errs.Conflict("用户名已存在")
	}
	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.Conflict("用户名已存在")
		}
		return errs.Database(err)
	}
	return nil
}

// Login 用户登录
// @Summary 用户登录
// @Description 校验用户名与密码并返回访问令牌；用户不存在与密码错误返回相同结果
// @Tags 用户
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录信息"
// @Success 200 {object} Response{data=AuthResponse} "登录成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "用户名或密码错误"
// @Router /api/v1/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, bindError(h.cfg, err))
		return
	}

	var user models.User
	err := h.read(c, func(tx *gorm.DB) error {
		return tx.Where("name = ?", strings.TrimSpace(req.Name)).First(&user).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(req.Password))
			Fail(c, errs.InvalidCredentials())
			return
		}
		Fail(c, errs.Database(err))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		Fail(c, errs.InvalidCredentials())
		return
	}

	token, expiresAt, err := h.tokens.Issue(user.ID)
	if err != nil {
		Fail(c, errs.Internal("生成 token 失败", err))
		return
	}

	Success(c, AuthResponse{
		ID:        user.ID,
		Name:      user.Name,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// selfID 路径中的用户 ID 必须是当前用户
func selfID(c *gin.Context) (uint, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return 0, err
	}
	if id != middleware.GetCurrentUserID(c) {
		return 0, errs.Unauthorized("只能操作自己的账号")
	}
	return id, nil
}

// GetUser 获取用户信息
// @Summary 获取用户信息
// @Description 只能获取当前登录用户自己的信息
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Success 200 {object} Response{data=models.User} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "用户不存在"
// @Router /api/v1/users/{id} [get]
func (h *AuthHandler) GetUser(c *gin.Context) {
	id, err := selfID(c)
	if err != nil {
		Fail(c, err)
		return
	}

	var user models.User
	err = h.read(c, func(tx *gorm.DB) error {
		return tx.First(&user, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			Fail(c, errs.NotFound("用户不存在"))
			return
		}
		Fail(c, errs.Database(err))
		return
	}

	Success(c, user)
}

// UpdateUser 更新用户信息
// @Summary 更新用户信息
// @Description 修改当前用户的用户名、密码或邮箱
// @Tags 用户
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Param request body UpdateUserRequest true "用户信息"
// @Success 200 {object} Response{data=models.User} "更新成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Failure 409 {object} Response "用户名已存在"
// @Router /api/v1/users/{id} [put]
func (h *AuthHandler) UpdateUser(c *gin.Context) {
	id, err := selfID(c)
	if err != nil {
		Fail(c, err)
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, bindError(h.cfg, err))
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			BadRequest(c, "用户名不能为空")
			return
		}
		updates["name"] = name
	}
	if req.Email != nil {
		updates["email"] = strings.TrimSpace(*req.Email)
	}
	if req.Password != nil {
		hashed, err := h.hashPassword(*req.Password)
		if err != nil {
			Fail(c, err)
			return
		}
		updates["password_hash"] = string(hashed)
	}
	if len(updates) == 0 {
		BadRequest(c, "没有需要更新的字段")
		return
	}

	var user models.User
	err = h.transaction(c, func(tx *gorm.DB) error {
		if name, ok := updates["name"]; ok {
			var n int64
			if err := tx.Model(&models.User{}).Where("name = ? AND id <> ?", name, id).Count(&n).Error; err != nil {
				return errs.Database(err)
			}
			if n > 0 {
				return errs.Conflict("用户名已存在")
			}
		}

		result := tx.Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
				return errs.Conflict("用户名已存在")
			}
			return errs.Database(result.Error)
		}
		if result.RowsAffected == 0 {
			return errs.NotFound("用户不存在")
		}
		if err := tx.First(&user, id).Error; err != nil {
			return errs.Database(err)
		}
		return nil
	})
	if err != nil {
		Fail(c, err)
		return
	}

	SuccessWithMessage(c, "更新成功", user)
}

// DeleteUser 删除用户
// @Summary 删除用户
// @Description 删除当前用户，并在同一事务内删除其预算、预算下的消费记录与关联
// @Tags 用户
// @Produce json
// @Security BearerAuth
// @Param id path int true "用户ID"
// @Success 200 {object} Response "删除成功"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "用户不存在"
// @Router /api/v1/users/{id} [delete]
func (h *AuthHandler) DeleteUser(c *gin.Context) {
	id, err := selfID(c)
	if err != nil {
		Fail(c, err)
		return
	}

	db, cancel := h.write(c)
	defer cancel()
	if err := h.cascade.DeleteUser(db, id, nil); err != nil {
		Fail(c, err)
		return
	}

	SuccessWithMessage(c, "删除成功", nil)
}
