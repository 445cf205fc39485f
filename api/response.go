package api

import (
	"log"
	"net/http"

	"budget/database"
	"budget/errs"
	"budget/middleware"

	"github.com/gin-gonic/gin"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
	})
}

// Created 201 响应
func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: message,
		Data:    data,
	})
}

// Fail 按错误类别渲染响应
// 数据库与内部错误只在日志中保留详情，客户端得到通用消息
func Fail(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	message := errs.Public(err)
	if database.IsTimeout(err) {
		kind = errs.KindTimeout
		message = "请求超时，请稍后重试"
	}

	if !kind.Exposed() || kind == errs.KindTimeout {
		log.Printf("[%s] %s %s 失败: %v", middleware.GetRequestID(c), c.Request.Method, c.FullPath(), err)
	}

	c.JSON(kind.Status(), Response{
		Code:    kind.Status(),
		Message: message,
		Error:   kind.Code(),
	})
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, message string) {
	Fail(c, errs.BadRequest(message))
}
