package api

import (
	"context"
	"strconv"
	"time"

	"budget/config"
	"budget/database"
	"budget/errs"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// bindError 参数绑定失败；生产环境下不向客户端暴露校验细节
func bindError(cfg *config.Config, err error) error {
	return errs.BadRequest(config.SafeErrorMessage(cfg, err, "参数错误"))
}

// store 处理器共用的数据库句柄，每次请求派生带超时的上下文
type store struct {
	db      *gorm.DB
	timeout time.Duration
}

func newStore(db *gorm.DB, cfg *config.Config) store {
	return store{db: db, timeout: cfg.Database.QueryTimeout}
}

// write 写操作句柄，超时不重试
func (s store) write(c *gin.Context) (*gorm.DB, context.CancelFunc) {
	return database.WithTimeout(c.Request.Context(), s.db, s.timeout)
}

// read 只读操作，超时重试一次
func (s store) read(c *gin.Context, fn func(tx *gorm.DB) error) error {
	return database.ReadRetry(c.Request.Context(), s.db, s.timeout, fn)
}

// transaction 在一个带超时的事务内执行写操作
func (s store) transaction(c *gin.Context, fn func(tx *gorm.DB) error) error {
	db, cancel := s.write(c)
	defer cancel()
	return db.Transaction(fn)
}

// parseID 解析路径参数中的 ID
func parseID(c *gin.Context, key string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(key), 10, 32)
	if err != nil || id == 0 {
		return 0, errs.BadRequest("无效的ID")
	}
	return uint(id), nil
}

// queryID 解析查询参数中的 ID，必填
func queryID(c *gin.Context, key string) (uint, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, errs.BadRequest("缺少参数 " + key)
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errs.BadRequest("无效的参数 " + key)
	}
	return uint(id), nil
}
