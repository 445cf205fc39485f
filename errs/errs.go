package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误类别，中间件与处理器统一据此渲染响应
type Kind int

const (
	KindInternal Kind = iota
	KindMissingToken
	KindInvalidToken
	KindExpiredToken
	KindInvalidCredentials
	KindUnauthorized
	KindNotFound
	KindConflict
	KindBadRequest
	KindDatabase
	KindTimeout
)

var kindCodes = map[Kind]string{
	KindInternal:           "internal_error",
	KindMissingToken:       "missing_token",
	KindInvalidToken:       "invalid_token",
	KindExpiredToken:       "expired_token",
	KindInvalidCredentials: "invalid_credentials",
	KindUnauthorized:       "unauthorized",
	KindNotFound:           "not_found",
	KindConflict:           "conflict",
	KindBadRequest:         "bad_request",
	KindDatabase:           "database_error",
	KindTimeout:            "timeout",
}

// Code 机器可读的错误码
func (k Kind) Code() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return kindCodes[KindInternal]
}

func (k Kind) String() string { return k.Code() }

// Status 对应的 HTTP 状态码
func (k Kind) Status() int {
	switch k {
	case KindMissingToken, KindInvalidToken, KindExpiredToken, KindInvalidCredentials, KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindBadRequest:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Exposed 该类别的 Message 能否原样返回给客户端
func (k Kind) Exposed() bool {
	return k != KindDatabase && k != KindInternal
}

// Error 错误类别 + 对外消息 + 内部原因（仅记录日志）
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is 同类别即匹配，errors.Is(err, errs.ErrNotFound) 可用
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

var (
	ErrMissingToken       = &Error{Kind: KindMissingToken}
	ErrInvalidToken       = &Error{Kind: KindInvalidToken}
	ErrExpiredToken       = &Error{Kind: KindExpiredToken}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrBadRequest         = &Error{Kind: KindBadRequest}
	ErrDatabase           = &Error{Kind: KindDatabase}
	ErrTimeout            = &Error{Kind: KindTimeout}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func MissingToken() *Error { return New(KindMissingToken, "缺少认证令牌") }

func InvalidToken(err error) *Error { return Wrap(KindInvalidToken, "无效的认证令牌", err) }

func ExpiredToken(err error) *Error { return Wrap(KindExpiredToken, "认证令牌已过期，请重新登录", err) }

// InvalidCredentials 登录失败统一返回，不区分用户不存在与密码错误
func InvalidCredentials() *Error { return New(KindInvalidCredentials, "用户名或密码错误") }

func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func Conflict(message string) *Error { return New(KindConflict, message) }

func BadRequest(message string) *Error { return New(KindBadRequest, message) }

func Internal(message string, err error) *Error { return Wrap(KindInternal, message, err) }

// Database 包装数据库错误；已分类的错误原样返回
func Database(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Wrap(KindDatabase, "数据库操作失败", err)
}

// KindOf 未分类的错误视为 KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Public 可返回给客户端的消息，数据库/内部错误不暴露详情
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind.Exposed() {
		return e.Message
	}
	return "服务器内部错误"
}
