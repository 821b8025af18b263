package service

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 输入不合法，列出全部字段错误
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "参数校验失败: " + strings.Join(parts, "; ")
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// ConflictError 唯一性冲突或被引用无法删除
type ConflictError struct {
	Resource string
	Field    string
	Value    string
	Reason   string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("%s 的 %s 已存在: %s", e.Resource, e.Field, e.Value)
}

// NotFoundError 引用的记录不存在
type NotFoundError struct {
	Resource string
	ID       interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s 不存在: %v", e.Resource, e.ID)
}

// ExternalServiceError 邮件、文件解析等外部依赖失败
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s 调用失败: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

var (
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrUnauthenticated    = errors.New("未登录或会话已失效")
	ErrForbidden          = errors.New("没有操作权限")
)

func notFound(resource string, id interface{}) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func conflict(resource, field, value string) error {
	return &ConflictError{Resource: resource, Field: field, Value: value}
}

func inUse(resource string, id interface{}) error {
	return &ConflictError{Resource: resource, Reason: fmt.Sprintf("%s %v 仍被引用，无法删除", resource, id)}
}
