package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bitfantasy/nimo-erp/internal/erp/repository"
	"gorm.io/gorm"
)

// 错误分类，调用方用 errors.Is 判断
var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")
	ErrConflict    = errors.New("conflict")
	ErrPersistence = errors.New("persistence error")
)

// ValidationError 字段级校验错误
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// invalid 单字段校验错误
func invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// validator 收集多个字段错误
type validator struct {
	fields map[string]string
}

func (v *validator) check(ok bool, field, msg string) {
	if ok {
		return
	}
	if v.fields == nil {
		v.fields = make(map[string]string)
	}
	if _, exists := v.fields[field]; !exists {
		v.fields[field] = msg
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

// notFound 资源不存在
func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

// conflict 状态冲突
func conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// storeErr 把持久层错误归类，记录不存在归为 NotFound
func storeErr(err error, kind, id string) error {
	if err == nil {
		return nil
	}
	if repository.IsNotFound(err) {
		return notFound(kind, id)
	}
	return fmt.Errorf("%w: %s %s: %v", ErrPersistence, kind, id, err)
}

// persistErr 写操作失败，唯一约束冲突归为 Conflict
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s: %v", ErrConflict, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

// passthrough 已分类的错误原样返回，其余归为持久层错误
func passthrough(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict) || errors.Is(err, ErrPersistence) {
		return err
	}
	return persistErr(op, err)
}
