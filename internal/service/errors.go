package service

import (
	"context"
	"errors"

	"eggbot/internal/repository"
)

var (
	ErrInsufficientCredits = repository.ErrInsufficientCredits
	ErrDuplicatePayment    = repository.ErrDuplicatePayment
	ErrAccountNotFound     = repository.ErrAccountNotFound

	ErrInvalidAmount      = errors.New("支付金额不合法")
	ErrInvalidPayment     = errors.New("支付通知缺少必要字段")
	ErrInvalidCreditCount = errors.New("入账额度必须大于0")
	ErrInvalidQuantity    = errors.New("购买数量不合法")
	ErrInvalidIntent      = errors.New("未知的操作")
	ErrInvalidPreCheckout = errors.New("预结账校验失败")
	ErrAlreadyApplied     = errors.New("支付已入账")
	ErrUnknownItem        = errors.New("手办不在目录中")

	// ErrInvalidEggSelection 只属于"24个编号蛋"玩法，额度玩法不会产生
	ErrInvalidEggSelection = errors.New("蛋的编号不合法")

	ErrPersistenceUnavailable = errors.New("存储暂时不可用")
)

// ErrorKind 返回给调用方的错误分类，调用方据此决定提示文案和重试策略
type ErrorKind string

const (
	ErrorKindNone                   ErrorKind = ""
	ErrorKindInsufficientCredits    ErrorKind = "insufficient_credits"
	ErrorKindInvalidEggSelection    ErrorKind = "invalid_egg_selection"
	ErrorKindInvalidAmount          ErrorKind = "invalid_amount"
	ErrorKindInvalidPayment         ErrorKind = "invalid_payment"
	ErrorKindDuplicatePayment       ErrorKind = "duplicate_payment"
	ErrorKindInvalidQuantity        ErrorKind = "invalid_quantity"
	ErrorKindInvalidIntent          ErrorKind = "invalid_intent"
	ErrorKindInvalidPreCheckout     ErrorKind = "invalid_pre_checkout"
	ErrorKindPersistenceUnavailable ErrorKind = "persistence_unavailable"
)

// Transient 只有基础设施错误值得调用方重试
func (k ErrorKind) Transient() bool {
	return k == ErrorKindPersistenceUnavailable
}

// KindOf 把错误归类；无法识别的错误一律视为存储不可用
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrInsufficientCredits):
		return ErrorKindInsufficientCredits
	case errors.Is(err, ErrInvalidEggSelection), errors.Is(err, ErrUnknownItem):
		return ErrorKindInvalidEggSelection
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidCreditCount):
		return ErrorKindInvalidAmount
	case errors.Is(err, ErrInvalidPayment):
		return ErrorKindInvalidPayment
	case errors.Is(err, ErrDuplicatePayment), errors.Is(err, ErrAlreadyApplied):
		return ErrorKindDuplicatePayment
	case errors.Is(err, ErrInvalidQuantity):
		return ErrorKindInvalidQuantity
	case errors.Is(err, ErrInvalidIntent):
		return ErrorKindInvalidIntent
	case errors.Is(err, ErrInvalidPreCheckout):
		return ErrorKindInvalidPreCheckout
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrPersistenceUnavailable):
		return ErrorKindPersistenceUnavailable
	default:
		return ErrorKindPersistenceUnavailable
	}
}
