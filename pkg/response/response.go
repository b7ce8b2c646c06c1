package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

const (
	CodeInvalidEggSelection = 1001
	CodeInvalidAmount       = 1002
	CodeInsufficientCredits = 1003
	CodeDuplicateRequest    = 1004
	CodeAccountNotFound     = 1005
	CodeInvalidQuantity     = 1006
	CodeInvalidIntent       = 1007
	CodeInvalidPayment      = 1008
	CodeInvalidPreCheckout  = 1009
	CodeUnavailable         = 1503
)

// 与 service.ErrorKind 的取值一一对应；这里用字符串避免 pkg 依赖 internal
var kindCodes = map[string]int{
	"insufficient_credits":    CodeInsufficientCredits,
	"invalid_egg_selection":   CodeInvalidEggSelection,
	"invalid_amount":          CodeInvalidAmount,
	"invalid_payment":         CodeInvalidPayment,
	"duplicate_payment":       CodeDuplicateRequest,
	"invalid_quantity":        CodeInvalidQuantity,
	"invalid_intent":          CodeInvalidIntent,
	"invalid_pre_checkout":    CodeInvalidPreCheckout,
	"persistence_unavailable": CodeUnavailable,
}

// CodeForKind 错误分类对应的业务码，未知分类归为通用业务错误
func CodeForKind(kind string) int {
	if code, ok := kindCodes[kind]; ok {
		return code
	}
	return CodeBusinessError
}

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

// Fail 业务失败同时带上结构化结果，调用方可以据此渲染
func Fail(c *gin.Context, kind string, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeForKind(kind),
		Message: message,
		Data:    data,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
