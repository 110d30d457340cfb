package errs

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CodeError 带业务码的错误。Detail 用于追加现场信息，Code/Msg 保持稳定，
// 便于上层用 errors.Is 做分类判断。
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// WithDetail 返回携带附加信息的副本，原错误不变。
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

// Is 只按 Code 判等，WithDetail 的副本与原错误视为同类。
func (e *CodeError) Is(target error) bool {
	t, ok := target.(*CodeError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// 回调处理的错误分类
var (
	ErrMalformedPayload  = NewCodeError(10001, "malformed payload")
	ErrSignatureMismatch = NewCodeError(10002, "signature mismatch")
	ErrUpstreamAuth      = NewCodeError(10003, "upstream auth failed")
	ErrUpstreamTimeout   = NewCodeError(10004, "upstream timeout")
)

func Wrap(err error) error {
	return errors.WithStack(err)
}

func WrapMsg(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

func New(msg string) error {
	return errors.New(msg)
}
