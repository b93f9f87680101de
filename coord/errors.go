package coord

import (
	"context"
	"errors"
	"fmt"
)

// Code 存储返回码，取值与 ZooKeeper 保持一致
type Code int

const (
	CodeOK                      Code = 0
	CodeSystemError             Code = -1
	CodeConnectionLoss          Code = -4
	CodeOperationTimeout        Code = -7
	CodeBadArguments            Code = -8
	CodeAPIError                Code = -100
	CodeNoNode                  Code = -101
	CodeNoAuth                  Code = -102
	CodeBadVersion              Code = -103
	CodeNoChildrenForEphemerals Code = -108
	CodeNodeExists              Code = -110
	CodeNotEmpty                Code = -111
	CodeSessionExpired          Code = -112
	CodeClosing                 Code = -116
)

var codeNames = map[Code]string{
	CodeOK:                      "OK",
	CodeSystemError:             "SYSTEMERROR",
	CodeConnectionLoss:          "CONNECTIONLOSS",
	CodeOperationTimeout:        "OPERATIONTIMEOUT",
	CodeBadArguments:            "BADARGUMENTS",
	CodeAPIError:                "APIERROR",
	CodeNoNode:                  "NONODE",
	CodeNoAuth:                  "NOAUTH",
	CodeBadVersion:              "BADVERSION",
	CodeNoChildrenForEphemerals: "NOCHILDRENFOREPHEMERALS",
	CodeNodeExists:              "NODEEXISTS",
	CodeNotEmpty:                "NOTEMPTY",
	CodeSessionExpired:          "SESSIONEXPIRED",
	CodeClosing:                 "CLOSING",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE(%d)", int(c))
}

// Error 存储操作失败
type Error struct {
	Code    Code
	Op      string
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return fmt.Sprintf("coord: %s (%d)", e.Code, int(e.Code))
		}
		return fmt.Sprintf("coord: %s (%d): %s", e.Code, int(e.Code), msg)
	}
	if msg == "" {
		return fmt.Sprintf("coord: %s %s: %s (%d)", e.Op, e.Path, e.Code, int(e.Code))
	}
	return fmt.Sprintf("coord: %s %s: %s (%d): %s", e.Op, e.Path, e.Code, int(e.Code), msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 使 errors.Is(err, ErrNoNode) 这类只带返回码的哨兵按返回码匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Path == "" && t.Code == e.Code
}

// 按返回码匹配的哨兵错误
var (
	ErrNoNode         = &Error{Code: CodeNoNode}
	ErrNodeExists     = &Error{Code: CodeNodeExists}
	ErrNotEmpty       = &Error{Code: CodeNotEmpty}
	ErrConnectionLoss = &Error{Code: CodeConnectionLoss}
	ErrSessionExpired = &Error{Code: CodeSessionExpired}
	ErrClosing        = &Error{Code: CodeClosing}
)

// CodeOf 提取错误链中的返回码；nil 返回 CodeOK，非存储错误返回 CodeSystemError
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeOperationTimeout
	case errors.Is(err, context.Canceled):
		return CodeConnectionLoss
	}
	return CodeSystemError
}

// IsNoNode 判断错误是否为节点不存在
func IsNoNode(err error) bool {
	return CodeOf(err) == CodeNoNode
}

func newError(code Code, op, path string, err error) *Error {
	return &Error{Code: code, Op: op, Path: path, Err: err}
}
