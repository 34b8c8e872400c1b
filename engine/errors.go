package engine

import "errors"

var (
	// ErrTaskExists 同一 ID 的任务仍在运行
	ErrTaskExists = errors.New("task already running")
	// ErrUnknownTask 没有这个 ID 的任务
	ErrUnknownTask = errors.New("unknown task")
	// ErrTaskActive 任务仍在运行，不能删除
	ErrTaskActive = errors.New("task is still active")
)
