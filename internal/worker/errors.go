package worker

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyStarted は起動済みのプールに Start を呼んだ場合に返る
	ErrAlreadyStarted = errors.New("worker pool already started")

	// ErrInvalidWorkerCount はワーカー数が1未満か int32 に収まらない場合に返る
	ErrInvalidWorkerCount = errors.New("worker count must be between 1 and 2147483647")

	// ErrNilTask は nil の関数を投入した場合に Future に格納される
	ErrNilTask = errors.New("task is nil")
)

// PanicError はタスク内で発生した panic を捕捉したもの
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Unwrap は panic の値が error であればそれを返す
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
