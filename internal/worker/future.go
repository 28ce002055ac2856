package worker

import (
	"context"
	"runtime/debug"
)

// Future はタスクの結果を受け取るための一度きりのハンドル
// 書き込みは実行したワーカーによって一度だけ行われる
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// complete は結果を書き込み、待機中の読み手を解放する
func (f *Future[T]) complete(value T, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Get は結果が確定するまでブロックし、値またはエラーを返す
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.value, f.err
}

// Wait は ctx が終了するまでの間だけ結果を待つ
// ctx の終了はタスク自体を中断しない
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done は結果が確定したときに閉じられるチャネルを返す
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Ready は結果が確定済みかどうかを返す
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// bind は fn と Future を結び付けた型消去済みのタスクを作る
// fn の panic は PanicError として Future に格納され、ワーカーには伝播しない
func bind[T any](fn func() (T, error), f *Future[T]) task {
	return func() {
		var (
			value T
			err   error
		)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				value, err = zero, &PanicError{Value: r, Stack: string(debug.Stack())}
			}
			f.complete(value, err)
		}()
		value, err = fn()
	}
}

// failedFuture はすでにエラーで確定した Future を返す
func failedFuture[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.complete(zero, err)
	return f
}
