package worker

import "sync"

// task はキューに積まれる型消去済みの作業単位
// 戻り値や失敗は自身の Future に書き込み済みの状態で返る
type task func()

// taskQueue は無制限の FIFO キュー
// 単一の Mutex で保護し、Cond で待機中のワーカーを起こす
type taskQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []task
	head  int

	// stopGen は shutdown のたびに増える
	// 待機開始時の値と比較することで、フラグがリセットされた後でも停止を検知できる
	stopGen  uint64
	stopping bool
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push はタスクを末尾に追加し、待機中のワーカーを1つ起こす
func (q *taskQueue) push(t task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
	q.cond.Signal()
}

// pop は先頭のタスクを取り出す
// キューが空で停止も通知されていない間はブロックする
// 停止が通知されキューが空なら (nil, false) を返す
func (q *taskQueue) pop() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	gen := q.stopGen
	for q.size() == 0 && !q.stopping && q.stopGen == gen {
		q.cond.Wait()
	}

	if q.size() == 0 {
		return nil, false
	}
	return q.take(), true
}

// tryPop はブロックせずに先頭のタスクを取り出す
func (q *taskQueue) tryPop() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size() == 0 {
		return nil, false
	}
	return q.take(), true
}

// shutdown は停止を通知し、待機中の全員を起こす
func (q *taskQueue) shutdown() {
	q.mu.Lock()
	q.stopping = true
	q.stopGen++
	q.mu.Unlock()
	q.cond.Broadcast()
}

// reset は停止フラグを下ろし、再起動できる状態に戻す
func (q *taskQueue) reset() {
	q.mu.Lock()
	q.stopping = false
	q.mu.Unlock()
}

// len は現在のキュー長を返す
func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size()
}

// size と take は mu を保持した状態で呼ぶこと
func (q *taskQueue) size() int {
	return len(q.items) - q.head
}

func (q *taskQueue) take() task {
	t := q.items[q.head]
	q.items[q.head] = nil
	q.head++

	// 先頭側の空きが半分を超えたら詰め直す
	if q.head > len(q.items)/2 {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return t
}
