package rconsession

import "sync"

// mailbox 无界FIFO队列，多生产者安全。
// 不设容量上限：未被消费的回复会持续累积，是否及时取走由调用方负责。
type mailbox[T any] struct {
	mu    sync.Mutex
	items []T
}

// put 追加一个元素
func (m *mailbox[T]) put(v T) {
	m.mu.Lock()
	m.items = append(m.items, v)
	m.mu.Unlock()
}

// take 非阻塞取出队首元素，队列为空时第二个返回值为false
func (m *mailbox[T]) take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if len(m.items) == 0 {
		return zero, false
	}
	v := m.items[0]
	m.items[0] = zero
	m.items = m.items[1:]
	return v, true
}

// clear 清空队列
func (m *mailbox[T]) clear() {
	m.mu.Lock()
	m.items = nil
	m.mu.Unlock()
}

// size 返回当前队列长度
func (m *mailbox[T]) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
