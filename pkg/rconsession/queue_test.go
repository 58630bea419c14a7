package rconsession

import (
	"sync"
	"testing"
)

func TestMailboxFIFO(t *testing.T) {
	var m mailbox[int]

	if _, ok := m.take(); ok {
		t.Fatal("空队列take应返回false")
	}

	for i := 1; i <= 3; i++ {
		m.put(i)
	}
	if got := m.size(); got != 3 {
		t.Fatalf("size = %d, 期望 3", got)
	}

	for i := 1; i <= 3; i++ {
		v, ok := m.take()
		if !ok || v != i {
			t.Fatalf("take = (%d, %v), 期望 (%d, true)", v, ok, i)
		}
	}
	if _, ok := m.take(); ok {
		t.Fatal("取空后take应返回false")
	}
}

func TestMailboxClear(t *testing.T) {
	var m mailbox[string]
	m.put("a")
	m.put("b")
	m.clear()

	if got := m.size(); got != 0 {
		t.Fatalf("clear后size = %d, 期望 0", got)
	}
	if _, ok := m.take(); ok {
		t.Fatal("clear后take应返回false")
	}

	// 清空后可以继续使用
	m.put("c")
	if v, ok := m.take(); !ok || v != "c" {
		t.Fatalf("take = (%q, %v), 期望 (\"c\", true)", v, ok)
	}
}

func TestMailboxConcurrentPut(t *testing.T) {
	var m mailbox[int]
	var wg sync.WaitGroup

	const producers = 8
	const perProducer = 100
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				m.put(i)
			}
		}()
	}
	wg.Wait()

	if got := m.size(); got != producers*perProducer {
		t.Fatalf("size = %d, 期望 %d", got, producers*perProducer)
	}
}
