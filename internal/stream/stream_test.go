package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProperty_SetNotifiesOnChange(t *testing.T) {
	p := NewProperty(1)
	var got []int
	cancel := p.Subscribe(func(v int) { got = append(got, v) })

	assert.True(t, p.Set(2))
	assert.False(t, p.Set(2))
	assert.True(t, p.Set(3))
	assert.Equal(t, []int{2, 3}, got)
	assert.Equal(t, 3, p.Get())

	cancel()
	cancel()
	p.Set(4)
	assert.Equal(t, []int{2, 3}, got)
	assert.Equal(t, 0, p.Subscribers())
}

func TestProperty_Observe(t *testing.T) {
	p := NewProperty("draft")
	var got []string
	cancel := p.Observe(func(v string) { got = append(got, v) })
	defer cancel()

	p.Set("published")
	assert.Equal(t, []string{"draft", "published"}, got)
}

func TestProperty_ReentrantSet(t *testing.T) {
	p := NewProperty(0)
	var got []int

	p.Subscribe(func(v int) {
		got = append(got, v)
		if v < 3 {
			// the nested notification is queued behind the current one
			p.Set(v + 1)
		}
	})
	p.Subscribe(func(v int) { got = append(got, -v) })

	p.Set(1)
	assert.Equal(t, []int{1, -1, 2, -2, 3, -3}, got)
}

func TestProperty_CustomEqual(t *testing.T) {
	p := NewPropertyFunc([]string{"a"}, func(a, b []string) bool { return len(a) == len(b) })
	calls := 0
	p.Subscribe(func([]string) { calls++ })

	assert.False(t, p.Set([]string{"b"}))
	assert.True(t, p.Set([]string{"a", "b"}))
	assert.Equal(t, 1, calls)
}

func TestBus_SharedQueueOrdering(t *testing.T) {
	q := &Queue{}
	p := NewProperty(0).WithQueue(q)
	b := NewBus[string]().WithQueue(q)
	var log []string

	p.Subscribe(func(v int) {
		log = append(log, "prop")
		b.Publish("from-prop")
	})
	b.Subscribe(func(s string) { log = append(log, s) })

	p.Set(1)
	assert.Equal(t, []string{"prop", "from-prop"}, log)
}

func TestBus_Concurrent(t *testing.T) {
	b := NewBus[int]()
	var mu sync.Mutex
	sum := 0
	b.Subscribe(func(v int) {
		mu.Lock()
		sum += v
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			b.Publish(v)
		}(i)
	}
	wg.Wait()

	// every publisher returns only after its own event or a drainer picked it up
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return sum == 5050
	}, time.Second, 5*time.Millisecond)
}

func TestProperty_StoreThenNotify(t *testing.T) {
	p := NewProperty(false)
	var got []bool
	p.Subscribe(func(v bool) { got = append(got, v) })

	assert.True(t, p.Store(true))
	assert.True(t, p.Get())
	assert.Empty(t, got)
	assert.False(t, p.Store(true))

	p.Notify(true)
	assert.Equal(t, []bool{true}, got)
}
