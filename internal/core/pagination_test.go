package core

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var nearBottom = ScrollPosition{ScrollHeight: 1000, ScrollTop: 650, ClientHeight: 100}

func TestScrollPosition_DistanceToBottom(t *testing.T) {
	if got := nearBottom.DistanceToBottom(); got != 250 {
		t.Errorf("DistanceToBottom() = %v, want 250", got)
	}
}

func TestPager_OncePerWindow(t *testing.T) {
	clock := newFakeClock()
	var advances []int
	p := NewPager(PagerOptions{Now: clock.Now}, func(page int) { advances = append(advances, page) })

	for i := 0; i < 10; i++ {
		p.Observe(nearBottom)
		clock.Advance(40 * time.Millisecond)
	}

	if p.Page() != 1 {
		t.Errorf("Page() = %d, want 1", p.Page())
	}
	if len(advances) != 1 || advances[0] != 1 {
		t.Errorf("advances = %v, want [1]", advances)
	}

	clock.Advance(DefaultPageThrottle)
	if !p.Observe(nearBottom) {
		t.Error("Observe() after window = false, want true")
	}
	if p.Page() != 2 {
		t.Errorf("Page() = %d, want 2", p.Page())
	}
}

func TestPager_Threshold(t *testing.T) {
	tests := []struct {
		name string
		pos  ScrollPosition
		want bool
	}{
		{"within threshold", nearBottom, true},
		{"exactly at threshold", ScrollPosition{ScrollHeight: 1000, ScrollTop: 600, ClientHeight: 100}, false},
		{"far from bottom", ScrollPosition{ScrollHeight: 5000, ScrollTop: 0, ClientHeight: 800}, false},
		{"short content", ScrollPosition{ScrollHeight: 400, ScrollTop: 0, ClientHeight: 800}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPager(PagerOptions{Now: newFakeClock().Now}, nil)
			if got := p.Observe(tt.pos); got != tt.want {
				t.Errorf("Observe() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPager_LoadingAndHasMore(t *testing.T) {
	clock := newFakeClock()
	p := NewPager(PagerOptions{Now: clock.Now}, nil)

	p.SetLoading(true, true)
	if p.Observe(nearBottom) {
		t.Error("Observe() while loading = true, want false")
	}

	// Finishing the fetch re-checks the last position.
	p.SetLoading(false, true)
	if p.Page() != 1 {
		t.Errorf("Page() after fetch = %d, want 1", p.Page())
	}

	clock.Advance(time.Second)
	p.SetLoading(true, false)
	p.SetLoading(false, false)
	if p.Observe(nearBottom) {
		t.Error("Observe() without more rows = true, want false")
	}
}

func TestPager_CheckWithoutPosition(t *testing.T) {
	p := NewPager(PagerOptions{Now: newFakeClock().Now}, nil)
	if p.Check() {
		t.Error("Check() before any position = true, want false")
	}
}

func TestPager_Reset(t *testing.T) {
	clock := newFakeClock()
	p := NewPager(PagerOptions{Now: clock.Now}, nil)
	p.Observe(nearBottom)

	p.Reset()
	if p.Page() != 0 {
		t.Errorf("Page() after Reset = %d, want 0", p.Page())
	}
	if !p.Observe(nearBottom) {
		t.Error("Observe() after Reset = false, want true")
	}
}

func TestPager_TrailingCheck(t *testing.T) {
	clock := newFakeClock()
	var (
		mu        sync.Mutex
		scheduled []func()
	)
	afterFunc := func(d time.Duration, f func()) *time.Timer {
		mu.Lock()
		scheduled = append(scheduled, f)
		mu.Unlock()
		return time.NewTimer(time.Hour)
	}
	p := NewPager(PagerOptions{Now: clock.Now, AfterFunc: afterFunc}, nil)
	defer p.Close()

	p.Observe(nearBottom)
	p.Observe(nearBottom)
	p.Observe(nearBottom)

	mu.Lock()
	n := len(scheduled)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("scheduled trailing checks = %d, want 1", n)
	}

	clock.Advance(DefaultPageThrottle)
	scheduled[0]()
	if p.Page() != 2 {
		t.Errorf("Page() after trailing check = %d, want 2", p.Page())
	}
}
