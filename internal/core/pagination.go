package core

// pagination.go implements the infinite scroll trigger.
//
// The pager advances a page counter when the viewport nears the bottom of the
// grid. Scroll events are throttled so a burst of events inside one window
// produces at most one advance. When an event is dropped by the throttle a
// trailing check runs at the end of the window, so a first page that does not
// fill the viewport still loads more without another scroll.

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultScrollThreshold is the distance from the bottom, in pixels, under
// which the next page is requested.
const DefaultScrollThreshold = 300

// DefaultPageThrottle is the throttle window for page advances.
const DefaultPageThrottle = 500 * time.Millisecond

// ScrollPosition is the grid container's scroll state.
type ScrollPosition struct {
	ScrollHeight float64 `json:"scrollHeight"`
	ScrollTop    float64 `json:"scrollTop"`
	ClientHeight float64 `json:"clientHeight"`
}

// DistanceToBottom is the number of pixels below the viewport.
func (p ScrollPosition) DistanceToBottom() float64 {
	return p.ScrollHeight - p.ScrollTop - p.ClientHeight
}

// PagerOptions configures a Pager. Zero values use the defaults.
type PagerOptions struct {
	Threshold float64
	Throttle  time.Duration
	// Now is the clock used by the throttle.
	Now func() time.Time
	// AfterFunc schedules the trailing check. Nil disables trailing checks.
	AfterFunc func(time.Duration, func()) *time.Timer
}

// Pager tracks the current page of an infinite-scroll grid.
type Pager struct {
	threshold float64
	throttle  time.Duration
	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer
	onAdvance func(page int)

	mu       sync.Mutex
	limiter  *rate.Limiter
	page     int
	loading  bool
	hasMore  bool
	last     ScrollPosition
	haveLast bool
	trailing *time.Timer
	closed   bool
}

// NewPager creates a pager at page 0. onAdvance is called, without the
// pager's lock held, every time the page counter increments.
func NewPager(opts PagerOptions, onAdvance func(page int)) *Pager {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultScrollThreshold
	}
	if opts.Throttle <= 0 {
		opts.Throttle = DefaultPageThrottle
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pager{
		threshold: opts.Threshold,
		throttle:  opts.Throttle,
		now:       opts.Now,
		afterFunc: opts.AfterFunc,
		onAdvance: onAdvance,
		limiter:   rate.NewLimiter(rate.Every(opts.Throttle), 1),
		hasMore:   true,
	}
}

// Page returns the current page.
func (p *Pager) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// Observe records a scroll event and advances the page if the viewport is
// within the threshold of the bottom. Returns whether the page advanced.
func (p *Pager) Observe(pos ScrollPosition) bool {
	p.mu.Lock()
	p.last = pos
	p.haveLast = true
	page, advanced := p.evaluateLocked()
	p.mu.Unlock()

	if advanced && p.onAdvance != nil {
		p.onAdvance(page)
	}
	return advanced
}

// Check re-evaluates the last observed position. Call it on mount and
// whenever the page or the in-flight fetch state changes.
func (p *Pager) Check() bool {
	p.mu.Lock()
	if !p.haveLast {
		p.mu.Unlock()
		return false
	}
	pos := p.last
	p.mu.Unlock()
	return p.Observe(pos)
}

// SetLoading records whether a fetch for the current page is in flight and
// whether more rows may exist. Finishing a fetch triggers a Check.
func (p *Pager) SetLoading(loading, hasMore bool) {
	p.mu.Lock()
	changed := p.loading != loading
	p.loading = loading
	p.hasMore = hasMore
	p.mu.Unlock()

	if changed && !loading {
		p.Check()
	}
}

// Reset returns to page 0, used when the query changes.
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.page = 0
	p.hasMore = true
	p.limiter = rate.NewLimiter(rate.Every(p.throttle), 1)
}

// Close stops any pending trailing check.
func (p *Pager) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.trailing != nil {
		p.trailing.Stop()
		p.trailing = nil
	}
}

func (p *Pager) evaluateLocked() (int, bool) {
	if p.closed || p.loading || !p.hasMore || p.last.DistanceToBottom() >= p.threshold {
		return p.page, false
	}
	if !p.limiter.AllowN(p.now(), 1) {
		p.scheduleTrailingLocked()
		return p.page, false
	}
	p.page++
	return p.page, true
}

func (p *Pager) scheduleTrailingLocked() {
	if p.afterFunc == nil || p.trailing != nil {
		return
	}
	p.trailing = p.afterFunc(p.throttle, func() {
		p.mu.Lock()
		p.trailing = nil
		p.mu.Unlock()
		p.Check()
	})
}
