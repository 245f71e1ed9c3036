package aggregator

import (
	"slices"
	"sync"

	"derivagg/internal/domain/model"
)

// Event is the closed set of inputs the store accepts.
type Event interface {
	isEvent()
}

// PartialUpdate replaces a single domain's collection. Only the field that
// matches Domain is read.
type PartialUpdate struct {
	Domain       model.Domain
	Funding      []model.FundingRate
	OpenInterest []model.OpenInterest
	LongShort    []model.LongShortRatio
}

// CycleComplete marks a fully settled fan-out cycle.
type CycleComplete struct {
	At       int64 // epoch ms
	Failures int   // domains that reported a non-cancel failure in this cycle
}

// CycleError records an advisory error string; data is left in place.
type CycleError struct {
	Message string
}

// Reset returns the store to the initial snapshot of a new activation.
type Reset struct{}

func (PartialUpdate) isEvent() {}
func (CycleComplete) isEvent() {}
func (CycleError) isEvent()    {}
func (Reset) isEvent()         {}

// Reduce is the pure transition function of the store.
func Reduce(old model.AggregateSnapshot, ev Event) model.AggregateSnapshot {
	next := old
	switch e := ev.(type) {
	case PartialUpdate:
		switch e.Domain {
		case model.DomainFunding:
			next.Funding = e.Funding
		case model.DomainOpenInterest:
			next.OpenInterest = e.OpenInterest
		case model.DomainLongShort:
			next.LongShort = e.LongShort
		}
	case CycleComplete:
		next.LastRefresh = e.At
		next.IsLoading = false
		if e.Failures == 0 {
			next.LastError = ""
		}
	case CycleError:
		next.LastError = e.Message
	case Reset:
		next = model.InitialSnapshot()
	}
	return next
}

// Change 一次状态迁移
type Change struct {
	Snapshot model.AggregateSnapshot
	Event    Event
}

// Store owns the published snapshot. Other components only read it or
// dispatch events into it.
type Store struct {
	mu        sync.Mutex
	snap      model.AggregateSnapshot
	nextID    uint64
	listeners []listener
}

type listener struct {
	id uint64
	fn func(Change)
}

func NewStore() *Store {
	return &Store{snap: model.InitialSnapshot()}
}

// Dispatch applies ev and notifies listeners in dispatch order.
func (s *Store) Dispatch(ev Event) model.AggregateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap = Reduce(s.snap, ev)
	ch := Change{Snapshot: s.snap, Event: ev}
	for _, l := range s.listeners {
		l.fn(ch)
	}
	return s.snap
}

// Snapshot 当前快照
func (s *Store) Snapshot() model.AggregateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers fn for every subsequent transition. fn runs while the
// store is locked and must not dispatch. The returned func removes fn and is
// safe to call more than once.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(l listener) bool { return l.id == id })
	}
}
