package store

import (
	"context"
	"sync"

	"github.com/kmjayadeep/baskit-sub000/internal/model"
)

// defaultQueueDepth bounds the per-subscriber snapshot backlog. Every
// element is a full collection snapshot, so dropping the oldest under
// backlog loses nothing the newer elements do not already carry.
const defaultQueueDepth = 32

// Fanout delivers collection snapshots to any number of subscribers.
// Delivery per subscriber is FIFO with a single in-flight send, and a
// slow consumer never blocks the publisher or its sibling subscribers.
// Every subscriber receives its own deep copy of each snapshot.
//
// The store implementations use one Fanout per store: they publish a
// fresh snapshot after every successful mutation and seed each new
// subscription with the state current at subscribe time.
type Fanout struct {
	mu   sync.Mutex
	subs map[*fanoutSub]struct{}
}

// NewFanout returns an empty Fanout.
func NewFanout() *Fanout {
	return &Fanout{subs: make(map[*fanoutSub]struct{})}
}

// Subscribe registers a subscriber whose first delivery is the given
// initial snapshot. The returned channel closes once ctx is canceled.
func (f *Fanout) Subscribe(ctx context.Context, initial []model.List) <-chan []model.List {
	s := &fanoutSub{
		ch:   make(chan []model.List),
		wake: make(chan struct{}, 1),
	}
	s.queue = append(s.queue, model.CloneAll(initial))

	f.mu.Lock()
	f.subs[s] = struct{}{}
	f.mu.Unlock()

	go s.pump(ctx, f)
	return s.ch
}

// Publish enqueues a snapshot for every current subscriber.
func (f *Fanout) Publish(lists []model.List) {
	f.mu.Lock()
	subs := make([]*fanoutSub, 0, len(f.subs))
	for s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		s.enqueue(model.CloneAll(lists))
	}
}

func (f *Fanout) remove(s *fanoutSub) {
	f.mu.Lock()
	delete(f.subs, s)
	f.mu.Unlock()
}

type fanoutSub struct {
	mu    sync.Mutex
	queue [][]model.List
	ch    chan []model.List
	wake  chan struct{}
}

func (s *fanoutSub) enqueue(snap []model.List) {
	s.mu.Lock()
	if len(s.queue) >= defaultQueueDepth {
		s.queue = s.queue[1:]
	}
	s.queue = append(s.queue, snap)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *fanoutSub) dequeue() ([]model.List, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	snap := s.queue[0]
	s.queue = s.queue[1:]
	return snap, true
}

func (s *fanoutSub) pump(ctx context.Context, f *Fanout) {
	defer func() {
		f.remove(s)
		close(s.ch)
	}()

	for {
		snap, ok := s.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}

		select {
		case s.ch <- snap:
		case <-ctx.Done():
			return
		}
	}
}
