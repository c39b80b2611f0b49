// Package notify delivers "something changed" signals to subscribers by
// re-fetching the full collection and handing over the snapshot. There is
// no partial-update reconciliation: the newest snapshot always wins.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/fillteam/filltrack/internal/events"
	"github.com/fillteam/filltrack/internal/model"
)

const fetchTimeout = 10 * time.Second

// TaskFetcher is the slice of the task store the notifier needs.
type TaskFetcher interface {
	FetchAll(ctx context.Context) ([]model.Task, error)
}

// MemberFetcher is the slice of the member directory the notifier needs.
type MemberFetcher interface {
	FetchAll(ctx context.Context) ([]model.TeamMember, error)
}

// notifier implements the subscribe/refetch/deliver cycle for one snapshot
// type. At most one live subscription exists at a time; subscribing again
// tears down the prior channel first.
type notifier[T any] struct {
	bus        *events.Bus
	eventTypes []events.EventType
	fetch      func(ctx context.Context) ([]T, error)
	debounce   time.Duration
	onError    func(error)

	mu        sync.Mutex
	gen       int
	fireSeq   int
	delivered int
	unsub     func()
	timer     *time.Timer
	closed    bool
}

func (n *notifier[T]) subscribe(onChange func([]T)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.teardownLocked()
	n.gen++
	gen := n.gen

	fire := func() {
		n.mu.Lock()
		if n.gen != gen {
			n.mu.Unlock()
			return
		}
		n.fireSeq++
		seq := n.fireSeq
		n.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		snapshot, err := n.fetch(ctx)
		if err != nil {
			// Deliver nothing; the subscriber keeps its prior state.
			if n.onError != nil {
				n.onError(err)
			}
			return
		}

		// While the fetch ran the channel may have been torn down, or a
		// later refetch may have completed first. Either way this snapshot
		// must not reach the subscriber.
		n.mu.Lock()
		if n.gen != gen || seq <= n.delivered {
			n.mu.Unlock()
			return
		}
		n.delivered = seq
		n.mu.Unlock()
		onChange(snapshot)
	}

	n.unsub = n.bus.Subscribe(func(events.Event) {
		n.schedule(gen, fire)
	}, n.eventTypes...)

	unsubscribed := false
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		// Idempotent, and a stale handle never tears down a newer channel.
		if unsubscribed || n.gen != gen {
			return
		}
		unsubscribed = true
		n.teardownLocked()
	}
}

// schedule coalesces bursts of row events into a single refetch.
func (n *notifier[T]) schedule(gen int, fire func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.gen != gen {
		return
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.debounce, fire)
}

func (n *notifier[T]) teardownLocked() {
	if n.unsub != nil {
		n.unsub()
		n.unsub = nil
	}
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

// TaskNotifier watches task and progress row changes. Any event, whichever
// row or field changed, triggers a full fetch of the task collection.
type TaskNotifier struct {
	n *notifier[model.Task]
}

// NewTaskNotifier creates a TaskNotifier. onError may be nil; fetch
// failures are then silent and the subscriber simply keeps its prior state.
func NewTaskNotifier(bus *events.Bus, fetcher TaskFetcher, debounce time.Duration, onError func(error)) *TaskNotifier {
	return &TaskNotifier{n: &notifier[model.Task]{
		bus:        bus,
		eventTypes: []events.EventType{events.EventTaskChanged, events.EventProgressChanged},
		fetch:      fetcher.FetchAll,
		debounce:   debounce,
		onError:    onError,
	}}
}

// Subscribe establishes the live channel and returns its unsubscribe
// function. A prior subscription is torn down first.
func (tn *TaskNotifier) Subscribe(onChange func([]model.Task)) func() {
	return tn.n.subscribe(onChange)
}

// MemberNotifier watches team member changes with the same contract.
type MemberNotifier struct {
	n *notifier[model.TeamMember]
}

func NewMemberNotifier(bus *events.Bus, fetcher MemberFetcher, debounce time.Duration, onError func(error)) *MemberNotifier {
	return &MemberNotifier{n: &notifier[model.TeamMember]{
		bus:        bus,
		eventTypes: []events.EventType{events.EventMemberChanged},
		fetch:      fetcher.FetchAll,
		debounce:   debounce,
		onError:    onError,
	}}
}

func (mn *MemberNotifier) Subscribe(onChange func([]model.TeamMember)) func() {
	return mn.n.subscribe(onChange)
}
