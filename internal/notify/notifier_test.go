package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fillteam/filltrack/internal/events"
	"github.com/fillteam/filltrack/internal/model"
)

type fakeTaskFetcher struct {
	calls atomic.Int32
	tasks []model.Task
	err   error
}

func (f *fakeTaskFetcher) FetchAll(ctx context.Context) ([]model.Task, error) {
	f.calls.Add(1)
	return f.tasks, f.err
}

func waitFor(t *testing.T, ch <-chan []model.Task) []model.Task {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestNotifierDeliversSnapshotOnAnyEvent(t *testing.T) {
	bus := events.NewBus(16)
	defer bus.Close()

	fetcher := &fakeTaskFetcher{tasks: []model.Task{{ID: "t1"}, {ID: "t2"}}}
	tn := NewTaskNotifier(bus, fetcher, time.Millisecond, nil)

	snapshots := make(chan []model.Task, 4)
	unsubscribe := tn.Subscribe(func(tasks []model.Task) { snapshots <- tasks })
	defer unsubscribe()

	bus.Publish(events.NewEvent(events.EventTaskChanged, events.SourceStore, nil))
	got := waitFor(t, snapshots)
	if len(got) != 2 {
		t.Fatalf("snapshot: got %d tasks, want 2", len(got))
	}

	// Progress row events trigger the same full refetch.
	bus.Publish(events.NewEvent(events.EventProgressChanged, events.SourceStore, nil))
	waitFor(t, snapshots)
}

func TestNotifierCoalescesBursts(t *testing.T) {
	bus := events.NewBus(16)
	defer bus.Close()

	fetcher := &fakeTaskFetcher{}
	tn := NewTaskNotifier(bus, fetcher, 50*time.Millisecond, nil)

	snapshots := make(chan []model.Task, 16)
	unsubscribe := tn.Subscribe(func(tasks []model.Task) { snapshots <- tasks })
	defer unsubscribe()

	// One save emits a task event plus a progress event; a burst of both
	// should collapse into a single refetch.
	for i := 0; i < 5; i++ {
		bus.Publish(events.NewEvent(events.EventTaskChanged, events.SourceStore, nil))
		bus.Publish(events.NewEvent(events.EventProgressChanged, events.SourceStore, nil))
	}

	waitFor(t, snapshots)
	time.Sleep(100 * time.Millisecond)

	if n := fetcher.calls.Load(); n != 1 {
		t.Fatalf("fetch calls: got %d, want 1", n)
	}
}

func TestNotifierUnsubscribeIdempotent(t *testing.T) {
	bus := events.NewBus(16)
	defer bus.Close()

	fetcher := &fakeTaskFetcher{}
	tn := NewTaskNotifier(bus, fetcher, time.Millisecond, nil)

	unsubscribe := tn.Subscribe(func([]model.Task) {})
	unsubscribe()
	unsubscribe() // safe to call again

	bus.Publish(events.NewEvent(events.EventTaskChanged, events.SourceStore, nil))
	time.Sleep(50 * time.Millisecond)
	if n := fetcher.calls.Load(); n != 0 {
		t.Fatalf("fetch after unsubscribe: %d calls", n)
	}
}

func TestNotifierDropsFetchFinishingAfterUnsubscribe(t *testing.T) {
	bus := events.NewBus(16)
	defer bus.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	tn := NewTaskNotifier(bus, taskFetcherFunc(func(ctx context.Context) ([]model.Task, error) {
		close(entered)
		<-release
		return []model.Task{{ID: "t1"}}, nil
	}), time.Millisecond, nil)

	var delivered atomic.Int32
	unsubscribe := tn.Subscribe(func([]model.Task) { delivered.Add(1) })

	bus.Publish(events.NewEvent(events.EventTaskChanged, events.SourceStore, nil))
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch never started")
	}

	// Tear down while the refetch is still in flight, then let it finish.
	unsubscribe()
	close(release)

	time.Sleep(100 * time.Millisecond)
	if n := delivered.Load(); n != 0 {
		t.Fatalf("snapshot delivered after unsubscribe: %d times", n)
	}
}

func TestNotifierResubscribeTearsDownPrior(t *testing.T) {
	bus := events.NewBus(16)
	defer bus.Close()

	fetcher := &fakeTaskFetcher{}
	tn := NewTaskNotifier(bus, fetcher, time.Millisecond, nil)

	var first, second atomic.Int32
	staleUnsub := tn.Subscribe(func([]model.Task) { first.Add(1) })
	unsubscribe := tn.Subscribe(func([]model.Task) { second.Add(1) })
	defer unsubscribe()

	bus.Publish(events.NewEvent(events.EventTaskChanged, events.SourceStore, nil))
	time.Sleep(100 * time.Millisecond)

	if first.Load() != 0 {
		t.Errorf("stale subscriber delivered %d times", first.Load())
	}
	if second.Load() != 1 {
		t.Errorf("live subscriber delivered %d times, want 1", second.Load())
	}

	// A stale unsubscribe handle must not tear down the live channel.
	staleUnsub()
	bus.Publish(events.NewEvent(events.EventTaskChanged, events.SourceStore, nil))
	time.Sleep(100 * time.Millisecond)
	if second.Load() != 2 {
		t.Errorf("live channel broken by stale unsubscribe: %d deliveries", second.Load())
	}
}

func TestNotifierFetchErrorKeepsPriorState(t *testing.T) {
	bus := events.NewBus(16)
	defer bus.Close()

	fetcher := &fakeTaskFetcher{err: errors.New("backend unreachable")}
	errs := make(chan error, 1)
	tn := NewTaskNotifier(bus, fetcher, time.Millisecond, func(err error) { errs <- err })

	delivered := false
	unsubscribe := tn.Subscribe(func([]model.Task) { delivered = true })
	defer unsubscribe()

	bus.Publish(events.NewEvent(events.EventTaskChanged, events.SourceStore, nil))

	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("nil error reported")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error hook never called")
	}
	if delivered {
		t.Fatal("snapshot delivered despite fetch failure")
	}
}

func TestMemberNotifier(t *testing.T) {
	bus := events.NewBus(16)
	defer bus.Close()

	mn := NewMemberNotifier(bus, memberFetcherFunc(func(ctx context.Context) ([]model.TeamMember, error) {
		return []model.TeamMember{{ID: "m1"}}, nil
	}), time.Millisecond, nil)

	snapshots := make(chan []model.TeamMember, 1)
	unsubscribe := mn.Subscribe(func(m []model.TeamMember) { snapshots <- m })
	defer unsubscribe()

	bus.Publish(events.NewEvent(events.EventMemberChanged, events.SourceStore, nil))
	select {
	case got := <-snapshots:
		if len(got) != 1 {
			t.Fatalf("got %d members", len(got))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

type taskFetcherFunc func(ctx context.Context) ([]model.Task, error)

func (f taskFetcherFunc) FetchAll(ctx context.Context) ([]model.Task, error) {
	return f(ctx)
}

type memberFetcherFunc func(ctx context.Context) ([]model.TeamMember, error)

func (f memberFetcherFunc) FetchAll(ctx context.Context) ([]model.TeamMember, error) {
	return f(ctx)
}
