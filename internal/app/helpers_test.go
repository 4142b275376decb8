package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	service "github.com/okian/palco/internal/app"
	"github.com/okian/palco/internal/domain/event"
	"github.com/okian/palco/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var t0 = time.Date(2026, 7, 10, 9, 0, 0, 0, time.UTC)

// clock is a settable test time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: t0} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("%s-%d", prefix, n.Add(1)) }
}

func newTestService(c *clock, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithClock(c.Now),
		service.WithIDGenerator(sequentialIDs("id")),
		service.WithWorkerCount(2),
	}
	return service.New(append(base, opts...)...)
}

func festival() event.Details {
	return event.Details{
		Name:      "Festival de Inverno",
		Location:  "Praça Central",
		Category:  "music",
		Type:      "competition",
		StartDate: t0.Add(24 * time.Hour),
	}
}

// publishedEvent creates and publishes an event that is open for registration.
func publishedEvent(ctx context.Context, svc *service.Service, d event.Details) event.Event {
	ev, err := svc.CreateEvent(ctx, d)
	if err != nil {
		panic(err)
	}
	ev, err = svc.Transition(ctx, ev.ID, event.Request{Action: event.ActionPublish}, "")
	if err != nil {
		panic(err)
	}
	return ev
}

// scoredEvent publishes an event with the given participants and judges.
func scoredEvent(ctx context.Context, svc *service.Service, participants, judges []string) (event.Event, []string, []string) {
	ev := publishedEvent(ctx, svc, festival())
	pids := make([]string, 0, len(participants))
	for _, name := range participants {
		p, err := svc.Register(ctx, ev.ID, name)
		if err != nil {
			panic(err)
		}
		pids = append(pids, p.ID)
	}
	jids := make([]string, 0, len(judges))
	for _, name := range judges {
		j, err := svc.AddJudge(ctx, ev.ID, "", name)
		if err != nil {
			panic(err)
		}
		jids = append(jids, j.ID)
	}
	return ev, pids, jids
}

func note(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
