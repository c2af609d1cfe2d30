package ingest_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/gitlytix/internal/adapters/ingest"
	model "github.com/okian/gitlytix/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func event(id, repo string) ingest.Event {
	return model.Event{
		ID:        id,
		Type:      model.IssuesEvent,
		Action:    model.ActionOpened,
		Repo:      repo,
		Number:    1,
		Actor:     "alice",
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestInMemoryQueue(t *testing.T) {
	convey.Convey("Given an in-memory queue of capacity 3", t, func() {
		ctx := context.Background()
		q := ingest.NewInMemoryQueue(ingest.WithCapacity(3))

		convey.Convey("When enqueuing past capacity", func() {
			for i := 0; i < 3; i++ {
				convey.So(q.Enqueue(ctx, event(fmt.Sprint(i), "o/r")), convey.ShouldBeTrue)
			}
			convey.Convey("Then the extra event is rejected", func() {
				convey.So(q.Enqueue(ctx, event("x", "o/r")), convey.ShouldBeFalse)
				convey.So(q.Len(ctx), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the queue is closed", func() {
			convey.So(q.Enqueue(ctx, event("1", "o/r")), convey.ShouldBeTrue)
			convey.So(q.Close(), convey.ShouldBeNil)
			convey.So(q.Close(), convey.ShouldBeNil)

			convey.Convey("Then enqueue fails but queued events drain", func() {
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
				convey.So(q.Enqueue(ctx, event("2", "o/r")), convey.ShouldBeFalse)
				var got []string
				for e := range q.Dequeue(ctx) {
					got = append(got, e.ID)
				}
				convey.So(got, convey.ShouldResemble, []string{"1"})
			})
		})

		convey.Convey("When the context is cancelled and the queue is full", func() {
			for i := 0; i < 3; i++ {
				q.Enqueue(ctx, event(fmt.Sprint(i), "o/r"))
			}
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			convey.So(q.Enqueue(cctx, event("late", "o/r")), convey.ShouldBeFalse)
		})
	})

	convey.Convey("Given concurrent producers", t, func() {
		ctx := context.Background()
		q := ingest.NewInMemoryQueue(ingest.WithCapacity(1000))
		var wg sync.WaitGroup
		for p := 0; p < 10; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					q.Enqueue(ctx, event(fmt.Sprintf("%d-%d", p, i), "o/r"))
				}
			}(p)
		}
		wg.Wait()
		convey.So(q.Len(ctx), convey.ShouldEqual, 1000)
	})
}
