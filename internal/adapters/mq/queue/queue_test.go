package queue

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	Convey("Given an in-memory delta queue", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(4))

		Convey("Enqueued deltas come out in order", func() {
			So(q.Enqueue(ctx, Delta{Key: "a", Value: "1"}), ShouldBeTrue)
			So(q.Enqueue(ctx, Delta{Key: "b", Value: "2"}), ShouldBeTrue)
			So(q.Len(), ShouldEqual, 2)

			out := q.Dequeue(ctx)
			So(<-out, ShouldResemble, Delta{Key: "a", Value: "1"})
			So(<-out, ShouldResemble, Delta{Key: "b", Value: "2"})
		})

		Convey("A full queue rejects instead of blocking", func() {
			for i := 0; i < 4; i++ {
				So(q.Enqueue(ctx, Delta{Key: "k", Value: "v"}), ShouldBeTrue)
			}
			So(q.Enqueue(ctx, Delta{Key: "k", Value: "v"}), ShouldBeFalse)
		})

		Convey("Close drains and then closes the dequeue channel", func() {
			q.Enqueue(ctx, Delta{Key: "a", Value: "1"})
			So(q.Close(), ShouldBeNil)
			So(q.IsClosed(), ShouldBeTrue)

			out := q.Dequeue(ctx)
			So(<-out, ShouldResemble, Delta{Key: "a", Value: "1"})

			select {
			case _, ok := <-out:
				So(ok, ShouldBeFalse)
			case <-time.After(time.Second):
				So("dequeue channel never closed", ShouldBeEmpty)
			}

			Convey("And enqueue after close is rejected", func() {
				So(q.Enqueue(ctx, Delta{Key: "b", Value: "2"}), ShouldBeFalse)
			})

			Convey("And a second close is a no-op", func() {
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}
