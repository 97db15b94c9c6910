package derived

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCache(t *testing.T) {
	Convey("Given a cache over a counting compute", t, func() {
		now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
		computes := 0
		c := NewCache(time.Minute, func() int {
			computes++
			return computes
		})
		c.setClock(func() time.Time { return now })

		Convey("The first Get computes, later Gets reuse", func() {
			So(c.Get(), ShouldEqual, 1)
			So(c.Get(), ShouldEqual, 1)
			So(computes, ShouldEqual, 1)
		})

		Convey("Invalidate forces a recompute", func() {
			So(c.Get(), ShouldEqual, 1)
			c.Invalidate()
			So(c.Get(), ShouldEqual, 2)
			So(computes, ShouldEqual, 2)
		})

		Convey("TTL expiry forces a recompute", func() {
			So(c.Get(), ShouldEqual, 1)
			now = now.Add(2 * time.Minute)
			So(c.Get(), ShouldEqual, 2)
		})

		Convey("A non-positive TTL falls back to the default", func() {
			d := NewCache(0, func() bool { return true })
			So(d.ttl, ShouldEqual, defaultTTL)
		})
	})
}
