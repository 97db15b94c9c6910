package state

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestStore(t *testing.T) {
	Convey("Given an empty raw-state store", t, func() {
		s := NewStore()

		Convey("Setting a new key reports a change", func() {
			So(s.Set("a.b", "1"), ShouldBeTrue)
			So(s.Len(), ShouldEqual, 1)

			v, ok := s.Get("a.b")
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, "1")
		})

		Convey("Re-applying the same value is a no-op", func() {
			s.Set("a.b", "1")
			So(s.Set("a.b", "1"), ShouldBeFalse)
			So(s.Set("a.b", "2"), ShouldBeTrue)
		})

		Convey("An empty value retracts the key", func() {
			s.Set("a.b", "1")
			So(s.Set("a.b", ""), ShouldBeTrue)
			_, ok := s.Get("a.b")
			So(ok, ShouldBeFalse)
			So(s.Len(), ShouldEqual, 0)

			Convey("And retracting an absent key is a no-op", func() {
				So(s.Set("a.b", ""), ShouldBeFalse)
			})
		})

		Convey("Scan visits every pair and honors early stop", func() {
			s.Set("a.1", "x")
			s.Set("a.2", "y")
			s.Set("b.1", "z")

			seen := map[string]string{}
			s.Scan(func(k, v string) bool {
				seen[k] = v
				return true
			})
			So(len(seen), ShouldEqual, 3)
			So(seen["b.1"], ShouldEqual, "z")

			count := 0
			s.Scan(func(string, string) bool {
				count++
				return false
			})
			So(count, ShouldEqual, 1)
		})

		Convey("ScanPrefix visits only matching keys", func() {
			s.Set("a.1", "x")
			s.Set("a.2", "y")
			s.Set("b.1", "z")

			var keys []string
			s.ScanPrefix("a.", func(k, _ string) bool {
				keys = append(keys, k)
				return true
			})
			So(len(keys), ShouldEqual, 2)
		})
	})
}
