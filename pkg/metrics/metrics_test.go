package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			registryOpt := WithPrometheusRegistry(prometheus.NewRegistry())

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(registryOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the package-level helpers", t, func() {
		Convey("When recording feed metrics", func() {
			So(func() {
				UpdateFeedConnected(true)
				UpdateFeedConnected(false)
				RecordFeedReconnect()
				RecordFeedMessage()
			}, ShouldNotPanic)
		})

		Convey("When recording delta metrics", func() {
			So(func() {
				RecordDeltaApplied("team")
				RecordDeltaIgnored()
				RecordDeltaNoop()
				UpdateRawStateSize(42)
				UpdateDeltaQueueLength(3)
			}, ShouldNotPanic)
		})

		Convey("When recording cache metrics", func() {
			So(func() {
				RecordCacheInvalidation("expulsions")
				RecordCacheRebuild("expulsions")
			}, ShouldNotPanic)
		})

		Convey("When recording render metrics", func() {
			So(func() {
				RecordRenderPass(4)
				RecordRenderError()
				RecordRenderCoalesced()
				RecordDebounceSuppressed("clock")
			}, ShouldNotPanic)
		})

		Convey("When recording HTTP and stream metrics", func() {
			So(func() {
				RecordHTTPRequest("overlay", "GET", "200")
				RecordHTTPRequestDuration("overlay", "GET", "200", 15)
				UpdateStreamClients(2)
			}, ShouldNotPanic)
		})

		Convey("When recording system metrics", func() {
			So(func() {
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given the global registry", t, func() {
		Convey("When gathering after recording", func() {
			RecordRenderPass(1)
			families, err := GetRegistry().Gather()

			Convey("Then the projector metrics are present", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})
	})
}
