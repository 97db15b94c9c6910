package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/rcrderby/crg-overlays/internal/view"
)

type fakeProvider struct {
	overlay view.Overlay
}

func (f *fakeProvider) Overlay() view.Overlay { return f.overlay }

func (f *fakeProvider) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "teams": 2}
}

func testOverlay() view.Overlay {
	return view.Overlay{
		Teams: []view.Team{
			{Name: "Heroes", Score: "42"},
			{Name: "Villains", Score: "17"},
		},
		PeriodLabel: "Period 1",
		ClockText:   "12:34",
		ShowClock:   true,
	}
}

func TestOverlayEndpoint(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		provider := &fakeProvider{overlay: testOverlay()}
		hub := NewStreamHub()
		mux := http.NewServeMux()
		NewServer(provider, provider, hub).Register(context.Background(), mux)

		Convey("GET /api/v1/overlay returns the current model as JSON", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/overlay", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")

			var got view.Overlay
			So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
			So(len(got.Teams), ShouldEqual, 2)
			So(got.Teams[0].Name, ShouldEqual, "Heroes")
			So(got.ClockText, ShouldEqual, "12:34")
		})

		Convey("POST /api/v1/overlay is rejected", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/overlay", nil))

			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)

			var resp errorResponse
			So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Code, ShouldEqual, "method_not_allowed")
		})

		Convey("GET /stats returns the pipeline statistics", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)

			var stats map[string]interface{}
			So(json.Unmarshal(rec.Body.Bytes(), &stats), ShouldBeNil)
			So(stats["started"], ShouldEqual, true)
		})

		Convey("GET /healthz serves the metrics exposition", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestStreamHub(t *testing.T) {
	Convey("Given a stream hub", t, func() {
		hub := NewStreamHub()

		Convey("Publishing with no clients is a no-op", func() {
			So(func() { hub.Publish(testOverlay()) }, ShouldNotPanic)
			So(hub.ClientCount(), ShouldEqual, 0)
		})

		Convey("A connected client receives published models as SSE events", func() {
			srv := httptest.NewServer(http.HandlerFunc(hub.HandleStream))
			defer srv.Close()

			// Headers flush together with the first event, so publish as
			// soon as the handler registers the client.
			go func() {
				deadline := time.Now().Add(5 * time.Second)
				for hub.ClientCount() == 0 && time.Now().Before(deadline) {
					time.Sleep(10 * time.Millisecond)
				}
				hub.Publish(testOverlay())
			}()

			resp, err := http.Get(srv.URL)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.Header.Get("Content-Type"), ShouldEqual, "text/event-stream")

			reader := bufio.NewReader(resp.Body)
			line, err := reader.ReadString('\n')
			So(err, ShouldBeNil)
			So(line, ShouldStartWith, "data: ")

			var got view.Overlay
			So(json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &got), ShouldBeNil)
			So(got.Teams[0].Score, ShouldEqual, "42")
		})

		Convey("A slow client keeps only the freshest models", func() {
			id, ch := hub.add()
			defer hub.remove(id)

			for i := 0; i < streamClientBuffer+5; i++ {
				o := testOverlay()
				o.ClockText = time.Duration(i).String()
				hub.Publish(o)
			}

			// The channel is full but the oldest entries were displaced.
			So(len(ch), ShouldEqual, streamClientBuffer)
			first := <-ch
			So(first.ClockText, ShouldNotEqual, time.Duration(0).String())
		})

		Convey("Disconnecting drops the client count", func() {
			id, _ := hub.add()
			So(hub.ClientCount(), ShouldEqual, 1)
			hub.remove(id)
			So(hub.ClientCount(), ShouldEqual, 0)
		})

		Convey("Non-GET requests are rejected", func() {
			rec := httptest.NewRecorder()
			hub.HandleStream(rec, httptest.NewRequest(http.MethodPost, "/api/v1/stream", nil))
			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}
