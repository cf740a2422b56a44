package ingest_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/fitbit-ingest/internal/clock"
	"github.com/rafaeljc/fitbit-ingest/internal/fitbit"
	"github.com/rafaeljc/fitbit-ingest/internal/ingest"
	"github.com/rafaeljc/fitbit-ingest/internal/timeseries"
	"github.com/rafaeljc/fitbit-ingest/internal/token"
)

// fakeAPI serves minimal but well-formed Fitbit payloads for every endpoint
// the engine reads. Window endpoints answer with empty series.
type fakeAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	paths    []string
	failures map[string]int // path prefix -> status
	gps      int            // number of GPS activities in the list
	onCall   func()
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{failures: map[string]int{}}
	api.server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) fail(prefix string, status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[prefix] = status
}

func (a *fakeAPI) setGPS(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gps = n
}

func (a *fakeAPI) setOnCall(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onCall = fn
}

func (a *fakeAPI) requests() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.paths...)
}

func (a *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/1.2/user/-/")
	path = strings.TrimPrefix(path, "/1/user/-/")

	a.mu.Lock()
	a.paths = append(a.paths, path)
	status := 0
	for prefix, code := range a.failures {
		if strings.HasPrefix(path, prefix) {
			status = code
		}
	}
	gps, onCall := a.gps, a.onCall
	a.mu.Unlock()

	if onCall != nil {
		onCall()
	}
	if status != 0 {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"errors":[{"errorType":"test"}]}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	write := func(body string) { _, _ = io.WriteString(w, body) }

	switch {
	case strings.HasSuffix(path, "/1d/1sec.json"):
		write(`{"activities-heart":[],"activities-heart-intraday":{"dataset":[{"time":"00:00:00","value":61},{"time":"00:00:01","value":62},{"time":"00:00:02","value":64}]}}`)
	case strings.HasSuffix(path, "/1d/1min.json"):
		write(`{"activities-steps":[],"activities-steps-intraday":{"dataset":[{"time":"00:00:00","value":0},{"time":"00:01:00","value":12}]}}`)
	case path == "devices.json":
		write(`[{"battery":"High","batteryLevel":76,"deviceVersion":"Charge 6","lastSyncTime":"2024-03-01T11:58:00.000","type":"TRACKER"}]`)
	case strings.HasPrefix(path, "hrv/"):
		write(`{"hrv":[]}`)
	case strings.HasPrefix(path, "br/"):
		write(`{"br":[]}`)
	case strings.HasPrefix(path, "temp/skin/"):
		write(`{"tempSkin":[]}`)
	case strings.HasPrefix(path, "spo2/"):
		write(`[]`)
	case strings.HasPrefix(path, "body/log/weight/"):
		write(`{"weight":[]}`)
	case strings.HasPrefix(path, "sleep/"):
		write(`{"sleep":[]}`)
	case strings.HasPrefix(path, "activities/tracker/"):
		resource := strings.Split(path, "/")[2]
		write(fmt.Sprintf(`{"activities-tracker-%s":[]}`, resource))
	case strings.HasPrefix(path, "activities/heart/date/"):
		write(`{"activities-heart":[]}`)
	case path == "activities/list.json":
		var items []string
		for i := range gps {
			items = append(items, fmt.Sprintf(
				`{"activityName":"Run","startTime":"2024-03-01T0%d:00:00.000+02:00","duration":600000,"hasGps":true,"tcxLink":"%s/1/user/-/activities/%d.tcx"}`,
				i+1, a.server.URL, i+1))
		}
		write(`{"activities":[` + strings.Join(items, ",") + `]}`)
	case strings.HasSuffix(path, ".tcx"):
		w.Header().Set("Content-Type", "application/vnd.garmin.tcx+xml")
		write(`<TrainingCenterDatabase xmlns="http://www.garmin.com/xmlschemas/TrainingCenterDatabase/v2"><Activities><Activity><Lap><Track>` +
			`<Trackpoint><Time>2024-03-01T06:00:00Z</Time><Position><LatitudeDegrees>1</LatitudeDegrees><LongitudeDegrees>2</LongitudeDegrees></Position></Trackpoint>` +
			`</Track></Lap></Activity></Activities></TrainingCenterDatabase>`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// fakeTokens satisfies both the executor and the engine.
type fakeTokens struct {
	refreshes atomic.Int32
}

func (f *fakeTokens) AccessToken() string { return "access" }

func (f *fakeTokens) Refresh(context.Context) (token.Credential, error) {
	f.refreshes.Add(1)
	return token.Credential{AccessToken: "access", RefreshToken: "refresh"}, nil
}

var (
	plusTwo = time.FixedZone("UTC+2", 2*3600)
	now     = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
)

type harness struct {
	api    *fakeAPI
	clock  *clock.Fake
	tokens *fakeTokens
	sink   *timeseries.MemorySink
	engine *ingest.Engine
}

func newHarness(t *testing.T, mutate func(*ingest.Config), opts ...ingest.Option) *harness {
	t.Helper()
	h := &harness{
		api:    newFakeAPI(t),
		clock:  clock.NewFake(now),
		tokens: &fakeTokens{},
		sink:   timeseries.NewMemorySink(),
	}

	policy := fitbit.Policy{MaxAuthRetries: 1, MaxServerRetries: 1, SkipOnServerError: true}
	exec := fitbit.NewExecutor(h.tokens, policy, fitbit.WithClock(h.clock))

	cfg := ingest.Config{
		BaseURL:  h.api.server.URL,
		Device:   "Charge6",
		Location: plusTwo,
		TCXLimit: 10,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]ingest.Option{ingest.WithClock(h.clock)}, opts...)
	h.engine = ingest.New(logger, cfg, exec, h.tokens, h.sink, opts...)
	return h
}

func countByMeasurement(points []timeseries.Point) map[string]int {
	out := map[string]int{}
	for _, p := range points {
		out[p.Measurement]++
	}
	return out
}

func requireUTC(t *testing.T, points []timeseries.Point) {
	t.Helper()
	for _, p := range points {
		require.Equal(t, time.UTC, p.Time.Location(), "%s at %s", p.Measurement, p.Time)
	}
}
