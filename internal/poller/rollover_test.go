package poller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tickerwatch/ingester/internal/api"
	"github.com/tickerwatch/ingester/internal/model"
	"github.com/tickerwatch/ingester/internal/writer"
)

var (
	testServerNow = time.Date(2024, 1, 15, 0, 3, 0, 0, time.UTC)
	testToday     = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
)

func fastRolloverConfig() RolloverConfig {
	return RolloverConfig{
		CheckInterval: time.Hour,
		Timeout:       time.Second,
		Intervals: IntervalPolicy{
			NearWindow:   10 * time.Minute,
			NearInterval: 5 * time.Millisecond,
			MidWindow:    30 * time.Minute,
			MidInterval:  5 * time.Millisecond,
			BaseInterval: 5 * time.Millisecond,
		},
	}
}

func TestRolloverDetector_StoresOnceAfterRollover(t *testing.T) {
	source := &fakeSource{batches: []model.SnapshotBatch{
		snapshotClosingAt(testToday.Add(-time.Minute), "BTCUSDT", "ETHUSDT"),
		snapshotClosingAt(testToday.Add(-time.Second), "BTCUSDT", "ETHUSDT"),
		snapshotClosingAt(testToday.Add(2*time.Minute), "BTCUSDT", "ETHUSDT"),
	}}
	store := &fakeStore{}
	pub := &fakePublisher{}
	d := NewRolloverDetector(fastRolloverConfig(), &fakeClock{now: testServerNow}, source, store, pub, nil)

	if err := d.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if got := source.callCount(); got != 3 {
		t.Errorf("fetches = %d, want 3", got)
	}
	if got := store.storeCount(); got != 1 {
		t.Fatalf("stores = %d, want 1", got)
	}
	rows := store.stores[0]
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	for _, r := range rows {
		if !r.DataTime.Equal(testToday) {
			t.Errorf("DataTime = %v, want %v", r.DataTime, testToday)
		}
	}
	if len(pub.batches) != 1 {
		t.Errorf("publishes = %d, want 1", len(pub.batches))
	}

	st := d.State()
	if !st.Done || st.Attempts != 3 || !st.ServerDay.Equal(testToday) || st.CycleID == "" {
		t.Errorf("State() = %+v, want done after 3 attempts on %v", st, testToday)
	}
	if got := d.Stats().Stored; got != 1 {
		t.Errorf("Stats().Stored = %d, want 1", got)
	}
}

func TestRolloverDetector_SkipsWhenAlreadyStored(t *testing.T) {
	source := &fakeSource{batches: []model.SnapshotBatch{snapshotClosingAt(testServerNow, "BTCUSDT")}}
	store := &fakeStore{existing: map[time.Time]bool{testToday: true}}
	d := NewRolloverDetector(fastRolloverConfig(), &fakeClock{now: testServerNow}, source, store, nil, nil)

	if err := d.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if got := source.callCount(); got != 0 {
		t.Errorf("fetches = %d, want 0", got)
	}
	if got := store.storeCount(); got != 0 {
		t.Errorf("stores = %d, want 0", got)
	}
	if !d.State().Done {
		t.Error("State().Done = false, want true")
	}
}

func TestRolloverDetector_ServerTimeFailureAborts(t *testing.T) {
	source := &fakeSource{}
	store := &fakeStore{}
	clock := &fakeClock{err: errors.New("connection refused")}
	d := NewRolloverDetector(fastRolloverConfig(), clock, source, store, nil, nil)

	if err := d.RunCycle(context.Background()); err == nil {
		t.Fatal("RunCycle() error = nil, want server time error")
	}
	if got := source.callCount(); got != 0 {
		t.Errorf("fetches = %d, want 0", got)
	}
}

func TestRolloverDetector_FetchErrorsAreNotRolled(t *testing.T) {
	source := &fakeSource{
		errs: []error{errors.New("timeout"), errors.New("503")},
		batches: []model.SnapshotBatch{
			{}, {},
			snapshotClosingAt(testServerNow, "BTCUSDT"),
		},
	}
	store := &fakeStore{}
	d := NewRolloverDetector(fastRolloverConfig(), &fakeClock{now: testServerNow}, source, store, nil, nil)

	if err := d.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if got := store.storeCount(); got != 1 {
		t.Errorf("stores = %d, want 1", got)
	}
	if got := d.Stats().FetchErrors; got != 2 {
		t.Errorf("Stats().FetchErrors = %d, want 2", got)
	}
}

func TestRolloverDetector_StoreErrorAbortsCycle(t *testing.T) {
	source := &fakeSource{batches: []model.SnapshotBatch{snapshotClosingAt(testServerNow, "BTCUSDT")}}
	store := &fakeStore{err: fmt.Errorf("%w: connection reset", writer.ErrPersistence)}
	pub := &fakePublisher{}
	d := NewRolloverDetector(fastRolloverConfig(), &fakeClock{now: testServerNow}, source, store, pub, nil)

	err := d.RunCycle(context.Background())
	if !errors.Is(err, writer.ErrPersistence) {
		t.Fatalf("RunCycle() error = %v, want ErrPersistence", err)
	}
	if len(pub.batches) != 0 {
		t.Errorf("publishes = %d, want 0", len(pub.batches))
	}
}

func TestRolloverDetector_CancelDuringWait(t *testing.T) {
	cfg := fastRolloverConfig()
	cfg.Intervals = DefaultIntervalPolicy()

	source := &fakeSource{batches: []model.SnapshotBatch{snapshotClosingAt(testToday.Add(-time.Hour), "BTCUSDT")}}
	d := NewRolloverDetector(cfg, &fakeClock{now: testServerNow}, source, &fakeStore{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.RunCycle(ctx) }()

	deadline := time.Now().Add(time.Second)
	for source.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := d.State().Interval; got != 300*time.Second {
		t.Errorf("State().Interval = %v, want 5m", got)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunCycle() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunCycle did not return after cancel")
	}
}

func TestRolloverDetector_StartStop(t *testing.T) {
	source := &fakeSource{batches: []model.SnapshotBatch{snapshotClosingAt(testServerNow, "BTCUSDT")}}
	store := &fakeStore{}
	d := NewRolloverDetector(fastRolloverConfig(), &fakeClock{now: testServerNow}, source, store, nil, nil)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for store.storeCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if got := store.storeCount(); got != 1 {
		t.Errorf("stores = %d, want 1 (first cycle runs on start)", got)
	}
}

// TestRolloverDetector_WithRESTClient drives a cycle against an httptest
// exchange whose data rolls over on the second poll.
func TestRolloverDetector_WithRESTClient(t *testing.T) {
	yesterdayClose := testToday.Add(-time.Millisecond).UnixMilli()
	todayClose := testServerNow.UnixMilli()

	var tickerCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/time":
			fmt.Fprintf(w, `{"serverTime":%d}`, testServerNow.UnixMilli())
		case "/api/v3/ticker/24hr":
			closeTime := yesterdayClose
			if tickerCalls.Add(1) > 1 {
				closeTime = todayClose
			}
			fmt.Fprintf(w, `[{"symbol":"BTCUSDT","priceChange":"1","priceChangePercent":"2.5",`+
				`"weightedAvgPrice":"100","prevClosePrice":"99","lastPrice":"101","lastQty":"1",`+
				`"bidPrice":"100.9","bidQty":"2","askPrice":"101.1","askQty":"3","openPrice":"99",`+
				`"highPrice":"102","lowPrice":"98","volume":"10","quoteVolume":"1000",`+
				`"openTime":%d,"closeTime":%d,"firstId":1,"lastId":9,"count":9}]`,
				closeTime-86_400_000, closeTime)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := api.NewClient(server.URL, api.WithRetries(0, time.Millisecond))
	store := &fakeStore{}
	pub := &fakePublisher{}
	d := NewRolloverDetector(fastRolloverConfig(), client, client, store, pub, nil)

	if err := d.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if got := tickerCalls.Load(); got != 2 {
		t.Errorf("ticker calls = %d, want 2", got)
	}
	if got := store.storeCount(); got != 1 {
		t.Fatalf("stores = %d, want 1", got)
	}
	if got := store.stores[0][0]; got.Symbol != "BTCUSDT" || !got.DataTime.Equal(testToday) {
		t.Errorf("row = %s @ %v, want BTCUSDT @ %v", got.Symbol, got.DataTime, testToday)
	}
	if len(pub.batches) != 1 || pub.batches[0].Source != model.SourceREST {
		t.Errorf("publishes = %d, want 1 REST batch", len(pub.batches))
	}
}

func TestRolloverDetector_NextCheck(t *testing.T) {
	cfg := fastRolloverConfig()
	cfg.CheckInterval = 24 * time.Hour
	cfg.Intervals = DefaultIntervalPolicy()
	d := NewRolloverDetector(cfg, &fakeClock{}, &fakeSource{}, &fakeStore{}, nil, nil)

	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	windowStart := day.Add(24*time.Hour - cfg.Intervals.MidWindow)

	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{"just after midnight", day.Add(37 * time.Second), windowStart.Sub(day.Add(37 * time.Second))},
		{"midday", day.Add(12*time.Hour + 37*time.Minute), windowStart.Sub(day.Add(12*time.Hour + 37*time.Minute))},
		{"window open", windowStart, cfg.Intervals.MidInterval},
		{"inside window", windowStart.Add(25 * time.Minute), cfg.Intervals.MidInterval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.nextCheck(tt.now); got != tt.want {
				t.Errorf("nextCheck(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}

	// Scheduled checks land on the window boundary, not on a start-relative tick.
	start := day.Add(12*time.Hour + 37*time.Minute)
	if got := start.Add(d.nextCheck(start)); !got.Equal(windowStart) {
		t.Errorf("next trigger = %v, want %v", got, windowStart)
	}
}

func TestRolloverDetector_NextCheckCappedByCheckInterval(t *testing.T) {
	cfg := fastRolloverConfig()
	cfg.Intervals = DefaultIntervalPolicy()
	d := NewRolloverDetector(cfg, &fakeClock{}, &fakeSource{}, &fakeStore{}, nil, nil)

	now := time.Date(2024, 1, 15, 12, 37, 0, 0, time.UTC)
	if got := d.nextCheck(now); got != time.Hour {
		t.Errorf("nextCheck() = %v, want 1h", got)
	}
	// 23:10 is 20 minutes before the 23:30 window opens.
	now = time.Date(2024, 1, 15, 23, 10, 0, 0, time.UTC)
	if got := d.nextCheck(now); got != 20*time.Minute {
		t.Errorf("nextCheck() = %v, want 20m", got)
	}
}

func TestRolloverDetector_WindowCycleWaitsForNextDay(t *testing.T) {
	tomorrow := testToday.Add(24 * time.Hour)
	clock := &seqClock{times: []time.Time{
		testToday.Add(23*time.Hour + 40*time.Minute),
		testToday.Add(23*time.Hour + 55*time.Minute),
		tomorrow.Add(30 * time.Second),
	}}
	source := &fakeSource{batches: []model.SnapshotBatch{
		snapshotClosingAt(testToday.Add(23*time.Hour+40*time.Minute), "BTCUSDT"),
		snapshotClosingAt(testToday.Add(23*time.Hour+55*time.Minute), "BTCUSDT"),
		snapshotClosingAt(tomorrow.Add(30*time.Second), "BTCUSDT"),
	}}
	store := &fakeStore{existing: map[time.Time]bool{testToday: true}}
	pub := &fakePublisher{}

	cfg := fastRolloverConfig()
	cfg.Intervals.NearInterval = 2 * time.Millisecond
	cfg.Intervals.MidInterval = 3 * time.Millisecond
	cfg.Intervals.BaseInterval = 4 * time.Millisecond
	d := NewRolloverDetector(cfg, clock, source, store, pub, nil)

	intervals := make(map[int]time.Duration)
	done := make(chan error, 1)
	go func() { done <- d.RunCycle(context.Background()) }()

	deadline := time.Now().Add(time.Second)
loop:
	for time.Now().Before(deadline) {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("RunCycle() error = %v", err)
			}
			break loop
		default:
		}
		if st := d.State(); st.Attempts > 0 {
			intervals[st.Attempts] = st.Interval
		}
		time.Sleep(100 * time.Microsecond)
	}

	if got := source.callCount(); got != 3 {
		t.Errorf("fetches = %d, want 3", got)
	}
	if got := store.storeCount(); got != 1 {
		t.Fatalf("stores = %d, want 1", got)
	}
	if got := store.stores[0][0].DataTime; !got.Equal(tomorrow) {
		t.Errorf("DataTime = %v, want %v", got, tomorrow)
	}
	if len(pub.batches) != 1 {
		t.Errorf("publishes = %d, want 1", len(pub.batches))
	}
	if st := d.State(); !st.Done || !st.ServerDay.Equal(tomorrow) {
		t.Errorf("State() = %+v, want done on %v", st, tomorrow)
	}
	if got, ok := intervals[1]; ok && got != cfg.Intervals.MidInterval {
		t.Errorf("interval at 23:40 = %v, want %v", got, cfg.Intervals.MidInterval)
	}
	if got, ok := intervals[2]; ok && got != cfg.Intervals.NearInterval {
		t.Errorf("interval at 23:55 = %v, want %v", got, cfg.Intervals.NearInterval)
	}
}
