package candle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	platformhttp "tradebot/internal/platform/http"
)

func newTestClient() *platformhttp.Client {
	return platformhttp.NewClient(platformhttp.ClientOptions{
		Timeout:        5 * time.Second,
		RequestsPerSec: 100,
	})
}

func TestFetchParsesAndOrdersKlines(t *testing.T) {
	// Rows arrive out of order with one duplicate open time.
	payload := `[
		[1700003600000, "101.0", "105.0", "100.0", "104.0", "20.5", 1700007199999],
		[1700000000000, "100.0", "102.0", "99.0", "101.0", "10.0", 1700003599999],
		[1700000000000, "999.0", "999.0", "999.0", "999.0", "999.0", 1700003599999],
		[1700007200000, "104.0", "110.0", "103.5", "109.0", "30.25", 1700010799999]
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Path; got != "/api/v3/klines" {
			t.Errorf("path = %q, want /api/v3/klines", got)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSDT" || q.Get("interval") != "1h" || q.Get("limit") != "100" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	src := NewBinanceSource(srv.URL, newTestClient())
	candles, err := src.Fetch(context.Background(), "BTCUSDT", "1h", 100)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if len(candles) != 3 {
		t.Fatalf("got %d candles, want 3 (duplicate dropped)", len(candles))
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i-1].Timestamp.Before(candles[i].Timestamp) {
			t.Fatalf("candles not strictly ascending at %d: %v >= %v",
				i, candles[i-1].Timestamp, candles[i].Timestamp)
		}
	}

	first := candles[0]
	if want := time.UnixMilli(1700000000000).UTC(); !first.Timestamp.Equal(want) {
		t.Errorf("first timestamp = %v, want %v", first.Timestamp, want)
	}
	if first.Open != 100.0 || first.High != 102.0 || first.Low != 99.0 || first.Close != 101.0 || first.Volume != 10.0 {
		t.Errorf("first candle fields = %+v", first)
	}
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	defer srv.Close()

	src := NewBinanceSource(srv.URL, newTestClient())
	_, err := src.Fetch(context.Background(), "BTCUSDT", "1h", 100)
	if err == nil {
		t.Fatal("Fetch on 4xx returned nil error")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error %v is not a *FetchError", err)
	}
	if fe.Symbol != "BTCUSDT" || fe.Timeframe != "1h" {
		t.Errorf("FetchError pair = %s %s", fe.Symbol, fe.Timeframe)
	}
	var se *platformhttp.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusTeapot {
		t.Errorf("expected wrapped StatusError 418, got %v", err)
	}
}

func TestFetchMalformedPayload(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `{"oops`},
		{"empty array", `[]`},
		{"short row", `[[1700000000000, "100.0"]]`},
		{"bad price", `[[1700000000000, "abc", "1", "1", "1", "1"]]`},
		{"non numeric time", `[["x", "1", "1", "1", "1", "1"]]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			src := NewBinanceSource(srv.URL, newTestClient())
			if _, err := src.Fetch(context.Background(), "ETHUSDT", "5m", 50); err == nil {
				t.Fatal("Fetch on malformed payload returned nil error")
			}
		})
	}
}

func TestFetchNumericPrices(t *testing.T) {
	// Some fixtures serve prices as bare numbers rather than strings.
	payload := `[[1700000000000, 100.5, 101.5, 99.5, 100.75, 12.5]]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	src := NewBinanceSource(srv.URL, newTestClient())
	candles, err := src.Fetch(context.Background(), "BTCUSDT", "1d", 1)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if candles[0].Close != 100.75 {
		t.Errorf("close = %v, want 100.75", candles[0].Close)
	}
}
