package ecos

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchIndexSeriesParsesAndSortsDescending(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{
			"StatisticSearch": {
				"list_total_count": 3,
				"row": [
					{"TIME": "202504", "DATA_VALUE": "107.50"},
					{"TIME": "202506", "DATA_VALUE": "110.50"},
					{"TIME": "202505", "DATA_VALUE": "108.00"}
				]
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5*time.Second)
	points, err := client.FetchIndexSeries(context.Background(), "901Y009", "202407", "202506")
	if err != nil {
		t.Fatalf("FetchIndexSeries: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}
	if points[0].Time != "202506" || points[0].Value != "110.50" {
		t.Errorf("latest point = %+v", points[0])
	}
	if points[1].Time != "202505" || points[2].Time != "202504" {
		t.Errorf("points not sorted descending: %+v", points)
	}

	wantPath := "/StatisticSearch/test-key/json/kr/1/100/901Y009/M/202407/202506"
	if gotPath != wantPath {
		t.Errorf("request path = %q, want %q", gotPath, wantPath)
	}
}

func TestFetchIndexSeriesResultEnvelopeIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"RESULT": {"CODE": "INFO-200", "MESSAGE": "no data found"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5*time.Second)
	_, err := client.FetchIndexSeries(context.Background(), "901Y009", "202407", "202506")
	if err == nil {
		t.Fatal("expected error for RESULT envelope")
	}
	if !strings.Contains(err.Error(), "INFO-200") {
		t.Errorf("error %q does not carry the API code", err)
	}
}

func TestFetchIndexSeriesNon200Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5*time.Second)
	if _, err := client.FetchIndexSeries(context.Background(), "901Y009", "202407", "202506"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestFetchIndexSeriesMissingPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5*time.Second)
	if _, err := client.FetchIndexSeries(context.Background(), "901Y009", "202407", "202506"); err == nil {
		t.Fatal("expected error for response without StatisticSearch")
	}
}

func TestFetchIndexSeriesHonorsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := client.FetchIndexSeries(ctx, "901Y009", "202407", "202506"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
