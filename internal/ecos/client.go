// Package ecos fetches monthly statistic series from the Bank of Korea
// ECOS open API (StatisticSearch).
package ecos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"savemate/internal/core"
)

const (
	responseFormat = "json"
	language       = "kr"
	startCount     = 1
	endCount       = 100
	monthlyPeriod  = "M"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a feed client. Every request is bounded by timeout; an
// expired request is reported as an error, never blocks a batch run.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type statisticResponse struct {
	StatisticSearch *struct {
		ListTotalCount int `json:"list_total_count"`
		Row            []struct {
			Time      string `json:"TIME"`
			DataValue string `json:"DATA_VALUE"`
		} `json:"row"`
	} `json:"StatisticSearch"`
	Result *struct {
		Code    string `json:"CODE"`
		Message string `json:"MESSAGE"`
	} `json:"RESULT"`
}

// FetchIndexSeries returns the monthly observations of statCode between
// start and end (both "YYYYMM", inclusive), sorted by time descending.
func (c *Client) FetchIndexSeries(ctx context.Context, statCode, start, end string) ([]core.IndexPoint, error) {
	url := fmt.Sprintf("%s/StatisticSearch/%s/%s/%s/%d/%d/%s/%s/%s/%s",
		c.baseURL, c.apiKey, responseFormat, language,
		startCount, endCount, statCode, monthlyPeriod, start, end)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build index request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch index series %s: %w", statCode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch index series %s: unexpected status %d", statCode, resp.StatusCode)
	}

	var payload statisticResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode index response: %w", err)
	}

	// The API reports errors (bad key, no data) inside a RESULT envelope
	// with a 200 status.
	if payload.Result != nil {
		return nil, fmt.Errorf("index API error %s: %s", payload.Result.Code, payload.Result.Message)
	}
	if payload.StatisticSearch == nil {
		return nil, fmt.Errorf("index response missing StatisticSearch for %s", statCode)
	}

	points := make([]core.IndexPoint, 0, len(payload.StatisticSearch.Row))
	for _, row := range payload.StatisticSearch.Row {
		points = append(points, core.IndexPoint{Time: row.Time, Value: row.DataValue})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Time > points[j].Time
	})

	return points, nil
}
