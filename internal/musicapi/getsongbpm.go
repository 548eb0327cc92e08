package musicapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const getSongBPMAPIURL = "https://api.getsongbpm.com"

// GetSongBPMClient looks up song tempos on the GetSongBPM API.
type GetSongBPMClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewGetSongBPMClient creates a tempo client.
func NewGetSongBPMClient(apiKey string) *GetSongBPMClient {
	return &GetSongBPMClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		baseURL:    getSongBPMAPIURL,
	}
}

type getSongBPMResult struct {
	Title  string `json:"title"`
	Tempo  string `json:"tempo"`
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
}

// GetBPM returns the tempo of the first search result whose artist loosely
// matches, rounded to a whole-number string. When no artist matches it falls
// back to the first result's tempo.
func (c *GetSongBPMClient) GetBPM(ctx context.Context, artist, title string) (string, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("type", "both")
	params.Set("lookup", fmt.Sprintf("song:%s artist:%s", title, artist))

	apiURL := c.baseURL + "/search/?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: getsongbpm request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: getsongbpm api: %s - %s", ErrUpstream, resp.Status, string(body))
	}

	var payload struct {
		Search json.RawMessage `json:"search"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode getsongbpm response: %v", ErrUpstream, err)
	}

	// The search field is an array on hits but an error object on misses.
	var results []getSongBPMResult
	if err := json.Unmarshal(payload.Search, &results); err != nil {
		return "", fmt.Errorf("%w: no tempo for %q by %q", ErrNoMatch, title, artist)
	}

	for _, result := range results {
		if !artistMatches(artist, result.Artist.Name) {
			continue
		}
		if bpm, ok := wholeBPM(result.Tempo); ok {
			return bpm, nil
		}
	}

	if len(results) > 0 {
		if bpm, ok := wholeBPM(results[0].Tempo); ok {
			return bpm, nil
		}
	}

	return "", fmt.Errorf("%w: no tempo for %q by %q", ErrNoMatch, title, artist)
}

func wholeBPM(raw string) (string, bool) {
	tempo, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", false
	}
	return strconv.Itoa(int(math.Round(tempo))), true
}

// artistMatches reports whether a result's artist loosely matches the
// requested artist, either containing the other after normalization.
func artistMatches(wanted, got string) bool {
	w := strings.ToLower(strings.TrimSpace(wanted))
	g := strings.ToLower(strings.TrimSpace(got))
	if w == "" || g == "" {
		return false
	}
	return strings.Contains(g, w) || strings.Contains(w, g)
}
