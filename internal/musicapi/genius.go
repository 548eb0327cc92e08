package musicapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const geniusAPIURL = "https://api.genius.com"

// GeniusClient finds songs through the Genius search API and pulls the lyric
// text from a companion lyrics endpoint, since the Genius API itself only
// serves song metadata.
type GeniusClient struct {
	httpClient  *http.Client
	accessToken string
	baseURL     string
	lyricsURL   string
}

// NewGeniusClient creates a lyrics client. lyricsURL is the endpoint that
// resolves a Genius song path to lyric text.
func NewGeniusClient(accessToken, lyricsURL string) *GeniusClient {
	return &GeniusClient{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		accessToken: accessToken,
		baseURL:     geniusAPIURL,
		lyricsURL:   lyricsURL,
	}
}

// Genius API response structures
type geniusSearchResponse struct {
	Response struct {
		Hits []struct {
			Result geniusSong `json:"result"`
		} `json:"hits"`
	} `json:"response"`
}

type geniusSong struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Path          string `json:"path"`
	URL           string `json:"url"`
	PrimaryArtist struct {
		Name string `json:"name"`
	} `json:"primary_artist"`
}

type geniusLyricsResponse struct {
	Lyrics string `json:"lyrics"`
}

// GetLyrics searches Genius for the song and returns the first hit's lyric
// text. A search without hits, or a hit with empty text, is ErrNoMatch.
func (c *GeniusClient) GetLyrics(ctx context.Context, artist, title string) (string, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("%s %s", title, artist))

	var result geniusSearchResponse
	if err := c.doRequest(ctx, "/search", params, &result); err != nil {
		return "", err
	}

	if len(result.Response.Hits) == 0 {
		return "", fmt.Errorf("%w: no lyrics hit for %q by %q", ErrNoMatch, title, artist)
	}
	hit := result.Response.Hits[0].Result

	lyrics, err := c.fetchLyricText(ctx, hit.Path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(lyrics) == "" {
		return "", fmt.Errorf("%w: empty lyrics for %q by %q", ErrNoMatch, title, artist)
	}

	return lyrics, nil
}

// doRequest performs an authenticated GET against the Genius API.
func (c *GeniusClient) doRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	apiURL := c.baseURL + endpoint
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: genius request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: genius api: %s - %s", ErrUpstream, resp.Status, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: decode genius response: %v", ErrUpstream, err)
	}

	return nil
}

// fetchLyricText resolves a Genius song path to lyric text through the
// configured lyrics endpoint.
func (c *GeniusClient) fetchLyricText(ctx context.Context, path string) (string, error) {
	lyricsURL := c.lyricsURL + "?path=" + url.QueryEscape(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lyricsURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: lyrics request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: no lyric text at %s", ErrNoMatch, path)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: lyrics endpoint: %s - %s", ErrUpstream, resp.Status, string(body))
	}

	var lr geniusLyricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", fmt.Errorf("%w: decode lyrics response: %v", ErrUpstream, err)
	}

	return lr.Lyrics, nil
}
