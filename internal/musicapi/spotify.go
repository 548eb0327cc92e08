package musicapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL  = "https://accounts.spotify.com/api/token"
	spotifyAPIURL    = "https://api.spotify.com/v1"
	spotifyPageLimit = 100
)

// SpotifyClient talks to the Spotify Web API using the client-credentials
// flow, which grants access to public playlist data.
type SpotifyClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewSpotifyClient creates a Spotify API client. The OAuth2 transport caches
// and refreshes the access token on its own.
func NewSpotifyClient(clientID, clientSecret string) *SpotifyClient {
	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyTokenURL,
	}
	client := conf.Client(context.Background())
	client.Timeout = 30 * time.Second

	return &SpotifyClient{
		httpClient: client,
		baseURL:    spotifyAPIURL,
	}
}

// Spotify API response structures
type spotifyPlaylist struct {
	ID     string               `json:"id"`
	Name   string               `json:"name"`
	Owner  spotifyPlaylistOwner `json:"owner"`
	Images []spotifyImage       `json:"images"`
	Tracks spotifyTracksPage    `json:"tracks"`
}

type spotifyPlaylistOwner struct {
	DisplayName string `json:"display_name"`
}

type spotifyTracksPage struct {
	Items []spotifyPlaylistItem `json:"items"`
	Next  string                `json:"next"`
	Total int                   `json:"total"`
}

type spotifyPlaylistItem struct {
	IsLocal bool          `json:"is_local"`
	Track   *spotifyTrack `json:"track"`
}

type spotifyTrack struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	Artists    []spotifySimpleArtist `json:"artists"`
	Album      *spotifyAlbum         `json:"album"`
	DurationMS int                   `json:"duration_ms"`
}

type spotifySimpleArtist struct {
	Name string `json:"name"`
}

type spotifyAlbum struct {
	Name   string         `json:"name"`
	Images []spotifyImage `json:"images"`
}

type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// GetPlaylist fetches a playlist's metadata and its complete track list,
// following pagination to the end.
func (c *SpotifyClient) GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error) {
	var sp spotifyPlaylist
	if err := c.doRequest(ctx, "playlists/"+playlistID, nil, &sp); err != nil {
		return nil, err
	}

	playlist := &Playlist{
		ID:         sp.ID,
		Name:       sp.Name,
		OwnerName:  sp.Owner.DisplayName,
		TrackCount: sp.Tracks.Total,
	}
	if len(sp.Images) > 0 {
		playlist.ImageURL = sp.Images[0].URL
	}

	var page spotifyTracksPage
	if err := c.doRequest(ctx, "playlists/"+playlistID+"/tracks", spotifyPageParams(), &page); err != nil {
		return nil, err
	}
	for {
		for _, item := range page.Items {
			// Local files have no usable track ID.
			if item.Track == nil || item.IsLocal || item.Track.ID == "" {
				continue
			}
			playlist.Tracks = append(playlist.Tracks, convertSpotifyTrack(*item.Track, len(playlist.Tracks)))
		}
		if page.Next == "" {
			break
		}
		next := page.Next
		page = spotifyTracksPage{}
		if err := c.doRequestURL(ctx, next, &page); err != nil {
			return nil, err
		}
	}

	return playlist, nil
}

// doRequest performs an authenticated GET against an API endpoint path.
func (c *SpotifyClient) doRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	apiURL := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}
	return c.doRequestURL(ctx, apiURL, result)
}

// doRequestURL performs an authenticated GET against an absolute URL, which
// is how Spotify hands out pagination cursors.
func (c *SpotifyClient) doRequestURL(ctx context.Context, apiURL string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: spotify request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: spotify resource %s", ErrNoMatch, apiURL)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: spotify api: %s - %s", ErrUpstream, resp.Status, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: decode spotify response: %v", ErrUpstream, err)
	}

	return nil
}

func convertSpotifyTrack(st spotifyTrack, position int) Track {
	artistName := ""
	if len(st.Artists) > 0 {
		artistName = st.Artists[0].Name
	}

	albumName := ""
	imageURL := ""
	if st.Album != nil {
		albumName = st.Album.Name
		if len(st.Album.Images) > 0 {
			imageURL = st.Album.Images[0].URL
		}
	}

	return Track{
		ExternalID: st.ID,
		Title:      st.Name,
		Artist:     artistName,
		Album:      albumName,
		DurationMS: st.DurationMS,
		ImageURL:   imageURL,
		Position:   position,
	}
}

func spotifyPageParams() url.Values {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(spotifyPageLimit))
	return params
}
