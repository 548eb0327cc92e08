package playlists

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bandpractice/internal/app/collections"
	"bandpractice/internal/app/lyrics"
	"bandpractice/internal/musicapi"
	"bandpractice/internal/store"
)

type fakeStore struct {
	importedTracks   []store.PlaylistTrack
	importedPlaylist store.LinkedPlaylist
	importResult     *store.ImportResult
	unlinkResult     *store.UnlinkResult
	remembered       []store.LinkedPlaylist
	forgotten        string
}

func (f *fakeStore) ImportPlaylistSongs(ctx context.Context, collectionID string, importedBy int64, playlist store.LinkedPlaylist, tracks []store.PlaylistTrack) (*store.ImportResult, error) {
	f.importedPlaylist = playlist
	f.importedTracks = tracks
	return f.importResult, nil
}

func (f *fakeStore) UnlinkPlaylist(ctx context.Context, collectionID, playlistID string) (*store.UnlinkResult, error) {
	if f.unlinkResult == nil {
		return nil, store.ErrPlaylistNotLinked
	}
	return f.unlinkResult, nil
}

func (f *fakeStore) RememberPlaylist(ctx context.Context, userID int64, playlist store.LinkedPlaylist) error {
	f.remembered = append(f.remembered, playlist)
	return nil
}

func (f *fakeStore) ListRememberedPlaylists(ctx context.Context, userID int64) ([]*store.RememberedPlaylist, error) {
	return nil, nil
}

func (f *fakeStore) ForgetPlaylist(ctx context.Context, userID int64, playlistID string) error {
	f.forgotten = playlistID
	return nil
}

type fakeAuthorizer struct {
	err     error
	lastMin collections.AccessLevel
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, id string, userID int64, min collections.AccessLevel) (*store.Collection, error) {
	f.lastMin = min
	if f.err != nil {
		return nil, f.err
	}
	return &store.Collection{ID: id, OwnerID: userID}, nil
}

type fakePlaylistProvider struct {
	playlist *musicapi.Playlist
	err      error
	lastID   string
	calls    int
}

func (f *fakePlaylistProvider) GetPlaylist(ctx context.Context, playlistID string) (*musicapi.Playlist, error) {
	f.calls++
	f.lastID = playlistID
	if f.err != nil {
		return nil, f.err
	}
	return f.playlist, nil
}

type fakeSweeper struct {
	swept chan string
}

func (f *fakeSweeper) Sweep(ctx context.Context, collectionID string) (*lyrics.SweepResult, error) {
	f.swept <- collectionID
	return &lyrics.SweepResult{}, nil
}

func TestExtractPlaylistID(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"bare id", "37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M", false},
		{"uri", "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M", false},
		{"share url", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc123", "37i9dQZF1DXcBWIGoYBM5M", false},
		{"url without query", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M", false},
		{"surrounding whitespace", "  37i9dQZF1DXcBWIGoYBM5M  ", "37i9dQZF1DXcBWIGoYBM5M", false},
		{"empty", "", "", true},
		{"blank", "   ", "", true},
		{"track uri", "spotify:track:4uLU6hMCjMI75M1A2tKUQC", "", true},
		{"garbage", "not a playlist!", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractPlaylistID(tc.raw)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrBadPlaylistRef)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestImportUpsertsTracksAndSweeps(t *testing.T) {
	s := &fakeStore{importResult: &store.ImportResult{Created: 2, Updated: 1, SongCount: 3}}
	provider := &fakePlaylistProvider{playlist: &musicapi.Playlist{
		ID:         "pl-1",
		Name:       "Warmup Standards",
		OwnerName:  "Demo Band",
		TrackCount: 2,
		Tracks: []musicapi.Track{
			{ExternalID: "trackA", Title: "Song A", Artist: "Artist A", Position: 0},
			{ExternalID: "trackB", Title: "Song B", Artist: "Artist B", Position: 1},
		},
	}}
	auth := &fakeAuthorizer{}
	sweeper := &fakeSweeper{swept: make(chan string, 1)}

	svc := New(s, auth, provider, sweeper)

	summary, err := svc.Import(context.Background(), "col-1", 7, "spotify:playlist:pl1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SongsCreated)
	assert.Equal(t, 1, summary.SongsUpdated)
	assert.Equal(t, 3, summary.SongCount)
	assert.Equal(t, "pl-1", summary.Playlist.PlaylistID)
	assert.Equal(t, collections.AccessOwner, auth.lastMin)

	require.Len(t, s.remembered, 1, "an import lands in the user's history")
	assert.Equal(t, "Warmup Standards", s.remembered[0].Name)
	require.Len(t, s.importedTracks, 2)
	assert.Equal(t, "trackA", s.importedTracks[0].ExternalID)

	select {
	case collectionID := <-sweeper.swept:
		assert.Equal(t, "col-1", collectionID)
	case <-time.After(time.Second):
		t.Fatal("expected a background lyric sweep after the import")
	}
}

func TestImportRejectsBadReference(t *testing.T) {
	provider := &fakePlaylistProvider{}
	svc := New(&fakeStore{}, &fakeAuthorizer{}, provider, nil)

	_, err := svc.Import(context.Background(), "col-1", 7, "not a playlist!")
	assert.ErrorIs(t, err, ErrBadPlaylistRef)
	assert.Zero(t, provider.calls, "a bad reference must not reach the provider")
}

func TestImportRequiresOwner(t *testing.T) {
	svc := New(&fakeStore{}, &fakeAuthorizer{err: store.ErrForbidden}, &fakePlaylistProvider{}, nil)

	_, err := svc.Import(context.Background(), "col-1", 9, "pl1")
	assert.ErrorIs(t, err, store.ErrForbidden)
}

func TestUnlinkMapsResult(t *testing.T) {
	s := &fakeStore{unlinkResult: &store.UnlinkResult{Deleted: 2, Updated: 3, Remaining: 5}}
	svc := New(s, &fakeAuthorizer{}, &fakePlaylistProvider{}, nil)

	summary, err := svc.Unlink(context.Background(), "col-1", "pl-1", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.SongsDeleted)
	assert.Equal(t, 3, summary.SongsUpdated)
	assert.Equal(t, 5, summary.RemainingSongs)
}

func TestUnlinkNotLinked(t *testing.T) {
	svc := New(&fakeStore{}, &fakeAuthorizer{}, &fakePlaylistProvider{}, nil)

	_, err := svc.Unlink(context.Background(), "col-1", "pl-9", 7)
	assert.ErrorIs(t, err, store.ErrPlaylistNotLinked)
}

func TestPreviewDoesNotWrite(t *testing.T) {
	s := &fakeStore{}
	provider := &fakePlaylistProvider{playlist: &musicapi.Playlist{ID: "pl-1", Name: "Warmup Standards"}}
	svc := New(s, &fakeAuthorizer{}, provider, nil)

	playlist, err := svc.Preview(context.Background(), 7, "https://open.spotify.com/playlist/pl1")
	require.NoError(t, err)
	assert.Equal(t, "pl-1", playlist.ID)
	assert.Equal(t, "pl1", provider.lastID)
	assert.Empty(t, s.remembered, "a preview leaves no trace")
}

func TestForget(t *testing.T) {
	s := &fakeStore{}
	svc := New(s, &fakeAuthorizer{}, &fakePlaylistProvider{}, nil)

	require.NoError(t, svc.Forget(context.Background(), 7, "pl-1"))
	assert.Equal(t, "pl-1", s.forgotten)
}
