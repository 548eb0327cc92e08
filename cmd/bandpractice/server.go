package main

import (
	"net/http"

	"bandpractice/internal/app/collections"
	"bandpractice/internal/app/lyrics"
	"bandpractice/internal/app/playlists"
	"bandpractice/internal/app/songs"
	"bandpractice/internal/app/users"
	"bandpractice/internal/auth"
	"bandpractice/internal/http/middleware"
	"bandpractice/internal/httpapi"
	"bandpractice/internal/musicapi"
	"bandpractice/internal/store"
)

func newHTTPHandler(cfg Config, dataStore *store.Store) http.Handler {
	tokens := auth.NewTokenManager(cfg.JWTSecret)

	spotify := musicapi.NewSpotifyClient(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
	genius := musicapi.NewGeniusClient(cfg.GeniusAccessToken, cfg.GeniusLyricsURL)
	tempo := musicapi.NewGetSongBPMClient(cfg.GetSongBPMAPIKey)

	userSvc := users.New(dataStore, tokens)
	collectionSvc := collections.New(dataStore)
	lyricSvc := lyrics.New(dataStore, collectionSvc, genius, cfg.LyricFetchRPS, cfg.LyricFetchWorkers)
	songSvc := songs.New(dataStore, collectionSvc, tempo)
	playlistSvc := playlists.New(dataStore, collectionSvc, spotify, lyricSvc)

	routes := httpapi.New(userSvc, collectionSvc, songSvc, playlistSvc, lyricSvc).Routes()

	handler := middleware.Auth(tokens,
		"/api/v1/health",
		"/api/v1/auth/signup",
		"/api/v1/auth/login",
	)(routes)
	handler = middleware.CORS(cfg.AllowedOrigins)(handler)
	handler = middleware.RequestLogging()(handler)
	handler = middleware.Recovery()(handler)

	return handler
}
