package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/shrubbery/internal/api"
	"github.com/mcoot/shrubbery/internal/api/apierr"
	"github.com/mcoot/shrubbery/internal/api/response"
	"github.com/mcoot/shrubbery/internal/factory"
	"github.com/mcoot/shrubbery/internal/metrics"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	m := metrics.NewManager()

	// API tests are integration tests - use the production factory with the real clock
	app, err := factory.New(t.Context(), factory.Config{Logger: logger, Metrics: m, MaxVotePoints: 5})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Logger:        logger,
		PlayerService: app.PlayerService,
		ShrubService:  app.ShrubService,
		Store:         app.Storage,
		Metrics:       m,
	})

	return &testServer{handler: router}
}

func (ts *testServer) request(method, path string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (ts *testServer) createPlayer(t *testing.T, name string) response.Player {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/players", map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[response.Player](t, rr)
}

func (ts *testServer) createShrub(t *testing.T, shrubberID, original, transformed string) response.Shrub {
	t.Helper()
	rr := ts.request(http.MethodPost, "/api/v1/shrubs", map[string]any{
		"shrubber_id":      shrubberID,
		"original_word":    original,
		"transformed_word": transformed,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[response.Shrub](t, rr)
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[apierr.ErrorResponse](t, rr).Error.Code
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthCheckReportsStorageDown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	app, err := factory.New(t.Context(), factory.Config{})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Logger:        logger,
		PlayerService: app.PlayerService,
		ShrubService:  app.ShrubService,
		Store:         downStore{},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	// metrics are off without a manager
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreatePlayer(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/players", map[string]string{"name": "alice", "email": "alice@example.com"})
	require.Equal(t, http.StatusCreated, rr.Code)

	p := decodeBody[response.Player](t, rr)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "alice", p.Name)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Empty(t, p.Shrubs)
}

func TestCreatePlayerValidation(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []map[string]string{
		{},
		{"name": "a"},
		{"name": "this-name-is-far-too-long-to-be-accepted"},
		{"name": "alice", "email": "not-an-email"},
	} {
		rr := ts.request(http.MethodPost, "/api/v1/players", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr))
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/players", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreatePlayerDuplicateName(t *testing.T) {
	ts := newTestServer(t)
	ts.createPlayer(t, "alice")

	rr := ts.request(http.MethodPost, "/api/v1/players", map[string]string{"name": "alice"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeNameTaken, errorCode(t, rr))
}

func TestPlayerLookups(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.createPlayer(t, "alice")
	ts.createPlayer(t, "bob")

	rr := ts.request(http.MethodGet, "/api/v1/players/"+alice.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice", decodeBody[response.Player](t, rr).Name)

	rr = ts.request(http.MethodGet, "/api/v1/players/name/bob", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "bob", decodeBody[response.Player](t, rr).Name)

	rr = ts.request(http.MethodGet, "/api/v1/players", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]response.Player](t, rr), 2)

	rr = ts.request(http.MethodGet, "/api/v1/players/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodePlayerNotFound, errorCode(t, rr))

	rr = ts.request(http.MethodGet, "/api/v1/players/name/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateShrub(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.createPlayer(t, "alice")

	sh := ts.createShrub(t, alice.ID, "cat", "hat")
	assert.Equal(t, "alice", sh.ShrubberName)
	assert.Equal(t, alice.ID, sh.CreatedByID)
	assert.Len(t, sh.Votes, 1)
	require.Len(t, sh.ResolvedVotes, 1)
	assert.Equal(t, alice.ID, sh.ResolvedVotes[0].VoterID)
	assert.Equal(t, 1, sh.ResolvedVotes[0].Points)

	rr := ts.request(http.MethodGet, "/api/v1/players/"+alice.ID, nil)
	assert.Equal(t, []string{sh.ID}, decodeBody[response.Player](t, rr).Shrubs)
}

func TestCreateShrubErrors(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.createPlayer(t, "alice")

	rr := ts.request(http.MethodPost, "/api/v1/shrubs", map[string]any{
		"shrubber_id": "ghost", "original_word": "cat", "transformed_word": "hat",
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodePlayerNotFound, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/shrubs", map[string]any{
		"shrubber_id": alice.ID, "original_word": "", "transformed_word": "hat",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/shrubs", map[string]any{
		"shrubber_id": alice.ID, "original_word": "cat", "transformed_word": "hat", "points": 50,
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody[apierr.ErrorResponse](t, rr)
	assert.Equal(t, apierr.CodeInvalidPoints, body.Error.Code)
	assert.Equal(t, "Vote points must be between 1 and 5", body.Error.Message)

	rr = ts.request(http.MethodGet, "/api/v1/shrubs", nil)
	assert.Empty(t, decodeBody[[]response.Shrub](t, rr))
}

func TestVotingFlow(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.createPlayer(t, "alice")
	bob := ts.createPlayer(t, "bob")
	sh := ts.createShrub(t, alice.ID, "cat", "hat")

	vote := map[string]any{"shrub_id": sh.ID, "voter_id": bob.ID, "points": 3}

	rr := ts.request(http.MethodPost, "/api/v1/shrubs/vote", vote)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, 3, decodeBody[response.Vote](t, rr).Points)

	rr = ts.request(http.MethodGet, "/api/v1/shrubs/leaderboard", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	board := decodeBody[[]response.ShrubStanding](t, rr)
	require.Len(t, board, 1)
	assert.Equal(t, 4, board[0].TotalPoints)
	assert.Equal(t, 2, board[0].UniqueVoterCount)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "alice", board[0].OwnerName)

	rr = ts.request(http.MethodPost, "/api/v1/shrubs/vote", vote)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeAlreadyVoted, errorCode(t, rr))

	rr = ts.request(http.MethodDelete, "/api/v1/shrubs/vote", vote)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodDelete, "/api/v1/shrubs/vote", vote)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeVoteNotFound, errorCode(t, rr))

	rr = ts.request(http.MethodGet, "/api/v1/shrubs/leaderboard?limit=5", nil)
	board = decodeBody[[]response.ShrubStanding](t, rr)
	require.Len(t, board, 1)
	assert.Equal(t, 1, board[0].TotalPoints)
	assert.Equal(t, 1, board[0].UniqueVoterCount)
}

func TestVoteErrors(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.createPlayer(t, "alice")
	sh := ts.createShrub(t, alice.ID, "cat", "hat")

	rr := ts.request(http.MethodPost, "/api/v1/shrubs/vote", map[string]any{"shrub_id": "missing", "voter_id": alice.ID})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeShrubNotFound, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/shrubs/vote", map[string]any{"shrub_id": sh.ID, "voter_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodePlayerNotFound, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/shrubs/vote", map[string]any{"shrub_id": sh.ID})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestShrubReads(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.createPlayer(t, "alice")
	bob := ts.createPlayer(t, "bob")
	first := ts.createShrub(t, alice.ID, "cat", "hat")
	ts.createShrub(t, bob.ID, "dog", "log")

	rr := ts.request(http.MethodGet, "/api/v1/shrubs/"+first.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decodeBody[response.Shrub](t, rr)
	assert.Equal(t, "hat", got.TransformedWord)
	assert.Len(t, got.ResolvedVotes, 1)

	rr = ts.request(http.MethodGet, "/api/v1/shrubs/player/"+alice.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	mine := decodeBody[[]response.Shrub](t, rr)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	rr = ts.request(http.MethodGet, "/api/v1/shrubs", nil)
	assert.Len(t, decodeBody[[]response.Shrub](t, rr), 2)

	rr = ts.request(http.MethodGet, "/api/v1/shrubs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.request(http.MethodGet, "/api/v1/shrubs/player/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestShrubLeaderboardLimitValidation(t *testing.T) {
	ts := newTestServer(t)

	for _, q := range []string{"0", "-3", "ten"} {
		rr := ts.request(http.MethodGet, "/api/v1/shrubs/leaderboard?limit="+q, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestPlayerLeaderboard(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.createPlayer(t, "alice")
	bob := ts.createPlayer(t, "bob")
	ts.createShrub(t, alice.ID, "cat", "hat")
	ts.createShrub(t, bob.ID, "dog", "log")

	rr := ts.request(http.MethodGet, "/api/v1/players/leaderboard", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	board := decodeBody[[]response.PlayerStanding](t, rr)
	require.Len(t, board, 2)

	// equal points: row numbers still differ, name breaks the tie
	assert.Equal(t, "alice", board[0].Name)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "hat", board[0].LatestShrub)
	assert.Equal(t, "bob", board[1].Name)
	assert.Equal(t, 2, board[1].Rank)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/lobbies", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeNotFound, errorCode(t, rr))
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodOptions, "/api/v1/shrubs/vote", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.createPlayer(t, "alice")

	rr := ts.request(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "shrubbery_players_created_total 1")
	assert.Contains(t, rr.Body.String(), `route="/api/v1/players"`)
}

func TestServerServeAndShutdown(t *testing.T) {
	ts := newTestServer(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := api.NewServer(ts.handler, api.DefaultServerConfig(), logger)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/v1/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, server.Shutdown(context.Background()))
	assert.NoError(t, <-errCh)
}
