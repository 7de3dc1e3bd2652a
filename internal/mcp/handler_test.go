package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI records requests and answers the admin API routes
type fakeAPI struct {
	watches map[string][]Subscriber
	paths   []string
}

func newFakeAPI(t *testing.T, api *fakeAPI) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/watches", func(w http.ResponseWriter, r *http.Request) {
		api.paths = append(api.paths, r.URL.EscapedPath())
		list := WatchList{Watches: []Watch{}}
		for key, subs := range api.watches {
			list.Watches = append(list.Watches, Watch{Key: key, Subscribers: subs})
		}
		list.Count = len(list.Watches)
		json.NewEncoder(w).Encode(list)
	})
	mux.HandleFunc("GET /api/watches/{key}", func(w http.ResponseWriter, r *http.Request) {
		api.paths = append(api.paths, r.URL.EscapedPath())
		key := r.PathValue("key")
		json.NewEncoder(w).Encode(Watch{Key: key, Subscribers: api.watches[key]})
	})
	mux.HandleFunc("DELETE /api/watches/{key}/subscribers/{user}", func(w http.ResponseWriter, r *http.Request) {
		api.paths = append(api.paths, r.URL.EscapedPath())
		key, user := r.PathValue("key"), r.PathValue("user")
		removed := 0
		kept := api.watches[key][:0]
		for _, s := range api.watches[key] {
			if s.User == user {
				removed++
				continue
			}
			kept = append(kept, s)
		}
		api.watches[key] = kept
		json.NewEncoder(w).Encode(UnwatchResult{Key: key, User: user, Removed: removed})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandler_ListWatches(t *testing.T) {
	api := &fakeAPI{watches: map[string][]Subscriber{
		"BITBUCKET_PR:web:1": {{User: "U1", Channel: "C1"}},
	}}
	h := NewHandler(NewClient(newFakeAPI(t, api).URL))

	list, err := h.ListWatches(context.Background(), ListWatchesInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)
	require.Len(t, list.Watches, 1)
	assert.Equal(t, "BITBUCKET_PR:web:1", list.Watches[0].Key)
}

func TestHandler_GetWatchersByLink(t *testing.T) {
	api := &fakeAPI{watches: map[string][]Subscriber{
		"BITBUCKET_PR:web:42": {{User: "U1", Channel: "C1"}, {User: "U2", Channel: "C1"}},
	}}
	h := NewHandler(NewClient(newFakeAPI(t, api).URL))

	watch, err := h.GetWatchers(context.Background(), ResourceInput{
		Link: "https://bitbucket.example.com/projects/X/repos/web/pull-requests/42/overview",
	})
	require.NoError(t, err)
	assert.Equal(t, "BITBUCKET_PR:web:42", watch.Key)
	assert.Len(t, watch.Subscribers, 2)
	assert.Equal(t, []string{"/api/watches/BITBUCKET_PR:web:42"}, api.paths)
}

func TestHandler_GetWatchersUnknownKeyIsEmpty(t *testing.T) {
	h := NewHandler(NewClient(newFakeAPI(t, &fakeAPI{}).URL))

	watch, err := h.GetWatchers(context.Background(), ResourceInput{Key: "BITBUCKET_PR:web:9"})
	require.NoError(t, err)
	assert.NotNil(t, watch.Subscribers)
	assert.Empty(t, watch.Subscribers)
}

func TestHandler_RequiresResource(t *testing.T) {
	h := NewHandler(NewClient("http://127.0.0.1:0"))

	_, err := h.GetWatchers(context.Background(), ResourceInput{Link: "no link here"})
	assert.ErrorIs(t, err, ErrNoResource)

	_, err = h.Unwatch(context.Background(), UnwatchInput{User: "U1"})
	assert.ErrorIs(t, err, ErrNoResource)

	_, err = h.Unwatch(context.Background(), UnwatchInput{Key: "BITBUCKET_PR:web:1"})
	assert.Error(t, err)
}

func TestHandler_Unwatch(t *testing.T) {
	api := &fakeAPI{watches: map[string][]Subscriber{
		"BITBUCKET_PR:web:1": {{User: "U1", Channel: "C1"}, {User: "U2", Channel: "C1"}, {User: "U1", Channel: "C2"}},
	}}
	h := NewHandler(NewClient(newFakeAPI(t, api).URL))

	result, err := h.Unwatch(context.Background(), UnwatchInput{Key: "BITBUCKET_PR:web:1", User: "U1"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Removed)
	assert.Equal(t, []Subscriber{{User: "U2", Channel: "C1"}}, api.watches["BITBUCKET_PR:web:1"])
}

func TestClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ListWatches(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
	assert.Contains(t, err.Error(), "boom")
}

func TestServer_ToolsOverInMemoryTransport(t *testing.T) {
	api := &fakeAPI{watches: map[string][]Subscriber{
		"BITBUCKET_PR:web:1": {{User: "U1", Channel: "C1"}},
	}}
	server := NewServer(NewHandler(NewClient(newFakeAPI(t, api).URL)), "test")

	ctx := context.Background()
	serverTransport, clientTransport := sdk.NewInMemoryTransports()
	serverSession, err := server.GetServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{ToolListWatches, ToolGetWatchers, ToolUnwatch}, names)

	res, err := session.CallTool(ctx, &sdk.CallToolParams{
		Name:      ToolUnwatch,
		Arguments: map[string]any{"key": "BITBUCKET_PR:web:1", "user": "U1"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Empty(t, api.watches["BITBUCKET_PR:web:1"])

	res, err = session.CallTool(ctx, &sdk.CallToolParams{
		Name:      ToolGetWatchers,
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
