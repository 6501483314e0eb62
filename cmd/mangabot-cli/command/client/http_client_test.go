package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tyburd/mangabot/internal/api"
)

func TestHTTPClient_SendsTokenAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/subscriptions":
			assert.Equal(t, "42", r.URL.Query().Get("chat_id"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"subscriptions": []api.SubscriptionResponse{{URL: "u", ChatID: "42", OutputFormat: "PDF"}},
			})
		case "/api/clients/Comick-en/search":
			assert.Equal(t, "one piece", r.URL.Query().Get("q"))
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			_ = json.NewEncoder(w).Encode(map[string]any{"results": []api.CardResponse{{Name: "One Piece"}}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL + "/")
	c.SetToken("tok")

	subs, err := c.Subscriptions("42")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "u", subs[0].URL)

	cards, err := c.Search("Comick-en", "one piece", 2)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "One Piece", cards[0].Name)
}

func TestHTTPClient_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/subscriptions":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"subscription already exists"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)

	_, err := c.Subscribe(api.SubscribeRequest{URL: "u", ChatID: "1"})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusConflict))
	assert.Contains(t, err.Error(), "subscription already exists")

	_, err = c.Poll()
	assert.True(t, IsStatus(err, http.StatusBadGateway))
	assert.Contains(t, err.Error(), "Bad Gateway")
}
