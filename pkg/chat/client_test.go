// ABOUTME: Tests for the chat client
// ABOUTME: Uses an httptest server standing in for the chat backend
package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "I had a long day", req.Message)
		assert.Equal(t, "sad", req.Emotion)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{Response: "I'm sorry to hear that."})
	}))
	defer srv.Close()

	reply, err := NewClient(Config{BaseURL: srv.URL}).Reply(context.Background(), "I had a long day", "sad")
	require.NoError(t, err)
	assert.Equal(t, "I'm sorry to hear that.", reply)
}

func TestReplyValidation(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"})

	_, err := c.Reply(context.Background(), " ", "happy")
	assert.ErrorIs(t, err, ErrNoMessage)

	_, err = c.Reply(context.Background(), "hello", "")
	assert.ErrorIs(t, err, ErrNoEmotion)
}

func TestReplyBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Error occurred: quota", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Reply(context.Background(), "hello", "neutral")

	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusInternalServerError, serr.StatusCode)
	assert.Equal(t, "Error occurred: quota", serr.Body)
}

func TestReplyMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Reply(context.Background(), "hello", "neutral")
	assert.ErrorContains(t, err, "decode response")
}
