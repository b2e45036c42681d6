package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueCmd(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/jobs", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	c := enqueueCmd()
	c.SetOut(&out)
	c.SetArgs([]string{"--server", srv.URL, "--name", "send-email", "--type", "email", "--data", `{"to":"a@b.c"}`, "--priority", "high", "--delay", "2s"})
	require.NoError(t, c.Execute())

	assert.Equal(t, "send-email", got["name"])
	assert.Equal(t, "email", got["type"])
	assert.Equal(t, map[string]any{"to": "a@b.c"}, got["data"])
	opts := got["options"].(map[string]any)
	assert.Equal(t, "high", opts["priority"])
	assert.EqualValues(t, 2000, opts["delay_ms"])
	assert.Contains(t, out.String(), `"id": "abc"`)
}

func TestEnqueueCmd_BadData(t *testing.T) {
	c := enqueueCmd()
	c.SetOut(&bytes.Buffer{})
	c.SetErr(&bytes.Buffer{})
	c.SetArgs([]string{"--name", "x", "--data", "{"})
	require.Error(t, c.Execute())
}

func TestStatsCmd_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/queues/reports/stats", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"queue not found"}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	c := statsCmd()
	c.SetOut(&out)
	c.SetErr(&bytes.Buffer{})
	c.SetArgs([]string{"--server", srv.URL, "reports"})
	require.Error(t, c.Execute())
	assert.Contains(t, out.String(), "queue not found")
}
