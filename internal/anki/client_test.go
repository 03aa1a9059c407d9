package anki

import (
	"context"
	"encoding/json/v2"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dipoleapp/dipole-server/internal/config"
)

type recordedRequest struct {
	Action  string          `json:"action"`
	Version int             `json:"version"`
	Params  map[string]any  `json:"params"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	client := New(config.AnkiConfig{URL: server.URL, RequestsPerSecond: 1000}, logger)
	return client, server
}

func decodeRequest(t *testing.T, r *http.Request) recordedRequest {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var req recordedRequest
	require.NoError(t, json.Unmarshal(body, &req))
	return req
}

func TestClient_Probe(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Equal(t, "version", req.Action)
		assert.Equal(t, 6, req.Version)
		w.Write([]byte(`{"result": 6, "error": null}`))
	})

	version, err := client.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, version)
}

func TestClient_Probe_Unreachable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	// A closed server gives us a port nothing listens on.
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := New(config.AnkiConfig{URL: url, RequestsPerSecond: 1000}, logger)
	_, err := client.Probe(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	var transport *TransportError
	assert.ErrorAs(t, err, &transport)
}

func TestClient_ResponseContract(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantErr  any
	}{
		{
			name:    "missing error field",
			body:    `{"result": 6}`,
			wantErr: &ProtocolError{},
		},
		{
			name:    "missing result field",
			body:    `{"error": null}`,
			wantErr: &ProtocolError{},
		},
		{
			name:    "extra field",
			body:    `{"result": 6, "error": null, "extra": true}`,
			wantErr: &ProtocolError{},
		},
		{
			name:    "not json",
			body:    `<html>not anki</html>`,
			wantErr: &ProtocolError{},
		},
		{
			name:    "remote error",
			body:    `{"result": null, "error": "collection is not available"}`,
			wantErr: &RemoteError{},
		},
		{
			name: "well formed",
			body: `{"result": 6, "error": null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			_, err := client.Probe(context.Background())

			switch want := tt.wantErr.(type) {
			case nil:
				assert.NoError(t, err)
			case *ProtocolError:
				assert.ErrorAs(t, err, &want)
			case *RemoteError:
				assert.ErrorAs(t, err, &want)
				assert.Equal(t, "collection is not available", want.Message)
			}
		})
	}
}

func TestClient_NotesInfo(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Equal(t, "notesInfo", req.Action)
		assert.Equal(t, []any{float64(1714500000000), nil}, req.Params["notes"])
		w.Write([]byte(`{
			"result": [
				{"noteId": 1714500000000, "modelName": "Cloze", "tags": ["vocab"],
				 "fields": {"Text": {"value": "{{c1::whale}}", "order": 0}}},
				{}
			],
			"error": null
		}`))
	})

	infos, err := client.NotesInfo(context.Background(), []int64{1714500000000, 0})
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.False(t, infos[0].Missing())
	assert.Equal(t, int64(1714500000000), infos[0].NoteID)
	assert.Equal(t, "{{c1::whale}}", infos[0].Fields["Text"].Value)

	assert.True(t, infos[1].Missing())
}

func TestClient_NotesInfo_LengthMismatch(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": [{}], "error": null}`))
	})

	_, err := client.NotesInfo(context.Background(), []int64{1, 2})
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "notesInfo", protoErr.Op)
}

func TestClient_AddNote(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Equal(t, "addNote", req.Action)

		note, ok := req.Params["note"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Polar", note["deckName"])
		assert.Equal(t, "Cloze", note["modelName"])
		assert.Equal(t, map[string]any{"Text": "{{c1::whale}}"}, note["fields"])
		assert.Equal(t, map[string]any{"allowDuplicate": false}, note["options"])
		assert.Equal(t, []any{"vocab", "moby_dick"}, note["tags"])

		w.Write([]byte(`{"result": 1714500000001, "error": null}`))
	})

	noteID, err := client.AddNote(context.Background(), NewNote{
		DeckName:  "Polar",
		ModelName: "Cloze",
		Front:     "{{c1::whale}}",
		Tags:      []string{"vocab", "moby_dick"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1714500000001), noteID)
}

func TestClient_AddNote_NilTagsSentAsEmptyArray(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		note := req.Params["note"].(map[string]any)
		assert.Equal(t, []any{}, note["tags"])
		w.Write([]byte(`{"result": 1, "error": null}`))
	})

	_, err := client.AddNote(context.Background(), NewNote{
		DeckName:  "Polar",
		ModelName: "Cloze",
		Front:     "{{c1::whale}}",
	})
	require.NoError(t, err)
}

func TestClient_AddNote_RemoteError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result": null, "error": "cannot create note because it is a duplicate"}`))
	})

	_, err := client.AddNote(context.Background(), NewNote{DeckName: "Polar", ModelName: "Cloze", Front: "x"})
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "cannot create note because it is a duplicate", remoteErr.Message)
}

func TestClient_UpdateNoteFields(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Equal(t, "updateNoteFields", req.Action)

		note := req.Params["note"].(map[string]any)
		assert.Equal(t, float64(1714500000001), note["id"])
		assert.Equal(t, map[string]any{"Text": "{{c1::revised}}"}, note["fields"])

		w.Write([]byte(`{"result": null, "error": null}`))
	})

	err := client.UpdateNoteFields(context.Background(), 1714500000001, "{{c1::revised}}")
	require.NoError(t, err)
}

func TestClient_UpdateNoteFields_RequiresNoteID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent")
	})

	err := client.UpdateNoteFields(context.Background(), 0, "x")
	assert.ErrorIs(t, err, ErrMissingNoteID)
}
