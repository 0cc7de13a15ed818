package github

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modrelay/internal/fetch"
	"modrelay/internal/types"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, args ...any)  {}
func (m *mockLogger) Error(msg string, args ...any) {}
func (m *mockLogger) Warn(msg string, args ...any)  {}
func (m *mockLogger) With(args ...any) types.Logger { return m }

func zipArchive(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, data := range entries {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = entry.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func newArtifactClient(t *testing.T, handler http.Handler) (*ArtifactClient, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := fetch.NewClient("artifact-test", 5*time.Second,
		fetch.Policy{MaxRetries: 1, MinWait: time.Millisecond, MaxWait: 2 * time.Millisecond},
		"modrelay-test/1.0",
		fetch.WithSleeper(func(time.Duration) {}),
		fetch.WithHTTPClient(server.Client()),
	)
	return NewArtifactClient(client, types.SecretString("ghp_token"), server.URL, &mockLogger{}), server.URL
}

func TestFetchRunArtifact_ExtractsJar(t *testing.T) {
	archive := zipArchive(t, map[string][]byte{
		"build/libs/lotrmod-1.7.2.jar": []byte("jar-bytes"),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/artifacts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ghp_token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"artifacts": []map[string]any{
				{"id": 1, "name": "mod-build", "size_in_bytes": 1024,
					"archive_download_url": "http://" + r.Host + "/download/1"},
			},
		})
	})
	mux.HandleFunc("/download/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	})

	client, serverURL := newArtifactClient(t, mux)

	attachment, err := client.FetchRunArtifact(context.Background(), &WorkflowRun{
		ID:           9,
		ArtifactsURL: serverURL + "/artifacts",
	})
	require.NoError(t, err)
	require.NotNil(t, attachment)
	assert.Equal(t, "lotrmod-1.7.2.jar", attachment.Filename)
	assert.Equal(t, []byte("jar-bytes"), attachment.Data)
}

func TestFetchRunArtifact_NoArtifactsIsNotAnError(t *testing.T) {
	client, serverURL := newArtifactClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"artifacts": []any{}})
	}))

	attachment, err := client.FetchRunArtifact(context.Background(), &WorkflowRun{
		ID:           9,
		ArtifactsURL: serverURL + "/artifacts",
	})
	require.NoError(t, err)
	assert.Nil(t, attachment)
}

func TestFetchRunArtifact_SkipsExpiredAndOversized(t *testing.T) {
	client, serverURL := newArtifactClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"artifacts": []map[string]any{
				{"id": 1, "name": "old", "expired": true, "archive_download_url": "http://unused/1"},
				{"id": 2, "name": "huge", "size_in_bytes": 64 << 20, "archive_download_url": "http://unused/2"},
			},
		})
	}))

	attachment, err := client.FetchRunArtifact(context.Background(), &WorkflowRun{
		ID:           9,
		ArtifactsURL: serverURL + "/artifacts",
	})
	require.NoError(t, err)
	assert.Nil(t, attachment)
}

func TestFetchRunArtifact_ListFailureSurfaces(t *testing.T) {
	client, serverURL := newArtifactClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.FetchRunArtifact(context.Background(), &WorkflowRun{
		ID:           9,
		ArtifactsURL: serverURL + "/artifacts",
	})
	assert.Error(t, err)
}

func TestExtractJar_FallsBackToFirstFile(t *testing.T) {
	archive := zipArchive(t, map[string][]byte{
		"output/report.txt": []byte("text"),
	})

	attachment, err := extractJar(archive)
	require.NoError(t, err)
	assert.Equal(t, "report.txt", attachment.Filename)
}

func TestExtractJar_EmptyArchive(t *testing.T) {
	archive := zipArchive(t, map[string][]byte{})

	_, err := extractJar(archive)
	assert.Error(t, err)
}

func TestExtractJar_NotAZip(t *testing.T) {
	_, err := extractJar([]byte("definitely not a zip"))
	assert.Error(t, err)
}
