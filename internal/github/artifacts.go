package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/zip"

	"modrelay/internal/discord"
	"modrelay/internal/fetch"
	"modrelay/internal/types"
)

// maxArtifactBytes bounds the downloaded archive. Discord rejects webhook
// uploads above 10 MiB, so anything larger is not worth pulling.
const maxArtifactBytes = 10 << 20

// ArtifactClient pulls the built mod jar out of a completed workflow run so
// it can be attached to the build announcement. Both API calls go through
// the shared resilient client.
type ArtifactClient struct {
	client  *fetch.Client
	token   types.SecretString
	baseURL string
	logger  types.Logger
}

// NewArtifactClient creates an ArtifactClient. baseURL is the API root
// (https://api.github.com outside of tests).
func NewArtifactClient(client *fetch.Client, token types.SecretString, baseURL string, logger types.Logger) *ArtifactClient {
	return &ArtifactClient{
		client:  client,
		token:   token,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

type artifactList struct {
	Artifacts []artifact `json:"artifacts"`
}

type artifact struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Expired            bool   `json:"expired"`
	SizeInBytes        int64  `json:"size_in_bytes"`
	ArchiveDownloadURL string `json:"archive_download_url"`
}

// FetchRunArtifact lists the run's artifacts, downloads the first usable one
// and extracts the jar inside. (nil, nil) means the run has no usable
// artifact; callers deliver the message without an attachment in that case
// and on error.
func (c *ArtifactClient) FetchRunArtifact(ctx context.Context, run *WorkflowRun) (*discord.Attachment, error) {
	listURL := run.ArtifactsURL
	if listURL == "" {
		listURL = fmt.Sprintf("%s/repos/actions/runs/%d/artifacts", c.baseURL, run.ID)
	}

	body, err := c.get(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts for run %d: %w", run.ID, err)
	}

	var list artifactList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decoding artifact list for run %d: %w", run.ID, err)
	}

	chosen := pickArtifact(list.Artifacts)
	if chosen == nil {
		c.logger.Info("workflow run has no usable artifact", "run_id", run.ID)
		return nil, nil
	}

	archive, err := c.get(ctx, chosen.ArchiveDownloadURL)
	if err != nil {
		return nil, fmt.Errorf("downloading artifact %q: %w", chosen.Name, err)
	}

	attachment, err := extractJar(archive)
	if err != nil {
		return nil, fmt.Errorf("extracting artifact %q: %w", chosen.Name, err)
	}
	return attachment, nil
}

// get issues an authorized GET through the resilient client and reads the
// bounded body. GitHub serves artifact archives via a redirect to blob
// storage; the default http.Client follows it and strips the auth header
// across hosts, which is the behavior we want.
func (c *ArtifactClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.token.Unmask() != "" {
		req.Header.Set("Authorization", "Bearer "+c.token.Unmask())
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewAppError(types.ErrCodeUpstreamSource,
			fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, url), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxArtifactBytes {
		return nil, types.NewAppError(types.ErrCodeUpstreamSource,
			"artifact exceeds attachment size limit", nil)
	}
	return body, nil
}

// pickArtifact prefers a non-expired artifact small enough to attach.
func pickArtifact(artifacts []artifact) *artifact {
	for i := range artifacts {
		a := &artifacts[i]
		if a.Expired || a.SizeInBytes > maxArtifactBytes {
			continue
		}
		return a
	}
	return nil
}

// extractJar opens the artifact zip and returns the first .jar entry, or the
// first regular file when no jar is present.
func extractJar(archive []byte) (*discord.Attachment, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, err
	}

	var fallback *zip.File
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		if strings.HasSuffix(file.Name, ".jar") {
			return readZipEntry(file)
		}
		if fallback == nil {
			fallback = file
		}
	}
	if fallback != nil {
		return readZipEntry(fallback)
	}
	return nil, fmt.Errorf("artifact archive is empty")
}

func readZipEntry(file *zip.File) (*discord.Attachment, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxArtifactBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxArtifactBytes {
		return nil, fmt.Errorf("artifact entry %s exceeds attachment size limit", file.Name)
	}

	name := file.Name
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	return &discord.Attachment{Filename: name, Data: data}, nil
}
