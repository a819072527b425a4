package share_fetch

import (
	"context"
	"net/http"

	"github.com/alanbriolat/share-fetch/generic"
)

type Source interface {
	// Link returns the classified link the Source was matched from.
	Link() SourceLink
	// Resolve should negotiate with the service to get a ResolvedTarget that can be downloaded directly. The client
	// is shared by the resolve and download stages, so cookies set while resolving are sent when downloading.
	Resolve(ctx context.Context, client *http.Client) (*ResolvedTarget, error)
}

// A ResolvedTarget is the final, directly fetchable URL for a Source. It is consumed exactly once by a Downloader.
type ResolvedTarget struct {
	URL string
	// Filename suggested by the service, if known.
	Filename generic.Option[string]

	response *http.Response
}

func NewResolvedTarget(url string) *ResolvedTarget {
	return &ResolvedTarget{URL: url}
}

// WithFilename sets the suggested filename, ignoring empty names.
func (t *ResolvedTarget) WithFilename(name string) *ResolvedTarget {
	if name != "" {
		t.Filename = generic.Some(name)
	}
	return t
}

// WithResponse attaches an already-open response for URL, which the Downloader streams instead of issuing another
// request. Ownership of resp.Body passes to the ResolvedTarget.
func (t *ResolvedTarget) WithResponse(resp *http.Response) *ResolvedTarget {
	t.response = resp
	return t
}

// HasResponse returns true if an open response is attached and not yet consumed.
func (t *ResolvedTarget) HasResponse() bool {
	return t.response != nil
}

// Close releases an attached response that was never consumed.
func (t *ResolvedTarget) Close() error {
	if resp := t.takeResponse(); resp != nil {
		return resp.Body.Close()
	}
	return nil
}

func (t *ResolvedTarget) takeResponse() *http.Response {
	resp := t.response
	t.response = nil
	return resp
}
