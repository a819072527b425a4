package wetransfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"go.uber.org/zap"

	"github.com/alanbriolat/share-fetch"
	"github.com/alanbriolat/share-fetch/internal/httpclient"
	"github.com/alanbriolat/share-fetch/util"
)

const (
	ProviderName     = "wetransfer"
	APIBase          = "https://wetransfer.com/api/v4"
	FallbackFilename = "wetransfer_download"
)

var (
	downloadsPathRe = regexp.MustCompile(`/downloads/([^/?#]+)/([^/?#]+)(?:/([^/?#]+))?`)
	tokenRe         = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
)

// Transfer identifies a transfer and authorizes access to it.
type Transfer struct {
	ID           string
	RecipientID  string
	SecurityHash string
}

// ExtractTransfer gets the transfer tokens from a full transfer URL.
//
// Allowed URL paths:
//
//	/downloads/{TRANSFER_ID}/{SECURITY_HASH}
//	/downloads/{TRANSFER_ID}/{RECIPIENT_ID}/{SECURITY_HASH}
func ExtractTransfer(u *url.URL) (Transfer, error) {
	if u == nil {
		return Transfer{}, fmt.Errorf("missing URL")
	}
	m := downloadsPathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return Transfer{}, fmt.Errorf("no transfer id and security hash in %q", u.Path)
	}
	t := Transfer{ID: m[1], SecurityHash: m[2]}
	if m[3] != "" {
		t.RecipientID, t.SecurityHash = m[2], m[3]
	}
	for _, token := range []string{t.ID, t.RecipientID, t.SecurityHash} {
		if token != "" && !tokenRe.MatchString(token) {
			return Transfer{}, fmt.Errorf("invalid transfer token %q", token)
		}
	}
	return t, nil
}

type source struct {
	link share_fetch.SourceLink
}

func (s *source) Link() share_fetch.SourceLink {
	return s.link
}

func (s *source) String() string {
	return s.link.Raw
}

func (s *source) Resolve(ctx context.Context, client *http.Client) (*share_fetch.ResolvedTarget, error) {
	log := zap.S().Named(ProviderName).With("url", s.link.Raw)

	canonical := s.link.URL
	if s.link.Kind == share_fetch.WeTransferShort {
		expanded, err := s.expand(ctx, client)
		if err != nil {
			return nil, err
		}
		log.Debugf("expanded short link to %s", expanded)
		canonical = expanded
	}

	transfer, err := ExtractTransfer(canonical)
	if err != nil {
		return nil, share_fetch.NewError(share_fetch.MalformedLink, "resolve", s.link.Raw, err)
	}

	directLink, err := s.requestDownload(ctx, client, transfer)
	if err != nil {
		return nil, err
	}
	log.Debugw("got direct link", "transfer_id", transfer.ID)

	filename := ""
	if name, err := util.FilenameFromURLString(directLink); err == nil {
		filename = util.SanitizeFilename(name)
	}
	if filename == "" {
		filename = FallbackFilename
	}
	return share_fetch.NewResolvedTarget(directLink).WithFilename(filename), nil
}

// expand follows the short link's redirects to find the full transfer URL.
func (s *source) expand(ctx context.Context, client *http.Client) (*url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.link.Raw, nil)
	if err != nil {
		return nil, share_fetch.NewError(share_fetch.MalformedLink, "resolve", s.link.Raw, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, share_fetch.NewError(share_fetch.NetworkFailure, "resolve", s.link.Raw, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, share_fetch.Errorf(share_fetch.HttpError, "resolve", s.link.Raw, "short link returned %s", resp.Status)
	}
	return resp.Request.URL, nil
}

type downloadRequest struct {
	SecurityHash string `json:"security_hash"`
	RecipientID  string `json:"recipient_id,omitempty"`
	Intent       string `json:"intent"`
}

type downloadResponse struct {
	DirectLink string `json:"direct_link"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

func (r *downloadResponse) reason() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Error
}

func (s *source) requestDownload(ctx context.Context, client *http.Client, transfer Transfer) (string, error) {
	fail := func(kind share_fetch.ErrorKind, format string, args ...interface{}) (string, error) {
		return "", share_fetch.Errorf(kind, "resolve", s.link.Raw, format, args...)
	}

	body, err := json.Marshal(downloadRequest{
		SecurityHash: transfer.SecurityHash,
		RecipientID:  transfer.RecipientID,
		Intent:       "entire_transfer",
	})
	if err != nil {
		return fail(share_fetch.ApiRejected, "failed to encode request: %v", err)
	}
	endpoint := fmt.Sprintf("%s/transfers/%s/download", APIBase, url.PathEscape(transfer.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fail(share_fetch.ApiRejected, "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	httpclient.AcceptCompressed(req)

	resp, err := client.Do(req)
	if err != nil {
		return "", share_fetch.NewError(share_fetch.NetworkFailure, "resolve", s.link.Raw, err)
	}
	defer resp.Body.Close()
	data, err := httpclient.ReadBody(resp, 0)
	if err != nil {
		return "", share_fetch.NewError(share_fetch.NetworkFailure, "resolve", s.link.Raw, err)
	}

	var result downloadResponse
	decodeErr := json.Unmarshal(data, &result)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && result.reason() != "" {
			return fail(share_fetch.ApiRejected, "download API returned %s: %s", resp.Status, result.reason())
		}
		return fail(share_fetch.ApiRejected, "download API returned %s", resp.Status)
	}
	if decodeErr != nil {
		return fail(share_fetch.ApiRejected, "invalid download API response: %v", decodeErr)
	}
	if result.DirectLink == "" {
		return fail(share_fetch.ApiRejected, "no direct_link in download API response")
	}
	return result.DirectLink, nil
}

func Match(link share_fetch.SourceLink) (share_fetch.Source, error) {
	switch link.Kind {
	case share_fetch.WeTransferShort:
	case share_fetch.WeTransferFull:
		if _, err := ExtractTransfer(link.URL); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("not a WeTransfer link")
	}
	return &source{link: link}, nil
}

func New() share_fetch.Provider {
	return share_fetch.Provider{Name: ProviderName, Match: Match}
}

func init() {
	share_fetch.DefaultProviderRegistry.MustAdd(New())
}
