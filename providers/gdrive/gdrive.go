package gdrive

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/alanbriolat/share-fetch"
	"github.com/alanbriolat/share-fetch/internal/httpclient"
	"github.com/alanbriolat/share-fetch/util"
)

const (
	ProviderName = "gdrive"
	BaseURL      = "https://drive.google.com"
)

// Tried in order: /file/d/{ID}, /open?id={ID}, /uc?id={ID}.
var fileIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/file/d/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`/open\?(?:[^#]*&)?id=([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`/uc\?(?:[^#]*&)?id=([A-Za-z0-9_-]+)`),
}

// Phrases that mark a page refusing access rather than asking for confirmation.
var deniedMarkers = []string{
	"quota exceeded",
	"too many users have viewed or downloaded this file",
	"you need access",
	"you need permission",
	"accounts.google.com/servicelogin",
}

// ExtractFileID gets the file ID from any of the supported Drive URL shapes.
//
// Allowed URL formats:
//
//	https://drive.google.com/file/d/{FILE_ID}/view
//	https://drive.google.com/open?id={FILE_ID}
//	https://drive.google.com/uc?id={FILE_ID}
func ExtractFileID(u *url.URL) (string, error) {
	if u == nil {
		return "", fmt.Errorf("missing URL")
	}
	s := u.EscapedPath()
	if u.RawQuery != "" {
		s += "?" + u.RawQuery
	}
	for _, pattern := range fileIDPatterns {
		if m := pattern.FindStringSubmatch(s); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("could not extract file ID")
}

// FallbackFilename is used when Drive does not send a filename.
func FallbackFilename(fileID string) string {
	return "gdrive_" + fileID
}

type source struct {
	link     share_fetch.SourceLink
	fileID   string
	strategy ConfirmationStrategy
}

func (s *source) Link() share_fetch.SourceLink {
	return s.link
}

func (s *source) String() string {
	return fmt.Sprintf("%s [%s]", s.link.Raw, s.fileID)
}

func (s *source) downloadURL() *url.URL {
	u, _ := url.Parse(BaseURL + "/uc")
	u.RawQuery = url.Values{"export": {"download"}, "id": {s.fileID}}.Encode()
	return u
}

func (s *source) Resolve(ctx context.Context, client *http.Client) (*share_fetch.ResolvedTarget, error) {
	log := zap.S().Named(ProviderName).With("file_id", s.fileID)

	resp, err := s.get(ctx, client, s.downloadURL())
	if err != nil {
		return nil, err
	}
	if isContent(resp) {
		log.Debug("file served directly")
		return s.target(resp), nil
	}

	page, err := s.readPage(client, resp)
	if err != nil {
		return nil, err
	}
	if isDenied(page) {
		return nil, s.fail(share_fetch.AccessDenied, "access refused by Drive (permission denied or quota exceeded)")
	}
	confirmURL, ok := s.strategy.Confirm(page)
	if !ok {
		return nil, s.fail(share_fetch.ConfirmationTokenMissing, "no confirmation token in interstitial page")
	}
	log.Debugw("confirming large file download", "confirm_url", confirmURL.String())

	resp, err = s.get(ctx, client, confirmURL)
	if err != nil {
		return nil, err
	}
	if isContent(resp) {
		return s.target(resp), nil
	}
	page, err = s.readPage(client, resp)
	if err != nil {
		return nil, err
	}
	if isDenied(page) {
		return nil, s.fail(share_fetch.AccessDenied, "access refused by Drive (permission denied or quota exceeded)")
	}
	return nil, s.fail(share_fetch.ConfirmationTokenMissing, "confirmation was not accepted")
}

// get issues a GET and maps transport failures and error statuses to share_fetch errors. On success the caller owns
// the response body.
func (s *source) get(ctx context.Context, client *http.Client, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, s.fail(share_fetch.MalformedLink, "failed to create request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, share_fetch.NewError(share_fetch.NetworkFailure, "resolve", s.link.Raw, err)
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return resp, nil
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, s.fail(share_fetch.AccessDenied, "Drive returned %s", resp.Status)
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, s.fail(share_fetch.ApiRejected, "Drive returned %s (file missing or not shared)", resp.Status)
	default:
		resp.Body.Close()
		return nil, s.fail(share_fetch.HttpError, "Drive returned %s", resp.Status)
	}
}

func (s *source) readPage(client *http.Client, resp *http.Response) (*Page, error) {
	defer resp.Body.Close()
	body, err := httpclient.ReadBody(resp, 0)
	if err != nil {
		return nil, share_fetch.NewError(share_fetch.NetworkFailure, "resolve", s.link.Raw, err)
	}
	page := &Page{URL: resp.Request.URL, Body: body}
	if client.Jar != nil {
		page.Cookies = append(page.Cookies, client.Jar.Cookies(page.URL)...)
	}
	page.Cookies = append(page.Cookies, resp.Cookies()...)
	return page, nil
}

func (s *source) target(resp *http.Response) *share_fetch.ResolvedTarget {
	filename, err := util.FilenameFromContentDisposition(resp.Header.Get("Content-Disposition"))
	if err != nil {
		filename = FallbackFilename(s.fileID)
	}
	return share_fetch.NewResolvedTarget(resp.Request.URL.String()).
		WithFilename(filename).
		WithResponse(resp)
}

func (s *source) fail(kind share_fetch.ErrorKind, format string, args ...interface{}) error {
	return share_fetch.Errorf(kind, "resolve", s.link.Raw, format, args...)
}

// isContent returns true if the response is the file itself rather than an HTML interstitial.
func isContent(resp *http.Response) bool {
	if disposition, _, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && disposition == "attachment" {
		return true
	}
	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	return !strings.HasPrefix(contentType, "text/html")
}

func isDenied(page *Page) bool {
	if strings.HasPrefix(page.URL.Host, "accounts.") {
		return true
	}
	body := bytes.ToLower(page.Body)
	for _, marker := range deniedMarkers {
		if bytes.Contains(body, []byte(marker)) {
			return true
		}
	}
	return false
}

// NewMatcher returns a MatchFunc resolving with strategy for the large-file confirmation step.
func NewMatcher(strategy ConfirmationStrategy) share_fetch.MatchFunc {
	return func(link share_fetch.SourceLink) (share_fetch.Source, error) {
		if !link.IsDrive() {
			return nil, fmt.Errorf("not a Google Drive link")
		}
		fileID, err := ExtractFileID(link.URL)
		if err != nil {
			return nil, err
		}
		return &source{link: link, fileID: fileID, strategy: strategy}, nil
	}
}

func Match(link share_fetch.SourceLink) (share_fetch.Source, error) {
	return NewMatcher(DefaultStrategy)(link)
}

func New() share_fetch.Provider {
	return share_fetch.Provider{Name: ProviderName, Match: Match}
}

func init() {
	share_fetch.DefaultProviderRegistry.MustAdd(New())
}
