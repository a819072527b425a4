package gdrive

import (
	"bytes"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// A Page is an HTML response received instead of file content.
type Page struct {
	// URL is the request URL that produced the page.
	URL     *url.URL
	Body    []byte
	Cookies []*http.Cookie
}

// A ConfirmationStrategy finds how to get past the large-file warning page, returning the URL to request instead.
// Scraping the page is fragile against markup changes, so strategies are kept separate and can be swapped.
type ConfirmationStrategy interface {
	Confirm(page *Page) (*url.URL, bool)
}

// StrategyChain tries each strategy in order, returning the first success.
type StrategyChain []ConfirmationStrategy

func (c StrategyChain) Confirm(page *Page) (*url.URL, bool) {
	for _, s := range c {
		if u, ok := s.Confirm(page); ok {
			return u, true
		}
	}
	return nil, false
}

var DefaultStrategy ConfirmationStrategy = StrategyChain{
	FormStrategy{},
	CookieStrategy{},
	RegexStrategy{},
}

// FormStrategy submits the page's download form: its action URL with the hidden inputs as query parameters.
type FormStrategy struct{}

func (FormStrategy) Confirm(page *Page) (*url.URL, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, false
	}
	form := doc.Find("form#download-form").First()
	if form.Length() == 0 {
		form = doc.Find(`form[action*="download"]`).First()
	}
	if form.Length() == 0 {
		return nil, false
	}

	action := page.URL
	if href, ok := form.Attr("action"); ok && href != "" {
		parsed, err := page.URL.Parse(href)
		if err != nil {
			return nil, false
		}
		action = parsed
	}
	query := url.Values{}
	form.Find(`input[type="hidden"]`).Each(func(_ int, input *goquery.Selection) {
		if name, ok := input.Attr("name"); ok && name != "" {
			query.Set(name, input.AttrOr("value", ""))
		}
	})
	if query.Get("confirm") == "" && query.Get("uuid") == "" {
		return nil, false
	}
	u := *action
	u.RawQuery = query.Encode()
	return &u, true
}

// CookieStrategy uses the token from a download_warning cookie.
type CookieStrategy struct{}

func (CookieStrategy) Confirm(page *Page) (*url.URL, bool) {
	for _, cookie := range page.Cookies {
		if strings.HasPrefix(cookie.Name, "download_warning") && cookie.Value != "" {
			return withQuery(page.URL, "confirm", cookie.Value), true
		}
	}
	return nil, false
}

var (
	confirmTokenRe = regexp.MustCompile(`confirm=([0-9A-Za-z_-]+)`)
	uuidTokenRe    = regexp.MustCompile(`uuid=([a-f0-9-]+)`)
)

// RegexStrategy searches the page text for a confirm= token, then for a uuid= token.
type RegexStrategy struct{}

func (RegexStrategy) Confirm(page *Page) (*url.URL, bool) {
	if m := confirmTokenRe.FindSubmatch(page.Body); m != nil {
		return withQuery(page.URL, "confirm", string(m[1])), true
	}
	if m := uuidTokenRe.FindSubmatch(page.Body); m != nil {
		u := withQuery(page.URL, "uuid", string(m[1]))
		return withQuery(u, "confirm", "t"), true
	}
	return nil, false
}

func withQuery(u *url.URL, key string, value string) *url.URL {
	res := *u
	query := res.Query()
	query.Set(key, value)
	res.RawQuery = query.Encode()
	return &res
}
