package share_fetch

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/alanbriolat/share-fetch/generic"
)

// LinkKind is the recognised shape of a share link.
type LinkKind int

const (
	Unrecognized LinkKind = iota
	// WeTransferShort is a https://we.tl/t-XXXX link, which redirects to a WeTransferFull link.
	WeTransferShort
	// WeTransferFull is a https://wetransfer.com/downloads/{transfer_id}/{security_hash} link.
	WeTransferFull
	// DriveFileView is a https://drive.google.com/file/d/{id}/view link.
	DriveFileView
	// DriveOpenID is a https://drive.google.com/open?id={id} link.
	DriveOpenID
	// DriveUcID is a https://drive.google.com/uc?id={id} link.
	DriveUcID
)

var linkKindNames = map[LinkKind]string{
	Unrecognized:    "unrecognized",
	WeTransferShort: "wetransfer-short",
	WeTransferFull:  "wetransfer-full",
	DriveFileView:   "drive-file-view",
	DriveOpenID:     "drive-open-id",
	DriveUcID:       "drive-uc-id",
}

func (k LinkKind) String() string {
	if name, ok := linkKindNames[k]; ok {
		return name
	}
	return "unknown"
}

var (
	schemes           = generic.NewSet("http", "https")
	weTransferShortRe = regexp.MustCompile(`^/[tr]-[A-Za-z0-9]+/?$`)
	weTransferFullRe  = regexp.MustCompile(`^/downloads/[A-Za-z0-9-]+(/[A-Za-z0-9-]+){1,2}/?$`)
	driveFileViewRe   = regexp.MustCompile(`^/file/d/[A-Za-z0-9_-]+(/.*)?$`)
	driveIDRe         = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// A SourceLink is an input string together with its classification. The zero value is Unrecognized.
type SourceLink struct {
	Raw  string
	URL  *url.URL
	Kind LinkKind
}

func (l SourceLink) String() string {
	return l.Raw
}

// IsWeTransfer returns true for either WeTransfer link shape.
func (l SourceLink) IsWeTransfer() bool {
	return l.Kind == WeTransferShort || l.Kind == WeTransferFull
}

// IsDrive returns true for any of the Google Drive link shapes.
func (l SourceLink) IsDrive() bool {
	return l.Kind == DriveFileView || l.Kind == DriveOpenID || l.Kind == DriveUcID
}

// Classify parses s and determines which of the supported link shapes it has. It never performs network I/O.
func Classify(s string) SourceLink {
	link := SourceLink{Raw: strings.TrimSpace(s)}
	parsedURL, err := url.Parse(link.Raw)
	if err != nil || !schemes.Contains(strings.ToLower(parsedURL.Scheme)) {
		return link
	}
	link.URL = parsedURL
	link.Kind = classifyURL(parsedURL)
	return link
}

func classifyURL(u *url.URL) LinkKind {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case host == "we.tl":
		if weTransferShortRe.MatchString(u.Path) {
			return WeTransferShort
		}
	case host == "wetransfer.com" || strings.HasSuffix(host, ".wetransfer.com"):
		if weTransferFullRe.MatchString(u.Path) {
			return WeTransferFull
		}
	case host == "drive.google.com":
		path := strings.TrimSuffix(u.Path, "/")
		switch {
		case driveFileViewRe.MatchString(u.Path):
			return DriveFileView
		case path == "/open" && driveIDRe.MatchString(u.Query().Get("id")):
			return DriveOpenID
		case path == "/uc" && driveIDRe.MatchString(u.Query().Get("id")):
			return DriveUcID
		}
	}
	return Unrecognized
}
