package httpclient

import (
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// DefaultBodyLimit bounds how much of an API response or HTML page is read into memory.
const DefaultBodyLimit = 2 << 20

// AcceptCompressed asks for a compressed response. Only use it on requests whose body is read with ReadBody, since
// setting Accept-Encoding stops net/http from decompressing transparently.
func AcceptCompressed(req *http.Request) {
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
}

// ReadBody reads at most limit bytes of the decoded response body. It does not close the body.
func ReadBody(resp *http.Response, limit int64) ([]byte, error) {
	reader, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	data, err := io.ReadAll(io.LimitReader(reader, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

func decodeBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return gz, nil
	case "deflate":
		zr, err := zlib.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return zr, nil
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}
