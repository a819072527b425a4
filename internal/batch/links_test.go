package batch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLinks(t *testing.T) {
	input := strings.Join([]string{
		"# links for today",
		"https://we.tl/t-ABC123",
		"",
		"   https://drive.google.com/file/d/XYZ789/view   ",
		"  # indented comment",
		"not a link",
	}, "\n")

	lines, err := ReadLinks(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []Line{
		{Number: 2, Text: "https://we.tl/t-ABC123"},
		{Number: 4, Text: "https://drive.google.com/file/d/XYZ789/view"},
		{Number: 6, Text: "not a link"},
	}, lines)
}

func TestReadLinksFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://we.tl/t-ABC123\r\n"), 0644))

	lines, err := ReadLinksFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Line{{Number: 1, Text: "https://we.tl/t-ABC123"}}, lines)

	_, err = ReadLinksFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
