package share_fetch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/alanbriolat/share-fetch/util"
)

const (
	DefaultTargetFileTemplate = "{{.Filename}}"
	// DefaultFilename is used when neither the service nor the provider suggests a name.
	DefaultFilename = "download"
)

type DownloadConfig interface {
	// GetTargetPath decides where a resolved target is saved, given the user-supplied destination.
	GetTargetPath(destination string, match *Match, target *ResolvedTarget) (string, error)
}

type downloadConfig struct {
	TargetFileTemplate *template.Template
}

func NewDownloadConfig() DownloadConfig {
	return &downloadConfig{
		TargetFileTemplate: template.Must(template.New("target_file").Parse(DefaultTargetFileTemplate)),
	}
}

// NewDownloadConfigTemplate is like NewDownloadConfig with a custom target file template, evaluated with
// .ProviderName and .Filename when the destination is a directory.
func NewDownloadConfigTemplate(text string) (DownloadConfig, error) {
	tmpl, err := template.New("target_file").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid target file template: %w", err)
	}
	return &downloadConfig{TargetFileTemplate: tmpl}, nil
}

// GetTargetPath returns destination itself if it names a file, otherwise a file inside the destination directory
// named by the target file template. An empty destination means the current directory.
func (c *downloadConfig) GetTargetPath(destination string, match *Match, target *ResolvedTarget) (string, error) {
	if !isDirectory(destination) {
		return destination, nil
	}
	args := targetFileTemplateArgs{
		Filename: target.Filename.UnwrapOr(DefaultFilename),
	}
	if match != nil {
		args.ProviderName = match.ProviderName
	}
	builder := strings.Builder{}
	if err := c.TargetFileTemplate.Execute(&builder, &args); err != nil {
		return "", err
	}
	filename := util.SanitizeFilename(builder.String())
	if filename == "" {
		filename = DefaultFilename
	}
	if destination == "" {
		destination = "."
	}
	return filepath.Join(destination, filename), nil
}

type targetFileTemplateArgs struct {
	ProviderName string
	Filename     string
}

func isDirectory(destination string) bool {
	if destination == "" || strings.HasSuffix(destination, "/") || strings.HasSuffix(destination, string(os.PathSeparator)) {
		return true
	}
	info, err := os.Stat(destination)
	return err == nil && info.IsDir()
}
