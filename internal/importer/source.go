// Package importer turns card files on disk or in git repositories into
// card inputs for a deck.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/flashdeck/internal/flashcards"
	"github.com/conorfennell/flashdeck/internal/gitsource"
)

// ErrUnsupported is returned for files with an unknown extension.
var ErrUnsupported = errors.New("importer: unsupported file type")

// IsGitURL reports whether source should be cloned rather than read locally.
func IsGitURL(source string) bool {
	return strings.HasPrefix(source, "https://") ||
		strings.HasPrefix(source, "http://") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasSuffix(source, ".git")
}

// Resolve returns a local path for source. Git URLs are cloned or pulled
// into cacheDir first.
func Resolve(ctx context.Context, source, cacheDir string) (string, error) {
	if !IsGitURL(source) {
		return source, nil
	}
	local, err := gitURLToLocalPath(cacheDir, source)
	if err != nil {
		return "", err
	}
	if err := gitsource.Sync(ctx, source, local); err != nil {
		return "", err
	}
	return local, nil
}

// Load reads cards from a file, or from every supported file under a
// directory. Per-file failures in a directory are joined into the returned
// error alongside whatever cards could be read.
func Load(path string) ([]flashcards.CardInput, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return LoadFile(path)
	}

	var cards []flashcards.CardInput
	var errs []error
	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !supported(p) {
			return nil
		}
		fileCards, err := LoadFile(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("parsing %s: %w", p, err))
		}
		cards = append(cards, fileCards...)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("error walking %s: %w", path, walkErr)
	}
	return cards, errors.Join(errs...)
}

// LoadFile parses a single .md, .csv or .xlsx file.
func LoadFile(path string) ([]flashcards.CardInput, error) {
	switch ext(path) {
	case ".md":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ParseMarkdown(f)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ParseCSV(f)
	case ".xlsx":
		return ParseXLSX(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
}

func supported(path string) bool {
	switch ext(path) {
	case ".md", ".csv", ".xlsx":
		return true
	}
	return false
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// gitURLToLocalPath maps https and scp-style git URLs to baseDir/host/path.
func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsed, err := url.Parse(repoURL)
	if err == nil && (parsed.Scheme == "https" || parsed.Scheme == "http") {
		return filepath.Join(baseDir, parsed.Host, strings.TrimSuffix(parsed.Path, ".git")), nil
	}

	// git@host:owner/repo.git
	if at := strings.Index(repoURL, "@"); at >= 0 {
		host, repoPath, ok := strings.Cut(repoURL[at+1:], ":")
		if ok && host != "" && repoPath != "" {
			return filepath.Join(baseDir, host, strings.TrimSuffix(repoPath, ".git")), nil
		}
	}
	return "", fmt.Errorf("could not parse git URL: %s", repoURL)
}
