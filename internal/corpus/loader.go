// Package corpus loads hotel descriptions from disk and publishes immutable
// statistics snapshots built from them.
package corpus

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// Loader supplies the raw text of every document, keyed by document id.
type Loader interface {
	Load(ctx context.Context) (map[string]string, error)
}

// DirLoader reads every regular file with a matching extension from a single
// directory. The file name is the document id.
type DirLoader struct {
	Dir         string
	Extension   string
	Concurrency int
}

// NewDirLoader creates a DirLoader. An empty extension matches every file.
func NewDirLoader(dir, extension string, concurrency int) *DirLoader {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &DirLoader{Dir: dir, Extension: extension, Concurrency: concurrency}
}

// Load reads the directory. A file that is not valid UTF-8 fails the whole
// load with apperrors.ErrDecoding naming the file; nothing is skipped.
func (l *DirLoader) Load(ctx context.Context) (map[string]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory %s: %w", l.Dir, err)
	}

	var (
		mu   sync.Mutex
		docs = make(map[string]string, len(entries))
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.Concurrency)
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), l.Extension) {
			continue
		}
		name := entry.Name()
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			text, err := readText(filepath.Join(l.Dir, name))
			if err != nil {
				return err
			}
			mu.Lock()
			docs[name] = text
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", apperrors.Newf(apperrors.ErrDecoding, http.StatusUnprocessableEntity,
			"%s is not valid UTF-8", filepath.Base(path))
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return htmlText(data)
	}
	return string(data), nil
}

// htmlText returns the visible text of an HTML page, one text node per line.
// Script and style contents are dropped.
func htmlText(data []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", apperrors.Newf(apperrors.ErrDecoding, http.StatusUnprocessableEntity, "parsing html: %v", err)
	}
	var (
		b    strings.Builder
		walk func(*html.Node)
	)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				b.WriteString(text)
				b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return b.String(), nil
}

// StaticLoader serves a fixed in-memory corpus.
type StaticLoader map[string]string

// Load returns a copy of the corpus.
func (s StaticLoader) Load(context.Context) (map[string]string, error) {
	docs := make(map[string]string, len(s))
	for id, text := range s {
		docs[id] = text
	}
	return docs, nil
}
