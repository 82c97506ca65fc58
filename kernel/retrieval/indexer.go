package retrieval

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	// maxDepth bounds how deep the walk descends below the root.
	maxDepth = 5
	// chunkLines is the number of lines per indexed chunk.
	chunkLines = 60
	// ignoreFile lists extra path prefixes to skip, one per line.
	ignoreFile = ".barqignore"
)

var skipDirs = map[string]struct{}{
	".git":         {},
	"target":       {},
	"node_modules": {},
	".barqcoder":   {},
}

var langByExt = map[string]string{
	".rs":   "rust",
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".toml": "toml",
	".yaml": "yaml",
	".yml":  "yaml",
	".md":   "markdown",
}

var symbolDef = regexp.MustCompile(`(?m)^\s*(?:pub\s+)?(?:fn|struct|enum|trait|type|func)\s+([A-Za-z_][A-Za-z0-9_]*)`)

// Document is one chunk of a source file queued for indexing.
type Document struct {
	ID      string
	File    string
	Line    int
	Lang    string
	Content string
}

// IndexStats summarizes one indexing pass.
type IndexStats struct {
	Files   int
	Chunks  int
	Symbols int
}

func langForFile(path string) string {
	return langByExt[filepath.Ext(path)]
}

// Index walks the repository under root, chunks every recognized source
// file into the store, and rebuilds the symbol dependency graph.
func (s *Store) Index(ctx context.Context, root string) (*IndexStats, error) {
	ignored, err := loadIgnorePrefixes(root)
	if err != nil {
		return nil, err
	}

	stats := &IndexStats{}
	symbolFiles := map[string]string{}
	fileSymbols := map[string][]string{}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			if strings.Count(rel, string(filepath.Separator))+1 > maxDepth {
				return filepath.SkipDir
			}
			return ignoreMatch(ignored, rel, filepath.SkipDir)
		}
		if err := ignoreMatch(ignored, rel, errSkipFile); err != nil {
			return nil
		}
		lang := langForFile(path)
		if lang == "" {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		content := string(raw)
		stats.Files++

		for name := range definedSymbols(content) {
			symbolFiles[name] = rel
			fileSymbols[rel] = append(fileSymbols[rel], name)
		}

		lines := strings.Split(content, "\n")
		for start := 0; start < len(lines); start += chunkLines {
			end := start + chunkLines
			if end > len(lines) {
				end = len(lines)
			}
			chunk := strings.TrimSpace(strings.Join(lines[start:end], "\n"))
			if chunk == "" {
				continue
			}
			doc := Document{
				ID:      fmt.Sprintf("%s:%d", rel, start+1),
				File:    rel,
				Line:    start + 1,
				Lang:    lang,
				Content: chunk,
			}
			if err := s.Add(ctx, doc); err != nil {
				return err
			}
			stats.Chunks++
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("retrieval: index %q: %w", root, walkErr)
	}

	s.setGraph(buildGraph(root, symbolFiles, fileSymbols))
	stats.Symbols = len(symbolFiles)
	return stats, nil
}

// errSkipFile is a sentinel for ignoreMatch on regular files.
var errSkipFile = fmt.Errorf("retrieval: skip file")

func ignoreMatch(prefixes []string, rel string, skip error) error {
	slash := filepath.ToSlash(rel)
	for _, p := range prefixes {
		if slash == p || strings.HasPrefix(slash, p+"/") {
			return skip
		}
	}
	return nil
}

func loadIgnorePrefixes(root string) ([]string, error) {
	f, err := os.Open(filepath.Join(root, ignoreFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("retrieval: read %s: %w", ignoreFile, err)
	}
	defer f.Close()

	var prefixes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prefixes = append(prefixes, strings.Trim(filepath.ToSlash(line), "/"))
	}
	return prefixes, scanner.Err()
}

func definedSymbols(content string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, m := range symbolDef.FindAllStringSubmatch(content, -1) {
		out[m[1]] = struct{}{}
	}
	return out
}

// buildGraph links each symbol to the other known symbols its defining
// file mentions.
func buildGraph(root string, symbolFiles map[string]string, fileSymbols map[string][]string) map[string][]string {
	contents := map[string]string{}
	for file := range fileSymbols {
		raw, err := os.ReadFile(filepath.Join(root, file))
		if err != nil {
			continue
		}
		contents[file] = string(raw)
	}

	graph := map[string][]string{}
	for symbol, file := range symbolFiles {
		body, ok := contents[file]
		if !ok {
			continue
		}
		seen := map[string]struct{}{}
		for other, otherFile := range symbolFiles {
			if other == symbol || otherFile == file {
				continue
			}
			if _, dup := seen[other]; dup {
				continue
			}
			if containsWord(body, other) {
				graph[symbol] = append(graph[symbol], other)
				seen[other] = struct{}{}
			}
		}
		sort.Strings(graph[symbol])
	}
	return graph
}

func containsWord(body, word string) bool {
	idx := 0
	for {
		i := strings.Index(body[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isIdentRune(rune(body[i-1]))
		afterIdx := i + len(word)
		after := afterIdx >= len(body) || !isIdentRune(rune(body[afterIdx]))
		if before && after {
			return true
		}
		idx = i + len(word)
	}
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
