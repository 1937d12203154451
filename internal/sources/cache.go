package sources

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadCache loads the domain cache file, one domain per line. A missing file
// is not an error; it simply yields nothing.
func ReadCache(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open domain cache: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, Normalize(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read domain cache: %w", err)
	}
	return out, nil
}

// WriteCache rewrites the cache file with the given set, sorted so repeated
// runs over unchanged data produce byte-identical files. The write goes
// through a temp file and rename so a crash never leaves a torn cache.
func WriteCache(path string, domains []string) error {
	sorted := append([]string(nil), domains...)
	sort.Strings(sorted)

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".domains-*")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, d := range sorted {
		fmt.Fprintln(w, d)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write domain cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close domain cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace domain cache: %w", err)
	}
	return nil
}

// Normalize lowercases a hostname and strips the trailing dot.
func Normalize(domain string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
}
