package scraper

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// pagesSuffix names the sidecar that records listing pages with no schools.
const pagesSuffix = ".pages"

// Checkpoint is an append-only CSV of scraped rows plus the set of completed pages.
// A page is complete when any row carries its number or the sidecar lists it.
type Checkpoint struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	writer    *csv.Writer
	completed map[int]struct{}
	rows      int
}

// OpenCheckpoint loads the completed pages from path and opens it for appending.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	rows, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	completed := make(map[int]struct{})
	for _, r := range rows {
		if r.Page > 0 {
			completed[r.Page] = struct{}{}
		}
	}
	empty, err := readPages(path + pagesSuffix)
	if err != nil {
		return nil, err
	}
	for _, p := range empty {
		completed[p] = struct{}{}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	cp := &Checkpoint{
		path:      path,
		file:      f,
		writer:    csv.NewWriter(f),
		completed: completed,
		rows:      len(rows),
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat checkpoint: %w", err)
	}
	if info.Size() == 0 {
		if err := cp.writer.Write(Columns); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		cp.writer.Flush()
		if err := cp.writer.Error(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return cp, nil
}

// Completed reports whether page was finished by an earlier run or this one.
func (c *Checkpoint) Completed(page int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.completed[page]
	return ok
}

// Rows returns the number of rows in the file.
func (c *Checkpoint) Rows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows
}

// Append writes the rows of page, flushes them and marks the page complete.
func (c *Checkpoint) Append(page int, rows []School) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(rows) == 0 {
		if err := appendPage(c.path+pagesSuffix, page); err != nil {
			return err
		}
		c.completed[page] = struct{}{}
		return nil
	}
	for _, r := range rows {
		r.Page = page
		if err := c.writer.Write(r.record()); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	c.completed[page] = struct{}{}
	c.rows += len(rows)
	return nil
}

// Close flushes and closes the underlying file.
func (c *Checkpoint) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	werr := c.writer.Error()
	cerr := c.file.Close()
	return errors.Join(werr, cerr)
}

func readPages(path string) ([]int, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var pages []int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("%s: bad page %q", path, line)
		}
		pages = append(pages, n)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return pages, nil
}

func appendPage(path string, page int) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", page); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
