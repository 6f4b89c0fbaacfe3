package slogutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// RotateOptions controls size-based rotation.
type RotateOptions struct {
	MaxSize    int64 // bytes; 0 disables rotation
	MaxBackups int   // rotated files kept; 0 deletes the log on rotation
	Compress   bool  // gzip rotated files (log.1.gz)
}

// RotatingFile is an io.WriteCloser that rotates log -> log.1 -> log.2 ...
// once the file would exceed MaxSize.
type RotatingFile struct {
	path string
	opts RotateOptions
	file *os.File
	size int64
	mu   sync.Mutex
}

// OpenRotatingFile opens path for appending, creating parent directories.
func OpenRotatingFile(path string, opts RotateOptions) (*RotatingFile, error) {
	rf := &RotatingFile{path: path, opts: opts}
	if err := rf.openFile(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (r *RotatingFile) openFile() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}

	r.file = f
	r.size = info.Size()
	return nil
}

// Write implements io.Writer, rotating first when needed. A failed rotation
// does not drop the write.
func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opts.MaxSize > 0 && r.size > 0 && r.size+int64(len(p)) > r.opts.MaxSize {
		if err := r.rotate(); err != nil && r.file == nil {
			return 0, err
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// Close implements io.Closer.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *RotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}
	r.file = nil

	for i := r.opts.MaxBackups; i >= 1; i-- {
		old := r.backupPath(i)
		if i == r.opts.MaxBackups {
			_ = os.Remove(old)
			continue
		}
		if _, err := os.Stat(old); err == nil {
			_ = os.Rename(old, r.backupPath(i+1))
		}
	}

	switch {
	case r.opts.MaxBackups == 0:
		_ = os.Remove(r.path)
	case r.opts.Compress:
		if err := compressFile(r.path, r.backupPath(1)); err != nil {
			// Keep the uncompressed log rather than lose it.
			_ = os.Rename(r.path, strings.TrimSuffix(r.backupPath(1), ".gz"))
		} else {
			_ = os.Remove(r.path)
		}
	default:
		_ = os.Rename(r.path, r.backupPath(1))
	}

	return r.openFile()
}

func (r *RotatingFile) backupPath(n int) string {
	if r.opts.Compress {
		return fmt.Sprintf("%s.%d.gz", r.path, n)
	}
	return fmt.Sprintf("%s.%d", r.path, n)
}

// compressFile gzips src into dst atomically.
func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	gz, err := gzip.NewWriterLevel(out, gzip.BestSpeed)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	gz.Name = filepath.Base(src)

	if _, err := io.Copy(gz, in); err != nil {
		_ = gz.Close()
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := gz.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(B|KB|MB|GB)?$`)

// ParseSize parses "500KB", "10MB", "1GB" or a plain byte count.
// Empty or invalid input is 0.
func ParseSize(s string) int64 {
	matches := sizePattern.FindStringSubmatch(strings.TrimSpace(strings.ToUpper(s)))
	if matches == nil {
		return 0
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0
	}

	multiplier := 1.0
	switch matches[2] {
	case "KB":
		multiplier = 1 << 10
	case "MB":
		multiplier = 1 << 20
	case "GB":
		multiplier = 1 << 30
	}
	return int64(value * multiplier)
}
