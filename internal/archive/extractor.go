// Package archive implements the Archive Extractor: safe extraction of
// ZIP, TAR, and TAR.GZ uploads with traversal and bomb-guard rejection.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrUnsafeArchive is returned for any archive that violates a guard:
// absolute members, path traversal, overlong components, decompression
// bombs, or excessive member counts.
var ErrUnsafeArchive = errors.New("archive: unsafe archive")

const (
	maxComponentBytes  = 255
	maxMembers         = 50000
	maxExpandedBytes   = 2 << 30 // 2GB
	bombRatio          = 10
	defaultWallClock   = 120 * time.Second
	bulkThresholdCount = 50
	bulkThresholdFrac  = 0.8
	bulkConcurrency    = 4
)

// Extractor extracts archives into a destination directory under the
// guards specified in spec §4.3.
type Extractor struct {
	WallClockTimeout time.Duration
}

func NewExtractor() *Extractor {
	return &Extractor{WallClockTimeout: defaultWallClock}
}

type member struct {
	name   string
	size   int64
	isDir  bool
	isLink bool
}

// Extract extracts archivePath into destDir. It returns the number of
// files written, or ErrUnsafeArchive if any guard is violated.
func (e *Extractor) Extract(ctx context.Context, archivePath, destDir string) (int, error) {
	timeout := e.WallClockTimeout
	if timeout <= 0 {
		timeout = defaultWallClock
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	info, err := os.Stat(archivePath)
	if err != nil {
		return 0, fmt.Errorf("stat archive: %w", err)
	}
	archiveSize := info.Size()

	format, err := detectFormat(archivePath)
	if err != nil {
		return 0, err
	}

	members, opener, err := listMembers(archivePath, format)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnsafeArchive, err)
	}
	defer opener.Close()

	if len(members) > maxMembers {
		return 0, fmt.Errorf("%w: member count %d exceeds limit", ErrUnsafeArchive, len(members))
	}

	kept := make([]member, 0, len(members))
	var expandedTotal int64
	for _, m := range members {
		if m.isLink {
			continue // symlinks dropped, not recreated
		}
		if err := validateMemberPath(m.name); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnsafeArchive, err)
		}
		if m.isDir {
			continue
		}
		expandedTotal += m.size
		kept = append(kept, m)
	}

	if expandedTotal > maxExpandedBytes {
		return 0, fmt.Errorf("%w: expanded size %d exceeds 2GB", ErrUnsafeArchive, expandedTotal)
	}
	if archiveSize > 0 && expandedTotal > archiveSize*bombRatio {
		return 0, fmt.Errorf("%w: expansion ratio exceeds %dx", ErrUnsafeArchive, bombRatio)
	}

	keepFraction := 0.0
	if len(members) > 0 {
		keepFraction = float64(len(kept)) / float64(len(members))
	}
	useBulk := len(members) >= bulkThresholdCount && keepFraction >= bulkThresholdFrac

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("create dest dir: %w", err)
	}

	written := 0
	var writtenMu sync.Mutex
	extract := func(name string, r io.Reader) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		target := filepath.Join(destDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		f, err := os.Create(target)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(f, r); err != nil {
			return err
		}
		writtenMu.Lock()
		written++
		writtenMu.Unlock()
		return nil
	}

	if useBulk {
		if err := bulkExtract(ctx, archivePath, format, kept, extract); err != nil {
			return written, err
		}
	} else {
		if err := itemExtract(archivePath, format, kept, extract); err != nil {
			return written, err
		}
	}

	if ctx.Err() != nil {
		return written, fmt.Errorf("extraction timed out: %w", ctx.Err())
	}
	return written, nil
}

func validateMemberPath(name string) error {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return fmt.Errorf("absolute member path: %s", name)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes extraction root: %s", name)
	}
	for _, part := range strings.Split(clean, string(filepath.Separator)) {
		if len(part) > maxComponentBytes {
			return fmt.Errorf("path component exceeds %d bytes: %s", maxComponentBytes, part)
		}
	}
	return nil
}

type format int

const (
	formatZip format = iota
	formatTar
	formatTarGz
)

func detectFormat(path string) (format, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return formatZip, nil
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		return formatTarGz, nil
	case strings.HasSuffix(lower, ".tar"):
		return formatTar, nil
	default:
		return 0, fmt.Errorf("%w: unrecognized archive extension %s", ErrUnsafeArchive, filepath.Ext(path))
	}
}

type closer interface {
	Close() error
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

func listMembers(path string, f format) ([]member, closer, error) {
	switch f {
	case formatZip:
		zr, err := zip.OpenReader(path)
		if err != nil {
			return nil, noopCloser{}, err
		}
		members := make([]member, 0, len(zr.File))
		for _, file := range zr.File {
			members = append(members, member{
				name:   file.Name,
				size:   int64(file.UncompressedSize64),
				isDir:  file.FileInfo().IsDir(),
				isLink: file.Mode()&os.ModeSymlink != 0,
			})
		}
		return members, zr, nil
	case formatTar, formatTarGz:
		fh, err := os.Open(path)
		if err != nil {
			return nil, noopCloser{}, err
		}
		var tr *tar.Reader
		var gz *gzip.Reader
		if f == formatTarGz {
			gz, err = gzip.NewReader(fh)
			if err != nil {
				fh.Close()
				return nil, noopCloser{}, err
			}
			tr = tar.NewReader(gz)
		} else {
			tr = tar.NewReader(fh)
		}
		members := make([]member, 0, 64)
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				fh.Close()
				return nil, noopCloser{}, err
			}
			members = append(members, member{
				name:   hdr.Name,
				size:   hdr.Size,
				isDir:  hdr.Typeflag == tar.TypeDir,
				isLink: hdr.Typeflag == tar.TypeSymlink || hdr.Typeflag == tar.TypeLink,
			})
		}
		_ = fh.Close()
		if gz != nil {
			_ = gz.Close()
		}
		return members, noopCloser{}, nil
	default:
		return nil, noopCloser{}, fmt.Errorf("unsupported format")
	}
}

// bulkExtract is used once most members survive the guard checks
// (spec §4.3: "≥50 members and ≥80% kept"). Zip members are seekable
// independently of one another, so this fans the kept set out across a
// bounded worker pool instead of itemExtract's single sequential pass;
// tar/tar.gz must still be read forward through one stream and fall
// back to itemExtract.
func bulkExtract(ctx context.Context, path string, f format, kept []member, extract func(string, io.Reader) error) error {
	if f != formatZip {
		return itemExtract(path, f, kept, extract)
	}

	wanted := make(map[string]bool, len(kept))
	for _, m := range kept {
		wanted[m.name] = true
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer zr.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for _, file := range zr.File {
		if !wanted[file.Name] {
			continue
		}
		file := file
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			rc, err := file.Open()
			if err != nil {
				return err
			}
			defer rc.Close()
			return extract(file.Name, rc)
		})
	}
	return g.Wait()
}

// itemExtract walks the archive member by member, extracting only those
// present in kept.
func itemExtract(path string, f format, kept []member, extract func(string, io.Reader) error) error {
	wanted := make(map[string]bool, len(kept))
	for _, m := range kept {
		wanted[m.name] = true
	}

	switch f {
	case formatZip:
		zr, err := zip.OpenReader(path)
		if err != nil {
			return err
		}
		defer zr.Close()
		for _, file := range zr.File {
			if !wanted[file.Name] {
				continue
			}
			rc, err := file.Open()
			if err != nil {
				return err
			}
			err = extract(file.Name, rc)
			rc.Close()
			if err != nil {
				return err
			}
		}
		return nil
	case formatTar, formatTarGz:
		fh, err := os.Open(path)
		if err != nil {
			return err
		}
		defer fh.Close()
		var tr *tar.Reader
		if f == formatTarGz {
			gz, err := gzip.NewReader(fh)
			if err != nil {
				return err
			}
			defer gz.Close()
			tr = tar.NewReader(gz)
		} else {
			tr = tar.NewReader(fh)
		}
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			if !wanted[hdr.Name] {
				continue
			}
			if err := extract(hdr.Name, tr); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format")
	}
}
