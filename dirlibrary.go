package photohistory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultFetchLimit caps how many photos a DirLibrary scan returns.
	DefaultFetchLimit = 400

	scanConcurrency = 4
	headerReadLimit = 512 * 1024 // EXIF and image config live in the first bytes
)

// imageExtensions are the file extensions a DirLibrary scan considers.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".heic": true,
	".heif": true,
	".tif":  true,
	".tiff": true,
}

// DirLibraryOpts configures a directory scan.
type DirLibraryOpts struct {
	FetchLimit int          // default: DefaultFetchLimit (400); newest photos first
	MinWidth   int          // skip images narrower than this (0 = no check)
	Logger     *slog.Logger // default: slog.Default()
}

// DirLibrary serves photos from a directory tree. Asset IDs are
// slash-separated paths relative to the root. Fetch reads the file on every
// call and holds no bytes between calls.
type DirLibrary struct {
	root   string
	logger *slog.Logger
}

// OpenDirLibrary scans root for image files and returns the library along
// with its assets, newest capture time first (undated files last, by path),
// truncated to opts.FetchLimit.
func OpenDirLibrary(ctx context.Context, root string, opts DirLibraryOpts) (*DirLibrary, []Asset, error) {
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = DefaultFetchLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("open library %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("open library %s: not a directory", root)
	}

	lib := &DirLibrary{root: root, logger: opts.Logger}

	paths, err := lib.walk(ctx)
	if err != nil {
		return nil, nil, err
	}

	assets, err := lib.describe(ctx, paths, opts.MinWidth)
	if err != nil {
		return nil, nil, err
	}

	sort.SliceStable(assets, func(i, j int) bool {
		ti, tj := assets[i].TakenAt, assets[j].TakenAt
		if ti.Equal(tj) {
			return assets[i].ID < assets[j].ID
		}
		return ti.After(tj)
	})
	if len(assets) > opts.FetchLimit {
		assets = assets[:opts.FetchLimit]
	}

	lib.logger.Info("photohistory: library scanned", "root", root, "files", len(paths), "assets", len(assets))
	return lib, assets, nil
}

// Root returns the scanned directory.
func (l *DirLibrary) Root() string { return l.root }

func (l *DirLibrary) walk(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			l.logger.Debug("photohistory: walk error", "path", path, "error", err.Error())
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != l.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if imageExtensions[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan library %s: %w", l.root, err)
	}
	return paths, nil
}

// describe reads each file's header with bounded concurrency and builds
// assets. Unreadable or too narrow files are left out.
func (l *DirLibrary) describe(ctx context.Context, paths []string, minWidth int) ([]Asset, error) {
	var (
		mu     sync.Mutex
		assets = make([]Asset, 0, len(paths))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)

	for _, path := range paths {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			asset, ok := l.describeOne(path, minWidth)
			if !ok {
				return nil
			}
			mu.Lock()
			assets = append(assets, asset)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan library %s: %w", l.root, err)
	}
	return assets, nil
}

func (l *DirLibrary) describeOne(path string, minWidth int) (Asset, bool) {
	header, err := readHeader(path)
	if err != nil {
		l.logger.Debug("photohistory: unreadable file", "path", path, "error", err.Error())
		return Asset{}, false
	}

	if minWidth > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(header))
		if err == nil && cfg.Width < minWidth {
			l.logger.Debug("photohistory: too narrow", "path", path, "width", cfg.Width, "min", minWidth)
			return Asset{}, false
		}
	}

	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return Asset{}, false
	}

	asset := Asset{ID: filepath.ToSlash(rel), Source: path}
	if meta := ExtractPhotoMetadata(header, path); meta != nil {
		asset.HasLocation = meta.HasLocation
		asset.Latitude = meta.Latitude
		asset.Longitude = meta.Longitude
		asset.TakenAt = meta.TakenAt
	}
	return asset, true
}

func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, headerReadLimit))
}

// Fetch reads the asset's file. Missing files report ErrNotFound.
func (l *DirLibrary) Fetch(ctx context.Context, asset Asset) (*ImageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := l.resolve(asset)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, asset.ID)
		}
		return nil, fmt.Errorf("read %s: %w", asset.ID, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNotFound, asset.ID)
	}

	img := ImageData{
		Data:        data,
		MIMEType:    DetectMIME(data, path),
		Orientation: OrientationUp,
	}
	if meta := ExtractPhotoMetadata(data, path); meta != nil {
		img.Orientation = meta.Orientation
	}
	return &img, nil
}

// resolve maps an asset ID back to a path under root, refusing escapes.
func (l *DirLibrary) resolve(asset Asset) (string, error) {
	rel := filepath.FromSlash(asset.ID)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s is outside the library", ErrNotFound, asset.ID)
	}
	return filepath.Join(l.root, rel), nil
}
