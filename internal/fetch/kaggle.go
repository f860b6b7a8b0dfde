package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"go.uber.org/zap"

	"github.com/KaramelBytes/healthlens-cli/internal/tabular"
	"github.com/KaramelBytes/healthlens-cli/internal/utils"
)

// maxArchiveEntry caps a single extracted file.
const maxArchiveEntry = 512 << 20

// Kaggle downloads public datasets through the Kaggle REST API.
type Kaggle struct {
	client   *Client
	baseURL  string
	username string
	key      string
}

// NewKaggle binds a Client to the Kaggle API at baseURL using basic-auth credentials.
func NewKaggle(client *Client, baseURL, username, key string) *Kaggle {
	return &Kaggle{
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		key:      key,
	}
}

// DownloadURL returns the archive endpoint for an "owner/dataset" slug.
func (k *Kaggle) DownloadURL(slug string) string {
	return k.baseURL + "/datasets/download/" + strings.Trim(slug, "/")
}

// GetData downloads the dataset archive for slug, extracts it into extractDir
// and loads the first CSV file (lexicographic order) into a table.
func (k *Kaggle) GetData(ctx context.Context, slug, extractDir string) (dataframe.DataFrame, error) {
	log := k.client.logger.With(zap.String("dataset", slug))
	log.Info("loading kaggle dataset", zap.String("dir", extractDir))
	if k.username == "" || k.key == "" {
		return tabular.Empty(), ErrMissingCredentials
	}
	if strings.Count(strings.Trim(slug, "/"), "/") != 1 {
		return tabular.Empty(), fmt.Errorf("invalid dataset slug %q (want owner/dataset)", slug)
	}
	if err := utils.EnsureDirs(extractDir); err != nil {
		return tabular.Empty(), err
	}

	var buf bytes.Buffer
	if _, err := k.client.do(ctx, request{url: k.DownloadURL(slug), user: k.username, password: k.key}, &buf); err != nil {
		return tabular.Empty(), fmt.Errorf("download %s: %w", slug, err)
	}
	files, err := Unzip(buf.Bytes(), extractDir)
	if err != nil {
		return tabular.Empty(), err
	}
	log.Debug("archive extracted", zap.Strings("files", files))

	path, err := FirstCSV(extractDir)
	if err != nil {
		return tabular.Empty(), err
	}
	log.Info("reading csv", zap.String("path", path))
	return tabular.ReadCSVFile(path)
}

// Unzip extracts a zip archive held in memory into dir and returns the written
// paths. Entries that would escape dir are rejected.
func Unzip(data []byte, dir string) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	var written []string
	for _, f := range zr.File {
		target := filepath.Join(dir, filepath.FromSlash(f.Name))
		if !utils.WithinDir(dir, target) {
			return written, fmt.Errorf("archive entry %q escapes %s", f.Name, dir)
		}
		if f.FileInfo().IsDir() {
			if err := utils.EnsureDirs(target); err != nil {
				return written, err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return written, err
		}
		written = append(written, target)
	}
	return written, nil
}

func extractFile(f *zip.File, target string) error {
	if err := utils.EnsureDirs(filepath.Dir(target)); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, io.LimitReader(rc, maxArchiveEntry)); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// FirstCSV returns the lexicographically first .csv file directly inside dir.
func FirstCSV(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoCSV, dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}
