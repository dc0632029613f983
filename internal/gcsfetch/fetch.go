package gcsfetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// PullCSVs downloads every CSV object under bucket/prefix into destDir and
// returns the written paths. A failure on one object is logged and skipped,
// the same partial-failure semantic the runner applies to local files.
func PullCSVs(ctx context.Context, bucket, prefix, destDir string, log zerolog.Logger) ([]string, error) {
	log = log.With().Str("component", "gcsfetch").Str("bucket", bucket).Logger()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("PullCSVs: create storage client: %w", err)
	}
	defer client.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("PullCSVs: creating %s: %w", destDir, err)
	}

	it := client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var written []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return written, fmt.Errorf("PullCSVs: listing objects: %w", err)
		}
		if !strings.EqualFold(path.Ext(attrs.Name), ".csv") {
			continue
		}

		dest := filepath.Join(destDir, path.Base(attrs.Name))
		if err := downloadObject(ctx, client, bucket, attrs.Name, dest); err != nil {
			log.Warn().Str("object", attrs.Name).Err(err).Msg("object skipped")
			continue
		}
		log.Info().Str("object", attrs.Name).Str("dest", dest).Msg("object downloaded")
		written = append(written, dest)
	}
	return written, nil
}

func downloadObject(ctx context.Context, client *storage.Client, bucket, object, dest string) error {
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read GCS object: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}
