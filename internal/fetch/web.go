package fetch

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"go.uber.org/zap"

	"github.com/KaramelBytes/healthlens-cli/internal/tabular"
)

// GetWebCSV downloads a CSV file directly from url into a table.
func (c *Client) GetWebCSV(ctx context.Context, url string) (dataframe.DataFrame, error) {
	c.logger.Info("loading web csv", zap.String("url", shorten(url, 50)))
	var buf bytes.Buffer
	n, err := c.Download(ctx, url, &buf)
	if err != nil {
		return tabular.Empty(), fmt.Errorf("download %s: %w", url, err)
	}
	df, err := tabular.ReadCSV(&buf)
	if err != nil {
		return tabular.Empty(), err
	}
	rows, cols := tabular.Shape(df)
	c.logger.Info("web csv loaded", zap.Int64("bytes", n), zap.Int("rows", rows), zap.Int("cols", cols))
	return df, nil
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
