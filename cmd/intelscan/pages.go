package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"intelscan/internal/resultstore"
	"intelscan/pkg/models"
)

type pagesOptions struct {
	limit  int64
	latest bool
}

// pageStore is the read side of the result store.
type pageStore interface {
	RecentPages(ctx context.Context, limit int64) ([]string, error)
	Latest(ctx context.Context, pageURL string) (*models.ScanResult, error)
}

type pageSummary struct {
	PageURL   string    `json:"page_url"`
	ScanID    string    `json:"scan_id,omitempty"`
	Sequence  int64     `json:"seq,omitempty"`
	Timestamp time.Time `json:"ts,omitempty"`
	Entities  int       `json:"entities"`
	Found     int       `json:"found"`
}

func newPagesCmd(load configLoader) *cobra.Command {
	var opts pagesOptions
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "List recently scanned pages from the result store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			store, err := resultstore.NewRedisStore(redisStoreConfig(cfg.IntelScan.Store))
			if err != nil {
				return fmt.Errorf("open result store: %w", err)
			}
			defer store.Close()
			return listPages(cmd.Context(), store, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().Int64VarP(&opts.limit, "limit", "n", 20, "number of pages to list")
	cmd.Flags().BoolVar(&opts.latest, "latest", false, "include a summary of each page's latest result")
	return cmd
}

func listPages(ctx context.Context, store pageStore, w io.Writer, opts pagesOptions) error {
	pages, err := store.RecentPages(ctx, opts.limit)
	if err != nil {
		return err
	}
	if !opts.latest {
		for _, p := range pages {
			if _, err := fmt.Fprintln(w, p); err != nil {
				return err
			}
		}
		return nil
	}

	out := make([]pageSummary, 0, len(pages))
	for _, p := range pages {
		sum := pageSummary{PageURL: p}
		res, err := store.Latest(ctx, p)
		if err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
		if res != nil {
			sum.ScanID = res.ScanID
			sum.Sequence = res.Sequence
			sum.Timestamp = res.Timestamp
			sum.Entities = len(res.Entities)
			for _, e := range res.Entities {
				if e.Found {
					sum.Found++
				}
			}
		}
		out = append(out, sum)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
