package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"intelscan/internal/logger"
	"intelscan/internal/platform"
	"intelscan/internal/resolve"
)

type resolveOptions struct {
	payloadPath string
	index       int
	fetch       bool
}

func newResolveCmd(load configLoader) *cobra.Command {
	var opts resolveOptions
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Build the per-platform views of one entity, knowledge base first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}

			raw, err := readInput(cmd.InOrStdin(), opts.payloadPath)
			if err != nil {
				return err
			}
			var payload resolve.Payload
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("parse payload: %w", err)
			}

			registry := platform.NewRegistry(cfg.PlatformList())
			nav := resolve.NewNavigator(resolve.Resolve(payload, registry.Snapshot()))
			if nav.Len() == 0 {
				logger.Warnf("Entity %q has no platform matches", payload.Entity.Name)
			}
			if opts.index > 0 && !nav.Select(opts.index) {
				return fmt.Errorf("index %d out of range (results=%d)", opts.index, nav.Len())
			}

			if opts.fetch {
				applied, err := nav.FetchDetail(cmd.Context(), platform.NewHTTPFetcher(registry))
				var fetchErr *resolve.DetailFetchError
				if errors.As(err, &fetchErr) {
					logger.Warnf("Detail unavailable: %v", fetchErr)
				} else if err != nil {
					return err
				}
				logger.Debugf("Detail applied=%t index=%d", applied, nav.Index())
			}

			return writeResolved(cmd.OutOrStdout(), nav)
		},
	}
	cmd.Flags().StringVarP(&opts.payloadPath, "payload", "p", "-", "entity payload JSON file (- for stdin)")
	cmd.Flags().IntVar(&opts.index, "index", 0, "result index to select")
	cmd.Flags().BoolVar(&opts.fetch, "fetch", false, "fetch full details for the selected result")
	return cmd
}

func writeResolved(w io.Writer, nav *resolve.Navigator) error {
	out := struct {
		Index   int         `json:"index"`
		Results interface{} `json:"results"`
	}{Index: nav.Index(), Results: nav.Results()}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
