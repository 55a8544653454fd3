package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"intelscan/internal/candidates"
	"intelscan/internal/logger"
	"intelscan/internal/match"
	"intelscan/internal/output/resultjson"
	"intelscan/internal/pipeline"
	"intelscan/internal/transform/scanevent"
	"intelscan/pkg/models"
)

type scanOptions struct {
	textPath  string
	eventPath string
	catalog   string
	sigma     string
	grammar   bool
	output    string
}

func newScanCmd(load configLoader) *cobra.Command {
	var opts scanOptions
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan one page (text or scan event) and print the aggregated result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			if opts.catalog == "" {
				opts.catalog = cfg.IntelScan.Candidates.CatalogPath
			}
			if opts.sigma == "" {
				opts.sigma = cfg.IntelScan.Candidates.SigmaRulesPath
			}
			if !cmd.Flags().Changed("grammar") {
				opts.grammar = cfg.IntelScan.Pipeline.ExtractGrammar
			}

			result, err := runScan(cmd.InOrStdin(), opts)
			if err != nil {
				return err
			}
			return emitResult(cmd.OutOrStdout(), opts.output, result)
		},
	}
	cmd.Flags().StringVar(&opts.textPath, "text", "", "page text file (- for stdin)")
	cmd.Flags().StringVar(&opts.eventPath, "event", "", "scan event JSON file (- for stdin)")
	cmd.Flags().StringVar(&opts.catalog, "catalog", "", "candidate catalog YAML")
	cmd.Flags().StringVar(&opts.sigma, "sigma", "", "Sigma rule file or directory to harvest technique ids from")
	cmd.Flags().BoolVar(&opts.grammar, "grammar", false, "report fixed-grammar identifiers as not-found observables")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "append the result to a JSONL file instead of stdout")
	return cmd
}

func runScan(stdin io.Reader, opts scanOptions) (*models.ScanResult, error) {
	if (opts.textPath == "") == (opts.eventPath == "") {
		return nil, fmt.Errorf("exactly one of --text or --event is required")
	}
	detector := pipeline.NewDetector(match.NewScanner(), opts.grammar)

	if opts.eventPath != "" {
		raw, err := readInput(stdin, opts.eventPath)
		if err != nil {
			return nil, err
		}
		ev, err := scanevent.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse scan event: %w", err)
		}
		fillEventDefaults(ev)
		return detector.Process(ev, nil), nil
	}

	raw, err := readInput(stdin, opts.textPath)
	if err != nil {
		return nil, err
	}
	cands, err := loadCandidates(opts)
	if err != nil {
		return nil, err
	}

	ev := &models.ScanEvent{Text: string(raw), Batches: catalogBatches(cands)}
	fillEventDefaults(ev)
	return detector.Process(ev, nil), nil
}

func loadCandidates(opts scanOptions) ([]models.Candidate, error) {
	var out []models.Candidate
	if opts.catalog != "" {
		cands, err := candidates.LoadCatalog(opts.catalog)
		if err != nil {
			return nil, err
		}
		logger.Infof("Candidate catalog loaded: %d entries from %s", len(cands), opts.catalog)
		out = append(out, cands...)
	}
	if opts.sigma != "" {
		cands, stats, err := candidates.LoadSigmaTechniques(opts.sigma)
		if err != nil {
			return nil, fmt.Errorf("load sigma rules: %w", err)
		}
		logger.Infof("Sigma rules harvested: files=%d loaded=%d skipped_invalid=%d techniques=%d",
			stats.TotalFiles, stats.Loaded, stats.SkippedInvalid, stats.Techniques)
		out = append(out, cands...)
	}
	return out, nil
}

// catalogBatches turns local candidates into not-found records: identifier
// families go to observables, everything else to domain objects.
func catalogBatches(cands []models.Candidate) models.ScanBatches {
	var b models.ScanBatches
	for _, c := range cands {
		rec := models.DetectionRecord{
			Type:       c.Type,
			Name:       c.Name,
			Value:      c.Value,
			EntityData: c.EntityData,
		}
		switch c.Kind {
		case models.KindIP, models.KindMAC:
			b.Observables = append(b.Observables, rec)
		default:
			b.DomainObjects = append(b.DomainObjects, rec)
		}
	}
	return b
}

func fillEventDefaults(ev *models.ScanEvent) {
	if ev.ScanID == "" {
		ev.ScanID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if strings.TrimSpace(path) == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func emitResult(stdout io.Writer, output string, result *models.ScanResult) error {
	if output != "" {
		w, err := resultjson.NewWriter(output)
		if err != nil {
			return err
		}
		if err := w.WriteResults([]*models.ScanResult{result}); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
