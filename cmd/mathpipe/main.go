// mathpipe labels competition math datasets using an OpenAI-compatible API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/krello/mathpipe/internal/config"
	"github.com/krello/mathpipe/internal/metrics"
	"github.com/krello/mathpipe/internal/models"
	"github.com/krello/mathpipe/internal/pipeline"
	"github.com/krello/mathpipe/internal/prompts"
)

const usage = `Usage: mathpipe <stage> <input.jsonl> <output.jsonl> [flags]

Stages:
  classify  ask the LLM for domain and structure labels, merge with heuristics
  label     heuristic-only labeling, no LLM calls
  split     filter records and assign train/val splits

Run "mathpipe classify --help" for flags.`

func main() {
	if len(os.Args) >= 2 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Println(usage)
		return
	}
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	stage, inPath, outPath := os.Args[1], os.Args[2], os.Args[3]

	cfg, err := config.Load(os.Args[4:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := run(stage, inPath, outPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(stage, inPath, outPath string, cfg *config.Config) error {
	in, err := os.Open(inPath)
	if err != nil {
		return err
	}
	recs, err := pipeline.ReadRecords(in)
	in.Close()
	if err != nil {
		return err
	}
	fmt.Printf("Read %d records from %s\n", len(recs), inPath)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: metrics listener: %v\n", err)
			}
		}()
	}

	switch stage {
	case "split":
		recs = pipeline.Filter(recs)
		pipeline.Split(recs, cfg.ValFrac, cfg.Seed)
		counts := pipeline.SplitCounts(recs)
		fmt.Printf("Split %d records: %d train, %d val\n", len(recs), counts["train"], counts["val"])
	case "label":
		runner, err := newRunner(cfg)
		if err != nil {
			return err
		}
		defer runner.Close()
		sum := runner.Label(recs)
		printSummary(sum)
	case "classify":
		if cfg.APIKey == "" {
			fmt.Fprintln(os.Stderr, "Warning: No API key configured. Set OPENAI_API_KEY or use --api-key.")
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := models.NewManager(cfg.APIBase, cfg.APIKey).Verify(ctx, cfg.Model); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: model check: %v\n", err)
		}

		runner, err := newRunner(cfg)
		if err != nil {
			return err
		}
		defer runner.Close()
		if g := prompts.LoadGuidance(); g.HasContent() {
			fmt.Printf("Loaded prompt guidance from %v\n", g.Sources)
			runner.WithGuidance(g.SystemContext())
		}

		sum, err := runner.Classify(ctx, recs)
		if sum != nil {
			printSummary(sum)
		}
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := pipeline.WriteRecords(out, recs); err != nil {
		return err
	}
	fmt.Printf("Wrote %d records to %s\n", len(recs), outPath)
	return nil
}

func newRunner(cfg *config.Config) (*pipeline.Runner, error) {
	var rt *config.Runtime
	if cfg.RuntimePath != "" {
		var err error
		rt, err = config.NewRuntime(cfg.RuntimePath, pipeline.RuntimeDefaults(cfg))
		if err != nil {
			return nil, fmt.Errorf("runtime config: %w", err)
		}
		fmt.Printf("Runtime config at %s (edit mid-run to adjust settings)\n", cfg.RuntimePath)
	}
	return pipeline.NewRunner(cfg, rt, os.Stderr)
}

func printSummary(sum *pipeline.Summary) {
	fmt.Printf("Run %s (%s): %d records, %d ok, %d failed\n",
		sum.RunID, sum.Stage, sum.Total, sum.Succeeded, sum.Failed)
	if sum.Usage.Requests > 0 {
		fmt.Printf("LLM usage: %d completions, %d retries, %d prompt + %d completion = %d tokens\n",
			sum.Usage.Requests, sum.Usage.Retries,
			sum.Usage.PromptTokens, sum.Usage.CompletionTokens, sum.Usage.TotalTokens)
	}
	for _, field := range []string{"objects", "constraints", "mechanisms", "output_type",
		"reasoning_shape", "case_split", "auxiliary_construction", "reasoning_depth", "intermediate_reuse"} {
		if n := sum.Disagreements[field]; n > 0 {
			fmt.Printf("  %s: %d disagreements (%.1f%%)\n", field, n, 100*sum.DisagreementRate(field))
		}
	}
}
