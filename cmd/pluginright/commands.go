package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pluginright/internal/client"
	"pluginright/internal/config"
	"pluginright/internal/generator"
)

func newRootCmd() *cobra.Command {
	var opts setupOptions

	root := &cobra.Command{
		Use:   "pluginright",
		Short: "Generate Dynamics 365 plugin code from a plain-language description",
		Long: `pluginright asks what the plugin should do, merges the answer and the
entity metadata into the prompt template, sends it to the configured
chat-completion backend and prints the generated code.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.withLLM = true
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			return runInteractive(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), a.gen, a.cfg.LLM.Backend)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default $CONFIG_PATH or config.yaml)")
	flags.StringVar(&opts.outputDir, "out", "", "also write generated code to this directory")
	flags.StringVar(&opts.template, "template", "", "prompt template file")
	flags.StringVar(&opts.metadata, "metadata", "", "metadata YAML file")
	flags.StringVar(&opts.scaffold, "scaffold", "", "C# scaffold the generated logic is spliced into for written files")

	root.AddCommand(newBatchCmd(&opts), newHistoryCmd(&opts), newServeCmd(&opts))
	return root
}

func newBatchCmd(opts *setupOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <jobs-dir>",
		Short: "Generate every *.json job in a directory",
		Long: `Each job file is a JSON object with a "description" and optional "name"
and "metadata" fields. The plugin registration fields "entity", "message",
"stage", "mode" and "namespace" feed the scaffold when one is configured.
Jobs run concurrently up to batch.concurrency.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.withLLM = true
			a, err := newApp(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.gen.RunBatch(cmd.Context(), args[0], a.cfg.Batch.Concurrency)
			if err != nil {
				return err
			}
			return printBatch(cmd.OutOrStdout(), results)
		},
	}
}

func newHistoryCmd(opts *setupOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent generations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.withLLM = false
			a, err := newApp(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.store == nil {
				return errors.New("history requires storage.driver to be set")
			}

			records, err := a.store.ListRecent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list history: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tNAME\tMODEL\tSTATUS\tDURATION\tID")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dms\t%s\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Name, r.Model, r.Status, r.DurationMs, r.ID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of generations to show")
	return cmd
}

// runInteractive reads one description from in and prints the generated code to out.
func runInteractive(ctx context.Context, in io.Reader, out io.Writer, gen *generator.Generator, backend string) error {
	fmt.Fprint(out, config.MsgAskDescription)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read description: %w", err)
	}
	if errors.Is(err, io.EOF) && line == "" {
		return errors.New("read description: no input")
	}
	description := strings.TrimRight(line, "\r\n")

	fmt.Fprintf(out, config.MsgGenerating+"\n", client.DisplayName(backend))

	// A failed file write still returns the result; print it before the error
	res, err := gen.Generate(ctx, generator.Request{Description: description})
	if res == nil {
		return err
	}

	fmt.Fprint(out, config.MsgGenerated+"\n")
	fmt.Fprintln(out, res.Output)
	if res.Path != "" {
		fmt.Fprintf(out, "\nWrote: %s\n", res.Path)
	}
	return err
}

func printBatch(out io.Writer, results []generator.BatchResult) error {
	var failed int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprintf(out, "✗ %s: %v\n", r.Job.Name, r.Err)
			if r.Result != nil && r.Result.Output != "" {
				fmt.Fprintf(out, "\n%s\n\n", r.Result.Output)
			}
		case r.Result.Path != "":
			fmt.Fprintf(out, "✓ %s -> %s\n", r.Job.Name, r.Result.Path)
		default:
			fmt.Fprintf(out, "✓ %s\n\n%s\n\n", r.Job.Name, r.Result.Output)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(results))
	}
	return nil
}
