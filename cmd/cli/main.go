// Package main provides the command-line front-end of the analyzer.
//
// Run with: go run ./cmd/cli analyze report.pdf --provider groq --out ./exports
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleveque/fundamentals-analyzer/internal/analysis"
	"github.com/fleveque/fundamentals-analyzer/internal/app"
	"github.com/fleveque/fundamentals-analyzer/internal/config"
	"github.com/fleveque/fundamentals-analyzer/internal/flow"
	"github.com/fleveque/fundamentals-analyzer/internal/llm"
	"github.com/fleveque/fundamentals-analyzer/internal/model"
	"github.com/fleveque/fundamentals-analyzer/internal/service"
	"github.com/fleveque/fundamentals-analyzer/internal/storage"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalOptions struct {
	configPath string
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:          "fundamentals",
		Short:        "Fundamental analysis of company annual reports",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("FUNDAMENTALS_CONFIG_PATH"), "config file (YAML)")

	root.AddCommand(providersCmd(opts))
	root.AddCommand(sectionsCmd(opts))
	root.AddCommand(analyzeCmd(opts))
	root.AddCommand(sankeyCmd(opts))
	return root
}

// setup loads config and builds the app. The CLI always logs in development mode.
func setup(opts *globalOptions, adjust func(*config.Config)) (*app.App, *config.Config, func(), error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if adjust != nil {
		adjust(cfg)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating logger: %w", err)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, err
	}
	cleanup := func() {
		_ = a.Close()
		_ = logger.Sync()
	}
	return a, cfg, cleanup, nil
}

// signalContext is cancelled on Ctrl+C so in-flight provider calls stop.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func providersCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List AI providers and whether their key is configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			secrets, err := config.NewSecretStore(cfg.LLM.SecretsFile)
			if err != nil {
				return err
			}
			printProviders(cmd.OutOrStdout(), secrets)
			return nil
		},
	}
}

func printProviders(w io.Writer, secrets *config.SecretStore) {
	for _, d := range llm.Catalog() {
		key := "no key needed"
		if d.RequiresKey {
			key = d.KeyEnvVar + " missing (" + d.SignupURL + ")"
			if secrets.Resolve(d.KeyEnvVar) != "" {
				key = d.KeyEnvVar + " set"
			}
		}
		fmt.Fprintf(w, "%-10s %-26s %-20s %s\n", d.ID, d.Name, d.CostTier, key)
	}
}

func sectionsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sections",
		Short: "List the analysis sections",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			prompts, err := analysis.LoadPrompts(cfg.Analysis.PromptsFile)
			if err != nil {
				return err
			}
			for _, s := range prompts.Sections() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", s.Key, s.Title)
			}
			return nil
		},
	}
}

type analyzeOptions struct {
	provider string
	apiKey   string
	sections []string
	company  string
	research bool
	out      string
}

func analyzeCmd(opts *globalOptions) *cobra.Command {
	ao := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze REPORT.pdf",
		Short: "Analyze an annual report and print or export the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.OutOrStdout(), opts, ao, args[0])
		},
	}
	cmd.Flags().StringVar(&ao.provider, "provider", "", "provider id or name (default: llm.default_provider)")
	cmd.Flags().StringVar(&ao.apiKey, "api-key", "", "API key for the provider (default: secrets file or environment)")
	cmd.Flags().StringSliceVar(&ao.sections, "sections", nil, "comma-separated section keys (default: all)")
	cmd.Flags().StringVar(&ao.company, "company", "", "company name for web research (default: extracted)")
	cmd.Flags().BoolVar(&ao.research, "research", false, "enhance prompts with web research")
	cmd.Flags().StringVar(&ao.out, "out", "", "export directory for report.md, report.html and diagrams")
	return cmd
}

func runAnalyze(w io.Writer, opts *globalOptions, ao *analyzeOptions, path string) error {
	keys, err := parseSections(ao.sections)
	if err != nil {
		return err
	}

	a, cfg, cleanup, err := setup(opts, func(cfg *config.Config) {
		if ao.research {
			cfg.Research.Enabled = true
		}
	})
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	if err := connect(ctx, a, cfg, ao.provider, ao.apiKey); err != nil {
		return err
	}

	info, err := a.Reports.IngestFile(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Loaded %s: %d pages, %d characters\n", info.Filename, info.Pages, info.Characters)

	if ao.research {
		company, err := a.Reports.Workspace().EnableResearch(ctx, ao.company)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Web research enabled for %s\n", company)
	}

	if ao.out == "" {
		rep, err := a.Reports.BuildReport(ctx, keys)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, rep.Markdown())
		return err
	}

	exports, err := storage.NewFileSystem(ao.out)
	if err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	written, err := a.Reports.Export(ctx, exports, keys)
	for _, name := range written {
		fmt.Fprintln(w, exports.Path(name))
	}
	return err
}

// connect activates the requested provider, falling back to the configured
// default. Analysis needs a provider, so failing to connect is an error.
func connect(ctx context.Context, a *app.App, cfg *config.Config, identity, apiKey string) error {
	if identity == "" {
		identity = cfg.LLM.DefaultProvider
	}
	if identity == "" {
		return fmt.Errorf("no provider selected: pass --provider (one of %s)", providerIDs())
	}
	p, err := a.Reports.Workspace().Connect(ctx, identity, apiKey)
	if err != nil {
		return fmt.Errorf("connecting %s: %w", identity, err)
	}
	fmt.Fprintf(os.Stderr, "Connected to %s (%s)\n", p.Name(), p.ModelName())
	return nil
}

func providerIDs() string {
	ids := make([]string, 0, len(llm.Catalog()))
	for _, d := range llm.Catalog() {
		ids = append(ids, d.ID)
	}
	return strings.Join(ids, ", ")
}

func parseSections(raw []string) ([]model.SectionKey, error) {
	var keys []model.SectionKey
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !model.ValidSection(s) {
			return nil, fmt.Errorf("unknown section %q", s)
		}
		keys = append(keys, model.SectionKey(s))
	}
	return keys, nil
}

type sankeyOptions struct {
	provider string
	apiKey   string
	format   string
	out      string
}

func sankeyCmd(opts *globalOptions) *cobra.Command {
	so := &sankeyOptions{}
	cmd := &cobra.Command{
		Use:   "sankey [REPORT.pdf]",
		Short: "Render the business-model flow diagram (the illustrative sample without a report)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runSankey(cmd.OutOrStdout(), opts, so, path)
		},
	}
	cmd.Flags().StringVar(&so.provider, "provider", "", "provider id or name (default: llm.default_provider)")
	cmd.Flags().StringVar(&so.apiKey, "api-key", "", "API key for the provider")
	cmd.Flags().StringVar(&so.format, "format", service.FormatSVG, "output format: json, svg or png")
	cmd.Flags().StringVarP(&so.out, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func runSankey(w io.Writer, opts *globalOptions, so *sankeyOptions, path string) error {
	a, cfg, cleanup, err := setup(opts, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext()
	defer cancel()

	var g flow.Graph
	if path == "" {
		g, _ = a.Reports.FlowGraph(ctx, true)
	} else {
		if err := connect(ctx, a, cfg, so.provider, so.apiKey); err != nil {
			return err
		}
		if _, err := a.Reports.IngestFile(ctx, path); err != nil {
			return err
		}
		if g, err = a.Reports.FlowGraph(ctx, false); err != nil {
			return err
		}
		if g.Fallback {
			fmt.Fprintln(os.Stderr, "No revenue figures found; showing the illustrative sample.")
		}
	}

	var data []byte
	if so.format == service.FormatJSON {
		if data, err = json.MarshalIndent(g, "", "  "); err != nil {
			return err
		}
	} else if data, _, err = a.Reports.Diagram(g, so.format); err != nil {
		return err
	}

	if so.out == "" {
		_, err = w.Write(data)
		return err
	}
	return os.WriteFile(so.out, data, 0644)
}
