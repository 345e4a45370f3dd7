// Command amlctl runs the alert analyser and the search client from the
// command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/aml-analyser/internal/bootstrap"
	"github.com/bryanwahyu/aml-analyser/internal/config"
	"github.com/bryanwahyu/aml-analyser/internal/domain/alerts"
	"github.com/bryanwahyu/aml-analyser/internal/infra/ai/prompt"
	"github.com/bryanwahyu/aml-analyser/internal/infra/search/serpapi"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	envFile    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	var rf rootFlags
	root := &cobra.Command{
		Use:           "amlctl",
		Short:         "AML alert analyser tools",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rf.envFile != "" {
				if err := godotenv.Load(rf.envFile); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("load %s: %w", rf.envFile, err)
				}
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&rf.configPath, "config", envOr("CONFIG_PATH", "config.yaml"), "path to config.yaml")
	root.PersistentFlags().StringVar(&rf.envFile, "env-file", ".env", "dotenv file to load before reading config")
	root.PersistentFlags().BoolVarP(&rf.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(newAnalyseCmd(&rf), newSearchCmd(&rf), newPromptCmd(&rf))
	return root
}

func (rf *rootFlags) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadOrDefault(rf.configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.Log.Format = "text"
	if rf.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, bootstrap.NewLogger(os.Stderr, cfg), nil
}

func newAnalyseCmd(rf *rootFlags) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "analyse",
		Short: "Analyse one alert read as JSON from --input (or stdin)",
		Long: `Reads {"alert_id", "alert_information", "documents", "rfi_options",
"additional_context"} and prints the validated analysis as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := rf.load()
			if err != nil {
				return err
			}
			inv, err := readInvestigation(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			agent, err := bootstrap.NewAgent(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			out, err := agent.Run(cmd.Context(), inv.Information, inv.Documents, inv.RFIOptions, inv.AdditionalContext)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "investigation JSON file, - for stdin")
	return cmd
}

func newSearchCmd(rf *rootFlags) *cobra.Command {
	var (
		domain string
		params []string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a Google search through SerpAPI and print the raw result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := rf.load()
			if err != nil {
				return err
			}
			extra, err := parseParams(params)
			if err != nil {
				return err
			}
			client, err := bootstrap.NewSearchClient(cfg)
			if err != nil {
				return err
			}
			res, err := client.Search(cmd.Context(), strings.Join(args, " "), domain, extra)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&domain, "domain", serpapi.DefaultDomain, "google_domain parameter, empty to omit")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "extra SerpAPI parameter as key=value (repeatable)")
	return cmd
}

func newPromptCmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Inspect the analyser prompts",
	}

	var input string
	render := &cobra.Command{
		Use:   "render",
		Short: "Print the system prompt and the rendered user message for an investigation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := rf.load()
			if err != nil {
				return err
			}
			store := prompt.DefaultStore()
			if cfg.AI.PromptsDir != "" {
				store = prompt.DirStore(cfg.AI.PromptsDir)
			}
			system, err := store.SystemPrompt(cfg.AI.Agent)
			if err != nil {
				return err
			}
			tmpl, err := store.UserTemplate(cfg.AI.Agent)
			if err != nil {
				return err
			}
			inv, err := readInvestigation(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			user, err := prompt.BuildUserMessage(tmpl, inv.Information, inv.Documents, inv.RFIOptions, inv.AdditionalContext)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "=== system ===\n%s\n\n=== user ===\n%s\n", system, user)
			return nil
		},
	}
	render.Flags().StringVarP(&input, "input", "i", "-", "investigation JSON file, - for stdin")
	cmd.AddCommand(render)
	return cmd
}

func readInvestigation(stdin io.Reader, path string) (*alerts.Investigation, error) {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var inv alerts.Investigation
	if err := json.NewDecoder(r).Decode(&inv); err != nil {
		return nil, fmt.Errorf("decode investigation: %w", err)
	}
	return &inv, nil
}

func parseParams(kvs []string) (map[string]string, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", kv)
		}
		out[k] = v
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
