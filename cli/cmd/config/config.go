package config

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/repcoach/repcoach/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand groups configuration diagnostics.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management and diagnostics",
	}
	cmd.AddCommand(
		newShowCommand(),
		newValidateCommand(),
	)
	return cmd
}

func newShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Long: `Display the configuration after defaults, the YAML file, the environment
and flags are applied. Secrets are redacted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}
			ctx := cmd.Context()
			return formatConfigOutput(cmd.OutOrStdout(), config.FromContext(ctx), config.ServiceFromContext(ctx), format)
		},
	}
	cmd.Flags().StringP("format", "f", "table", "Output format (json, yaml, table)")
	return cmd
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the resolved configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc := config.ServiceFromContext(ctx)
			if svc == nil {
				svc = config.NewService()
			}
			if err := svc.Validate(config.FromContext(ctx)); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return err
		},
	}
}

func formatConfigOutput(w io.Writer, cfg *config.Config, sources config.Service, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	case "yaml":
		return yaml.NewEncoder(w).Encode(flatten(cfg))
	case "table":
		return outputTable(w, cfg, sources)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// flatten keys the config by koanf path with secrets rendered redacted.
func flatten(cfg *config.Config) map[string]any {
	k := koanf.New(".")
	_ = k.Load(structs.Provider(cfg, "koanf"), nil)
	out := make(map[string]any, len(k.Keys()))
	for _, key := range k.Keys() {
		v := k.Get(key)
		if s, ok := v.(config.SensitiveString); ok {
			v = s.String()
		}
		out[key] = v
	}
	return out
}

func outputTable(w io.Writer, cfg *config.Config, sources config.Service) error {
	values := flatten(cfg)
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
	for _, key := range keys {
		source := config.SourceDefault
		if sources != nil {
			source = sources.GetSource(key)
		}
		fmt.Fprintf(tw, "%s\t%v\t%s\n", key, values[key], source)
	}
	return tw.Flush()
}
