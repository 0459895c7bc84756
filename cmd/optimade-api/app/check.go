package app

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/optimade-server/internal/httpclient"
	"github.com/stacklok/optimade-server/internal/providers"
	"github.com/stacklok/optimade-server/internal/queryparams"
)

const (
	kindListing = "listing"
	kindSingle  = "single"

	fetchTimeout = 10 * time.Second
)

func newCheckParamsCmd() *cobra.Command {
	v := newViper()

	checkCmd := &cobra.Command{
		Use:   "check-params <url-or-query>",
		Short: "Classify the query parameter names of a request",
		Long: `Classify the query parameter names of a request the way the server would.

The argument is either a full URL or a bare query string. Each name is reported as
ok, unsupported, unknown_provider or invalid, followed by the warnings the server
would attach to the response. The command fails when any name is invalid.

Examples:
  optimade-api check-params 'https://example.org/v1/links?_exmpl_x=1&_mp_y=2'
  optimade-api check-params --kind single --offline 'response_fields=id&_abc_z=3'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckParams(cmd.Context(), cmd.OutOrStdout(), v, args[0])
		},
	}

	checkCmd.Flags().String("kind", kindListing, "Endpoint kind: listing or single")
	checkCmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	checkCmd.Flags().Bool("offline", false, "Use the embedded providers list instead of fetching it")
	bindFlags(v, checkCmd, "kind", "config", "offline")

	return checkCmd
}

func runCheckParams(ctx context.Context, out io.Writer, v *viper.Viper, target string) error {
	var params *queryparams.ParamSet
	switch kind := v.GetString("kind"); kind {
	case kindListing:
		params = queryparams.EntryListingParams()
	case kindSingle:
		params = queryparams.SingleEntryParams()
	default:
		return fmt.Errorf("unknown endpoint kind %q, expected %s or %s", kind, kindListing, kindSingle)
	}

	values, err := parseTarget(target)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(v.GetString("config"))
	if err != nil {
		return err
	}

	opts := []providers.Option{providers.WithSupportedPrefixes(cfg.SupportedProviderPrefixes()...)}
	switch {
	case cfg.ProvidersPath != "":
		opts = append(opts, providers.WithFile(cfg.ProvidersPath))
	case !v.GetBool("offline") && cfg.ProvidersURL != "-":
		client := httpclient.NewRetryingClient(httpclient.NewDefaultClient(fetchTimeout))
		opts = append(opts, providers.WithRemote(cfg.ProvidersURL, client))
	}
	registry, err := providers.Load(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to load providers: %w", err)
	}

	classifier := queryparams.NewClassifier(
		queryparams.WithValidation(cfg.QueryValidationEnabled()),
		queryparams.WithSupportedPrefixes(registry.Supported()...),
		queryparams.WithProviderPrefixes(registry.Known()...),
	)

	names := queryparams.Names(values)
	res := classifier.Classify(names, params)

	table := tablewriter.NewWriter(out)
	table.Header("Parameter", "Classification")
	for _, name := range names {
		if err := table.Append([]string{name, string(res.Of(name))}); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	for _, n := range res.Notices() {
		if _, err := fmt.Fprintf(out, "warning %s: %s\n", n.Kind, n.Message()); err != nil {
			return err
		}
	}

	return res.Err()
}

// parseTarget accepts a URL with a query or a bare query string
func parseTarget(target string) (url.Values, error) {
	raw := target
	if strings.Contains(target, "://") || strings.HasPrefix(target, "/") {
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", target, err)
		}
		raw = u.RawQuery
	}
	raw = strings.TrimPrefix(raw, "?")

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", raw, err)
	}
	return values, nil
}
