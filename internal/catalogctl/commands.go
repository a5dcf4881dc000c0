// Package catalogctl is the command line front of CatalogAdmin: it applies
// product manifests, lists the catalog and prunes products or variants.
package catalogctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joao-fontenele/storefront/internal/admin"
	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/domain"
)

// Env is what commands run against. Close releases storage and producers.
type Env struct {
	Admin   *admin.CatalogAdmin
	Catalog *catalog.Catalog
	Close   func(ctx context.Context) error
}

type EnvFunc func(ctx context.Context) (*Env, error)

// operator is the session every command runs under.
var operator = &auth.Session{
	Customer: domain.Customer{ID: "catalogctl", Name: "catalogctl", Role: domain.RoleAdmin},
}

func NewRootCommand(open EnvFunc) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CATALOGCTL")
	v.AutomaticEnv()

	var env *Env

	// withEnv opens the environment for one command and closes it after.
	withEnv := func(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) (err error) {
			env, err = open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if env.Close != nil {
					err = errors.Join(err, env.Close(context.WithoutCancel(cmd.Context())))
				}
			}()
			return run(cmd, args)
		}
	}

	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Manage storefront products and variants",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("output", "o", "table", "output format: table|json|yaml")
	_ = v.BindPFlag("output", root.PersistentFlags().Lookup("output"))

	ctx := func(cmd *cobra.Command) context.Context {
		return auth.WithSession(cmd.Context(), operator)
	}

	var file string
	apply := &cobra.Command{
		Use:   "apply -f FILE",
		Short: "Create or update the products in a YAML manifest",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, args []string) error {
			manifests, err := readManifests(cmd, file)
			if err != nil {
				return err
			}
			for _, m := range manifests {
				product, grid, err := m.Build()
				if err != nil {
					return fmt.Errorf("%s: %w", m.Product.Name, err)
				}
				res, err := env.Admin.Save(ctx(cmd), product, grid)
				if err != nil {
					return describe(m.Product.Name, res, err)
				}
				verb := "updated"
				if res.Created {
					verb = "created"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d variants)\n", verb, res.Product.ID, len(res.Variants))
			}
			return nil
		}),
	}
	apply.Flags().StringVarP(&file, "file", "f", "", "manifest path, - for stdin")
	_ = apply.MarkFlagRequired("file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List products with price and stock",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, args []string) error {
			summaries, err := env.Admin.Summaries(ctx(cmd))
			if err != nil {
				return err
			}
			return printSummaries(cmd.OutOrStdout(), v.GetString("output"), summaries)
		}),
	}

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Print a product as a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string) error {
			p, ok := env.Catalog.Product(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrProductNotFound, args[0])
			}
			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(ManifestOf(p, env.Catalog.VariantsFor(args[0])))
		}),
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a product and its variants",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string) error {
			if err := env.Admin.Delete(ctx(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	}

	var variants []string
	prune := &cobra.Command{
		Use:   "prune ID --variant SIZE/COLOR...",
		Short: "Delete size and color combinations of a product",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(args[0], variants)
			if err != nil {
				return err
			}
			n, err := env.Admin.DeleteVariants(ctx(cmd), args[0], keys)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d variants of %s\n", n, args[0])
			return nil
		}),
	}
	prune.Flags().StringSliceVar(&variants, "variant", nil, "SIZE/COLOR to remove, repeatable")
	_ = prune.MarkFlagRequired("variant")

	root.AddCommand(apply, list, get, del, prune)
	return root
}

func readManifests(cmd *cobra.Command, path string) ([]Manifest, error) {
	if path == "-" {
		return DecodeManifests(cmd.InOrStdin())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return DecodeManifests(f)
}

func parseKeys(productID string, pairs []string) ([]domain.VariantKey, error) {
	keys := make([]domain.VariantKey, 0, len(pairs))
	for _, pair := range pairs {
		size, color, ok := strings.Cut(pair, "/")
		if !ok || size == "" || color == "" {
			return nil, fmt.Errorf("variant %q: want SIZE/COLOR", pair)
		}
		keys = append(keys, domain.VariantKey{ProductID: productID, Size: size, Color: color})
	}
	return keys, nil
}

// describe adds what a partially applied save left behind.
func describe(name string, res *admin.Result, err error) error {
	if res != nil {
		return fmt.Errorf("%s: product %s saved but variants failed: %w", name, res.Product.ID, err)
	}
	return fmt.Errorf("%s: %w", name, err)
}

func printSummaries(w io.Writer, format string, summaries []catalog.Summary) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	case "yaml":
		rows := make([]map[string]any, 0, len(summaries))
		for _, s := range summaries {
			rows = append(rows, map[string]any{
				"id":       s.Product.ID.String(),
				"name":     s.Product.Name,
				"category": s.Product.Category,
				"from":     minPrice(s),
				"stock":    s.TotalStock,
				"variants": s.VariantCount,
			})
		}
		return yaml.NewEncoder(w).Encode(rows)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tFROM\tSTOCK\tVARIANTS")
		for _, s := range summaries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
				s.Product.ID, s.Product.Name, s.Product.Category, minPrice(s), s.TotalStock, s.VariantCount)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func minPrice(s catalog.Summary) string {
	if !s.MinPrice.Valid {
		return "-"
	}
	return s.MinPrice.Decimal.StringFixed(2)
}
