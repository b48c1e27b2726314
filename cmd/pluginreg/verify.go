package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/pluginreg/pkg/catalog"
	"github.com/jingkaihe/pluginreg/pkg/logger"
	"github.com/jingkaihe/pluginreg/pkg/presenter"
)

// VerifyConfig holds configuration for the verify command
type VerifyConfig struct {
	Concurrency int
	JSON        bool
}

// NewVerifyConfig creates a new VerifyConfig with default values
func NewVerifyConfig() *VerifyConfig {
	return &VerifyConfig{Concurrency: 8}
}

// verifyResult is the outcome of loading one entity body.
type verifyResult struct {
	Ref   string `json:"ref"`
	Bytes int    `json:"bytes"`
	Error string `json:"error,omitempty"`
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Load every entity body to check that it parses",
	Long: `Load the catalog and then read every declared entity body, reporting any
that cannot be read or whose frontmatter does not parse. validate only checks
that definitions exist; verify also reads them.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		config := getVerifyConfigFromFlags(cmd)
		exitOnError(runVerifyCommand(cmd.Context(), cmd.OutOrStdout(), config), "verification failed")
	},
}

func init() {
	defaults := NewVerifyConfig()
	verifyCmd.Flags().Int("concurrency", defaults.Concurrency, "Number of bodies loaded in parallel")
	verifyCmd.Flags().Bool("json", false, "Print results as JSON")
	viper.BindPFlag("verify.concurrency", verifyCmd.Flags().Lookup("concurrency"))
	rootCmd.AddCommand(verifyCmd)
}

func getVerifyConfigFromFlags(cmd *cobra.Command) *VerifyConfig {
	config := NewVerifyConfig()
	if n := viper.GetInt("verify.concurrency"); n > 0 {
		config.Concurrency = n
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = jsonOutput
	}
	return config
}

// verifyBodies loads the body of every entity in c. Results follow
// declaration order; a body that fails to load is recorded, not returned.
func verifyBodies(ctx context.Context, c *catalog.Catalog, concurrency int) ([]verifyResult, error) {
	var refs []catalog.Ref
	for _, s := range c.Plugins() {
		p, err := c.Resolve(s.ID)
		if err != nil {
			return nil, err
		}
		refs = append(refs, p.Refs()...)
	}

	results := make([]verifyResult, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, ref := range refs {
		g.Go(func() error {
			results[i].Ref = ref.String()
			if err := gctx.Err(); err != nil {
				return err
			}
			body, err := c.LoadEntityBody(gctx, ref)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.G(gctx).WithError(err).WithField("ref", ref.String()).Debug("entity body failed to load")
				results[i].Error = err.Error()
				return nil
			}
			results[i].Bytes = len(body.Raw)
			if body.MetaErr != nil {
				results[i].Error = body.MetaErr.Error()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "verification interrupted")
	}
	return results, nil
}

func runVerifyCommand(ctx context.Context, w io.Writer, config *VerifyConfig) error {
	c, err := loadCatalog(ctx)
	if err != nil {
		return err
	}

	results, err := verifyBodies(ctx, c, config.Concurrency)
	if err != nil {
		return err
	}

	failed := 0
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		if r.Error != "" {
			failed++
			status = r.Error
		}
		rows = append(rows, []string{r.Ref, strconv.Itoa(r.Bytes), status})
	}

	if config.JSON {
		if err := writeJSON(w, results); err != nil {
			return err
		}
	} else {
		presenter.Table([]string{"ENTITY", "BYTES", "STATUS"}, rows)
	}

	if failed > 0 {
		return errors.Errorf("%d of %d entity bodies failed verification", failed, len(results))
	}
	presenter.Success(fmt.Sprintf("All %d entity bodies loaded", len(results)))
	return nil
}
