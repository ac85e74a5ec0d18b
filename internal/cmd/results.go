package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stressguard/internal/questionnaire"
	"github.com/felixgeelhaar/stressguard/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List saved questionnaire results",
	Long: `List completed questionnaires from the results history, newest first.

Example:
  stressguard results
  stressguard results --questionnaire pss14 --limit 5
  stressguard results --json`,
	Args: cobra.NoArgs,
	RunE: instrumented(runResults),
}

var (
	resultsQuestionnaire string
	resultsLimit         int
	resultsJSON          bool
)

func init() {
	resultsCmd.Flags().StringVar(&resultsQuestionnaire, "questionnaire", "", "only show results of this questionnaire (pss14, fisio)")
	resultsCmd.Flags().IntVar(&resultsLimit, "limit", 20, "maximum number of results, 0 for all")
	resultsCmd.Flags().BoolVar(&resultsJSON, "json", false, "output results as JSON")

	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	db, err := store.Open(appConfig.Storage.Path, store.WithMkdirAll())
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := db.ListResults(ctx, store.ResultFilter{
		Questionnaire: questionnaire.ID(resultsQuestionnaire),
		Limit:         resultsLimit,
	})
	if err != nil {
		return err
	}

	if resultsJSON {
		if results == nil {
			results = []*questionnaire.Result{}
		}
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No hay resultados guardados todavía.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "COMPLETED\tQUESTIONNAIRE\tSCORE\tLEVEL") //nolint:errcheck
	fmt.Fprintln(w, "---------\t-------------\t-----\t-----") //nolint:errcheck
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\n", //nolint:errcheck
			r.CompletedAt.Local().Format(time.DateTime), r.Questionnaire, r.Total, r.MaxTotal, r.Level.Spanish())
	}
	w.Flush() //#nosec G104 -- Tabwriter flush errors not critical
	return nil
}
