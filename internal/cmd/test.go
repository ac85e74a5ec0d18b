package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stressguard/internal/errors"
	"github.com/felixgeelhaar/stressguard/internal/log"
	"github.com/felixgeelhaar/stressguard/internal/metrics"
	"github.com/felixgeelhaar/stressguard/internal/questionnaire"
	"github.com/felixgeelhaar/stressguard/internal/router"
	"github.com/felixgeelhaar/stressguard/internal/tui"
)

var testCmd = &cobra.Command{
	Use:   "test [pss14|fisio]",
	Short: "Take a stress questionnaire without the chat",
	Long: `Administer a questionnaire from the first question to the result.

Answers can be picked from a list, or typed as numbers or phrases such as
"casi nunca" with --plain. The result is saved to the results history.

Example:
  stressguard test --list
  stressguard test pss14
  stressguard test fisio --plain`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(questionnaire.PSS14), string(questionnaire.Fisio)},
	RunE:      instrumented(runTest),
}

var (
	testList  bool
	testPlain bool
)

func init() {
	testCmd.Flags().BoolVar(&testList, "list", false, "list the available questionnaires")
	testCmd.Flags().BoolVar(&testPlain, "plain", false, "type answers instead of picking them from a list")

	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	engine := questionnaire.NewEngine()

	if testList {
		printQuestionnaires(out, engine.Definitions())
		return nil
	}

	interactive := !testPlain && tui.ShouldPrompt()

	var id questionnaire.ID
	switch {
	case len(args) == 1:
		id = questionnaire.ID(args[0])
	case interactive:
		opts := make([]tui.SelectOption[questionnaire.ID], 0)
		for _, d := range engine.Definitions() {
			opts = append(opts, tui.SelectOption[questionnaire.ID]{Label: d.Name, Value: d.ID})
		}
		chosen, err := tui.PromptForSelect(ctx, "¿Qué test quieres hacer?", "", opts)
		if err != nil {
			return err
		}
		id = chosen
	default:
		return errors.NewQuestionnaireUnknownError("").
			WithSuggestion("Name the questionnaire: stressguard test pss14")
	}

	var asker tui.Asker = tui.NewLineAsker(cmd.InOrStdin(), out)
	if interactive {
		asker = tui.FormAsker{}
	}

	m := metrics.GetDefault()
	if _, err := engine.Definition(id); err == nil {
		m.QuestionnaireStarts.WithLabelValues(string(id)).Inc()
	}

	res, err := tui.RunQuestionnaire(ctx, engine, id, asker)
	if errors.HasCode(err, errors.ErrCodeQuestionnaireCancelled) {
		fmt.Fprintf(out, "\n%s\n", router.CancelledText)
		return nil
	}
	if err != nil {
		return err
	}
	m.ObserveCompletion(string(res.Questionnaire), string(res.Level), res.Total, res.MaxTotal)

	fmt.Fprintf(out, "\n%s\n", router.ResultText(res))
	saveResult(ctx, out, res, interactive)
	return nil
}

// confirmSave asks before a result goes into the history. Replaced in tests.
var confirmSave = tui.PromptForConfirmation

// saveResult stores res unless the user declines. Without a terminal the
// result is always stored.
func saveResult(ctx context.Context, out io.Writer, res *questionnaire.Result, ask bool) {
	logger := log.DefaultLogger()
	if ask {
		ok, err := confirmSave(ctx, "¿Guardar este resultado en tu historial?", true)
		if err != nil {
			logger.Debug("save confirmation failed", "error", err)
		}
		if !ok {
			fmt.Fprintln(out, "Resultado no guardado.")
			return
		}
	}

	db := openStore(appConfig, logger)
	if db == nil {
		return
	}
	defer db.Close()
	if err := db.RecordResult(ctx, res); err != nil {
		logger.Warn("Failed to save result", "questionnaire", res.Questionnaire, "error", err)
	}
}

func printQuestionnaires(out io.Writer, defs []*questionnaire.Definition) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tQUESTIONS\tSCALE") //nolint:errcheck
	fmt.Fprintln(w, "--\t----\t---------\t-----") //nolint:errcheck
	for _, d := range defs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d-%d\n", //nolint:errcheck
			d.ID, d.Name, len(d.Questions), d.ScaleMin(), d.ScaleMax())
	}
	w.Flush() //#nosec G104 -- Tabwriter flush errors not critical
}
