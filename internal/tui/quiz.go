package tui

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/stressguard/internal/errors"
	"github.com/felixgeelhaar/stressguard/internal/interpret"
	"github.com/felixgeelhaar/stressguard/internal/questionnaire"
	"github.com/felixgeelhaar/stressguard/internal/router"
)

// Asker obtains the answer to one question. index is 0-based.
type Asker interface {
	Ask(ctx context.Context, d *questionnaire.Definition, index int, question string) (int, error)
}

// RunQuestionnaire administers id from the first question to the scored
// result without going through the chat generator. The session is cancelled
// without scoring when the asker fails, including when the user asks to stop
// (ErrCodeQuestionnaireCancelled).
func RunQuestionnaire(ctx context.Context, engine *questionnaire.Engine, id questionnaire.ID, asker Asker) (*questionnaire.Result, error) {
	d, err := engine.Definition(id)
	if err != nil {
		return nil, err
	}

	var s questionnaire.Session
	q, err := engine.Start(&s, id)
	if err != nil {
		return nil, err
	}

	for {
		v, err := asker.Ask(ctx, d, s.Current, q)
		if err != nil {
			engine.Cancel(&s)
			return nil, err
		}
		step, err := engine.RecordAnswer(&s, v)
		if err != nil {
			engine.Cancel(&s)
			return nil, err
		}
		if step.Completed {
			return step.Result, nil
		}
		q = step.Next
	}
}

// FormAsker asks each question as a huh select over the answer scale
type FormAsker struct{}

// Ask implements Asker
func (FormAsker) Ask(ctx context.Context, d *questionnaire.Definition, index int, question string) (int, error) {
	opts := make([]SelectOption[int], 0, len(d.Scale))
	for _, o := range d.Scale {
		opts = append(opts, SelectOption[int]{Label: o.Label, Value: o.Value})
	}
	title := fmt.Sprintf("%d/%d  %s", index+1, len(d.Questions), question)
	v, err := PromptForSelect(ctx, title, d.Name, opts)
	if stderrors.Is(err, huh.ErrUserAborted) {
		return 0, errors.NewQuestionnaireCancelledError(string(d.ID))
	}
	return v, err
}

// LineAsker reads free-text answers line by line. Numbers and phrases are
// interpreted the same way the chat does.
type LineAsker struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewLineAsker creates a LineAsker over in and out
func NewLineAsker(in io.Reader, out io.Writer) *LineAsker {
	return &LineAsker{in: bufio.NewScanner(in), out: out}
}

// Ask implements Asker. It returns io.EOF when input ends and a
// QUESTIONNAIRE-004 error when the user types a cancel or exit command.
func (a *LineAsker) Ask(ctx context.Context, d *questionnaire.Definition, index int, question string) (int, error) {
	fmt.Fprintf(a.out, "\n%d/%d  %s\n", index+1, len(d.Questions), question)
	for _, o := range d.Scale {
		fmt.Fprintf(a.out, "  %d) %s\n", o.Value, o.Label)
	}

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		fmt.Fprint(a.out, "> ")
		if !a.in.Scan() {
			if err := a.in.Err(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}

		text := strings.TrimSpace(a.in.Text())
		if text == "" {
			continue
		}
		if router.IsCancelCommand(text) || router.IsExitCommand(text) {
			return 0, errors.NewQuestionnaireCancelledError(string(d.ID))
		}

		bare := interpret.IsBareNumber(text)
		in := interpret.Interpret(d, text)
		switch {
		case bare && !in.Resolved:
			n, _ := strconv.Atoi(text)
			fmt.Fprintln(a.out, router.OutOfRangeText(n, d.ScaleMin(), d.ScaleMax()))
		case in.Ambiguous:
			fmt.Fprintln(a.out, router.AmbiguousText(in.Candidates[0].Label, in.Candidates[1].Label))
		default:
			if !bare {
				fmt.Fprintln(a.out, router.NoticeText(in.Label))
			}
			return in.Value, nil
		}
	}
}
