package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/stressguard/internal/router"
)

// RunPlain runs the chat as a line-oriented REPL on in and out, for --plain
// or when stdin is not a terminal. It takes the same options as NewModel and
// returns the handoff target when the conversation asked for one.
func RunPlain(ctx context.Context, r *router.Router, in io.Reader, out io.Writer, opts ...Option) (string, error) {
	m := NewModel(ctx, r, opts...)
	greeting := m.transcript[0].text

	fmt.Fprintf(out, "StressGuard: %s\n", greeting)
	if m.voice {
		m.speaker.Speak(greeting)
	}

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nTú: ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return "", sc.Err()
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		if strings.EqualFold(text, VoiceCommand) {
			m.voice = !m.voice
			if m.voice {
				fmt.Fprintln(out, "(voz activada)")
			} else {
				fmt.Fprintln(out, "(voz desactivada)")
			}
			continue
		}

		streamed := false
		resp, err := r.HandleMessage(ctx, m.state, text, router.OnDelta(func(delta string) {
			if !streamed {
				fmt.Fprint(out, "StressGuard: ")
				streamed = true
			}
			fmt.Fprint(out, delta)
		}))
		if err != nil {
			fmt.Fprintln(out)
			return "", err
		}

		printResponse(out, resp, streamed)
		if m.voice {
			m.speaker.Speak(resp.Text)
		}

		switch resp.Kind {
		case router.KindExit:
			return "", nil
		case router.KindHandoff:
			return resp.Target, nil
		}
	}
}

func printResponse(out io.Writer, resp *router.Response, streamed bool) {
	if streamed {
		fmt.Fprintln(out)
		return
	}
	if resp.Notice != "" {
		fmt.Fprintf(out, "(%s)\n", resp.Notice)
	}
	if resp.Kind == router.KindShowError {
		fmt.Fprintf(out, "StressGuard: ✗ %s\n", resp.Text)
	} else {
		fmt.Fprintf(out, "StressGuard: %s\n", resp.Text)
	}
	if resp.Question > 0 && resp.Total > 0 && resp.Result == nil {
		fmt.Fprintf(out, "[pregunta %d de %d]\n", resp.Question, resp.Total)
	}
	for _, c := range resp.Choices {
		fmt.Fprintf(out, "  %s) %s\n", c.Payload, c.Label)
	}
}
