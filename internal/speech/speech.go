// Package speech reads assistant replies aloud through espeak-ng.
package speech

import (
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/stressguard/internal/log"
)

// Speaker speaks text without blocking the caller
type Speaker interface {
	Speak(text string)
}

// Nop is a Speaker that stays silent
type Nop struct{}

// Speak does nothing
func (Nop) Speak(string) {}

// runner executes one synthesis command
type runner func(ctx context.Context, name string, args ...string) error

func execRun(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Espeak speaks through the espeak-ng binary. Utterances are serialised so
// replies do not talk over each other; failures are logged and dropped.
type Espeak struct {
	Binary  string
	Voice   string
	Rate    int
	Timeout time.Duration

	logger *log.Logger
	run    runner
	mu     sync.Mutex
	wg     sync.WaitGroup
}

// NewEspeak creates a Spanish espeak-ng speaker at 150 words per minute
func NewEspeak(logger *log.Logger) *Espeak {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Espeak{
		Binary:  "espeak-ng",
		Voice:   "es",
		Rate:    150,
		Timeout: 2 * time.Minute,
		logger:  logger,
		run:     execRun,
	}
}

// Available reports whether the espeak-ng binary is on PATH
func (e *Espeak) Available() bool {
	_, err := exec.LookPath(e.Binary)
	return err == nil
}

// Speak starts speaking text in the background
func (e *Espeak) Speak(text string) {
	text = Clean(text)
	if text == "" {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.mu.Lock()
		defer e.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), e.Timeout)
		defer cancel()

		args := []string{"-v", e.Voice, "-s", strconv.Itoa(e.Rate), text}
		if err := e.run(ctx, e.Binary, args...); err != nil {
			e.logger.Debug("speech failed", "binary", e.Binary, "error", err.Error())
		}
	}()
}

// Wait blocks until queued utterances finish
func (e *Espeak) Wait() {
	e.wg.Wait()
}

var (
	markdownChars = regexp.MustCompile("[*_#`>]+")
	emoji         = regexp.MustCompile(`[\x{1F300}-\x{1FAFF}\x{2600}-\x{27BF}\x{FE0F}]`)
	spaces        = regexp.MustCompile(`\s+`)
)

// Clean strips markdown markers and emoji that synthesizers read literally
func Clean(text string) string {
	text = markdownChars.ReplaceAllString(text, "")
	text = emoji.ReplaceAllString(text, "")
	return strings.TrimSpace(spaces.ReplaceAllString(text, " "))
}
