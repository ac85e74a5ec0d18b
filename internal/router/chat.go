package router

import (
	"context"
	"strings"
	"time"

	"github.com/felixgeelhaar/stressguard/internal/config"
	"github.com/felixgeelhaar/stressguard/internal/errors"
	"github.com/felixgeelhaar/stressguard/internal/provider"
	"github.com/felixgeelhaar/stressguard/internal/telemetry"
	"github.com/felixgeelhaar/stressguard/internal/textmatch"
)

func (r *Router) chat(ctx context.Context, st *State, text, folded string, c call) (*Response, error) {
	if _, ok := textmatch.ContainsAny(folded, distressWords); ok && !st.GuidanceMode {
		st.GuidanceMode = true
		r.logger.Info("guidance mode enabled")
	}

	if r.generator == nil {
		return &Response{Kind: KindShowError, Text: noGeneratorTx,
			Err: errors.New(errors.ErrCodeGeneratorUnknown, "no chat generator configured")}, nil
	}

	mode := "casual"
	if st.GuidanceMode {
		mode = "guidance"
	}
	req := &provider.GenerateRequest{
		Prompt:       text,
		SystemPrompt: r.systemPrompt(st.GuidanceMode),
		Context:      append([]provider.Message(nil), st.History...),
	}

	name := generatorName(r.generator)
	ctx, span := telemetry.StartGeneratorSpan(ctx, name, mode)
	defer span.End()
	start := time.Now()

	reply, err := r.collect(ctx, name, req, c.onDelta)
	if r.metrics != nil {
		r.metrics.ChatTurns.WithLabelValues(mode).Inc()
		r.metrics.ObserveGeneration(name, time.Since(start), err)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.WithError(err).Warn("chat generation failed")
		return &Response{Kind: KindShowError, Text: generatorErrorText(err), Err: err}, nil
	}

	telemetry.RecordSuccess(span)
	st.History = appendTurn(st.History, text, reply, r.maxHistory)

	if _, ok := textmatch.ContainsAny(reply, suggestionWords); ok {
		st.LastSuggestion = SuggestionMenu
		r.logger.Debug("test suggestion detected in reply")
		return &Response{Kind: KindForwardToChat, Text: offerText, Choices: testChoices()}, nil
	}

	return &Response{Kind: KindForwardToChat, Text: reply}, nil
}

// systemPrompt picks the instructions for the current mode. Prompts too
// short to be real instructions are replaced by a minimal built-in one.
func (r *Router) systemPrompt(guidance bool) string {
	name, p := "casual", r.prompts.Casual
	if guidance {
		name, p = "guidance", r.prompts.Guidance
	}
	if n := len([]rune(strings.TrimSpace(p))); n < config.MinPromptLength {
		r.logger.WithError(errors.NewPromptMissingError(name, n)).Warn("using fallback system prompt")
		return config.FallbackPrompt
	}
	return p
}

// collect drains the stream into one string, forwarding deltas to onDelta
func (r *Router) collect(ctx context.Context, name string, req *provider.GenerateRequest, onDelta func(string)) (string, error) {
	ch, err := r.generator.Stream(ctx, req)
	if err != nil {
		return "", wrapGeneratorError(name, err)
	}

	var b strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				if err := ctx.Err(); err != nil {
					return "", err
				}
				return strings.TrimSpace(b.String()), nil
			}
			if chunk.Error != nil {
				return "", wrapGeneratorError(name, chunk.Error)
			}
			if chunk.Delta != "" {
				b.WriteString(chunk.Delta)
				if onDelta != nil {
					onDelta(chunk.Delta)
				}
			}
			if chunk.Done {
				return strings.TrimSpace(b.String()), nil
			}
		}
	}
}

func wrapGeneratorError(name string, err error) error {
	if errors.CodeOf(err) != "" {
		return err
	}
	return errors.NewGeneratorError(name, err)
}

func generatorName(g Generator) string {
	if p, ok := g.(interface{ GetInfo() *provider.ProviderInfo }); ok {
		if info := p.GetInfo(); info != nil && info.Name != "" {
			return info.Name
		}
	}
	return "llm"
}
