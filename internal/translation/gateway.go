package translation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sms-relay/pkg/logger"
	"sms-relay/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// Completer is the language model behind the gateway.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// EnglishResult is the outcome of detecting and translating an inbound text.
// Err is set (and TranslatedText nil, DetectedLanguage "unknown") when the
// model could not be used.
type EnglishResult struct {
	DetectedLanguage string
	IsEnglish        bool
	TranslatedText   *string
	Err              string
}

// TargetResult is the outcome of translating an English reply.
// Exactly one of TranslatedText and Err is set.
type TargetResult struct {
	TranslatedText *string
	Err            string
}

// Gateway detects language and translates in both directions.
// It never returns Go errors: failures are reported in the result so the
// pipelines decide what to do with them.
type Gateway struct {
	model     Completer
	languages Languages
	timeout   time.Duration
}

func NewGateway(model Completer, languages Languages, timeout time.Duration) *Gateway {
	return &Gateway{model: model, languages: languages, timeout: timeout}
}

const englishPrompt = `You detect the language of a text message and translate it to English.

Reply with a single JSON object and nothing else:
- English text: {"language": "en", "needsTranslation": false}
- Any other language: {"language": "<ISO-639-1 code>", "needsTranslation": true, "translation": "<English translation>"}

<text>
%s
</text>`

const targetPrompt = `Translate this English text to %s. Respond ONLY with the translation, nothing else:

<text>
%s
</text>`

type detection struct {
	Language         string `json:"language"`
	NeedsTranslation bool   `json:"needsTranslation"`
	Translation      string `json:"translation"`
}

// ToEnglish detects the language of text and translates it to English when needed.
func (g *Gateway) ToEnglish(ctx context.Context, text string) EnglishResult {
	ctx, span := tracing.StartSpan(ctx, "translation.to_english")
	defer span.End()

	res, err := g.toEnglish(ctx, text)
	if err != nil {
		tracing.RecordError(ctx, err)
		logger.From(ctx).Warn("inbound translation failed", "err", err)
		return EnglishResult{DetectedLanguage: "unknown", Err: err.Error()}
	}
	span.SetAttributes(attribute.String("language", res.DetectedLanguage))
	return res
}

func (g *Gateway) toEnglish(ctx context.Context, text string) (EnglishResult, error) {
	reply, err := g.complete(ctx, fmt.Sprintf(englishPrompt, text))
	if err != nil {
		return EnglishResult{}, err
	}

	var d detection
	if err := json.Unmarshal([]byte(stripFence(reply)), &d); err != nil {
		return EnglishResult{}, fmt.Errorf("translation: unparsable detection reply: %w", err)
	}

	lang := strings.ToLower(strings.TrimSpace(d.Language))
	if !d.NeedsTranslation || lang == "en" {
		return EnglishResult{DetectedLanguage: "en", IsEnglish: true}, nil
	}
	if lang == "" {
		return EnglishResult{}, errors.New("translation: detection reply has no language")
	}
	translated := strings.TrimSpace(d.Translation)
	if translated == "" {
		return EnglishResult{}, errors.New("translation: detection reply has no translation")
	}
	return EnglishResult{DetectedLanguage: lang, TranslatedText: &translated}, nil
}

// ToTarget translates English text to the target language.
// English (or an unset target) is the identity and makes no model call.
func (g *Gateway) ToTarget(ctx context.Context, text, target string) TargetResult {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" || target == "en" {
		return TargetResult{TranslatedText: &text}
	}

	ctx, span := tracing.StartSpan(ctx, "translation.to_target", attribute.String("language", target))
	defer span.End()

	out, err := g.toTarget(ctx, text, target)
	if err != nil {
		tracing.RecordError(ctx, err)
		logger.From(ctx).Warn("outbound translation failed", "target", target, "err", err)
		return TargetResult{Err: err.Error()}
	}
	return TargetResult{TranslatedText: &out}
}

func (g *Gateway) toTarget(ctx context.Context, text, target string) (string, error) {
	if target == "unknown" {
		return "", errors.New("translation: contact language is unknown")
	}
	reply, err := g.complete(ctx, fmt.Sprintf(targetPrompt, g.languages.Name(target), text))
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(reply)
	if len(out) >= 2 && strings.HasPrefix(out, `"`) && strings.HasSuffix(out, `"`) {
		out = strings.TrimSpace(out[1 : len(out)-1])
	}
	if out == "" {
		return "", errors.New("translation: empty translation")
	}
	return out, nil
}

func (g *Gateway) complete(ctx context.Context, prompt string) (string, error) {
	if g.model == nil {
		return "", errors.New("translation: model not configured")
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	reply, err := g.model.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("translation: timed out after %s", g.timeout)
		}
		return "", err
	}
	return reply, nil
}

// stripFence removes a surrounding markdown code fence, which models add
// despite being asked for bare JSON.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
