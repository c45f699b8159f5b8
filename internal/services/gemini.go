package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
	"ml": "Malayalam",
}

// GeminiResponder answers free-form support questions with Gemini.
type GeminiResponder struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{} // Token bucket
}

var _ Responder = &GeminiResponder{}

func NewGeminiResponder(apiKey, modelName string, concurrentReqs int) (*GeminiResponder, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Gemini client")
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.3)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(400)
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))

	if concurrentReqs < 1 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiResponder{
		client:   client,
		model:    model,
		rateChan: rateChan,
	}, nil
}

const systemPrompt = `You are the support assistant of Swasth Saathi, a healthcare portal for migrant workers, doctors and administrators.
Answer in two to four short sentences of plain text. Do not give diagnoses or prescribe medication.
For medical emergencies always tell the user to call 108 or visit the nearest government hospital.`

func (g *GeminiResponder) Close() {
	g.client.Close()
}

// acquireRate blocks until a rate slot is available
func (g *GeminiResponder) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Minute):
		return errors.New("timeout waiting for Gemini rate slot")
	}
}

func (g *GeminiResponder) releaseRate() {
	g.rateChan <- struct{}{}
}

func (g *GeminiResponder) Respond(ctx context.Context, question, lang string) (string, error) {
	if err := g.acquireRate(ctx); err != nil {
		return "", err
	}
	defer g.releaseRate()

	resp, err := g.model.GenerateContent(ctx, genai.Text(buildAnswerPrompt(question, lang)))
	if err != nil {
		return "", errors.Wrap(err, "Gemini API error")
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Debug().Int("candidate", i).Str("finish_reason", cand.FinishReason.String()).Msg("Gemini stopped early")
		}
	}

	return extractText(resp), nil
}

func buildAnswerPrompt(question, lang string) string {
	name, ok := languageNames[lang]
	if !ok {
		name = languageNames["en"]
	}
	return fmt.Sprintf("Reply in %s.\n\nQuestion: %s", name, strings.TrimSpace(question))
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return strings.TrimSpace(text.String())
}
