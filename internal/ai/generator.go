package ai

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/ashureev/reviewpilot/internal/domain"
	"github.com/ashureev/reviewpilot/internal/ratelimit"
)

// maxAttempts bounds the anti-repetition retry loop.
const maxAttempts = 5

// maxExamples caps how many same-rating exemplars are embedded in the prompt.
const maxExamples = 3

const systemInstructions = "Ты отвечаешь на отзывы покупателей от имени продавца на маркетплейсе. " +
	"Пиши по-русски, коротко и естественно, без шаблонных канцеляризмов. " +
	"Отвечай только текстом ответа, без кавычек и пояснений."

// styleHints is the fixed set of tone descriptors; one is picked at random
// per attempt to vary the output.
var styleHints = []string{
	"дружелюбный и теплый",
	"сдержанный и профессиональный",
	"искренний и простой",
	"заботливый и внимательный",
	"легкий и позитивный",
}

// TextGenerator is the remote generation call the Generator depends on.
type TextGenerator interface {
	Generate(ctx context.Context, instructions, prompt string) (string, error)
}

// Generator produces reply text for reviews with randomized style variation
// and anti-repetition retries. A Generator with a nil client always returns
// the deterministic fallback.
type Generator struct {
	client  TextGenerator
	limiter *ratelimit.Limiter
	rand    *rand.Rand
}

// NewGenerator creates a Generator. client may be nil when no credential is
// configured; limiter is the shared generation call gate.
func NewGenerator(client TextGenerator, limiter *ratelimit.Limiter) *Generator {
	return &Generator{
		client:  client,
		limiter: limiter,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate produces a reply for the review. Without a client it returns the
// fallback. With a client it retries up to maxAttempts times when the output
// is empty or too similar to a previously used reply from avoid; exhausting
// attempts yields "" and the caller decides whether to apply the fallback.
// Remote failures short-circuit to the fallback: generation must never block
// the sync cycle.
func (g *Generator) Generate(ctx context.Context, review *domain.Review,
	examples []*domain.Example, avoid []string, minDelay, maxDelay time.Duration) string {

	if g.client == nil {
		return Fallback(review)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		style := styleHints[g.rand.Intn(len(styleHints))]
		seed := g.rand.Intn(100000)
		prompt := buildPrompt(review, examples, style, seed)

		g.limiter.Throttle(minDelay, maxDelay)

		raw, err := g.client.Generate(ctx, systemInstructions, prompt)
		if err != nil {
			slog.Warn("generation call failed, using fallback", "error", err, "uuid", review.UUID)
			return Fallback(review)
		}

		text := trimQuotes(strings.TrimSpace(raw))
		if text == "" {
			slog.Debug("generation returned empty text, retrying", "attempt", attempt+1)
			continue
		}
		if TooSimilar(text, avoid) {
			slog.Debug("generated reply too similar to a recent one, retrying",
				"attempt", attempt+1, "uuid", review.UUID)
			continue
		}
		return text
	}

	slog.Warn("generation attempts exhausted", "uuid", review.UUID)
	return ""
}

// buildPrompt constructs the natural-language prompt embedding the review,
// a tone hint, a variation seed, and up to a few same-rating exemplars.
func buildPrompt(review *domain.Review, examples []*domain.Example, style string, seed int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Напиши ответ на отзыв покупателя.\n")
	fmt.Fprintf(&b, "Товар: %s\n", review.Product.Title)
	if review.Product.BrandInfo.Name != "" {
		fmt.Fprintf(&b, "Бренд: %s\n", review.Product.BrandInfo.Name)
	}
	fmt.Fprintf(&b, "Оценка: %d из 5\n", review.Rating)
	if review.HasText() {
		fmt.Fprintf(&b, "Текст отзыва: %s\n", strings.TrimSpace(review.Text))
	} else {
		b.WriteString("Текст отзыва отсутствует.\n")
	}
	if review.IsDeliveryReview {
		b.WriteString("Это отзыв о доставке, а не о самом товаре.\n")
	}
	fmt.Fprintf(&b, "Тон ответа: %s.\n", style)
	fmt.Fprintf(&b, "Вариация: %d.\n", seed)

	count := 0
	for _, example := range examples {
		if example.Response == "" {
			continue
		}
		if count == 0 {
			b.WriteString("Примеры ответов на похожие отзывы — только для стиля, не копируй дословно:\n")
		}
		fmt.Fprintf(&b, "- Отзыв: %s\n  Ответ: %s\n", strings.TrimSpace(example.Text), strings.TrimSpace(example.Response))
		count++
		if count >= maxExamples {
			break
		}
	}

	return b.String()
}

// trimQuotes strips one layer of surrounding quote characters the model
// sometimes wraps its output in.
func trimQuotes(text string) string {
	return strings.TrimSpace(strings.Trim(text, "\"'«»“”"))
}
