package ai

import "github.com/ashureev/reviewpilot/internal/domain"

// Fixed fallback replies keyed on rating and presence of review text.
const (
	fallbackHighRatingNoText = "Спасибо за высокую оценку! Рады, что товар вам понравился."
	fallbackGoodRating       = "Спасибо за отзыв! Нам важно ваше мнение."
	fallbackNeutralRating    = "Спасибо за отзыв. Мы учтем ваши замечания, чтобы стать лучше."
	fallbackLowRating        = "Сожалеем, что товар не оправдал ожиданий. Напишите, пожалуйста, подробнее, мы разберемся."
)

// Fallback returns the deterministic rule-based reply for a review. Used when
// no generation credential is configured or generation fails.
func Fallback(review *domain.Review) string {
	switch {
	case review.Rating >= 5 && !review.HasText():
		return fallbackHighRatingNoText
	case review.Rating >= 4:
		return fallbackGoodRating
	case review.Rating == 3:
		return fallbackNeutralRating
	default:
		return fallbackLowRating
	}
}
