package ai

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Спасибо за отзыв!", "спасибо за отзыв"},
		{"  Many   spaces\t\nhere  ", "many spaces here"},
		{"UPPER, lower. MiXeD!", "upper lower mixed"},
		{"", ""},
		{"!!!...", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSimilarityRatio(t *testing.T) {
	if got := SimilarityRatio("спасибо за отзыв", "спасибо за отзыв"); got != 1 {
		t.Errorf("identical texts ratio = %v, want 1", got)
	}
	if got := SimilarityRatio("совсем другой текст", "спасибо за отзыв"); got != 0 {
		t.Errorf("disjoint texts ratio = %v, want 0", got)
	}
	// Shares 3 of 4 tokens on each side.
	got := SimilarityRatio("спасибо за ваш отзыв", "спасибо за добрый отзыв")
	if got < 0.7 || got > 0.8 {
		t.Errorf("partial overlap ratio = %v, want 0.75", got)
	}
}

func TestTooSimilar(t *testing.T) {
	avoid := []string{"Спасибо за высокую оценку! Рады, что товар вам понравился."}

	if !TooSimilar("Спасибо за высокую оценку! Рады, что товар вам понравился.", avoid) {
		t.Error("exact match must be flagged")
	}
	if !TooSimilar("спасибо за высокую оценку, рады что товар вам понравился", avoid) {
		t.Error("punctuation-only variation must be flagged")
	}
	if TooSimilar("Сожалеем, что товар не оправдал ожиданий.", avoid) {
		t.Error("unrelated reply must not be flagged")
	}
	if TooSimilar("Спасибо!", nil) {
		t.Error("empty avoid-list must never flag")
	}
}
