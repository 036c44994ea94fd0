package usecase

import (
	"context"
	"fmt"
	"strings"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
)

const catalogSuggestLimit = 5

// 外部のAIの代わりにカタログ検索で答える
type CatalogAssistant struct {
	products repo.ProductRepository
}

func NewCatalogAssistant(products repo.ProductRepository) *CatalogAssistant {
	return &CatalogAssistant{products: products}
}

func (a *CatalogAssistant) Reply(ctx context.Context, history []model.ChatMessage, message string) (string, error) {
	// 文全体 → 長い単語の順に探す
	queries := append([]string{message}, keywords(message)...)

	for _, q := range queries {
		if len(q) > 100 {
			continue
		}
		items, _, err := a.products.ListPublic(ctx, repo.ProductListQuery{Page: 1, Limit: catalogSuggestLimit, Q: q})
		if err != nil {
			return "", err
		}
		if len(items) > 0 {
			return formatSuggestions(q, items), nil
		}
	}

	return "Sorry, I could not find any books about that. Try a title or an author name.", nil
}

func keywords(message string) []string {
	words := strings.FieldsFunc(message, func(r rune) bool {
		return !(r == '-' || r == '\'' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') || r > 127)
	})

	var out []string
	seen := map[string]bool{}
	for _, w := range words {
		w = strings.ToLower(w)
		if len([]rune(w)) < 3 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}

	// 長い単語ほど絞り込める
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && len(out[j]) > len(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func formatSuggestions(q string, items []model.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here is what I found for %q:\n", q)
	for _, p := range items {
		fmt.Fprintf(&b, "- %s", p.Title)
		if p.Author != "" {
			fmt.Fprintf(&b, " by %s", p.Author)
		}
		fmt.Fprintf(&b, " (%s)", p.Price.StringFixed(2))
		if p.Stock == 0 {
			b.WriteString(" - out of stock")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
