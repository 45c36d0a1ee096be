package dispatcher

import (
	"strings"

	"github.com/shaiso/Botflow/internal/domain"
)

// keywordIndex — неизменяемый снимок соответствия trigger keyword → бот.
//
// Индекс пересобирается целиком при изменении ботов и подменяется
// атомарно: читатели никогда не видят полусобранную таблицу. Ключи
// нормализованы (trim + нижний регистр).
type keywordIndex struct {
	byKeyword map[string]domain.Bot
}

func buildKeywordIndex(bots []domain.Bot) *keywordIndex {
	idx := &keywordIndex{byKeyword: make(map[string]domain.Bot)}
	for _, b := range bots {
		if !b.IsActive {
			continue
		}
		for _, kw := range b.TriggerKeywords {
			key := normalizeKeyword(kw)
			if key == "" {
				continue
			}
			// Первый бот с ключевым словом выигрывает; конфликт
			// ключевых слов между ботами — ошибка конфигурации.
			if _, taken := idx.byKeyword[key]; !taken {
				idx.byKeyword[key] = b
			}
		}
	}
	return idx
}

// match ищет бота, чьё ключевое слово совпадает с текстом целиком.
func (idx *keywordIndex) match(text string) (bot domain.Bot, keyword string, ok bool) {
	key := normalizeKeyword(text)
	if key == "" {
		return domain.Bot{}, "", false
	}
	bot, ok = idx.byKeyword[key]
	if !ok {
		return domain.Bot{}, "", false
	}
	return bot, key, true
}

func normalizeKeyword(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// matchTrigger сверяет текст с ключевыми словами конкретного бота.
func matchTrigger(bot *domain.Bot, text string) string {
	key := normalizeKeyword(text)
	if key == "" {
		return ""
	}
	for _, kw := range bot.TriggerKeywords {
		if normalizeKeyword(kw) == key {
			return key
		}
	}
	return ""
}
