package engine

import (
	"regexp"
	"strings"
)

// placeholderRe — синтаксис подстановки {{var}} в текстах узлов.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Render подставляет переменные сессии в шаблон.
//
// Неразрешённый placeholder остаётся в тексте как есть: видимая
// пользователю «дырка» хуже, чем сырой {{var}}, который автор бота
// заметит и починит. Ошибок рендеринг не возвращает.
func Render(tmpl string, vars map[string]string) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}
