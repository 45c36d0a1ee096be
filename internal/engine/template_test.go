package engine

import "testing"

func TestRender(t *testing.T) {
	vars := map[string]string{
		"name":       "Alice",
		"order.id":   "A-42",
		"user_email": "a@example.com",
	}

	cases := []struct {
		name string
		tmpl string
		want string
	}{
		{"no placeholders", "Hello!", "Hello!"},
		{"simple", "Hello {{name}}!", "Hello Alice!"},
		{"whitespace inside braces", "Hello {{ name }}!", "Hello Alice!"},
		{"dotted and underscored names", "{{order.id}} -> {{user_email}}", "A-42 -> a@example.com"},
		{"repeated", "{{name}} {{name}}", "Alice Alice"},
		// Неразрешённый placeholder остаётся как есть
		{"unresolved passthrough", "Hi {{missing}}!", "Hi {{missing}}!"},
		{"mixed resolved and unresolved", "{{name}} / {{missing}}", "Alice / {{missing}}"},
		{"unbalanced braces untouched", "weird {{name", "weird {{name"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Render(tc.tmpl, vars); got != tc.want {
				t.Errorf("Render(%q) = %q, want %q", tc.tmpl, got, tc.want)
			}
		})
	}
}

func TestRender_NilVars(t *testing.T) {
	if got := Render("Hi {{name}}", nil); got != "Hi {{name}}" {
		t.Errorf("expected passthrough with nil vars, got %q", got)
	}
}
