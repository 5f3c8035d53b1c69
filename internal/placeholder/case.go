package placeholder

import (
	"strings"
	"unicode"
)

var filterFuncs = map[string]func(string) string{
	"pascal": PascalCase, // my-app → MyApp
	"camel":  CamelCase,  // my-app → myApp
	"snake":  SnakeCase,  // MyApp → my_app
	"kebab":  KebabCase,  // MyApp → my-app
	"upper":  strings.ToUpper,
	"lower":  strings.ToLower,
	"title":  Title, // my app → My App
}

// Filters returns the registered filter names, for help output.
func Filters() []string {
	return []string{"camel", "kebab", "lower", "pascal", "snake", "title", "upper"}
}

// Common acronyms that stay all-caps in PascalCase and camelCase output
var acronyms = map[string]string{
	"id":   "ID",
	"url":  "URL",
	"uri":  "URI",
	"http": "HTTP",
	"api":  "API",
	"uuid": "UUID",
	"sql":  "SQL",
	"html": "HTML",
	"css":  "CSS",
	"json": "JSON",
	"jwt":  "JWT",
	"db":   "DB",
	"ui":   "UI",
}

// PascalCase converts any of snake_case, kebab-case, camelCase or spaced
// words to PascalCase.
// Examples: my-app → MyApp, user_id → UserID, auth api → AuthAPI
func PascalCase(s string) string {
	words := splitWords(s)
	for i, w := range words {
		words[i] = capitalizeWord(w)
	}
	return strings.Join(words, "")
}

// CamelCase is PascalCase with a lowercase first word.
// Examples: my-app → myApp, UserID → userID
func CamelCase(s string) string {
	words := splitWords(s)
	for i, w := range words {
		if i == 0 {
			words[i] = strings.ToLower(w)
			continue
		}
		words[i] = capitalizeWord(w)
	}
	return strings.Join(words, "")
}

// SnakeCase converts to lower snake_case.
// Examples: MyApp → my_app, HTTPServer → http_server
func SnakeCase(s string) string {
	return strings.ToLower(strings.Join(splitWords(s), "_"))
}

// KebabCase converts to lower kebab-case, the usual npm package name shape.
// Examples: MyApp → my-app, my_app → my-app
func KebabCase(s string) string {
	return strings.ToLower(strings.Join(splitWords(s), "-"))
}

// Title capitalizes the first letter of each word and joins with spaces.
func Title(s string) string {
	words := splitWords(s)
	for i, w := range words {
		words[i] = upperFirst(strings.ToLower(w))
	}
	return strings.Join(words, " ")
}

// capitalizeWord capitalizes a word with special handling for acronyms
func capitalizeWord(w string) string {
	lower := strings.ToLower(w)
	if acronym, ok := acronyms[lower]; ok {
		return acronym
	}
	return upperFirst(w)
}

func upperFirst(w string) string {
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// splitWords breaks s at separators and case boundaries. A run of capitals
// followed by a lowercase letter splits before the last capital, so
// HTTPServer becomes [HTTP Server].
func splitWords(s string) []string {
	runes := []rune(s)
	var words []string
	var current []rune

	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}

	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}

		if unicode.IsUpper(r) && len(current) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		current = append(current, r)
	}
	flush()

	return words
}
