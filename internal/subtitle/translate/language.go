package translate

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ParseLanguage validates a BCP 47 language tag such as "pt-BR" or "ja".
func ParseLanguage(code string) (language.Tag, error) {
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und, fmt.Errorf("invalid language %q: %w", code, err)
	}
	return tag, nil
}

// LanguageName returns the English display name of a language code for use
// in prompts. Unknown codes are returned unchanged.
func LanguageName(code string) string {
	if code == "" || code == "auto" {
		return "the source language"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

// deeplLangCode converts a language tag to the code DeepL expects
func deeplLangCode(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return strings.ToUpper(code)
	}
	base, _ := tag.Base()
	region, conf := tag.Region()

	switch base.String() {
	case "pt":
		if conf == language.Exact && region.String() == "PT" {
			return "PT-PT"
		}
		return "PT-BR"
	case "en":
		if conf == language.Exact && region.String() == "GB" {
			return "EN-GB"
		}
		return "EN-US"
	}
	return strings.ToUpper(base.String())
}
