package core

import "fmt"

// Language identifies which translation of a multi-language selector value to
// use when compiling a query. The set is closed; selector files reject tags
// outside it.
type Language string

const (
	LanguageChinese            Language = "chinese"
	LanguageChineseTraditional Language = "chinese-traditional"
	LanguageEnglish            Language = "english"
	LanguageJapanese           Language = "japanese"
	LanguageKorean             Language = "korean"
	LanguageGerman             Language = "german"
	LanguageFrench             Language = "french"
)

// Languages lists every supported language tag
var Languages = []Language{
	LanguageChinese,
	LanguageChineseTraditional,
	LanguageEnglish,
	LanguageJapanese,
	LanguageKorean,
	LanguageGerman,
	LanguageFrench,
}

// ParseLanguage validates a language tag
func ParseLanguage(s string) (Language, error) {
	for _, l := range Languages {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

// Valid reports whether the language is one of the supported tags
func (l Language) Valid() bool {
	_, err := ParseLanguage(string(l))
	return err == nil
}
