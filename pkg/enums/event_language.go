package enums

import "fmt"

// EventLanguage is the language an event is held in.
type EventLanguage string

const (
	EventLanguageEN EventLanguage = "EN"
	EventLanguageAZ EventLanguage = "AZ"
	EventLanguageTR EventLanguage = "TR"
	EventLanguageRU EventLanguage = "RU"
)

var validEventLanguages = []EventLanguage{
	EventLanguageEN,
	EventLanguageAZ,
	EventLanguageTR,
	EventLanguageRU,
}

// String implements fmt.Stringer.
func (e EventLanguage) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EventLanguage.
func (e EventLanguage) IsValid() bool {
	for _, candidate := range validEventLanguages {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEventLanguage converts raw input into an EventLanguage.
func ParseEventLanguage(value string) (EventLanguage, error) {
	for _, candidate := range validEventLanguages {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event language %q", value)
}
