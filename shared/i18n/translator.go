// Package i18n holds the message catalog for the site-counts text domain.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// TextDomain is the translation domain of the site counts block.
const TextDomain = "site-counts"

// Message keys. English catalogs use the key as the translation.
const (
	MsgPostCounts      = "Post Counts"
	MsgThereAre        = "There are %s %s."
	MsgCurrentPostID   = "The current post ID is %s."
	MsgFilteredHeading = "5 posts with the tag of foo and the category of baz"
	MsgPrivateTitle    = "Private: %s"
)

var translations = map[language.Tag]map[string]string{
	language.BrazilianPortuguese: {
		MsgPostCounts:      "Contagem de posts",
		MsgThereAre:        "Existem %s %s.",
		MsgCurrentPostID:   "O ID do post atual é %s.",
		MsgFilteredHeading: "5 posts com a tag foo e a categoria baz",
		MsgPrivateTitle:    "Privado: %s",
	},
}

// supportedTags lists English first so it wins ties in the matcher.
var supportedTags = []language.Tag{
	language.English,
	language.BrazilianPortuguese,
}

var (
	defaultCatalog = buildCatalog()
	matcher        = language.NewMatcher(supportedTags)
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range translations {
		for key, msg := range msgs {
			// Keys are compile-time constants; SetString only fails on
			// malformed messages.
			if err := b.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Translator formats messages of the site-counts text domain in one locale.
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// NewTranslator returns a translator for the closest supported match of
// locale (a BCP 47 tag such as "pt-BR"). Unparseable or unsupported locales
// fall back to English.
func NewTranslator(locale string) *Translator {
	tag := language.English
	if parsed, err := language.Parse(locale); err == nil {
		_, idx, confidence := matcher.Match(parsed)
		if confidence != language.No {
			tag = supportedTags[idx]
		}
	}

	return &Translator{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(defaultCatalog)),
	}
}

// Language returns the tag the translator resolved to.
func (t *Translator) Language() language.Tag {
	return t.tag
}

// T translates a message without arguments.
func (t *Translator) T(key string) string {
	return t.printer.Sprintf(key)
}

// Sprintf translates key and formats it with args.
func (t *Translator) Sprintf(key string, args ...any) string {
	return t.printer.Sprintf(key, args...)
}
