// Package i18n provides internationalization support for error messages.
package i18n

import (
	"bytes"
	"strings"
	"sync"
	"text/template"
)

// BaseLocale is the fallback locale used when a requested locale is unknown.
const BaseLocale = "en-US"

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

var (
	catalogsMu sync.RWMutex
	catalogs   = map[string]*Catalog{}
)

func init() {
	RegisterCatalog(NewCatalog(BaseLocale, enUSMessages))
}

// NewCatalog creates a catalog for a locale with the given message templates.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	copied := make(map[Code]string, len(messages))
	for code, message := range messages {
		copied[code] = message
	}
	return &Catalog{locale: locale, messages: copied}
}

// RegisterCatalog makes a catalog available for lookup by locale.
func RegisterCatalog(c *Catalog) {
	if c == nil {
		return
	}
	catalogsMu.Lock()
	catalogs[c.locale] = c
	catalogsMu.Unlock()
}

// GetCatalog returns the catalog for the given locale.
// Falls back to en-US if the locale is not found.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}

	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	if c, ok := catalogs[requested]; ok {
		return c
	}
	return catalogs[BaseLocale]
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template for a code with the given metadata.
// Unknown codes fall back to the code itself so callers always get a string.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	message, ok := c.messages[code]
	if !ok {
		return code
	}

	tmpl, err := template.New(code).Parse(message)
	if err != nil {
		return message
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, metadata); err != nil {
		return message
	}
	return buf.String()
}
