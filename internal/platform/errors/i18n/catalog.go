// Package i18n renders localized escrow error messages from the embedded
// "errors" namespace of the platform catalog.
package i18n

import (
	"strings"
	"sync"
	"text/template"

	i18ncatalog "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/i18n/catalog"
)

// Code is an error code string. It mirrors errors.Code without importing it.
type Code = string

const errorsNamespace = "errors"

// message is one compiled catalog entry. tmpl is nil when the source did not
// parse; raw is rendered verbatim in that case.
type message struct {
	raw  string
	tmpl *template.Template
}

// Catalog holds the compiled error messages of a single locale.
type Catalog struct {
	locale   string
	messages map[Code]message
}

// registry caches one catalog per resolved locale.
type registry struct {
	mu       sync.RWMutex
	byLocale map[string]*Catalog
}

var catalogs = &registry{byLocale: map[string]*Catalog{}}

// GetCatalog returns the catalog that best matches locale. Unknown or empty
// locales resolve to the base locale.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = i18ncatalog.BaseLocale
	}
	if c := catalogs.get(requested); c != nil {
		return c
	}
	resolved, raw := i18ncatalog.Default().NamespaceMessagesWithFallback(requested, errorsNamespace)
	if c := catalogs.get(resolved); c != nil {
		return c
	}
	return catalogs.putIfAbsent(resolved, NewCatalog(resolved, raw))
}

// RegisterCatalog installs cat for locale, replacing any cached entry.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogs.mu.Lock()
	defer catalogs.mu.Unlock()
	catalogs.byLocale[locale] = cat
}

// NewCatalog compiles messages for locale.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	compiled := make(map[Code]message, len(messages))
	for code, raw := range messages {
		m := message{raw: raw}
		if t, err := template.New(code).Parse(raw); err == nil {
			m.tmpl = t
		}
		compiled[code] = m
	}
	return &Catalog{locale: locale, messages: compiled}
}

// Locale is the resolved locale tag, e.g. "pt-BR".
func (c *Catalog) Locale() string {
	return c.locale
}

// Has reports whether the catalog carries a message for code.
func (c *Catalog) Has(code Code) bool {
	_, ok := c.messages[code]
	return ok
}

// Format renders the message for code with metadata as template data. A
// code with no message renders as itself; a broken template renders its
// source text.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	m, ok := c.messages[code]
	if !ok {
		return code
	}
	if m.tmpl == nil {
		return m.raw
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	var b strings.Builder
	if err := m.tmpl.Execute(&b, metadata); err != nil {
		return m.raw
	}
	return b.String()
}

func (r *registry) get(locale string) *Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byLocale[locale]
}

func (r *registry) putIfAbsent(locale string, c *Catalog) *Catalog {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byLocale[locale]; ok {
		return existing
	}
	r.byLocale[locale] = c
	return c
}
