// Package i18n serves the bundled API messages in Spanish and English.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

//go:embed locales/*.json
var locales embed.FS

var translations = make(map[string]map[string]string)

// DefaultLang is the product language and the fallback for missing keys.
var DefaultLang = "es"

var Languages = []string{"es", "en"}

func init() {
	if err := LoadTranslations(); err != nil {
		panic(err)
	}
}

func LoadTranslations() error {
	for _, lang := range Languages {
		data, err := locales.ReadFile(fmt.Sprintf("locales/%s.json", lang))
		if err != nil {
			return err
		}
		var t map[string]string
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("locale %s: %w", lang, err)
		}
		translations[lang] = t
	}
	return nil
}

// T returns the message for key in lang, then in DefaultLang, then key itself.
func T(lang, key string) string {
	for _, l := range []string{lang, DefaultLang} {
		if msg, ok := translations[l][key]; ok {
			return msg
		}
	}
	return key
}

// DetectLanguage picks the ?lang= query value when supported, otherwise
// the highest weighted supported Accept-Language entry.
func DetectLanguage(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); supported(lang) {
		return lang
	}
	for _, lang := range acceptedLanguages(r.Header.Get("Accept-Language")) {
		if supported(lang) {
			return lang
		}
	}
	return DefaultLang
}

func supported(lang string) bool {
	_, ok := translations[lang]
	return ok
}

type weighted struct {
	lang string
	q    float64
}

// acceptedLanguages parses "fr-CH, fr;q=0.9, en;q=0.8" into primary
// subtags ordered by weight. Entries with q=0 are dropped.
func acceptedLanguages(header string) []string {
	var entries []weighted
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(strings.TrimSpace(part), ";")
		tag := strings.TrimSpace(fields[0])
		if len(tag) < 2 {
			continue
		}
		q := 1.0
		for _, p := range fields[1:] {
			if v, ok := strings.CutPrefix(strings.TrimSpace(p), "q="); ok {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					q = f
				}
			}
		}
		if q <= 0 {
			continue
		}
		entries = append(entries, weighted{lang: strings.ToLower(tag[:2]), q: q})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].q > entries[j].q })

	langs := make([]string, len(entries))
	for i, e := range entries {
		langs[i] = e.lang
	}
	return langs
}
