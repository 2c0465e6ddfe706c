package i18n

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/iamwavecut/groupwarden/resources"
)

// English strings double as translation keys, so "en" needs no resource
// file.
var state = struct {
	mu           sync.RWMutex
	translations map[string]map[string]string
	loaded       map[string]bool
}{
	translations: make(map[string]map[string]string),
	loaded:       make(map[string]bool),
}

func load(lang string) {
	data, err := resources.FS.ReadFile(fmt.Sprintf("i18n/%s.yml", lang))
	if err != nil {
		log.WithField("error", err.Error()).WithField("lang", lang).Errorln("cant load i18n")
		state.loaded[lang] = true
		return
	}
	translations := make(map[string]string)
	if err := yaml.Unmarshal(data, &translations); err != nil {
		log.WithField("error", err.Error()).WithField("lang", lang).Errorln("cant unmarshal i18n")
		state.loaded[lang] = true
		return
	}
	state.translations[lang] = translations
	state.loaded[lang] = true
}

func Get(key, lang string) string {
	if lang == "en" || lang == "" {
		return key
	}
	state.mu.RLock()
	loaded := state.loaded[lang]
	state.mu.RUnlock()
	if !loaded {
		state.mu.Lock()
		if !state.loaded[lang] {
			load(lang)
		}
		state.mu.Unlock()
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	if res, ok := state.translations[lang][key]; ok {
		return res
	}
	return key
}
