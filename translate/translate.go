// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package translate localizes the messages reported by the simulator.
//
// Message keys are en-US fmt formats. The catalog is extracted with:
//
//go:generate go tool gotext -srclang=en-US update -out=catalog.go -lang=en-US github.com/ezrec/mipsim/cmd/mipsim
package translate

import (
	"log"
	"os"
	"sync"

	"github.com/jeandeaual/go-locale"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LANGUAGE_ENV overrides the system locales.
const LANGUAGE_ENV = "MIPSIM_LANG"

var (
	mutex   sync.RWMutex
	printer *message.Printer
	tag     language.Tag
)

func init() {
	if lang := os.Getenv(LANGUAGE_ENV); lang != "" {
		Use(lang)
		return
	}

	locales, err := locale.GetLocales()
	if err != nil {
		log.Printf("mipsim: locale: %v", err)
	}

	Use(locales...)
}

// Use selects the best supported language of a preference list of
// BCP 47 locales. An empty list selects en-US.
func Use(locales ...string) {
	if len(locales) == 0 {
		locales = []string{"en-US"}
	}

	selected := message.MatchLanguage(locales...)

	mutex.Lock()
	defer mutex.Unlock()

	tag = selected
	printer = message.NewPrinter(selected)
}

// Language returns the selected language.
func Language() language.Tag {
	mutex.RLock()
	defer mutex.RUnlock()

	return tag
}

// From an en-US Sprintf() format, translate to string.
func From(key message.Reference, args ...any) string {
	mutex.RLock()
	defer mutex.RUnlock()

	return printer.Sprintf(key, args...)
}
