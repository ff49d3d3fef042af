package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
	localeGerman  locale = "de"
)

type messages struct {
	recording  string
	processing string
	errorText  string
}

func indicatorMessagesFromEnv() messages {
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if raw := os.Getenv(name); raw != "" {
			return indicatorMessages(resolveLocale(raw))
		}
	}
	return indicatorMessages(localeEnglish)
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "de") {
		return localeGerman
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeGerman:
		return messages{
			recording:  "Aufnahme…",
			processing: "Transkription…",
			errorText:  "Spracherkennung fehlgeschlagen",
		}
	default:
		return messages{
			recording:  "Recording…",
			processing: "Transcribing…",
			errorText:  "Speech recognition error",
		}
	}
}
