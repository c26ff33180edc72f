package locale

import (
	"os"
	"strings"

	"golang.org/x/text/language"
)

// FallbackLocale is used when the environment names no usable locale.
const FallbackLocale = "en"

// DetectSystemLocale reads LC_ALL, LC_MESSAGES and LANG, in that order, and
// returns the first one that is a valid language tag, in BCP 47 form
// ("en_US.UTF-8" gives "en-US").
func DetectSystemLocale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if tag, ok := parsePOSIX(os.Getenv(key)); ok {
			return tag.String()
		}
	}
	return FallbackLocale
}

func parsePOSIX(v string) (language.Tag, bool) {
	v, _, _ = strings.Cut(v, ".")
	v, _, _ = strings.Cut(v, "@")
	if v == "" || v == "C" || v == "POSIX" {
		return language.Und, false
	}
	tag, err := language.Parse(strings.ReplaceAll(v, "_", "-"))
	if err != nil || tag == language.Und {
		return language.Und, false
	}
	return tag, true
}

// Match returns the supported locale closest to want. ok is false when
// nothing matches with at least low confidence.
func Match(want string, supported []string) (string, bool) {
	if len(supported) == 0 {
		return "", false
	}
	tags := make([]language.Tag, 0, len(supported))
	names := make([]string, 0, len(supported))
	for _, s := range supported {
		tag, err := language.Parse(s)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		names = append(names, s)
	}
	if len(tags) == 0 {
		return "", false
	}
	wantTag, err := language.Parse(want)
	if err != nil {
		return "", false
	}
	_, index, confidence := language.NewMatcher(tags).Match(wantTag)
	if confidence < language.Low {
		return "", false
	}
	return names[index], true
}

// Resolve returns initial unchanged unless it is SystemLocale. The system
// locale is then matched against supported; without a match, or with no
// supported locales, the detected locale itself is returned.
func Resolve(initial string, supported []string) string {
	if initial != SystemLocale {
		return initial
	}
	detected := DetectSystemLocale()
	if best, ok := Match(detected, supported); ok {
		return best
	}
	return detected
}
