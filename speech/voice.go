package speech

import (
	"strings"

	"golang.org/x/text/language"
)

// SelectVoice picks the voice for lang: an exact language-region match
// first, then any voice of the same language family, then the first voice.
// It reports false only when voices is empty.
func SelectVoice(voices []Voice, lang string) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}

	want, err := parseTag(lang)
	if err != nil {
		return voices[0], true
	}
	wantBase, _ := want.Base()
	wantRegion, regionConf := want.Region()
	exactWanted := regionConf == language.Exact

	family := -1
	for i, v := range voices {
		tag, err := parseTag(v.Language)
		if err != nil {
			continue
		}
		base, _ := tag.Base()
		if base != wantBase {
			continue
		}
		region, conf := tag.Region()
		if exactWanted && conf == language.Exact && region == wantRegion {
			return v, true
		}
		if !exactWanted {
			return v, true
		}
		if family < 0 {
			family = i
		}
	}
	if family >= 0 {
		return voices[family], true
	}
	return voices[0], true
}

// parseTag accepts both "en-US" and the "en_US" form some engines report.
func parseTag(s string) (language.Tag, error) {
	return language.Parse(strings.ReplaceAll(strings.TrimSpace(s), "_", "-"))
}
