package translate

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Preset names accepted by GetSystemPrompt.
const (
	PresetMovie       = "movie"
	PresetAnime       = "anime"
	PresetDocumentary = "documentary"
	PresetCustom      = "custom"
)

// GetSystemPrompt returns the translation system prompt for a given preset
func GetSystemPrompt(preset, sourceLang, targetLang, customPrompt string) string {
	base := fmt.Sprintf(
		"You are a professional subtitle translator. Translate subtitles from %s to %s. "+
			"Maintain the original meaning and keep translations concise and natural for subtitle display. "+
			"Never merge, split, drop or reorder subtitle lines.",
		LanguageName(sourceLang), LanguageName(targetLang),
	)

	switch preset {
	case PresetAnime:
		return base + "\n\n" +
			"Additional guidelines for anime translation:\n" +
			"- Use casual, natural speech patterns appropriate for anime dialogue\n" +
			"- Keep honorifics (-san, -kun, -chan, -senpai, -sensei) as in the source\n" +
			"- Keep character name consistency\n" +
			"- Match the emotional tone (excited, serious, comedic)\n" +
			"- Translate onomatopoeia and sound effects appropriately"

	case PresetMovie:
		return base + "\n\n" +
			"Additional guidelines for movie/drama translation:\n" +
			"- Use natural conversational style appropriate for the genre\n" +
			"- Preserve cultural nuances and idioms with equivalent expressions\n" +
			"- Maintain formal/informal register matching the original dialogue"

	case PresetDocumentary:
		return base + "\n\n" +
			"Additional guidelines for documentary translation:\n" +
			"- Use formal, precise language\n" +
			"- Preserve all technical terminology with accurate translations\n" +
			"- Maintain proper nouns, scientific names, and place names\n" +
			"- Keep numbers, dates, and measurements accurate"

	case PresetCustom:
		if strings.TrimSpace(customPrompt) != "" {
			return base + "\n\nUser instructions: " + customPrompt
		}
		return base

	default:
		return base
	}
}

// MaxCustomPromptLen bounds custom instructions, counted in runes.
const MaxCustomPromptLen = 2000

// ValidateCustomPrompt checks user instructions for the custom preset. They
// must not be empty, must fit MaxCustomPromptLen and must not contain the
// correlation markers or id lines, which would corrupt the response parse.
func ValidateCustomPrompt(prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return errors.New("custom prompt is empty")
	}
	if n := utf8.RuneCountInString(prompt); n > MaxCustomPromptLen {
		return fmt.Errorf("custom prompt is %d characters, max %d", n, MaxCustomPromptLen)
	}
	if strings.Contains(prompt, BeginMarker) || strings.Contains(prompt, EndMarker) {
		return fmt.Errorf("custom prompt must not contain %s or %s", BeginMarker, EndMarker)
	}
	for _, line := range strings.Split(prompt, "\n") {
		if lineRe.MatchString(strings.TrimSpace(line)) {
			return fmt.Errorf("custom prompt line %q looks like a subtitle line", line)
		}
	}
	return nil
}

// BuildUserPrompt renders the batch request in correlation format v1.
func BuildUserPrompt(segments []Segment, targetLang string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate the texts below to %s. Each line holds an index followed by '%s' and the original text.\n",
		LanguageName(targetLang), lineDelimiter)
	fmt.Fprintf(&sb, "Your answer MUST keep the format 'index%s translated text' for every line, one line per index.\n", lineDelimiter)
	fmt.Fprintf(&sb, "Your answer MUST be wrapped between the tags %s and %s.\n", BeginMarker, EndMarker)
	sb.WriteString("Do not add comments or any text outside those tags.\n\n")
	sb.WriteString("Texts to translate:\n")
	sb.WriteString(EncodeSegments(segments))
	sb.WriteString("\n\nExpected answer format:\n")
	sb.WriteString(BeginMarker + "\n")
	for i, s := range segments {
		if i == 2 {
			sb.WriteString("...\n")
			break
		}
		fmt.Fprintf(&sb, "%d%s translated text of line %d\n", s.ID, lineDelimiter, s.ID)
	}
	sb.WriteString(EndMarker)
	return sb.String()
}
