package journal

import (
	"fmt"
	"strings"
)

// consolidationInstruction is the fixed instruction set for the narrative
// service. The output contract is a single two-field JSON object; anything
// else fails validation downstream.
const consolidationInstruction = `You are an expert biographer. Combine the user's core notes and interview responses into a single, cohesive daily journal page.
RULES:
- The core notes are the foundation of the story; the interview responses add emotional and concrete detail.
- Merge duplicated information between notes and responses into a single statement, never repeat it.
- Write prose paragraphs only. Verse, rhyme and poetic meter are forbidden.
- Structure: a creative title and a 3-4 paragraph story.
- Write in the dominant language of the core notes.
Return ONLY JSON: {"title": "...", "content": "..."}`

// buildDayContext renders the collected content into the single labeled
// context string handed to the narrative service.
func buildDayContext(date Date, content DayContent) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "DATE: %s\n", date.String())

	builder.WriteString("CORE NOTES:\n")
	for _, note := range content.Notes {
		builder.WriteString(note.Content)
		builder.WriteString("\n")
	}

	builder.WriteString("INTERVIEW RESPONSES:\n")
	for _, answer := range content.Answers {
		fmt.Fprintf(&builder, "Q: %s A: %s\n", answer.Question, answer.Answer)
	}

	return builder.String()
}

// notesContext flattens a day's notes for question generation. The fallback
// marker tells the narrative service there is nothing to ground on yet.
const emptyNotesContext = "EMPTY_CONTEXT"

func notesContext(notes []Note) string {
	if len(notes) == 0 {
		return emptyNotesContext
	}
	parts := make([]string, 0, len(notes))
	for _, note := range notes {
		parts = append(parts, note.Content)
	}
	return strings.Join(parts, "\n")
}
