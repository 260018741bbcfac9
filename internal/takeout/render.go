package takeout

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sjawhar/gestalt-coach/internal/session"
	"github.com/sjawhar/gestalt-coach/internal/transcribe"
)

// Kind selects what a takeout is made into.
type Kind string

const (
	KindJournal     Kind = "journal"
	KindTask        Kind = "task"
	KindAppointment Kind = "appointment"
)

func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case "":
		return KindJournal, nil
	case KindJournal, KindTask, KindAppointment:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

const dateLayout = "January 2, 2006 3:04 PM"

// Render produces the markdown document for kind.
func Render(kind Kind, s session.SavedSession) ([]byte, error) {
	switch kind {
	case KindJournal:
		return renderJournal(s), nil
	case KindTask:
		return renderTasks(s), nil
	case KindAppointment:
		return renderAppointment(s), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// renderJournal keeps everything: transcripts and feedback for each
// interaction in order.
func renderJournal(s session.SavedSession) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", s.Metadata.Name)
	fmt.Fprintf(&b, "_Recorded %s, %d interaction(s)_\n", s.Metadata.CreatedAt.Format(dateLayout), len(s.Interactions))

	for _, in := range s.Interactions {
		heading := in.Title
		if in.IsFollowUp {
			heading += " (follow-up)"
		}
		fmt.Fprintf(&b, "\n## %s\n\n", heading)
		fmt.Fprintf(&b, "_%s_\n\n", in.CreatedAt.Format(dateLayout))

		b.WriteString("### Transcript\n\n")
		if transcript := transcribe.FormatTranscript(in.Transcription); transcript != "" {
			b.WriteString("```\n")
			b.WriteString(transcript)
			b.WriteString("\n```\n\n")
		} else {
			b.WriteString("_No speech captured._\n\n")
		}

		b.WriteString("### Feedback\n\n")
		b.WriteString(strings.TrimSpace(in.Analysis.Content))
		b.WriteString("\n")
	}
	return b.Bytes()
}

// renderTasks turns each interaction's feedback into a practice checklist.
func renderTasks(s session.SavedSession) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Practice tasks: %s\n\n", s.Metadata.Name)
	for _, in := range s.Interactions {
		fmt.Fprintf(&b, "- [ ] %s: %s\n", in.Title, firstSentence(in.Analysis.Content))
	}
	return b.Bytes()
}

// renderAppointment is a short brief to share with the child's specialist.
// Transcripts are left out.
func renderAppointment(s session.SavedSession) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Appointment notes: %s\n\n", s.Metadata.Name)
	fmt.Fprintf(&b, "Session recorded %s.\n", s.Metadata.CreatedAt.Format(dateLayout))
	for _, in := range s.Interactions {
		fmt.Fprintf(&b, "\n**%s** (%s)\n\n", in.Title, in.CreatedAt.Format(dateLayout))
		b.WriteString(strings.TrimSpace(in.Analysis.Content))
		b.WriteString("\n")
	}
	b.WriteString("\nQuestions for the specialist:\n\n- \n")
	return b.Bytes()
}

func firstSentence(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if i := strings.IndexAny(text, ".!?"); i >= 0 {
		return text[:i+1]
	}
	return text
}
