package importer

import (
	"bufio"
	"io"
	"strings"

	"github.com/conorfennell/flashdeck/internal/flashcards"
)

const (
	frontPrefix   = "Q:"
	backPrefix    = "A:"
	contextPrefix = "C:"
	separator     = "---"
)

type state int

const (
	seeking state = iota
	readingFront
	readingBack
	readingContext
)

// ParseMarkdown extracts Q:/A: cards from r. A card ends at "---", at the
// next "Q:" or at end of input. Lines after "C:" are appended to the back.
func ParseMarkdown(r io.Reader) ([]flashcards.CardInput, error) {
	scanner := bufio.NewScanner(r)

	var cards []flashcards.CardInput
	var front, back, context []string
	current := seeking

	finishCard := func() {
		f := strings.TrimSpace(strings.Join(front, "\n"))
		b := strings.TrimSpace(strings.Join(back, "\n"))
		if c := strings.TrimSpace(strings.Join(context, "\n")); c != "" {
			b = strings.TrimSpace(b + "\n\n" + c)
		}
		if f != "" {
			cards = append(cards, flashcards.CardInput{Front: f, Back: b})
		}
		front, back, context = nil, nil, nil
		current = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == separator:
			finishCard()
		case strings.HasPrefix(line, frontPrefix):
			if current != seeking {
				finishCard()
			}
			current = readingFront
			front = append(front, stripPrefix(line, frontPrefix))
		case strings.HasPrefix(line, backPrefix) && current != seeking:
			current = readingBack
			back = append(back, stripPrefix(line, backPrefix))
		case strings.HasPrefix(line, contextPrefix) && current != seeking:
			current = readingContext
			context = append(context, stripPrefix(line, contextPrefix))
		case current == readingFront:
			front = append(front, line)
		case current == readingBack:
			back = append(back, line)
		case current == readingContext:
			context = append(context, line)
		}
	}
	finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

func stripPrefix(line, prefix string) string {
	return strings.TrimPrefix(line[len(prefix):], " ")
}
