package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/knolbox/internal/domain"
)

// Separator splits the front of a vocabulary line from its back.
const Separator = "::"

// Entry is one vocabulary pair read from a deck file.
type Entry struct {
	Front  string
	Back   string
	Detail domain.Detail
	Line   int // 1-based line of the pair
}

type state int

const (
	seeking state = iota
	readingDetail
)

// ParseFile reads a deck file from the given path and extracts all entries.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads a markdown deck. Each pair is a line "front :: back", with an
// optional list bullet. Indented "name: value" lines under a pair become its
// detail; indented lines without a name continue the previous value. A blank
// or unrelated line ends the pair.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var entries []Entry
	var current Entry
	currentState := seeking
	lineNo := 0

	finishEntry := func() {
		if currentState == readingDetail && current.Front != "" {
			entries = append(entries, current)
		}
		current = Entry{}
		currentState = seeking
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), " \t\r")

		if strings.TrimSpace(line) == "" {
			finishEntry()
			continue
		}

		indented := strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
		if indented && currentState == readingDetail {
			addDetail(&current, strings.TrimSpace(line))
			continue
		}

		finishEntry()
		if front, back, ok := splitPair(line); ok {
			current = Entry{Front: front, Back: back, Line: lineNo}
			currentState = readingDetail
		}
	}

	finishEntry() // Finish the very last entry in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// splitPair recognizes "- front :: back".
func splitPair(line string) (string, string, bool) {
	text := strings.TrimSpace(line)
	for _, bullet := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(text, bullet) {
			text = strings.TrimSpace(text[len(bullet):])
			break
		}
	}
	front, back, found := strings.Cut(text, Separator)
	if !found {
		return "", "", false
	}
	return strings.TrimSpace(front), strings.TrimSpace(back), true
}

func addDetail(e *Entry, text string) {
	name, value, found := strings.Cut(text, ":")
	if found && name != "" && !strings.ContainsAny(name, " \t") {
		e.Detail = append(e.Detail, domain.DetailField{Name: name, Value: strings.TrimSpace(value)})
		return
	}
	if n := len(e.Detail); n > 0 {
		e.Detail[n-1].Value += "\n" + text
	}
}
