/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package words loads the word list and deals boards of scored tiles.
package words

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

var ErrEmptyBank = errors.New("word list is empty")

//go:embed words.txt
var defaultList string

// Entry is one word from the list with its derived difficulty.
type Entry struct {
	Word       string
	Difficulty Difficulty
	Points     int
}

// Bank is an immutable, deduplicated word list.
type Bank struct {
	entries []Entry
}

// Normalize trims s and collapses inner runs of whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Key is the form used for duplicate detection and guess matching.
func Key(s string) string {
	return strings.ToLower(Normalize(s))
}

// Classify grades a word by shape: phrases and long words are hard.
func Classify(word string) Difficulty {
	w := Normalize(word)
	letters := utf8.RuneCountInString(strings.ReplaceAll(w, " ", ""))

	switch {
	case strings.Contains(w, " ") || letters >= 10:
		return Hard
	case letters >= 6:
		return Medium
	default:
		return Easy
	}
}

func Points(d Difficulty) int {
	switch d {
	case Hard:
		return 15
	case Medium:
		return 10
	default:
		return 5
	}
}

// Load reads one word or phrase per line. Blank lines and
// case-insensitive duplicates are skipped.
func Load(r io.Reader) (*Bank, error) {
	scanner := bufio.NewScanner(r)
	seen := make(map[string]struct{})

	b := &Bank{}
	for scanner.Scan() {
		line := Normalize(scanner.Text())
		if line == "" {
			continue
		}

		key := strings.ToLower(line)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		d := Classify(line)
		b.entries = append(b.entries, Entry{Word: line, Difficulty: d, Points: Points(d)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(b.entries) == 0 {
		return nil, ErrEmptyBank
	}

	return b, nil
}

// LoadFile loads path, or the embedded list when path is empty.
func LoadFile(path string) (*Bank, error) {
	if path == "" {
		return Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()

	return Load(f)
}

func Default() (*Bank, error) {
	return Load(strings.NewReader(defaultList))
}

func (b *Bank) Len() int { return len(b.entries) }

// Count returns how many entries have difficulty d.
func (b *Bank) Count(d Difficulty) int {
	n := 0
	for _, e := range b.entries {
		if e.Difficulty == d {
			n++
		}
	}
	return n
}
