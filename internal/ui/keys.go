// Package ui drives the controller: it feeds keys and worker events into
// app.State, forwards the resulting commands, and prints a text view.
package ui

import (
	"bufio"
	"io"
	"strings"

	"github.com/vbonduro/shelfshot/internal/app"
)

// KeySource delivers keypresses. The channel is closed when input ends.
type KeySource interface {
	Keys() <-chan app.Key
}

var namedKeys = map[string]app.Key{
	"enter":     {Code: app.KeyEnter},
	"esc":       {Code: app.KeyEsc},
	"tab":       {Code: app.KeyTab},
	"backtab":   {Code: app.KeyBackTab},
	"up":        {Code: app.KeyUp},
	"down":      {Code: app.KeyDown},
	"left":      {Code: app.KeyLeft},
	"right":     {Code: app.KeyRight},
	"backspace": {Code: app.KeyBackspace},
	"delete":    {Code: app.KeyDelete},
	"space":     app.Rune(' '),
}

// LineKeys reads keys from line-oriented input such as a terminal in cooked
// mode. Each whitespace separated token is a named key or, failing that, its
// characters typed in order.
type LineKeys struct {
	keys chan app.Key
}

func NewLineKeys(r io.Reader) *LineKeys {
	lk := &LineKeys{keys: make(chan app.Key, 64)}
	go lk.read(r)
	return lk
}

func (lk *LineKeys) Keys() <-chan app.Key { return lk.keys }

func (lk *LineKeys) read(r io.Reader) {
	defer close(lk.keys)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		for _, k := range ParseLine(scanner.Text()) {
			lk.keys <- k
		}
	}
}

// ParseLine converts one input line into keys.
func ParseLine(line string) []app.Key {
	var out []app.Key
	for _, tok := range strings.Fields(line) {
		if k, ok := namedKeys[strings.ToLower(tok)]; ok && len(tok) > 1 {
			out = append(out, k)
			continue
		}
		for _, r := range tok {
			out = append(out, app.Rune(r))
		}
	}
	return out
}
