/*
Package dehyphenator joins words that OCR split at the end of a line.

A hyphen at the end of a line is dropped when the word continues in lowercase
on the next line. It is kept when the next line starts with an uppercase letter
(as in German compounds like "Bundes-Verfassungsgericht") or when the rune before
the hyphen is uppercase (abbreviations like "EU-").
*/
package dehyphenator

import (
	"bufio"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Options control the output layout.
type Options struct {
	// JoinLines replaces line breaks with a single space.
	JoinLines bool
}

// Dehyphenate copies the lines of in to out, removing hyphens at line ends where appropriate.
// Blank lines and lines consisting of a hyphen only are dropped when lines are joined.
func Dehyphenate(in io.Reader, out io.Writer, opts Options) error {
	w := bufio.NewWriter(out)
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	pendingHyphen := false
	for s.Scan() {
		// OCR output sometimes carries noncharacters
		line := strings.TrimSpace(strings.ReplaceAll(s.Text(), "\uFFFE", ""))
		first, _ := utf8.DecodeRuneInString(line)
		if line == "" || (isHyphen(first) && utf8.RuneCountInString(line) == 1) {
			if !opts.JoinLines {
				w.WriteByte('\n')
			}
			continue
		}
		if pendingHyphen && unicode.IsUpper(first) {
			w.WriteByte('-')
		}
		pendingHyphen = false
		last, size := utf8.DecodeLastRuneInString(line)
		if !isHyphen(last) {
			w.WriteString(line)
			if opts.JoinLines {
				w.WriteByte(' ')
			} else {
				w.WriteByte('\n')
			}
			continue
		}
		beforeHyphen, _ := utf8.DecodeLastRuneInString(line[:len(line)-size])
		if unicode.IsUpper(beforeHyphen) {
			w.WriteString(line)
			continue
		}
		pendingHyphen = true
		w.WriteString(line[:len(line)-size])
	}
	if err := s.Err(); err != nil {
		return err
	}
	return w.Flush()
}

func isHyphen(r rune) bool {
	return unicode.Is(unicode.Hyphen, r)
}

// String dehyphenates text.
func String(text string, opts Options) string {
	var sb strings.Builder
	// writing to a strings.Builder cannot fail
	_ = Dehyphenate(strings.NewReader(text), &sb, opts)
	return sb.String()
}

// Pipe returns a writer whose input is dehyphenated into out. Closing the writer
// flushes the remaining text; the returned channel yields the result afterwards.
func Pipe(out io.Writer, opts Options) (io.WriteCloser, <-chan error) {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := Dehyphenate(pr, out, opts)
		pr.CloseWithError(err)
		done <- err
	}()
	return pw, done
}
