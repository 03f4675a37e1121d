package chatapi

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"vocabchat/internal/domain"
)

const (
	dataPrefix = "data: "
	doneToken  = "[DONE]"
)

// FrameDecoder reassembles newline-delimited protocol frames from a
// byte stream whose chunk boundaries never align with frame boundaries.
// It carries two residuals between feeds: the trailing bytes of an
// incomplete UTF-8 rune, and the trailing unterminated line. Both are
// threaded into the next chunk, so splitting the stream at any byte
// position yields the same frame sequence as the undivided input.
type FrameDecoder struct {
	rem  []byte // incomplete trailing rune, not yet decodable
	line []byte // unterminated trailing line, complete runes only
}

// NewFrameDecoder returns a decoder with empty residuals.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Feed consumes one chunk and returns the frames it completed, in order.
func (d *FrameDecoder) Feed(chunk []byte) []domain.StreamFrame {
	buf := make([]byte, 0, len(d.rem)+len(chunk))
	buf = append(buf, d.rem...)
	buf = append(buf, chunk...)

	cut := completePrefixLen(buf)
	d.rem = append(d.rem[:0], buf[cut:]...)

	data := append(d.line, buf[:cut]...)
	var frames []domain.StreamFrame
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		frames = append(frames, parseFrame(string(data[:i])))
		data = data[i+1:]
	}
	d.line = append([]byte(nil), data...)
	return frames
}

// Flush classifies the final unterminated line at end of stream.
// Trailing bytes of an incomplete rune are dropped: the stream ended
// mid-character and nothing can complete them.
func (d *FrameDecoder) Flush() []domain.StreamFrame {
	d.rem = nil
	if len(d.line) == 0 {
		return nil
	}
	frame := parseFrame(string(d.line))
	d.line = nil
	return []domain.StreamFrame{frame}
}

// completePrefixLen returns the length of the longest prefix of b that
// does not end inside a multi-byte UTF-8 rune. Invalid sequences are
// treated as complete; they decode to replacement runes downstream and
// end up in lines the frame parser classifies as ignored.
func completePrefixLen(b []byte) int {
	n := len(b)
	for back := 1; back <= utf8.UTFMax && back <= n; back++ {
		c := b[n-back]
		if c < utf8.RuneSelf {
			return n
		}
		if c >= 0xC0 { // leading byte of a multi-byte rune
			if back < runeLenFromLead(c) {
				return n - back
			}
			return n
		}
		// continuation byte, keep scanning back
	}
	return n
}

// runeLenFromLead returns the encoded length implied by a UTF-8 lead byte.
func runeLenFromLead(c byte) int {
	switch {
	case c >= 0xF0:
		return 4
	case c >= 0xE0:
		return 3
	default:
		return 2
	}
}

// frameBody is the JSON payload carried by a data line. Pointer fields
// distinguish a present-but-empty field from an absent one.
type frameBody struct {
	Content *string `json:"content"`
	Error   *string `json:"error"`
}

// parseFrame classifies one complete line. Any shape not matching a
// known case maps to FrameIgnored; the parser never fails.
func parseFrame(line string) domain.StreamFrame {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return domain.StreamFrame{Kind: domain.FrameIgnored}
	}
	payload := line[len(dataPrefix):]

	if payload == doneToken {
		return domain.StreamFrame{Kind: domain.FrameTerminator}
	}

	var body frameBody
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return domain.StreamFrame{Kind: domain.FrameIgnored}
	}
	switch {
	case body.Error != nil:
		return domain.StreamFrame{Kind: domain.FrameServerError, Text: *body.Error}
	case body.Content != nil:
		return domain.StreamFrame{Kind: domain.FrameDelta, Text: *body.Content}
	default:
		return domain.StreamFrame{Kind: domain.FrameIgnored}
	}
}
