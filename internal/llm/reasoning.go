// Copyright (c) CurioSwitch (choko@curioswitch.org)
// SPDX-License-Identifier: BUSL-1.1

package llm

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// reasoningExtractor splits a streamed text channel into answer text and a
// reasoning trace delimited by <think> tags. Tags may arrive split across
// arbitrarily small deltas, so a potential partial tag is held back until
// it can be classified.
type reasoningExtractor struct {
	inside bool
	buf    string
}

// feed consumes a delta and returns the text and reasoning increments that
// can be released so far.
func (e *reasoningExtractor) feed(delta string) (text, reasoning string) {
	e.buf += delta
	for {
		tag := thinkOpen
		if e.inside {
			tag = thinkClose
		}
		if idx := strings.Index(e.buf, tag); idx >= 0 {
			text, reasoning = e.release(text, reasoning, e.buf[:idx])
			e.buf = e.buf[idx+len(tag):]
			e.inside = !e.inside
			continue
		}
		held := partialTagLen(e.buf, tag)
		text, reasoning = e.release(text, reasoning, e.buf[:len(e.buf)-held])
		e.buf = e.buf[len(e.buf)-held:]
		return text, reasoning
	}
}

// flush releases anything still held back at end of stream.
func (e *reasoningExtractor) flush() (text, reasoning string) {
	text, reasoning = e.release("", "", e.buf)
	e.buf = ""
	return text, reasoning
}

func (e *reasoningExtractor) release(text, reasoning, chunk string) (string, string) {
	if e.inside {
		return text, reasoning + chunk
	}
	return text + chunk, reasoning
}

// partialTagLen returns the length of the longest suffix of s that is a
// proper prefix of tag.
func partialTagLen(s, tag string) int {
	maxLen := min(len(s), len(tag)-1)
	for n := maxLen; n > 0; n-- {
		if strings.HasPrefix(tag, s[len(s)-n:]) {
			return n
		}
	}
	return 0
}
