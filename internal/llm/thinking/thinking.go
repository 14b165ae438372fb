// Package thinking strips a reasoning model's <think>...</think>
// preamble out of its reply, separating it from the answer the rest of
// the pipeline actually consumes.
package thinking

import (
	"regexp"
	"strings"
)

const thinkingTagEnd = "</think>"

var thinkingBlock = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// ProcessContent splits content into the model's answer and its
// reasoning trace, handling two shapes a chat provider might emit:
//  1. One or more balanced <think>...</think> blocks anywhere in content;
//     their contents are concatenated into thinking and removed from
//     response.
//  2. An unterminated preamble: everything before the first </think> is
//     thinking, everything after is response (no opening tag).
// Content with neither shape is returned unchanged as response.
func ProcessContent(content string) (response, thinking string) {
	if matches := thinkingBlock.FindAllStringSubmatch(content, -1); len(matches) > 0 {
		parts := make([]string, 0, len(matches))
		for _, m := range matches {
			if len(m) > 1 {
				parts = append(parts, strings.TrimSpace(m[1]))
			}
		}
		thinking = strings.Join(parts, " ")
		response = strings.TrimSpace(thinkingBlock.ReplaceAllString(content, ""))
		return response, thinking
	}

	if parts := strings.SplitN(content, thinkingTagEnd, 2); len(parts) == 2 {
		return strings.TrimSpace(parts[1]), strings.TrimSpace(parts[0])
	}

	return content, ""
}
