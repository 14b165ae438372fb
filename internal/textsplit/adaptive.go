package textsplitter

import (
	"regexp"
	"strings"

	"github.com/Klarline/academe/internal/config"
)

// ChunkSpan is one piece produced by Adaptive splitting, before the
// Ingestor assigns it an id/ordinal/page.
type ChunkSpan struct {
	Text string
	// ParentIndex is the index into the parents slice this span belongs
	// to, or -1 when the profile has no parent window (§4.1).
	ParentIndex int
}

// Adaptive splits doc text per the profile's chunking rule (§4.1) and
// returns the retrieval children plus, when the profile enables parents,
// the parent spans children are linked to via ParentIndex.
func Adaptive(text string, profile config.ChunkProfile) (children []ChunkSpan, parents []string) {
	if profile.ParentWindow <= 0 {
		for _, c := range splitByStrategy(text, profile.Splitter, profile.TargetChars, profile.Overlap) {
			children = append(children, ChunkSpan{Text: c, ParentIndex: -1})
		}
		return children, nil
	}

	parentTarget := profile.ParentWindow * profile.TargetChars
	parentSpans := recursiveSplit(text, parentTarget, profile.Overlap, []string{"\n\n\n", "\n\n", "\n"})
	for pi, parentText := range parentSpans {
		parents = append(parents, parentText)
		for _, c := range splitByStrategy(parentText, profile.Splitter, profile.TargetChars, profile.Overlap) {
			children = append(children, ChunkSpan{Text: c, ParentIndex: pi})
		}
	}
	return children, parents
}

func splitByStrategy(text string, strategy string, target, overlap int) []string {
	switch strategy {
	case "semantic":
		return semanticSplit(text, target, overlap)
	case "recursive_code":
		return recursiveSplit(text, target, overlap, []string{"\n\n", "\n", " "})
	default: // "recursive"
		return recursiveSplit(text, target, overlap, []string{"\n\n", "\n", ". ", " "})
	}
}

var headingPattern = regexp.MustCompile(`(?m)^(#{1,6}\s+.+|[A-Z][A-Za-z0-9 ]{2,60}\n[=-]{3,})$`)

// equationSpan matches inline/display math so the semantic splitter
// never breaks in the middle of an equation (§9 open question 1).
var equationSpan = regexp.MustCompile(`\$\$[^$]*\$\$|\$[^$\n]+\$`)

// semanticSplit prefers heading boundaries, then paragraph boundaries,
// keeping chunks within ±25% of target (§4.1); equations are protected
// from mid-span splitting by masking them before boundary search.
func semanticSplit(text string, target, overlap int) []string {
	masked, restore := maskEquations(text)
	sections := headingPattern.Split(masked, -1)
	headings := headingPattern.FindAllString(masked, -1)

	var rebuilt []string
	for i, s := range sections {
		if i > 0 && i-1 < len(headings) {
			rebuilt = append(rebuilt, headings[i-1]+s)
		} else if s != "" {
			rebuilt = append(rebuilt, s)
		}
	}
	if len(rebuilt) <= 1 {
		rebuilt = []string{masked}
	}

	low, high := int(float64(target)*0.75), int(float64(target)*1.25)
	var out []string
	for _, sec := range rebuilt {
		secLen := len([]rune(sec))
		switch {
		case secLen == 0:
			continue
		case secLen >= low && secLen <= high:
			out = append(out, sec)
		case secLen < low:
			out = mergeShort(out, sec, high)
		default:
			out = append(out, recursiveSplit(sec, target, overlap, []string{"\n\n", "\n", ". ", " "})...)
		}
	}
	for i, s := range out {
		out[i] = restore(s)
	}
	return applyOverlap(out, overlap)
}

func mergeShort(out []string, sec string, high int) []string {
	if len(out) == 0 {
		return []string{sec}
	}
	last := out[len(out)-1]
	if len([]rune(last))+len([]rune(sec)) <= high {
		out[len(out)-1] = last + sec
		return out
	}
	return append(out, sec)
}

func maskEquations(text string) (masked string, restore func(string) string) {
	var eqs []string
	masked = equationSpan.ReplaceAllStringFunc(text, func(m string) string {
		eqs = append(eqs, m)
		return "\x00EQ" + itoa(len(eqs)-1) + "\x00"
	})
	restore = func(s string) string {
		for i, eq := range eqs {
			s = strings.ReplaceAll(s, "\x00EQ"+itoa(i)+"\x00", eq)
		}
		return s
	}
	return masked, restore
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// recursiveSplit peels separators in priority order, recursing into any
// piece still over 1.5x target, then greedily merges pieces into chunks
// near target with overlap carried from the tail of the previous chunk
// (§4.1). It never duplicates a whole piece twice across the overlap
// boundary.
func recursiveSplit(text string, target, overlap int, separators []string) []string {
	if text == "" {
		return nil
	}
	pieces := peel(text, target, separators)
	return applyOverlap(mergePieces(pieces, target), overlap)
}

func peel(text string, target int, separators []string) []string {
	limit := int(1.5 * float64(target))
	if len([]rune(text)) <= limit {
		return []string{text}
	}
	for _, sep := range separators {
		parts := splitKeepSep(text, sep)
		if len(parts) <= 1 {
			continue
		}
		var out []string
		for _, p := range parts {
			if p == "" {
				continue
			}
			if len([]rune(p)) > limit {
				out = append(out, peel(p, target, separators)...)
			} else {
				out = append(out, p)
			}
		}
		return out
	}
	// No separator reduced it: hard split by rune count.
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += limit {
		end := i + limit
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

func splitKeepSep(text, sep string) []string {
	if sep == "" || !strings.Contains(text, sep) {
		return []string{text}
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			out = append(out, p+sep)
		} else if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func mergePieces(pieces []string, target int) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0
	for _, p := range pieces {
		pLen := len([]rune(p))
		if curLen > 0 && curLen+pLen > target {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
		cur.WriteString(p)
		curLen += pLen
	}
	if curLen > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// applyOverlap repeats the trailing `overlap` runes of chunk k at the
// start of chunk k+1, skipping the repeat if chunk k+1 already begins
// with that text (avoids duplicating a whole sentence twice, §4.1).
func applyOverlap(chunks []string, overlap int) []string {
	if overlap <= 0 || len(chunks) < 2 {
		return chunks
	}
	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := []rune(out[i-1])
		tailStart := len(prev) - overlap
		if tailStart < 0 {
			tailStart = 0
		}
		tail := string(prev[tailStart:])
		if strings.HasPrefix(chunks[i], tail) {
			out[i] = chunks[i]
		} else {
			out[i] = tail + chunks[i]
		}
	}
	return out
}
