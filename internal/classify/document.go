package classify

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Klarline/academe/internal/model"
)

var (
	headingLinePattern   = regexp.MustCompile(`(?m)^(#{1,6}\s|\d+(\.\d+)*\s+[A-Z])`)
	bulletLinePattern    = regexp.MustCompile(`(?m)^\s*([-*•]|\d+[.)])\s`)
	codeFenceLinePattern = regexp.MustCompile("(?m)^```")
	abstractPattern      = regexp.MustCompile(`(?i)\b(abstract|references|bibliography)\b`)
)

var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".java": true,
	".c": true, ".cpp": true, ".rs": true, ".rb": true, ".php": true,
}

// DocumentType classifies raw document text into one of {textbook,
// paper, notes, code, general} using only structural signals — heading
// ratio, References/Abstract sections, bullet density, code-fence
// density, filename extension (§4.1). Ties resolve in the listed
// order.
func DocumentType(filename string, text string) model.SourceType {
	if codeExtensions[strings.ToLower(filepath.Ext(filename))] {
		return model.SourceCode
	}

	lines := strings.Split(text, "\n")
	n := len(lines)
	if n == 0 {
		return model.SourceGeneral
	}

	headingRatio := float64(len(headingLinePattern.FindAllString(text, -1))) / float64(n)
	bulletRatio := float64(len(bulletLinePattern.FindAllString(text, -1))) / float64(n)
	codeFenceCount := len(codeFenceLinePattern.FindAllString(text, -1))
	codeFenceRatio := float64(codeFenceCount) / float64(n)
	hasAbstractOrRefs := abstractPattern.MatchString(text)

	scores := map[model.SourceType]float64{
		model.SourceTextbook: 0,
		model.SourcePaper:    0,
		model.SourceNotes:    0,
		model.SourceCode:     0,
		model.SourceGeneral:  0.01, // tiny default so ties still resolve deterministically
	}

	if hasAbstractOrRefs {
		scores[model.SourcePaper] += 2
	}
	if headingRatio > 0.02 {
		scores[model.SourceTextbook] += headingRatio * 10
	}
	if bulletRatio > 0.15 {
		scores[model.SourceNotes] += bulletRatio * 5
	}
	if codeFenceRatio > 0.02 {
		scores[model.SourceCode] += codeFenceRatio * 20
	}
	if headingRatio > 0.05 && !hasAbstractOrRefs {
		scores[model.SourceTextbook] += 1
	}

	order := []model.SourceType{model.SourceTextbook, model.SourcePaper, model.SourceNotes, model.SourceCode, model.SourceGeneral}
	best := model.SourceGeneral
	bestScore := -1.0
	for _, t := range order {
		if scores[t] > bestScore {
			bestScore = scores[t]
			best = t
		}
	}
	return best
}
