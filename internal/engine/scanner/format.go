package scanner

import (
	"strings"

	cerrors "cobolscan/internal/core/errors"
)

var inlineFormatMarkers = []string{"sourceformat", ">>source format"}

func errUnknownFormat(name string) error {
	return cerrors.AddContext(
		cerrors.New(cerrors.CodeValidationError, "unknown source format "+name),
		cerrors.CtxOperation, "file_format")
}

// lineSample is the classification of one sampled line.
type lineSample struct {
	validFixed      bool
	keywordAtColumn bool
	detected        Format
}

func sampleLine(line string, keywords wordSet, terminal bool) lineSample {
	var ls lineSample
	trimmed := strings.TrimRight(line, " \t\r")
	if trimmed == "" {
		return ls
	}
	lower := strings.ToLower(trimmed)

	ls.validFixed = len(lower) >= 7 && strings.ContainsRune("*d/ -", rune(lower[6]))

	if terminal && (strings.HasPrefix(lower, "*") || strings.HasPrefix(lower, "|") || strings.HasPrefix(lower, `\d`)) {
		ls.detected = FormatTerminal
		return ls
	}

	if f := inlineFormat(lower); f != FormatUnknown {
		ls.detected = f
		return ls
	}

	if strings.Contains(lower, "*>") {
		ls.detected = FormatVariable
		return ls
	}

	if !ls.validFixed && len(lower) > 80 {
		ls.detected = FormatVariable
		return ls
	}

	first := strings.SplitN(lower, " ", 2)[0]
	first = strings.TrimSuffix(first, ".")
	if first != "" && keywords.has(first) {
		ls.keywordAtColumn = true
	}
	return ls
}

// inlineFormat finds a ">>SOURCE FORMAT" or "$SET SOURCEFORMAT" directive.
func inlineFormat(lower string) Format {
	for _, marker := range inlineFormatMarkers {
		idx := strings.Index(lower, marker)
		if idx == -1 {
			continue
		}
		rest := ""
		if from := idx + len(marker) + 1; from < len(lower) {
			rest = lower[from:]
		}
		switch {
		case strings.Contains(rest, "fixed"):
			return FormatFixed
		case strings.Contains(rest, "variable"):
			return FormatVariable
		case strings.Contains(rest, "free"):
			return FormatFree
		}
	}
	return FormatUnknown
}

func fileFormat(filename string, rules []FileFormatRule) Format {
	for _, r := range rules {
		if r.matches(filename) {
			return r.Format
		}
	}
	return FormatUnknown
}

// DetectFormat classifies the column layout of src. The check order and
// thresholds are fixed; changing them reclassifies ambiguous sources.
func DetectFormat(src LineSource, cfg Settings) Format {
	switch cfg.FormatStrategy {
	case StrategyAlwaysFixed:
		return FormatFixed
	case StrategyAlwaysVariable:
		return FormatVariable
	case StrategyAlwaysFree:
		return FormatFree
	case StrategyAlwaysTerminal:
		return FormatTerminal
	}

	if cfg.CheckFileFormatBeforeFileScan {
		if f := fileFormat(src.Filename(), cfg.FileFormats); f != FormatUnknown {
			return f
		}
	}

	langID := strings.ToLower(src.LanguageID())
	terminal := langID == "acucobol"
	keywords := keywordsFor(langID)

	var validFixed, invalidFixed, skipped, longLines, keywordAtColumn int
	maxLines := min(src.LineCount(), cfg.PreScanLineLimit)

	for i := 0; i < maxLines; i++ {
		text, _ := tabExpanded(src, i)
		if strings.TrimSpace(text) == "" {
			skipped++
			continue
		}

		ls := sampleLine(text, keywords, terminal)
		if ls.detected != FormatUnknown {
			return ls.detected
		}
		if ls.validFixed {
			validFixed++
		} else {
			invalidFixed++
			if len(text) > 80 {
				longLines++
			}
		}
		if ls.keywordAtColumn {
			keywordAtColumn++
		}
	}

	def := FormatVariable
	switch {
	case keywordAtColumn >= 2 && invalidFixed >= 2:
		def = FormatFree
		if terminal {
			def = FormatTerminal
		}
	case invalidFixed == 0 && longLines == 0 && validFixed+skipped == maxLines:
		def = FormatFixed
	case terminal:
		def = FormatTerminal
	}

	if !cfg.CheckFileFormatBeforeFileScan {
		if f := fileFormat(src.Filename(), cfg.FileFormats); f != FormatUnknown {
			return f
		}
	}
	return def
}
