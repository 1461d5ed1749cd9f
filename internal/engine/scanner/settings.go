package scanner

import (
	"log/slog"
	"strings"
	"time"

	"cobolscan/internal/core/config"

	"github.com/gobwas/glob"
)

// Format strategies accepted by Settings.FormatStrategy.
const (
	StrategyNormal         = "normal"
	StrategyAlwaysFixed    = "always_fixed"
	StrategyAlwaysVariable = "always_variable"
	StrategyAlwaysFree     = "always_free"
	StrategyAlwaysTerminal = "always_terminal"
)

// FileFormatRule forces Format for filenames matching Pattern.
type FileFormatRule struct {
	Pattern string
	Format  Format
	matcher glob.Glob
}

// Settings are the read-only options consumed by one scan.
type Settings struct {
	FormatStrategy                string
	CheckFileFormatBeforeFileScan bool
	FileFormats                   []FileFormatRule

	PreScanLineLimit   int
	MaxLineLength      int
	ScanTimeout        time.Duration
	CopybookDepthLimit int

	ParseCopybooksForReferences bool
	EnableTextReplacement       bool
	CopybooksNested             bool
	EnableExecSQLCursors        bool

	ScanCommentsForHints     bool
	ScanCommentCopybookToken string

	LinterIgnoreMissingCopybook bool
	LinterIgnoreMalformedUsing  bool
	EnableSourcePorter          bool

	LanguageID string
}

const (
	lintMarker         = "cobol-lint"
	lintNotReferenced  = "not-referenced"
	lintLegacyNotRef   = "notref"
	lsIgnoreStart      = "cobol-ls-ignore"
	lsIgnoreEnd        = "cobol-ls-endignore"
	regionStart        = "$region"
	regionEnd          = "$end-region"
	defaultCommentHint = "source-dependency"
)

// DefaultSettings mirrors config.Default().Scanner.
func DefaultSettings() Settings {
	return SettingsFromConfig(config.Default().Scanner)
}

// SettingsFromConfig converts the [scanner] table. File format rules with
// invalid globs or unknown formats are skipped.
func SettingsFromConfig(c config.Scanner) Settings {
	s := Settings{
		FormatStrategy:                strings.ToLower(c.SourceFormatStrategy),
		CheckFileFormatBeforeFileScan: c.CheckFileFormatBeforeFileScan,
		PreScanLineLimit:              c.PreScanLineLimit,
		MaxLineLength:                 c.MaxLineLength,
		ScanTimeout:                   c.ScanTimeout,
		CopybookDepthLimit:            c.CopybookDepthLimit,
		ParseCopybooksForReferences:   c.CopybooksForReferences(),
		EnableTextReplacement:         c.TextReplacementEnabled(),
		CopybooksNested:               c.CopybooksNested,
		EnableExecSQLCursors:          true,
		ScanCommentsForHints:          c.CommentHintsEnabled(),
		ScanCommentCopybookToken:      c.ScanCommentCopybookToken,
		LinterIgnoreMissingCopybook:   c.LinterIgnoreMissingCopybook,
		LinterIgnoreMalformedUsing:    c.LinterIgnoreMalformedUsing,
		EnableSourcePorter:            c.EnableSourcePorter,
		LanguageID:                    c.LanguageID,
	}
	s = s.withDefaults()

	for _, ff := range c.FileFormats {
		rule, err := NewFileFormatRule(ff.Pattern, ff.Format)
		if err != nil {
			slog.Warn("skipping file format rule", "pattern", ff.Pattern, "error", err)
			continue
		}
		s.FileFormats = append(s.FileFormats, rule)
	}
	return s
}

// withDefaults fills the limits left at their zero value.
func (s Settings) withDefaults() Settings {
	if s.FormatStrategy == "" {
		s.FormatStrategy = StrategyNormal
	}
	if s.PreScanLineLimit <= 0 {
		s.PreScanLineLimit = config.DefaultPreScanLineLimit
	}
	if s.MaxLineLength <= 0 {
		s.MaxLineLength = config.DefaultMaxLineLength
	}
	if s.ScanTimeout <= 0 {
		s.ScanTimeout = config.DefaultScanTimeout
	}
	if s.CopybookDepthLimit <= 0 {
		s.CopybookDepthLimit = config.DefaultCopybookDepthLimit
	}
	if s.ScanCommentCopybookToken == "" {
		s.ScanCommentCopybookToken = defaultCommentHint
	}
	return s
}

// NewFileFormatRule compiles pattern, matched case-insensitively against the
// full filename.
func NewFileFormatRule(pattern, format string) (FileFormatRule, error) {
	f, ok := ParseFormat(strings.ToLower(strings.TrimSpace(format)))
	if !ok {
		return FileFormatRule{}, errUnknownFormat(format)
	}
	g, err := glob.Compile(strings.ToLower(pattern), '/')
	if err != nil {
		return FileFormatRule{}, err
	}
	return FileFormatRule{Pattern: pattern, Format: f, matcher: g}, nil
}

func (r FileFormatRule) matches(filename string) bool {
	if r.matcher == nil {
		return false
	}
	lower := strings.ToLower(strings.ReplaceAll(filename, "\\", "/"))
	if r.matcher.Match(lower) {
		return true
	}
	if i := strings.LastIndex(lower, "/"); i != -1 {
		return r.matcher.Match(lower[i+1:])
	}
	return false
}
