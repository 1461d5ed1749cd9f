package scanner

import (
	"math"
	"regexp"
)

// portDirective is a construct that needs changing when moving a program to
// a Micro Focus style compiler.
type portDirective struct {
	lastLine int
	search   *regexp.Regexp
	// replace uses regexp expansion syntax; "$$" is a literal dollar.
	replace string
	message string
}

var portDirectives = []portDirective{
	{100, regexp.MustCompile(`(?i)>>CALL-CONVENTION COBOL`), "$$set defaultcalls(0)", "Change to defaultcalls(0)"},
	{100, regexp.MustCompile(`(?i)(>>CALL-CONVENTION EXTERN)`), "*> ${1}", "Comment out"},
	{100, regexp.MustCompile(`(?i)>>CALL-CONVENTION STDCALL`), "$$set defaultcalls(74)", "Change to defaultcalls(74)"},
	{100, regexp.MustCompile(`(?i)>>CALL-CONVENTION STATIC`), "$$set litlink", "Change to $set litlink"},
	{100, regexp.MustCompile(`(?i)>>SOURCE\s+FORMAT\s+(IS\s+FREE|FREE)`), "$$set sourceformat(free)", "Change to $set sourceformat(free)"},
	{100, regexp.MustCompile(`(?i)>>SOURCE\s+FORMAT\s+(IS\s+FIXED|FIXED)`), "$$set sourceformat(fixed)", "Change to $set sourceformat(fixed)"},
	{100, regexp.MustCompile(`(?i)>>SOURCE\s+FORMAT\s+(IS\s+VARIABLE|VARIABLE)`), "$$set sourceformat(variable)", "Change to $set sourceformat(variable)"},
	{math.MaxInt, regexp.MustCompile(`(?i)FUNCTION\s+SUBSTITUTE`), "", "Re-write to use 'INSPECT REPLACING' or custom/search replace"},
}

// SourcePorter flags compiler directives and intrinsic functions that have
// no direct equivalent on the target dialect.
type SourcePorter struct {
	directives []portDirective
}

func NewSourcePorter() *SourcePorter {
	return &SourcePorter{directives: portDirectives}
}

// Check returns a port diagnostic for line when one applies. The first five
// lines hold the directives the compiler reads unconditionally and are left
// alone.
func (p *SourcePorter) Check(filename string, lineNumber int, line string) (Diagnostic, bool) {
	if lineNumber <= 5 {
		return Diagnostic{}, false
	}
	for _, d := range p.directives {
		if d.lastLine < lineNumber || !d.search.MatchString(line) {
			continue
		}
		replacement := ""
		if d.replace != "" {
			replacement = replaceFirst(d.search, line, d.replace)
		}
		return Diagnostic{
			File:        filename,
			Line:        lineNumber,
			Message:     d.message,
			Code:        CodePort,
			Replacement: replacement,
		}, true
	}
	return Diagnostic{}, false
}

func replaceFirst(re *regexp.Regexp, s, template string) string {
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}
	out := re.ExpandString(nil, template, s, loc)
	return s[:loc[0]] + string(out) + s[loc[1]:]
}
