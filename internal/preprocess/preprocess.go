// Package preprocess implements RTMC's textual preprocessing pass: macro
// expansion and file inclusion, run before lexing.
package preprocess

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Error is a fatal preprocessing failure, such as an include file that
// cannot be read. Repeat and circular includes are not errors; they are
// dropped after the first occurrence.
type Error struct {
	File string
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.File, e.Msg) }

var defineRE = regexp.MustCompile(`^\s*#define\s+(\w+)\s+(.*?)\s*$`)
var includeRE = regexp.MustCompile(`^\s*#include\s+"([^"]+)"\s*$`)

// Run reads entryFile, recursively inlining #include directives (resolved
// relative to the including file's directory, each included file expanded
// at most once per compile) and applying #define macro substitution across
// the fully assembled text. Returns the expanded source.
func Run(entryFile string) (string, error) {
	seen := map[string]bool{}
	defines := map[string]string{}
	var sb strings.Builder
	if err := inlineFile(entryFile, seen, &sb); err != nil {
		return "", err
	}
	collectDefines(sb.String(), defines)
	return expandDefines(sb.String(), defines), nil
}

// RunSource preprocesses in-memory source that has no enclosing file (used
// by tests); relative #include paths resolve against baseDir.
func RunSource(src, baseDir string) (string, error) {
	seen := map[string]bool{}
	defines := map[string]string{}
	var sb strings.Builder
	if err := inlineSource(src, baseDir, seen, &sb); err != nil {
		return "", err
	}
	collectDefines(sb.String(), defines)
	return expandDefines(sb.String(), defines), nil
}

func inlineFile(path string, seen map[string]bool, out *strings.Builder) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &Error{File: path, Msg: err.Error()}
	}
	if seen[abs] {
		// Circular or repeat include: silently dropped after first
		// occurrence.
		return nil
	}
	seen[abs] = true

	data, err := os.ReadFile(path)
	if err != nil {
		return &Error{File: path, Msg: "cannot read include file: " + err.Error()}
	}
	return inlineSource(string(data), filepath.Dir(path), seen, out)
}

func inlineSource(src, baseDir string, seen map[string]bool, out *strings.Builder) error {
	for _, line := range strings.Split(src, "\n") {
		if m := includeRE.FindStringSubmatch(line); m != nil {
			incPath := m[1]
			if !filepath.IsAbs(incPath) {
				incPath = filepath.Join(baseDir, incPath)
			}
			if err := inlineFile(incPath, seen, out); err != nil {
				return err
			}
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return nil
}

// collectDefines scans for #define NAME VALUE lines; definitions are
// collected in source order but applied longest-name-first so "FOO_BAR"
// never gets clobbered by a prior substitution of "FOO".
func collectDefines(src string, defines map[string]string) {
	for _, line := range strings.Split(src, "\n") {
		if m := defineRE.FindStringSubmatch(line); m != nil {
			defines[m[1]] = m[2]
		}
	}
}

// expandDefines replaces every whole-word occurrence of each macro name with
// its value, longest name first, skipping #define lines themselves.
func expandDefines(src string, defines map[string]string) string {
	if len(defines) == 0 {
		return stripDefineLines(src)
	}
	names := make([]string, 0, len(defines))
	for n := range defines {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	var out strings.Builder
	for _, line := range strings.Split(src, "\n") {
		if defineRE.MatchString(line) {
			continue
		}
		for _, name := range names {
			line = replaceWholeWord(line, name, defines[name])
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.String()
}

func stripDefineLines(src string) string {
	var out strings.Builder
	for _, line := range strings.Split(src, "\n") {
		if defineRE.MatchString(line) {
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.String()
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func replaceWholeWord(line, name, value string) string {
	var out strings.Builder
	i := 0
	for {
		idx := strings.Index(line[i:], name)
		if idx < 0 {
			out.WriteString(line[i:])
			break
		}
		start := i + idx
		end := start + len(name)
		boundaryBefore := start == 0 || !isWordByte(line[start-1])
		boundaryAfter := end == len(line) || !isWordByte(line[end])
		out.WriteString(line[i:start])
		if boundaryBefore && boundaryAfter {
			out.WriteString(value)
		} else {
			out.WriteString(name)
		}
		i = end
	}
	return out.String()
}
