package engine

import (
	"strings"

	"github.com/moldlang/mold/cli/internal/scope"
)

// Interpolate expands $name and ${name} references in a command string using
// bindings from the scope chain. Only names actually bound by variable
// declarations (or the runner's own MOLD_* variables) are substituted;
// anything else is left untouched for the shell, so "$HOME" and "$(pwd)"
// behave as they would in a plain script.
func Interpolate(command string, sc *scope.Scope) string {
	var b strings.Builder
	b.Grow(len(command))

	for i := 0; i < len(command); {
		ch := command[i]
		if ch != '$' || i+1 >= len(command) {
			b.WriteByte(ch)
			i++
			continue
		}

		if command[i+1] == '{' {
			end := strings.IndexByte(command[i+2:], '}')
			if end >= 0 {
				name := command[i+2 : i+2+end]
				if value, ok := sc.GetDefined(name); ok && isVarName(name) {
					b.WriteString(value)
					i += 2 + end + 1
					continue
				}
			}
			b.WriteByte(ch)
			i++
			continue
		}

		j := i + 1
		for j < len(command) && isVarNameByte(command[j]) {
			j++
		}
		if j > i+1 {
			name := command[i+1 : j]
			if value, ok := sc.GetDefined(name); ok {
				b.WriteString(value)
				i = j
				continue
			}
		}
		b.WriteByte(ch)
		i++
	}
	return b.String()
}

func isVarNameByte(ch byte) bool {
	return ch == '_' ||
		('a' <= ch && ch <= 'z') ||
		('A' <= ch && ch <= 'Z') ||
		('0' <= ch && ch <= '9')
}

func isVarName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isVarNameByte(name[i]) {
			return false
		}
	}
	return true
}
