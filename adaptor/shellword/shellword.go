// Package shellword parses and quotes the POSIX shell words used in a
// desktop/service file's Exec= line.
package shellword

import (
	"fmt"
	"strings"

	"github.com/google/shlex"
)

// Split tokenizes a shell command line the way a desktop-file launcher does,
// honoring single/double quotes and backslash escapes.
func Split(command string) ([]string, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("shellword: split %q: %w", command, err)
	}
	return args, nil
}

// Quote returns s as a single POSIX shell word, safe to splice back into a
// command line unescaped. Matches glib's g_shell_quote: wrap in single
// quotes, and represent an embedded single quote as '\'' (close quote,
// escaped quote, reopen quote).
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		if r == '\'' {
			b.WriteString(`'\''`)
			continue
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}

// QuoteJoin quotes every argument and joins them with spaces, the shape
// needed to build a replacement Exec= value.
func QuoteJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = Quote(a)
	}
	return strings.Join(quoted, " ")
}
