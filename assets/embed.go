// assets/embed.go
//
// Word list shipped inside the binary. words.txt holds one word per line;
// blank lines and '#' comments are skipped.

package assets

import (
	"embed"
	"strings"
)

//go:embed words.txt
var FS embed.FS

// WordList returns the embedded default dictionary, lowercased.
func WordList() ([]string, error) {
	b, err := FS.ReadFile("words.txt")
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(b), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' {
			continue
		}
		out = append(out, strings.ToLower(line))
	}
	return out, nil
}
