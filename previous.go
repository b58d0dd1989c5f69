package fgblock

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/scraperwall/fgblock/data"
	log "github.com/sirupsen/logrus"
)

// LoadPrevious reads a published blocklist into a map of canonical entry to comment.
// A missing file is not an error, it is the first run for that list.
func LoadPrevious(path string) (map[string]string, error) {
	entries := make(map[string]string)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Infof("%s doesn't exist yet", path)
			return entries, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		literal, comment := line, ""
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			literal = line[:i]
			comment = strings.Trim(line[i:], "# \t")
		}

		e, err := data.ParseEntry(literal)
		if err != nil {
			log.Warnf("%s: skipping %q: %s", path, literal, err)
			continue
		}
		entries[e.String()] = comment
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	log.Infof("loaded %d existing entries from %s", len(entries), path)
	return entries, nil
}
