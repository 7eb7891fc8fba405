package annotation

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadExamplesList reads a training or validation split file.
//
// The file holds one example per line; the first whitespace-delimited token
// is the example identifier and everything after it is ignored. The line
// "xyz 3" yields the identifier "xyz", which locates xyz.jpg and xyz.xml.
// Blank lines are skipped. Order follows the file.
func ReadExamplesList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("annotation: open examples list: %w", err)
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		ids = append(ids, fields[0])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("annotation: read examples list: %w", err)
	}
	return ids, nil
}
