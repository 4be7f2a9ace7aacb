// Package resolve recovers the canonical report name from an observed file
// name. Uploaded files carry embedded dates, timestamps and version suffixes
// that vary run to run; the registry is keyed by the cleaned name.
package resolve

import (
	"log"
	"regexp"
	"strings"

	"reportflow/pkg/core/config"
	"reportflow/pkg/core/grid"
)

var (
	reTimestamp   = regexp.MustCompile(`_\d{8}_\d{6}$`)
	reDateTimeDsh = regexp.MustCompile(`\s*\d{1,2}-\d{1,2}-\d{4}\s+\d{1,2}-\d{1,2}-\d{1,2}$`)
	reDateTimeCol = regexp.MustCompile(`\s*\d{1,2}-\d{1,2}-\d{4}\s+\d{1,2}:\d{1,2}:\d{1,2}$`)
	reDateTail    = regexp.MustCompile(`\s*\d{1,2}[./-]\d{1,2}[./-]\d{2,4}\d*$`)
	reDateDashNum = regexp.MustCompile(`\s*\d{1,2}[./-]\d{1,2}[./-]\d{2,4}-\d+$`)
	reLooseNumber = regexp.MustCompile(`\s+\d{1,4}[.\-/]?\d{0,2}[.\-/]?\d{0,4}$`)
	reDashNumber  = regexp.MustCompile(`-\d+$`)
	reBareNumber  = regexp.MustCompile(`\d+$`)
	reTrailingSep = regexp.MustCompile(`[-_]+$`)
	reMonthWord   = regexp.MustCompile(`\s*חודש\s*`)

	reMonthNames []*regexp.Regexp
)

func init() {
	for _, month := range grid.HebrewMonthNames {
		reMonthNames = append(reMonthNames,
			regexp.MustCompile(`\s*חודש\s+`+regexp.QuoteMeta(month)+`\s*`),
			regexp.MustCompile(`\s*`+regexp.QuoteMeta(month)+`\s*`),
		)
	}
}

// Clean strips date, timestamp, month-name and version noise from a file name.
// Idempotent on already-clean names.
func Clean(filename string) string {
	name := filename

	lower := strings.ToLower(name)
	for _, ext := range []string{".xlsx", ".xls"} {
		if strings.HasSuffix(lower, ext) {
			name = name[:len(name)-len(ext)]
			break
		}
	}

	name = reTimestamp.ReplaceAllString(name, "")
	name = reDateTimeDsh.ReplaceAllString(name, "")
	name = reDateTimeCol.ReplaceAllString(name, "")
	name = reDateTail.ReplaceAllString(name, "")
	name = reDateDashNum.ReplaceAllString(name, "")
	name = reLooseNumber.ReplaceAllString(name, "")

	for _, re := range reMonthNames {
		name = re.ReplaceAllString(name, " ")
	}
	name = reMonthWord.ReplaceAllString(name, " ")

	name = reDashNumber.ReplaceAllString(name, "")
	name = reBareNumber.ReplaceAllString(name, "")
	name = reTrailingSep.ReplaceAllString(name, "")

	return strings.TrimSpace(name)
}

// Resolver maps observed file names to registry entries.
type Resolver struct {
	registry *config.Registry
}

func New(registry *config.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve cleans the observed name and looks it up in the registry. A miss is
// a policy decision, not an error: files that do not follow the naming
// convention are skipped.
func (r *Resolver) Resolve(filename string) (string, bool) {
	clean := Clean(filename)
	log.Printf("[Resolver] %q -> %q", filename, clean)
	if _, ok := r.registry.Report(clean); ok {
		return clean, true
	}
	log.Printf("[Resolver] WARNING: no registry entry for %q, file will be skipped", clean)
	return "", false
}
