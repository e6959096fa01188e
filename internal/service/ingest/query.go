package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

const queryDateLayout = "2006/01/02"

var automatedExclusions = []string{
	`-"no-reply"`,
	`-"noreply"`,
	`-"do not reply"`,
	`-"automated"`,
	`-"auto-generated"`,
}

type QueryParams struct {
	Start            time.Time
	End              time.Time
	Keywords         string
	ExcludeAutomated bool
}

// BuildQuery renders a Gmail search over sent mail between Start and End,
// both days inclusive. Gmail treats before: as exclusive, so the upper bound
// is the day after End.
func BuildQuery(p QueryParams) string {
	parts := []string{
		"in:sent",
		"after:" + p.Start.Format(queryDateLayout),
		"before:" + p.End.AddDate(0, 0, 1).Format(queryDateLayout),
	}

	if keywords := SplitKeywords(p.Keywords); len(keywords) > 0 {
		quoted := lo.Map(keywords, func(kw string, _ int) string {
			return fmt.Sprintf("%q", strings.ReplaceAll(kw, `"`, ""))
		})
		parts = append(parts, "("+strings.Join(quoted, " OR ")+")")
	}

	if p.ExcludeAutomated {
		parts = append(parts, automatedExclusions...)
	}

	return strings.Join(parts, " ")
}

// SplitKeywords splits a comma separated keyword list, dropping blanks.
func SplitKeywords(raw string) []string {
	return lo.FilterMap(strings.Split(raw, ","), func(kw string, _ int) (string, bool) {
		kw = strings.TrimSpace(kw)
		return kw, kw != ""
	})
}
