package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

// Section is a titled block of generated text
type Section struct {
	Title string `json:"title" yaml:"title"`
	Body  string `json:"body" yaml:"body"`
}

var (
	headingPattern = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*$`)
	labelPattern   = regexp.MustCompile(`^\*{0,2}([A-Z][\w &/()-]{1,60}?)\*{0,2}:\s*$`)
)

// Sections splits text at markdown headings and at lines of the form "Title:".
// Text before the first heading lands in a section with an empty title.
func Sections(text string) []Section {
	var (
		sections []Section
		current  Section
		body     strings.Builder
		started  bool
	)
	flush := func() {
		current.Body = strings.TrimSpace(body.String())
		if current.Title != "" || current.Body != "" {
			sections = append(sections, current)
		}
		body.Reset()
	}

	for line := range strings.Lines(text) {
		trimmed := strings.TrimSpace(line)
		title := ""
		if m := headingPattern.FindStringSubmatch(trimmed); m != nil {
			title = m[1]
		} else if m := labelPattern.FindStringSubmatch(trimmed); m != nil {
			title = m[1]
		}
		if title != "" {
			if started || body.Len() > 0 {
				flush()
			}
			current = Section{Title: strings.Trim(title, "* ")}
			started = true
			continue
		}
		body.WriteString(line)
	}
	flush()
	return sections
}

var salaryPattern = regexp.MustCompile(`(\d+)\s*-\s*(\d+)`)

// SalaryRange finds the first "min - max" pair of integers in text
func SalaryRange(text string) (lo, hi int, ok bool) {
	m := salaryPattern.FindStringSubmatch(strings.ReplaceAll(text, ",", ""))
	if m == nil {
		return 0, 0, false
	}
	lo, errLo := strconv.Atoi(m[1])
	hi, errHi := strconv.Atoi(m[2])
	if errLo != nil || errHi != nil {
		return 0, 0, false
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo, hi, true
}

// companyKeys maps the labels a model uses for company facts to form field names
var companyKeys = map[string]string{
	"industry":         "industry",
	"company location": "location",
	"location":         "location",
	"company size":     "company_size",
	"website":          "company_website",
	"company website":  "company_website",
	"company name":     "company_name",
}

// CompanyInfo reads "Key - value" or "Key: value" lines and returns the values
// of the known company keys, keyed by form field name.
func CompanyInfo(text string) map[string]string {
	out := map[string]string{}
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), bulletMarkers))
		key, value, ok := splitKeyValue(line)
		if !ok {
			continue
		}
		field, known := companyKeys[strings.ToLower(strings.Trim(key, "* "))]
		if !known || value == "" {
			continue
		}
		if _, seen := out[field]; !seen {
			out[field] = value
		}
	}
	return out
}

func splitKeyValue(line string) (string, string, bool) {
	for _, sep := range []string{" - ", ": "} {
		if key, value, ok := strings.Cut(line, sep); ok {
			return strings.TrimSpace(key), strings.TrimSpace(value), true
		}
	}
	return "", "", false
}

var jobTitlePattern = regexp.MustCompile(`^[A-Za-z0-9 ]+$`)

// ValidJobTitle reports whether title holds only letters, digits and spaces
func ValidJobTitle(title string) bool {
	return strings.TrimSpace(title) != "" && jobTitlePattern.MatchString(title)
}

// FileName builds the download name for an artifact, e.g. "data-scientist_job_ad.txt"
func FileName(jobTitle, kind string) string {
	base := slug.Make(jobTitle)
	if base == "" {
		base = "vacancy"
	}
	return base + "_" + kind + ".txt"
}
