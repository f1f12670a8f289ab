package parse

import (
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestBulletPoints(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"mixed markers", "- a\n* b\n• c\nno bullet here", []string{"a", "b", "c"}},
		{"no bullets", "just prose\nand more prose", []string{}},
		{"empty text", "", []string{}},
		{"duplicates kept", "- Go\n- Go\n- SQL", []string{"Go", "Go", "SQL"}},
		{"indented and no space", "  -Python\n\t* Docker  \n", []string{"Python", "Docker"}},
		{"windows newlines", "- a\r\n- b\r\n", []string{"a", "b"}},
		{"bare markers skipped", "-\n* \n- real", []string{"real"}},
		{"marker mid line ignored", "skills - python\n1. first\n- second", []string{"second"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(BulletPoints(tt.text))
			if got == nil {
				got = []string{}
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("BulletPoints mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBulletPointsRestartable(t *testing.T) {
	seq := BulletPoints("- a\n* b\n• c\nno bullet here")

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, []string{"a", "b", "c"}, first)
	assert.Equal(t, first, second)
}

func TestBulletPointsStopsEarly(t *testing.T) {
	var seen []string
	for item := range BulletPoints("- a\n- b\n- c") {
		seen = append(seen, item)
		if item == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestCollectBullets(t *testing.T) {
	text := strings.Repeat("- benefit\n", 14)
	assert.Len(t, CollectBullets(text, 10), 10)
	assert.Len(t, CollectBullets(text, 0), 14)
	assert.Empty(t, CollectBullets("nothing", 10))
}

func TestSections(t *testing.T) {
	text := `Intro line
# About us
We build things.
## Your tasks
- build
- ship
Benefits:
- remote
`
	got := Sections(text)
	want := []Section{
		{Title: "", Body: "Intro line"},
		{Title: "About us", Body: "We build things."},
		{Title: "Your tasks", Body: "- build\n- ship"},
		{Title: "Benefits", Body: "- remote"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Sections mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, Sections(""))
}

func TestSalaryRange(t *testing.T) {
	tests := []struct {
		text   string
		lo, hi int
		ok     bool
	}{
		{"50000 - 70000", 50000, 70000, true},
		{"EUR 60,000-80,000 per year", 60000, 80000, true},
		{"between 90 -  30 k", 30, 90, true},
		{"competitive", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			lo, hi, ok := SalaryRange(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestCompanyInfo(t *testing.T) {
	text := `Company Name: Acme GmbH
- Industry - Manufacturing
Company Location - Berlin, Germany
Company Size: 250 employees
**Website**: https://acme.example
Founded - 1999
Industry - ignored duplicate`

	want := map[string]string{
		"company_name":    "Acme GmbH",
		"industry":        "Manufacturing",
		"location":        "Berlin, Germany",
		"company_size":    "250 employees",
		"company_website": "https://acme.example",
	}
	assert.Equal(t, want, CompanyInfo(text))
	assert.Empty(t, CompanyInfo("no facts here"))
}

func TestCategorizeSkills(t *testing.T) {
	got := CategorizeSkills([]string{"Python", "PostgreSQL", "Kubernetes", "Communication", "Jira", "Maintenance", "", "React"})

	assert.Equal(t, []string{"Python"}, got[CategoryProgramming])
	assert.Equal(t, []string{"PostgreSQL"}, got[CategoryDatabases])
	assert.Equal(t, []string{"Kubernetes"}, got[CategoryCloud])
	assert.Equal(t, []string{"Communication"}, got[CategorySoft])
	assert.Equal(t, []string{"React"}, got[CategoryFrameworks])
	assert.Equal(t, []string{"Jira", "Maintenance"}, got[CategoryTools])
	_, hasData := got[CategoryData]
	assert.False(t, hasData)
}

func TestCategorizeSkillsCapsBuckets(t *testing.T) {
	var skills []string
	for range 20 {
		skills = append(skills, "Python")
	}
	assert.Len(t, CategorizeSkills(skills)[CategoryProgramming], MaxSkillsPerCategory)
}

func TestValidJobTitle(t *testing.T) {
	assert.True(t, ValidJobTitle("Senior Data Scientist 2"))
	assert.False(t, ValidJobTitle("C++ Developer"))
	assert.False(t, ValidJobTitle("   "))
	assert.False(t, ValidJobTitle(""))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "senior-data-scientist_job_ad.txt", FileName("Senior Data Scientist", "job_ad"))
	assert.Equal(t, "vacancy_onboarding.txt", FileName("", "onboarding"))
}
