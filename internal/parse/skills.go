package parse

import "strings"

// MaxSkillsPerCategory caps each bucket returned by CategorizeSkills
const MaxSkillsPerCategory = 15

// Skill categories in display order
const (
	CategoryProgramming = "Programming Languages"
	CategoryFrameworks  = "Frameworks & Libraries"
	CategoryDatabases   = "Databases"
	CategoryCloud       = "Cloud & DevOps"
	CategoryData        = "Data & Analytics"
	CategorySoft        = "Soft Skills"
	CategoryTools       = "Tools"
)

// SkillCategories lists the categories in the order they are presented
var SkillCategories = []string{
	CategoryProgramming,
	CategoryFrameworks,
	CategoryDatabases,
	CategoryCloud,
	CategoryData,
	CategorySoft,
	CategoryTools,
}

var skillKeywords = []struct {
	category string
	keywords []string
}{
	{CategoryProgramming, []string{"python", "java", "golang", " go", "javascript", "typescript", "c++", "c#", "rust", "ruby", "php", "kotlin", "swift", "scala", "sql"}},
	{CategoryFrameworks, []string{"react", "angular", "vue", "django", "flask", "spring", "node", ".net", "tensorflow", "pytorch", "pandas", "rails"}},
	{CategoryDatabases, []string{"postgresql", "postgres", "mysql", "mongodb", "redis", "oracle", "database", "sqlite", "cassandra", "elasticsearch"}},
	{CategoryCloud, []string{"aws", "azure", "gcp", "cloud", "docker", "kubernetes", "terraform", "ci/cd", "devops", "linux", "ansible"}},
	{CategoryData, []string{"data", "analytics", "machine learning", "statistics", "tableau", "power bi", "excel", "etl", "ai"}},
	{CategorySoft, []string{"communication", "teamwork", "leadership", "problem solving", "problem-solving", "adaptability", "creativity", "time management", "collaboration", "empathy", "presentation", "negotiation"}},
}

// CategorizeSkills sorts skills into keyword buckets. A skill goes to the first
// matching bucket; unmatched skills go to Tools. Buckets keep input order and
// are capped at MaxSkillsPerCategory. Empty buckets are omitted.
func CategorizeSkills(skills []string) map[string][]string {
	out := map[string][]string{}
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		category := categoryOf(skill)
		if len(out[category]) < MaxSkillsPerCategory {
			out[category] = append(out[category], skill)
		}
	}
	return out
}

func categoryOf(skill string) string {
	padded := " " + strings.ToLower(skill) + " "
	for _, bucket := range skillKeywords {
		for _, kw := range bucket.keywords {
			if containsKeyword(padded, kw) {
				return bucket.category
			}
		}
	}
	return CategoryTools
}

// containsKeyword matches kw on word boundaries so that "ai" does not match "maintenance"
func containsKeyword(padded, kw string) bool {
	kw = strings.TrimSpace(kw)
	for i := 0; ; {
		j := strings.Index(padded[i:], kw)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(kw)
		if !isWordByte(padded[start-1]) && (end >= len(padded) || !isWordByte(padded[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
