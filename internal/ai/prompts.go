package ai

import (
	"strings"
)

// Artifact kinds generated from the collected answers
const (
	KindJobAd         = "job_ad"
	KindInterviewPrep = "interview_prep"
	KindOnboarding    = "onboarding"
	KindSummary       = "summary"
)

// Suggestion kinds generated from the job title
const (
	KindSkills           = "skills"
	KindBenefits         = "benefits"
	KindRecruitmentSteps = "recruitment_steps"
	KindTasks            = "tasks"
)

// KindCompanyInfo extracts company facts from pasted or fetched text
const KindCompanyInfo = "company_info"

// ArtifactKinds lists the artifact kinds in display order
var ArtifactKinds = []string{KindJobAd, KindInterviewPrep, KindOnboarding, KindSummary}

// SuggestionKinds lists the suggestion kinds in display order
var SuggestionKinds = []string{KindSkills, KindBenefits, KindRecruitmentSteps, KindTasks}

// suggestionLimits caps the number of items kept per suggestion kind
var suggestionLimits = map[string]int{
	KindSkills:           20,
	KindBenefits:         10,
	KindRecruitmentSteps: 10,
	KindTasks:            15,
}

// DefaultTemplates are the built-in prompt templates keyed by kind. Placeholders
// use the {field} form and are filled from the form state plus the generation
// options style, language and audience.
var DefaultTemplates = map[string]string{
	KindJobAd: `You are an experienced HR copywriter. Write a professional job advertisement in {language} with the following details, phrased to attract the target group, in a {style} tone. Add (m/w/d) to the job title.

Job Title: {job_title} (m/w/d)

Company Information:
Company: {company_name}
Location: {location}
Industry: {industry}
Company Size: {company_size}
Website: {company_website}
Mission: {company_mission}

Role Information:
Department: {department}
Role Description: {role_description}
Key Tasks: {tasks}
Responsibilities: {responsibility_distribution}
Required Skills: {hard_skills}
Soft Skills: {soft_skills}
Experience Level: {experience_level}
Languages: {languages}
Remote Policy: {remote_policy}

Benefits:
Salary Range: {salary_range}
{benefits}

Recruitment Process:
{interview_stages}
Contact: {recruitment_contact}
Application Deadline: {application_deadline}

Return plain text only.`,

	KindInterviewPrep: `You are an HR assistant helping to create a structured interview preparation sheet for {audience} interviewers, written in {language}.
Based on the following information, generate a detailed preparation document:

Job Title: {job_title}
Role Description: {role_description}
Key Tasks: {tasks}
Responsibilities: {responsibility_distribution}
Required Skills: {hard_skills}
Soft Skills: {soft_skills}
Candidate Attributes: {candidate_attributes}
Recruitment Steps: {interview_stages}
Company Benefits: {benefits}

Include suggested questions per interview stage, what a strong answer looks like and red flags.
Return a structured, step-by-step guide in plain text.`,

	KindOnboarding: `You are an HR onboarding specialist. Write an onboarding plan in {language} for the first 90 days of a new {job_title} in the {department} department at {company_name}.

Key Tasks: {tasks}
Recurring Tasks: {recurring_tasks}
Technologies: {technologies_used}
Direct Supervisor: {direct_supervisor}
Team Size: {team_size}
Learning Opportunities: {learning_opportunities}

Structure the plan into week one, days 30, 60 and 90 with goals and check-ins. Return plain text.`,

	KindSkills: `You are an expert HR consultant. List 20 essential skills required for the role '{job_title}' as keywords with no further explanation. Provide them as bullet points.`,

	KindBenefits: `You are an expert HR consultant. List up to 10 benefits as keywords with no further explanation that would attract candidates to the role '{job_title}'. Provide them as bullet points.`,

	KindRecruitmentSteps: `You are an expert HR consultant. List up to 10 ideal steps for the recruitment process as keywords with no further explanation for the role '{job_title}'. Provide them as bullet points.`,

	KindTasks: `You are an expert HR consultant. List 15 typical tasks of a '{job_title}' as short phrases with no further explanation. Provide them as bullet points.`,

	KindCompanyInfo: `Extract the company facts from the text below. Answer with one line per fact in the form "Key - value" using only these keys: Company Name, Industry, Company Location, Company Size, Website. Leave out facts that are not stated.

{text}`,
}

// resolvePrompt returns the configured prompt, which already prefers files
// over inline text, or the built-in default when none is configured
func resolvePrompt(configured, defaultPrompt string) string {
	if configured != "" {
		return configured
	}
	return defaultPrompt
}

// BuildPrompt replaces every {field} placeholder of template with its value.
// Placeholders without a value become empty; text without braces is kept as
// is. When sanitize is set, '<' and '>' are removed from values.
func BuildPrompt(template string, fields map[string]string, sanitize bool) string {
	var b strings.Builder
	b.Grow(len(template))

	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open+1:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		name := rest[open+1 : open+1+end]
		if !isPlaceholderName(name) {
			// Not a placeholder; keep the brace and continue after it
			b.WriteString(rest[:open+1])
			rest = rest[open+1:]
			continue
		}
		b.WriteString(rest[:open])
		value := fields[name]
		if sanitize {
			value = sanitizeValue(value)
		}
		b.WriteString(value)
		rest = rest[open+1+end+1:]
	}
	return b.String()
}

func isPlaceholderName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

var sanitizer = strings.NewReplacer("<", "", ">", "")

func sanitizeValue(value string) string {
	return sanitizer.Replace(value)
}
