package wizard

import (
	"fmt"
	"os"
	"slices"

	"vacalyser/internal/errors"

	"gopkg.in/yaml.v3"
)

// StepID identifies a step of the built-in catalog. Catalogs loaded from a file
// number their steps by position.
type StepID int

const (
	StepCompany StepID = iota
	StepDepartment
	StepRole
	StepTasks
	StepSkills
	StepBenefits
	StepRecruitment
	StepSummary
	stepCount
)

var stepNames = [stepCount]string{
	StepCompany:     "company",
	StepDepartment:  "department",
	StepRole:        "role",
	StepTasks:       "tasks",
	StepSkills:      "skills",
	StepBenefits:    "benefits",
	StepRecruitment: "recruitment",
	StepSummary:     "summary",
}

func (id StepID) String() string {
	if id >= 0 && id < stepCount {
		return stepNames[id]
	}
	return fmt.Sprintf("step-%d", int(id))
}

// Field describes one input a step collects
type Field struct {
	Name  string `json:"name" yaml:"name"`
	Label string `json:"label" yaml:"label"`
	Kind  Kind   `json:"kind" yaml:"kind"`
	Help  string `json:"help,omitempty" yaml:"help,omitempty"`
}

// Step is one entry of the linear wizard. Rendering and input collection belong
// to the presentation layer, which reads Fields to know what to ask for.
type Step struct {
	ID          StepID   `json:"id" yaml:"-"`
	Name        string   `json:"name" yaml:"name"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Required    []string `json:"required" yaml:"required"`
	Fields      []Field  `json:"fields" yaml:"fields"`
}

// Field returns the descriptor for name, if the step collects it
func (s Step) Field(name string) (Field, bool) {
	i := slices.IndexFunc(s.Fields, func(f Field) bool { return f.Name == name })
	if i < 0 {
		return Field{}, false
	}
	return s.Fields[i], true
}

// IsRequired reports whether the step gates on name
func (s Step) IsRequired(name string) bool {
	return slices.Contains(s.Required, name)
}

var defaultSteps = [stepCount]Step{
	StepCompany: {
		Title:       "Company Information",
		Description: "Who is hiring and what does the company stand for.",
		Required:    []string{"company_name"},
		Fields: []Field{
			{Name: "company_name", Label: "Company name", Kind: KindText},
			{Name: "location", Label: "Location", Kind: KindText},
			{Name: "company_website", Label: "Website", Kind: KindText},
			{Name: "industry", Label: "Industry", Kind: KindText},
			{Name: "company_size", Label: "Company size", Kind: KindText, Help: "e.g. 50-200 employees"},
			{Name: "founded_year", Label: "Founded", Kind: KindNumber},
			{Name: "company_mission", Label: "Mission and values", Kind: KindText},
		},
	},
	StepDepartment: {
		Title:       "Department Information",
		Description: "The team the new hire joins.",
		Required:    []string{"department"},
		Fields: []Field{
			{Name: "department", Label: "Department", Kind: KindText},
			{Name: "team_size", Label: "Team size", Kind: KindNumber},
			{Name: "direct_supervisor", Label: "Direct supervisor", Kind: KindText},
			{Name: "department_goals", Label: "Department goals", Kind: KindText},
			{Name: "technologies_used", Label: "Technologies used", Kind: KindList},
			{Name: "remote_policy", Label: "Remote policy", Kind: KindText, Help: "onsite, hybrid or remote"},
			{Name: "travel_required", Label: "Travel required", Kind: KindText},
		},
	},
	StepRole: {
		Title:       "Role Description",
		Description: "The position and why it exists.",
		Required:    []string{"job_title"},
		Fields: []Field{
			{Name: "job_title", Label: "Job title", Kind: KindText},
			{Name: "job_reason", Label: "Reason for hiring", Kind: KindText, Help: "new position, replacement, growth"},
			{Name: "role_description", Label: "Role description", Kind: KindText},
			{Name: "responsibility_distribution", Label: "Responsibility distribution", Kind: KindText},
			{Name: "job_challenges", Label: "Main challenges", Kind: KindText},
		},
	},
	StepTasks: {
		Title:       "Task Scope",
		Description: "What the person will do day to day.",
		Required:    []string{"tasks"},
		Fields: []Field{
			{Name: "tasks", Label: "Core tasks", Kind: KindList},
			{Name: "recurring_tasks", Label: "Recurring tasks", Kind: KindList},
			{Name: "autonomy_level", Label: "Autonomy level", Kind: KindText},
		},
	},
	StepSkills: {
		Title:       "Required Skills",
		Description: "Hard and soft skills a candidate needs.",
		Required:    []string{"hard_skills"},
		Fields: []Field{
			{Name: "hard_skills", Label: "Hard skills", Kind: KindList},
			{Name: "soft_skills", Label: "Soft skills", Kind: KindList},
			{Name: "experience_level", Label: "Experience level", Kind: KindText},
			{Name: "languages", Label: "Languages", Kind: KindList},
		},
	},
	StepBenefits: {
		Title:       "Benefits & Compensation",
		Description: "What the company offers in return.",
		Required:    []string{"benefits"},
		Fields: []Field{
			{Name: "salary_range", Label: "Salary range", Kind: KindRange, Help: "e.g. 50000 - 70000"},
			{Name: "benefits", Label: "Benefits", Kind: KindList},
			{Name: "health_benefits", Label: "Health benefits", Kind: KindList},
			{Name: "learning_opportunities", Label: "Learning opportunities", Kind: KindList},
		},
	},
	StepRecruitment: {
		Title:       "Recruitment Process",
		Description: "How candidates get from application to offer.",
		Required:    []string{"interview_stages"},
		Fields: []Field{
			{Name: "interview_stages", Label: "Interview stages", Kind: KindList},
			{Name: "recruitment_contact", Label: "Contact person", Kind: KindText},
			{Name: "application_deadline", Label: "Application deadline", Kind: KindText},
			{Name: "candidate_attributes", Label: "Ideal candidate attributes", Kind: KindList},
		},
	},
	StepSummary: {
		Title:       "Summary & Output",
		Description: "Review the collected data and generate outputs.",
	},
}

// DefaultSteps returns a fresh copy of the built-in catalog
func DefaultSteps() []Step {
	steps := make([]Step, stepCount)
	for id := range stepCount {
		s := defaultSteps[id]
		s.ID = id
		s.Name = id.String()
		s.Required = slices.Clone(s.Required)
		s.Fields = slices.Clone(s.Fields)
		steps[id] = s
	}
	return steps
}

type catalogFile struct {
	Steps []Step `yaml:"steps"`
}

// LoadSteps reads a step catalog from a YAML file
func LoadSteps(path string) ([]Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("cannot read step catalog %s", path), err)
	}
	steps, err := ParseSteps(data)
	if err != nil {
		if appErr, ok := errors.As(err); ok {
			appErr.WithContext("file", path)
		}
		return nil, err
	}
	return steps, nil
}

// ParseSteps decodes and validates a YAML step catalog
func ParseSteps(data []byte) ([]Step, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidFormat, "step catalog is not valid YAML", err)
	}
	for i := range file.Steps {
		file.Steps[i].ID = StepID(i)
		for j := range file.Steps[i].Fields {
			if file.Steps[i].Fields[j].Kind == "" {
				file.Steps[i].Fields[j].Kind = KindText
			}
		}
	}
	if err := ValidateSteps(file.Steps); err != nil {
		return nil, err
	}
	return file.Steps, nil
}

// ValidateSteps checks a catalog for the conditions that make a wizard unusable
func ValidateSteps(steps []Step) error {
	if len(steps) == 0 {
		return errors.NewConfigError(errors.ErrCodeEmptyStepList, "wizard needs at least one step", nil)
	}

	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		if s.Name == "" {
			return errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("step %d has no name", i), nil)
		}
		if seen[s.Name] {
			return errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("duplicate step name %q", s.Name), nil)
		}
		seen[s.Name] = true

		for _, f := range s.Fields {
			if !f.Kind.Valid() {
				return errors.NewConfigError(errors.ErrCodeInvalidConfig,
					fmt.Sprintf("step %q field %q has unknown kind %q", s.Name, f.Name, f.Kind), nil)
			}
		}
		for _, name := range s.Required {
			if _, ok := s.Field(name); !ok {
				return errors.NewConfigError(errors.ErrCodeInvalidConfig,
					fmt.Sprintf("step %q requires %q but does not collect it", s.Name, name), nil)
			}
		}
	}
	return nil
}
