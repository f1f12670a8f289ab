package session

import (
	"vacalyser/internal/types"
	"vacalyser/internal/wizard"
)

// DescribeStep converts a catalog step into its listing form
func DescribeStep(index int, step wizard.Step) types.StepInfo {
	info := types.StepInfo{
		Index:       index,
		Name:        step.Name,
		Title:       step.Title,
		Description: step.Description,
		Fields:      make([]types.FieldInfo, 0, len(step.Fields)),
	}
	for _, f := range step.Fields {
		info.Fields = append(info.Fields, types.FieldInfo{
			Name:     f.Name,
			Label:    f.Label,
			Kind:     string(f.Kind),
			Help:     f.Help,
			Required: step.IsRequired(f.Name),
		})
	}
	return info
}

// DescribeSteps lists a whole catalog in order
func DescribeSteps(steps []wizard.Step) types.StepList {
	out := types.StepList{Steps: make([]types.StepInfo, 0, len(steps))}
	for i, s := range steps {
		out.Steps = append(out.Steps, DescribeStep(i, s))
	}
	return out
}
