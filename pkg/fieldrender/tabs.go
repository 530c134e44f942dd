package fieldrender

import "github.com/dukex/hireflow/pkg/models"

// Tab names a section of the position edit form.
type Tab string

const (
	TabDetails      Tab = "details"
	TabCompensation Tab = "compensation"
	TabWorkflow     Tab = "workflow"
	TabCustomFields Tab = "custom_fields"
)

var attributeTabs = map[string]Tab{
	models.AttrBudget:            TabCompensation,
	models.AttrSalaryMin:         TabCompensation,
	models.AttrSalaryMax:         TabCompensation,
	models.AttrHeadcount:         TabCompensation,
	models.AttrWorkflowID:        TabWorkflow,
	models.AttrCustomFieldConfig: TabWorkflow,
}

// FormTab returns the form section that holds field, so a rejected move can
// point the user at the right place.
func FormTab(field string, custom bool) Tab {
	if custom {
		return TabCustomFields
	}

	if tab, ok := attributeTabs[field]; ok {
		return tab
	}

	return TabDetails
}
