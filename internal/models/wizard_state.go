package models

type WizardState struct {
	CurrentStepIndex int `json:"currentStepIndex"`
	TotalSteps       int `json:"totalSteps"`
}

func (s WizardState) IsLastStep() bool {
	return s.CurrentStepIndex == s.TotalSteps-1
}
