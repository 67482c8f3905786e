package model

type InsightType string

const (
	InsightProject      InsightType = "project"
	InsightPBI          InsightType = "pbi"
	InsightUserStory    InsightType = "user_story"
	InsightSprint       InsightType = "sprint"
	InsightRisk         InsightType = "risk"
	InsightNewProject   InsightType = "new_project"
	InsightNewPBI       InsightType = "new_pbi"
	InsightNewUserStory InsightType = "new_user_story"
	InsightNewSprint    InsightType = "new_sprint"
	InsightNewRisk      InsightType = "new_risk"
)

var insightTypes = map[InsightType]bool{
	InsightProject: true, InsightPBI: true, InsightUserStory: true, InsightSprint: true, InsightRisk: true,
	InsightNewProject: true, InsightNewPBI: true, InsightNewUserStory: true, InsightNewSprint: true, InsightNewRisk: true,
}

func (t InsightType) Valid() bool {
	return insightTypes[t]
}

// IsCreate reports whether the type proposes a new entity.
func (t InsightType) IsCreate() bool {
	switch t {
	case InsightNewProject, InsightNewPBI, InsightNewUserStory, InsightNewSprint, InsightNewRisk:
		return true
	}
	return false
}

type InsightAction string

const (
	InsightActionUpdate InsightAction = "update"
	InsightActionCreate InsightAction = "create"
)

// Insight is a proposed change mined from an assistant reply. It is never applied here.
type Insight struct {
	Type            InsightType     `json:"type"`
	Action          InsightAction   `json:"action"`
	Confidence      float64         `json:"confidence"`
	SuggestedUpdate SuggestedUpdate `json:"suggestedUpdate"`
}

type SuggestedUpdate struct {
	EntityID       *string `json:"entityId"`
	EntityName     string  `json:"entityName"`
	Field          string  `json:"field"`
	CurrentValue   any     `json:"currentValue"`
	SuggestedValue any     `json:"suggestedValue"`
	Reason         string  `json:"reason"`
}
