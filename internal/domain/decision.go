package domain

// ActionType categorizes the outcome of one Director turn.
type ActionType string

const (
	ActionMessage ActionType = "message" // standalone message
	ActionReply   ActionType = "reply"   // quoted reply to an existing message
	ActionMention ActionType = "mention" // message addressed at a named participant
	ActionLike    ActionType = "like"    // like an existing message, no text generated
)

// Valid reports whether t is one of the four known action types.
func (t ActionType) Valid() bool {
	switch t {
	case ActionMessage, ActionReply, ActionMention, ActionLike:
		return true
	}
	return false
}

// Instruction is the structured directive the Director hands to the Performer.
// Absent for like actions.
type Instruction struct {
	Objective  string `json:"objective"`
	Motivation string `json:"motivation"`
	Action     string `json:"action"`
}

// Empty reports whether no instruction fields are set.
func (i Instruction) Empty() bool {
	return i.Objective == "" && i.Motivation == "" && i.Action == ""
}

// Decision is the Director's parsed and validated output for one turn.
// It is transient: decisions are never persisted.
type Decision struct {
	Reasoning       string      `json:"reasoning,omitempty"`
	NextAgent       string      `json:"next_agent"`
	ActionType      ActionType  `json:"action_type"`
	TargetUser      string      `json:"target_user,omitempty"`
	TargetMessageID string      `json:"target_message_id,omitempty"`
	Instruction     Instruction `json:"performer_instruction,omitempty"`
}
