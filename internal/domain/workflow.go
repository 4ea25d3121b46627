package domain

import (
	"encoding/json"
	"time"
)

// Workflow trigger events.
const (
	TriggerTicketCreated = "ticket_created"
	TriggerTicketUpdated = "ticket_updated"
)

// Workflow is a tenant-defined trigger -> conditions -> actions rule.
type Workflow struct {
	ID           string
	TenantID     string
	Name         string
	TriggerEvent string
	IsActive     bool
	Conditions   []Condition
	Actions      []Action
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ConditionOperator enumerates supported comparison operators.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	// OperatorUnknown marks any operator this engine does not implement. It never matches.
	OperatorUnknown ConditionOperator = "unknown"
)

// ParseOperator maps a stored operator name to a known operator or OperatorUnknown.
func ParseOperator(raw string) ConditionOperator {
	switch op := ConditionOperator(raw); op {
	case OperatorEquals, OperatorNotEquals, OperatorContains, OperatorGreaterThan, OperatorLessThan:
		return op
	}
	return OperatorUnknown
}

// Condition is one {field, operator, value} clause.
type Condition struct {
	Field    string
	Operator ConditionOperator
	// RawOperator keeps the stored name for logging when Operator is unknown.
	RawOperator string
	Value       any
}

type conditionJSON struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// UnmarshalJSON decodes a stored condition, classifying its operator.
// A missing or non-string operator decodes as OperatorUnknown.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Field    string          `json:"field"`
		Operator json.RawMessage `json:"operator"`
		Value    any             `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Field = raw.Field
	c.Value = raw.Value
	var name string
	if err := json.Unmarshal(raw.Operator, &name); err != nil {
		c.RawOperator = string(raw.Operator)
		c.Operator = OperatorUnknown
		return nil
	}
	c.RawOperator = name
	c.Operator = ParseOperator(name)
	return nil
}

// MarshalJSON encodes the condition with its original operator name.
func (c Condition) MarshalJSON() ([]byte, error) {
	op := c.RawOperator
	if op == "" {
		op = string(c.Operator)
	}
	return json.Marshal(conditionJSON{Field: c.Field, Operator: op, Value: c.Value})
}

// ActionKind enumerates workflow side effects.
type ActionKind string

const (
	ActionUpdateField      ActionKind = "update_field"
	ActionSendNotification ActionKind = "send_notification"
	ActionSendEmail        ActionKind = "send_email"
	ActionUnknown          ActionKind = "unknown"
)

// ParseActionKind maps a stored action type to a known kind or ActionUnknown.
func ParseActionKind(raw string) ActionKind {
	switch kind := ActionKind(raw); kind {
	case ActionUpdateField, ActionSendNotification, ActionSendEmail:
		return kind
	}
	return ActionUnknown
}

// Action is a typed workflow action descriptor. Only the fields relevant to Kind are set.
type Action struct {
	Kind    ActionKind
	RawType string

	// update_field
	Field string
	Value any

	// send_notification
	TargetUserID *string
	Subject      *string
	Message      *string

	// send_email
	To       *string
	Template *string
}

type actionJSON struct {
	Type         string  `json:"type"`
	Field        string  `json:"field,omitempty"`
	Value        any     `json:"value,omitempty"`
	TargetUserID *string `json:"target_user_id,omitempty"`
	Subject      *string `json:"subject,omitempty"`
	Message      *string `json:"message,omitempty"`
	To           *string `json:"to,omitempty"`
	Template     *string `json:"template,omitempty"`
}

// UnmarshalJSON decodes a stored action descriptor.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw actionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Action{
		Kind:         ParseActionKind(raw.Type),
		RawType:      raw.Type,
		Field:        raw.Field,
		Value:        raw.Value,
		TargetUserID: raw.TargetUserID,
		Subject:      raw.Subject,
		Message:      raw.Message,
		To:           raw.To,
		Template:     raw.Template,
	}
	return nil
}

// MarshalJSON encodes the action descriptor.
func (a Action) MarshalJSON() ([]byte, error) {
	typ := a.RawType
	if typ == "" {
		typ = string(a.Kind)
	}
	return json.Marshal(actionJSON{
		Type:         typ,
		Field:        a.Field,
		Value:        a.Value,
		TargetUserID: a.TargetUserID,
		Subject:      a.Subject,
		Message:      a.Message,
		To:           a.To,
		Template:     a.Template,
	})
}
