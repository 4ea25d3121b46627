package domain

import (
	"encoding/json"
	"testing"
)

func TestWorkflowDescriptorsDecode(t *testing.T) {
	raw := `{
		"conditions": [
			{"field": "priority", "operator": "equals", "value": "urgent"},
			{"field": "subject", "operator": "regex", "value": "^x"}
		],
		"actions": [
			{"type": "update_field", "field": "status", "value": "open"},
			{"type": "send_notification", "target_user_id": "u-1", "subject": "Heads up"},
			{"type": "escalate"}
		]
	}`
	var decoded struct {
		Conditions []Condition `json:"conditions"`
		Actions    []Action    `json:"actions"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Conditions[0].Operator != OperatorEquals {
		t.Errorf("operator = %s", decoded.Conditions[0].Operator)
	}
	if decoded.Conditions[1].Operator != OperatorUnknown || decoded.Conditions[1].RawOperator != "regex" {
		t.Errorf("unknown operator not classified: %+v", decoded.Conditions[1])
	}

	if decoded.Actions[0].Kind != ActionUpdateField || decoded.Actions[0].Field != "status" {
		t.Errorf("update_field decoded as %+v", decoded.Actions[0])
	}
	if decoded.Actions[1].Kind != ActionSendNotification || *decoded.Actions[1].TargetUserID != "u-1" {
		t.Errorf("send_notification decoded as %+v", decoded.Actions[1])
	}
	if decoded.Actions[2].Kind != ActionUnknown || decoded.Actions[2].RawType != "escalate" {
		t.Errorf("unknown action decoded as %+v", decoded.Actions[2])
	}
}

func TestConditionNonStringOperatorIsUnknown(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "number", raw: `{"field":"priority","operator":5,"value":"high"}`},
		{name: "object", raw: `{"field":"priority","operator":{"op":"equals"},"value":"high"}`},
		{name: "null", raw: `{"field":"priority","operator":null,"value":"high"}`},
		{name: "missing", raw: `{"field":"priority","value":"high"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cond Condition
			if err := json.Unmarshal([]byte(tt.raw), &cond); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if cond.Operator != OperatorUnknown {
				t.Fatalf("operator = %s, want unknown", cond.Operator)
			}
			if cond.Field != "priority" || cond.Value != "high" {
				t.Fatalf("unexpected condition %+v", cond)
			}
		})
	}
}
