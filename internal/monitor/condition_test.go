package monitor

import "testing"

func TestParseCondition(t *testing.T) {
	tests := []struct {
		input     string
		operator  string
		threshold float64
		wantErr   bool
	}{
		{"> 20", ">", 20, false},
		{">= 0.5", ">=", 0.5, false},
		{"< 1000", "<", 1000, false},
		{"<= 99.9", "<=", 99.9, false},
		{"== 0", "==", 0, false},
		{"!= -1", "!=", -1, false},
		{"  >   3.14  ", ">", 3.14, false},
		{">20", ">", 20, false},

		{"", "", 0, true},
		{"20", "", 0, true},
		{"> ", "", 0, true},
		{"=> 5", "", 0, true},
		{"> five", "", 0, true},
		{"> 1 > 2", "", 0, true},
	}

	for _, tt := range tests {
		cond, err := ParseCondition(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseCondition(%q): expected error, got %+v", tt.input, cond)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCondition(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if cond.Operator != tt.operator || cond.Threshold != tt.threshold {
			t.Errorf("ParseCondition(%q) = %+v, want %s %v", tt.input, cond, tt.operator, tt.threshold)
		}
	}
}

func TestConditionHolds(t *testing.T) {
	tests := []struct {
		condition string
		value     float64
		want      bool
	}{
		{"> 20", 25, true},
		{"> 20", 20, false},
		{">= 20", 20, true},
		{"< 0.5", 0.4, true},
		{"< 0.5", 0.5, false},
		{"<= 0.5", 0.5, true},
		{"== 0", 0, true},
		{"== 0", 0.001, false},
		{"!= 0", 0.001, true},
		{"!= 0", 0, false},
	}

	for _, tt := range tests {
		cond, err := ParseCondition(tt.condition)
		if err != nil {
			t.Fatalf("ParseCondition(%q) failed: %v", tt.condition, err)
		}
		if got := cond.Holds(tt.value); got != tt.want {
			t.Errorf("(%s).Holds(%v) = %v, want %v", tt.condition, tt.value, got, tt.want)
		}
	}
}
