package store

import (
	"context"
	"testing"

	"github.com/TimurManjosov/hostmatch/internal/attribute"
)

func TestAssignmentRowAddTo(t *testing.T) {
	tests := []struct {
		name      string
		rows      []assignmentRow
		wantState attribute.State
		want      []string
	}{
		{
			name: "select yields option ids",
			rows: []assignmentRow{
				{memberID: 1, attributeID: "a", attrType: "MULTI_SELECT", optionID: "o1", value: "English"},
				{memberID: 1, attributeID: "a", attrType: "MULTI_SELECT", optionID: "o2", value: "German"},
			},
			wantState: attribute.Present,
			want:      []string{"o1", "o2"},
		},
		{
			name:      "text yields value",
			rows:      []assignmentRow{{memberID: 1, attributeID: "a", attrType: "TEXT", optionID: "o1", value: "Berlin"}},
			wantState: attribute.Present,
			want:      []string{"Berlin"},
		},
		{
			name:      "blank text is empty",
			rows:      []assignmentRow{{memberID: 1, attributeID: "a", attrType: "TEXT", optionID: "o1", value: ""}},
			wantState: attribute.Empty,
		},
		{
			name:      "number yields value",
			rows:      []assignmentRow{{memberID: 1, attributeID: "a", attrType: "NUMBER", optionID: "o1", value: "4.5"}},
			wantState: attribute.Present,
			want:      []string{"4.5"},
		},
		{
			name:      "unparsable number is empty",
			rows:      []assignmentRow{{memberID: 1, attributeID: "a", attrType: "NUMBER", optionID: "o1", value: "many"}},
			wantState: attribute.Empty,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := attribute.Assignments{}
			for _, r := range tt.rows {
				r.addTo(a)
			}
			snap := a.Resolve(1, "a")
			if snap.State != tt.wantState {
				t.Fatalf("state = %v, want %v", snap.State, tt.wantState)
			}
			if len(snap.Values) != len(tt.want) {
				t.Fatalf("values = %v, want %v", snap.Values, tt.want)
			}
			for i := range tt.want {
				if snap.Values[i] != tt.want[i] {
					t.Errorf("values[%d] = %q, want %q", i, snap.Values[i], tt.want[i])
				}
			}
		})
	}
}

func TestPostgresStore_NoOrgShortCircuits(t *testing.T) {
	// a nil querier would panic if the store reached the database
	p := &PostgresStore{}
	ctx := context.Background()

	attrs, err := p.Attributes(ctx, attribute.Scope{TeamID: 1})
	if err != nil || len(attrs) != 0 {
		t.Fatalf("Attributes() = %v, %v; want empty", attrs, err)
	}
	a, err := p.Assignments(ctx, attribute.Scope{TeamID: 1}, []int64{1}, []string{"x"})
	if err != nil || len(a) != 0 {
		t.Fatalf("Assignments() = %v, %v; want empty", a, err)
	}
}
