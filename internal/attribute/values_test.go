package attribute

import "testing"

func TestAssignments_Resolve(t *testing.T) {
	a := Assignments{}
	a.Add(1, "dept", "opt-eng")
	a.Add(2, "dept", "")
	a.Add(3, "skills", "js")
	a.Add(3, "skills", "react")

	tests := []struct {
		name      string
		member    int64
		attribute string
		state     State
		values    int
	}{
		{"present single", 1, "dept", Present, 1},
		{"empty row", 2, "dept", Empty, 0},
		{"absent attribute", 3, "dept", Absent, 0},
		{"absent member", 99, "dept", Absent, 0},
		{"present multi", 3, "skills", Present, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Resolve(tt.member, tt.attribute)
			if got.State != tt.state {
				t.Errorf("State = %v, want %v", got.State, tt.state)
			}
			if len(got.Values) != tt.values {
				t.Errorf("len(Values) = %d, want %d", len(got.Values), tt.values)
			}
		})
	}
}

func TestAssignments_AddEmptyAfterValueKeepsPresent(t *testing.T) {
	a := Assignments{}
	a.Add(1, "skills", "js")
	a.Add(1, "skills", "")

	got := a.Resolve(1, "skills")
	if got.State != Present || len(got.Values) != 1 {
		t.Fatalf("got %+v, want one present value", got)
	}
}

func TestSnapshot_DropsBlankValues(t *testing.T) {
	if s := Snapshot([]string{"", ""}); s.State != Empty {
		t.Errorf("State = %v, want empty", s.State)
	}
	if s := Snapshot(nil); s.State != Empty {
		t.Errorf("State = %v, want empty", s.State)
	}
	if s := Snapshot([]string{"", "3"}); s.State != Present || s.Values[0] != "3" {
		t.Errorf("got %+v, want present [3]", s)
	}
	if s := Snapshot([]string{" ", "\t"}); s.State != Empty {
		t.Errorf("State = %v, want empty for whitespace-only values", s.State)
	}
}

func TestAssignments_AddWhitespaceOnlyIsEmpty(t *testing.T) {
	a := Assignments{}
	a.Add(1, "bio", "   ")

	if got := a.Resolve(1, "bio"); got.State != Empty || len(got.Values) != 0 {
		t.Fatalf("got %+v, want empty row", got)
	}
}

func TestAttribute_OptionLookup(t *testing.T) {
	attr := Attribute{
		ID:   "dept",
		Type: TypeSingleSelect,
		Options: []Option{
			{ID: "opt-eng", Value: "Engineering"},
			{ID: "opt-sales", Value: "Sales"},
		},
	}

	if o, ok := attr.OptionByValue("engineering"); !ok || o.ID != "opt-eng" {
		t.Errorf("OptionByValue(engineering) = %+v, %v", o, ok)
	}
	if _, ok := attr.OptionByValue("Support"); ok {
		t.Error("OptionByValue(Support) should not be found")
	}
	if o, ok := attr.OptionByID("opt-sales"); !ok || o.Value != "Sales" {
		t.Errorf("OptionByID(opt-sales) = %+v, %v", o, ok)
	}
}

func TestType_Valid(t *testing.T) {
	for _, typ := range []Type{TypeSingleSelect, TypeMultiSelect, TypeText, TypeNumber} {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if Type("DATE").Valid() {
		t.Error("DATE should not be valid")
	}
}
