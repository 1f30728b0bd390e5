package attribute

import "strings"

// State distinguishes a missing assignment from an empty one.
type State int

const (
	// Absent means the member has no row for the attribute at all.
	Absent State = iota
	// Empty means a row exists but its value set is empty.
	Empty
	// Present means at least one value is assigned.
	Present
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Empty:
		return "empty"
	case Present:
		return "present"
	}
	return "unknown"
}

// ValueSnapshot is what one member holds for one attribute. Values are option
// ids for select attributes and the raw scalar for TEXT and NUMBER.
type ValueSnapshot struct {
	State  State
	Values []string
}

// AbsentSnapshot is the snapshot of a member with no assignment.
var AbsentSnapshot = ValueSnapshot{State: Absent}

// Snapshot builds a ValueSnapshot from an assigned value list. A nil or empty
// list yields Empty; blank and whitespace-only values are dropped.
func Snapshot(values []string) ValueSnapshot {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if !blank(v) {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return ValueSnapshot{State: Empty}
	}
	return ValueSnapshot{State: Present, Values: kept}
}

// MemberValues holds one member's snapshots keyed by attribute id.
type MemberValues map[string]ValueSnapshot

// Resolve returns the snapshot for the attribute, Absent when unassigned.
func (m MemberValues) Resolve(attributeID string) ValueSnapshot {
	if m == nil {
		return AbsentSnapshot
	}
	v, ok := m[attributeID]
	if !ok {
		return AbsentSnapshot
	}
	return v
}

// Assignments is a batch of member values keyed by member id.
type Assignments map[int64]MemberValues

// Resolve returns the snapshot of memberID for attributeID.
func (a Assignments) Resolve(memberID int64, attributeID string) ValueSnapshot {
	return a[memberID].Resolve(attributeID)
}

// Member returns every snapshot of one member. The result may be nil, which
// resolves every attribute as Absent.
func (a Assignments) Member(memberID int64) MemberValues {
	return a[memberID]
}

// Add appends a value for memberID/attributeID, creating the row if needed.
// A blank value creates the row without adding to it.
func (a Assignments) Add(memberID int64, attributeID, value string) {
	mv, ok := a[memberID]
	if !ok {
		mv = MemberValues{}
		a[memberID] = mv
	}
	snap := mv[attributeID]
	if blank(value) {
		if snap.State == Absent {
			mv[attributeID] = ValueSnapshot{State: Empty}
		}
		return
	}
	snap.State = Present
	snap.Values = append(snap.Values, value)
	mv[attributeID] = snap
}

func blank(v string) bool {
	return strings.TrimSpace(v) == ""
}
