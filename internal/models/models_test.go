package models

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestEffectiveDriverID(t *testing.T) {
	cases := []struct {
		name   string
		call   Call
		wantID string
		wantOK bool
	}{
		{"unassigned", Call{}, "", false},
		{"assigned", Call{AssignedToID: strPtr("d1")}, "d1", true},
		{"reassignment pending", Call{AssignedToID: strPtr("d1"), Reassigned: true}, "", false},
		{"reassigned", Call{AssignedToID: strPtr("d1"), Reassigned: true, ReassignedToID: strPtr("d2")}, "d2", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := tc.call.EffectiveDriverID()
			if id != tc.wantID || ok != tc.wantOK {
				t.Fatalf("EffectiveDriverID() = (%q, %v), want (%q, %v)", id, ok, tc.wantID, tc.wantOK)
			}
		})
	}
}

func TestStatusDerivation(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name string
		call Call
		want CallStatus
	}{
		{"open", Call{}, StatusOpen},
		{"assigned", Call{AssignedToID: strPtr("d1")}, StatusAssigned},
		{"pending", Call{AssignedToID: strPtr("d1"), Reassigned: true}, StatusReassignmentPending},
		{"picked up", Call{AssignedToID: strPtr("d1"), PickupTime: &now}, StatusPickedUp},
		{"dropped off", Call{AssignedToID: strPtr("d1"), PickupTime: &now, DropoffTime: &now}, StatusDroppedOff},
		{"canceled wins", Call{AssignedToID: strPtr("d1"), DropoffTime: &now, Canceled: true}, StatusCanceled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.call.Status(); got != tc.want {
				t.Fatalf("Status() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestActive(t *testing.T) {
	now := time.Now()
	if !(&Call{}).Active() {
		t.Fatal("a fresh call is active")
	}
	if (&Call{Canceled: true}).Active() {
		t.Fatal("a canceled call is not active")
	}
	if (&Call{DropoffTime: &now}).Active() {
		t.Fatal("a completed call is not active")
	}
}

func TestVehicleClassValid(t *testing.T) {
	for _, c := range []VehicleClass{ClassSedan, ClassSUV, ClassMinivan, ClassVan12, ClassVan15, ClassLuxurySUV} {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if VehicleClass("hovercraft").Valid() {
		t.Error("unknown class should be invalid")
	}
}
