package model

import (
	"errors"
	"testing"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from, to string
		ok       bool
	}{
		{ItemStatusActive, ItemStatusResolved, true},
		{ItemStatusActive, ItemStatusInactive, true},
		{ItemStatusInactive, ItemStatusActive, true},
		{ItemStatusActive, ItemStatusActive, false},
		{ItemStatusResolved, ItemStatusActive, false},
		{ItemStatusResolved, ItemStatusInactive, false},
		{ItemStatusInactive, ItemStatusResolved, false},
		{"", ItemStatusActive, false},
		{ItemStatusActive, "claimed", false},
	}

	for _, tt := range tests {
		err := CheckTransition(tt.from, tt.to)
		if tt.ok && err != nil {
			t.Errorf("CheckTransition(%q, %q) = %v, want nil", tt.from, tt.to, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("CheckTransition(%q, %q) = %v, want ErrInvalidTransition", tt.from, tt.to, err)
		}
	}
}

func TestValidItemTypeAndStatus(t *testing.T) {
	if !ValidItemType(ItemTypeLost) || !ValidItemType(ItemTypeFound) {
		t.Error("expected lost and found to be valid types")
	}
	if ValidItemType("stolen") || ValidItemType("") {
		t.Error("expected unknown types to be invalid")
	}
	for _, s := range []string{ItemStatusActive, ItemStatusResolved, ItemStatusInactive} {
		if !ValidItemStatus(s) {
			t.Errorf("expected %q to be a valid status", s)
		}
	}
	if ValidItemStatus("claimed") {
		t.Error("expected claimed to be invalid")
	}
}

func TestCanModify(t *testing.T) {
	item := &Item{UserID: 7}
	if !CanModify(7, RoleUser, item) {
		t.Error("owner should be able to modify")
	}
	if CanModify(8, RoleUser, item) {
		t.Error("other users should not be able to modify")
	}
	if !CanModify(8, RoleAdmin, item) {
		t.Error("admin should be able to modify")
	}
	if CanModify(7, RoleUser, nil) {
		t.Error("nil item should not be modifiable")
	}
}

func TestNextStatuses(t *testing.T) {
	if got := NextStatuses(ItemStatusActive); len(got) != 2 {
		t.Errorf("active: expected 2 next statuses, got %v", got)
	}
	if got := NextStatuses(ItemStatusInactive); len(got) != 1 || got[0] != ItemStatusActive {
		t.Errorf("inactive: expected [active], got %v", got)
	}
	if got := NextStatuses(ItemStatusResolved); len(got) != 0 {
		t.Errorf("resolved: expected none, got %v", got)
	}
}
