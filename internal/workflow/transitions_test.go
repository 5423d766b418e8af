package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	testCases := []struct {
		action Action
		from   Status
		to     Status
	}{
		{ActionRequest, StatusAvailable, StatusRequested},
		{ActionApprove, StatusRequested, StatusApproved},
		{ActionReject, StatusRequested, StatusAvailable},
		{ActionReceive, StatusApproved, StatusReceived},
	}

	for _, tc := range testCases {
		t.Run(string(tc.action), func(t *testing.T) {
			transition, ok := Lookup(tc.action)
			assert.True(t, ok)
			assert.Equal(t, tc.from, transition.From)
			assert.Equal(t, tc.to, transition.To)
		})
	}

	_, ok := Lookup(Action("cancel"))
	assert.False(t, ok)
}

func TestCanApply(t *testing.T) {
	statuses := []Status{StatusAvailable, StatusRequested, StatusApproved, StatusReceived}

	allowed := map[Action]Status{
		ActionRequest: StatusAvailable,
		ActionApprove: StatusRequested,
		ActionReject:  StatusRequested,
		ActionReceive: StatusApproved,
	}

	for action, from := range allowed {
		for _, status := range statuses {
			got := CanApply(action, status)
			if status == from {
				assert.True(t, got, "%s should be legal from %s", action, status)
			} else {
				assert.False(t, got, "%s should be illegal from %s", action, status)
			}
		}
	}
}

func TestCanApplyUnknownAction(t *testing.T) {
	assert.False(t, CanApply(Action("cancel"), StatusRequested))
}

func TestIsValidStatus(t *testing.T) {
	assert.True(t, IsValidStatus(StatusAvailable))
	assert.True(t, IsValidStatus(StatusReceived))
	assert.False(t, IsValidStatus(Status("pending")))
	assert.False(t, IsValidStatus(Status("")))
}
