package chat

import "testing"

func TestApplyStatusNeverDecreases(t *testing.T) {
	all := []DeliveryStatus{StatusSending, StatusSent, StatusDelivered, StatusRead}

	for _, current := range all {
		for _, requested := range all {
			got := ApplyStatus(current, requested)
			if StatusOrder(got) < StatusOrder(current) {
				t.Errorf("ApplyStatus(%s, %s) = %s decreased the status", current, requested, got)
			}
		}
	}
}

func TestApplyStatusForwardTransitions(t *testing.T) {
	tests := []struct {
		current   DeliveryStatus
		requested DeliveryStatus
		want      DeliveryStatus
	}{
		{StatusSent, StatusDelivered, StatusDelivered},
		{StatusSent, StatusRead, StatusRead},
		{StatusDelivered, StatusRead, StatusRead},
		{StatusRead, StatusDelivered, StatusRead}, // late DELIVERED after READ is a no-op
		{StatusDelivered, StatusSent, StatusDelivered},
		{StatusSent, StatusSent, StatusSent},
		{StatusSending, StatusSent, StatusSent},
	}

	for _, tt := range tests {
		if got := ApplyStatus(tt.current, tt.requested); got != tt.want {
			t.Errorf("ApplyStatus(%s, %s) = %s, want %s", tt.current, tt.requested, got, tt.want)
		}
	}
}

func TestApplyStatusUnknownRequested(t *testing.T) {
	if got := ApplyStatus(StatusSent, DeliveryStatus("BOGUS")); got != StatusSent {
		t.Errorf("ApplyStatus with unknown requested = %s, want SENT", got)
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []DeliveryStatus{StatusSending, StatusSent, StatusDelivered, StatusRead} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%s) = false", s)
		}
	}
	if ValidStatus("SEEN") {
		t.Error("ValidStatus(SEEN) = true, want false")
	}
}
