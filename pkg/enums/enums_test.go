package enums

import "testing"

func TestParseSlotWindow(t *testing.T) {
	got, err := ParseSlotWindow("EVENING")
	if err != nil || got != SlotWindowEvening {
		t.Fatalf("expected EVENING, got %q err=%v", got, err)
	}
	if _, err := ParseSlotWindow("evening"); err == nil {
		t.Fatalf("expected lower-case window to be rejected")
	}
}

func TestSlotWindowRankIsChronological(t *testing.T) {
	windows := SlotWindows()
	for i := 1; i < len(windows); i++ {
		if windows[i-1].Rank() >= windows[i].Rank() {
			t.Fatalf("windows out of order: %v", windows)
		}
	}
	if SlotWindow("NIGHT").Rank() != len(windows) {
		t.Fatalf("unknown window should sort last")
	}
}

func TestOrderStatusClassification(t *testing.T) {
	if !OrderStatusCanceled.IsTerminal() || !OrderStatusDelivered.IsTerminal() {
		t.Fatalf("canceled and delivered must be terminal")
	}
	if OrderStatusPaid.IsTerminal() {
		t.Fatalf("paid must not be terminal")
	}
	if OrderStatusPaid.IsFulfilment() || OrderStatusCanceled.IsFulfilment() {
		t.Fatalf("paid and canceled are not plain fulfilment writes")
	}
	if !OrderStatusOutForDelivery.IsFulfilment() {
		t.Fatalf("out for delivery is a fulfilment status")
	}
}

func TestReservationStatusIsActive(t *testing.T) {
	for _, status := range []ReservationStatus{ReservationStatusHeld, ReservationStatusConfirmed} {
		if !status.IsActive() {
			t.Fatalf("%s should be active", status)
		}
	}
	for _, status := range []ReservationStatus{ReservationStatusNone, ReservationStatusReleased, ReservationStatusExpired} {
		if status.IsActive() {
			t.Fatalf("%s should not be active", status)
		}
	}
}

func TestParseErrorsNameTheKind(t *testing.T) {
	_, err := ParseMovementType("RETURN")
	if err == nil || err.Error() != `invalid movement type "RETURN"` {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := ParseStaffRole("admin"); err != nil {
		t.Fatalf("admin should parse: %v", err)
	}
	if OutboxEventType("coupon_redeemed").IsValid() {
		t.Fatalf("unknown event type must be invalid")
	}
}

func TestSlotWindowsReturnsCopy(t *testing.T) {
	windows := SlotWindows()
	windows[0] = "NIGHT"
	if SlotWindows()[0] != SlotWindowMorning {
		t.Fatalf("caller mutated the shared window list")
	}
}
