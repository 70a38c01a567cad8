package domain

import (
	"testing"
	"time"
)

func TestRegNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "lower case normalizes", input: "eng-219-036/2025", want: true},
		{name: "canonical", input: "ENG-219-036/2025", want: true},
		{name: "surrounding spaces", input: "  abc-123-456/7890 ", want: true},
		{name: "missing dashes", input: "ENG219036/2025", want: false},
		{name: "short year", input: "ENG-219-036/25", want: false},
		{name: "digits in prefix", input: "EN1-219-036/2025", want: false},
		{name: "empty", input: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidRegNumber(tt.input); got != tt.want {
				t.Errorf("ValidRegNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	if got := NormalizeRegNumber("eng-219-036/2025"); got != "ENG-219-036/2025" {
		t.Errorf("NormalizeRegNumber = %q", got)
	}
}

func TestMobileAndPIN(t *testing.T) {
	if !ValidMobile("0712 345 678") {
		t.Error("spaced mobile should be valid")
	}
	if !ValidMobile("071-234-5678") {
		t.Error("dashed mobile should be valid")
	}
	if ValidMobile("071234567") {
		t.Error("9 digits should be invalid")
	}
	for _, pin := range []string{"1234", "12345", "123456", "0000"} {
		if !ValidPIN(pin) {
			t.Errorf("pin %q should be valid", pin)
		}
	}
	for _, pin := range []string{"123", "1234567", "12a4", ""} {
		if ValidPIN(pin) {
			t.Errorf("pin %q should be invalid", pin)
		}
	}
}

func TestValidPhone(t *testing.T) {
	if !ValidPhone("0712345678") || !ValidPhone("+254712345678") || !ValidPhone("0712 345 678") {
		t.Error("expected valid phones")
	}
	if ValidPhone("0012345678") || ValidPhone("12345") {
		t.Error("expected invalid phones")
	}
}

func TestRentalEndAndCost(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	if got := RentalEnd(start, 3); !got.Equal(start.Add(3 * time.Hour)) {
		t.Errorf("RentalEnd = %v", got)
	}
	b := Bike{Price: 80}
	if got := b.RentalCost(3); got != 240 {
		t.Errorf("RentalCost = %v, want 240", got)
	}
}

func TestCollectionMarkers(t *testing.T) {
	for _, c := range []Collection{Bikes, Rentals, Messages} {
		key, ok := c.MarkerKey()
		if !ok || key != string(c)+"_update_ts" {
			t.Errorf("%s marker = %q, %v", c, key, ok)
		}
	}
	if _, ok := Users.MarkerKey(); ok {
		t.Error("users must not carry a marker")
	}
	if SessionKey(CurrentUserKey, "") != "currentUser" || SessionKey(CurrentUserKey, "abc") != "currentUser:abc" {
		t.Error("unexpected session key")
	}
}
