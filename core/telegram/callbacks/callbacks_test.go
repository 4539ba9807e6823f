package callbacks

import (
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		data, unique, payload string
	}{
		{"\fitem_show|09:30|SBER", "item_show", "09:30|SBER"},
		{"\\fdel_cancel", "del_cancel", ""},
		{"find_market|TQBR", "find_market", "TQBR"},
	}
	for _, tc := range cases {
		u, p := ParseCallbackData(&tele.Callback{Data: tc.data})
		if u != tc.unique || p != tc.payload {
			t.Fatalf("%q: got (%q,%q), want (%q,%q)", tc.data, u, p, tc.unique, tc.payload)
		}
	}
	if u, p := ParseCallbackData(nil); u != "" || p != "" {
		t.Fatalf("nil callback: got (%q,%q)", u, p)
	}
}

func TestJoinPayloadAndField(t *testing.T) {
	p := JoinPayload("09:30", "SBER", "", "")
	if p != "09:30|SBER" {
		t.Fatalf("payload = %q", p)
	}
	if got := PayloadField(p, 1); got != "SBER" {
		t.Fatalf("field 1 = %q", got)
	}
	if got := PayloadField(p, 3); got != "" {
		t.Fatalf("field 3 = %q", got)
	}
}

func TestFits(t *testing.T) {
	if !Fits("item_show", "MyFavorites|SBER") {
		t.Fatal("short payload should fit")
	}
	if Fits("item_show", strings.Repeat("x", 60)) {
		t.Fatal("long payload should not fit")
	}
}
