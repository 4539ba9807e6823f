package menu

import (
	"testing"

	"github.com/m3rciful/moexbot/internal/chat"
	"github.com/m3rciful/moexbot/internal/domain"
)

func TestIsCancel(t *testing.T) {
	for _, in := range []string{Cancel, " /cancel ", "/CANCEL"} {
		if !IsCancel(in) {
			t.Fatalf("%q should cancel", in)
		}
	}
	if IsCancel("cancel") {
		t.Fatal("plain word must not cancel")
	}
}

func TestUserListsLayout(t *testing.T) {
	u := domain.NewUser(1, "")
	for _, n := range []string{"09:30", "10:00"} {
		if err := u.AddList(n); err != nil {
			t.Fatal(err)
		}
	}
	kb := UserLists(u)
	if len(kb.Rows) != 4 {
		t.Fatalf("rows = %v", kb.Rows)
	}
	if kb.Rows[0][0] != domain.DefaultListName || kb.Rows[0][1] != "09:30" || kb.Rows[1][0] != "10:00" {
		t.Fatalf("rows = %v", kb.Rows)
	}
	if kb.Rows[3][0] != Back {
		t.Fatalf("last row = %v", kb.Rows[3])
	}
}

func TestInline(t *testing.T) {
	btns := make([]chat.InlineButton, 5)
	kb := Inline(btns, 2)
	if len(kb.Rows) != 3 || len(kb.Rows[2]) != 1 {
		t.Fatalf("rows = %d", len(kb.Rows))
	}
}
