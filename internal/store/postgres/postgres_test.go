package postgres

import (
	"database/sql"
	"io/fs"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAssembleKeepsOrderAndPositions(t *testing.T) {
	users := []userRow{{ChatID: 1, Username: "a"}, {ChatID: 2}}
	lists := []listRow{
		{ChatID: 1, Name: "MyFavorites"},
		{ChatID: 1, Name: "09:30"},
		{ChatID: 2, Name: "MyFavorites"},
		{ChatID: 3, Name: "orphan"},
	}
	items := []itemRow{
		{ChatID: 1, ListName: "09:30", Ticker: "SBER", Board: "TQBR",
			Amount:   sql.NullInt64{Int64: 5, Valid: true},
			BuyPrice: decimal.NullDecimal{Decimal: decimal.RequireFromString("250.5"), Valid: true}},
		{ChatID: 1, ListName: "09:30", Ticker: "GAZP", Board: "TQBR"},
		{ChatID: 2, ListName: "missing", Ticker: "X"},
	}
	got := assemble(users, lists, items)
	if len(got) != 2 {
		t.Fatalf("users = %d", len(got))
	}
	if len(got[0].Lists) != 2 || got[0].Lists[1].Name != "09:30" {
		t.Fatalf("lists = %+v", got[0].Lists)
	}
	its := got[0].Lists[1].Items
	if len(its) != 2 || its[0].Ticker != "SBER" || its[1].Ticker != "GAZP" {
		t.Fatalf("items = %+v", its)
	}
	if !its[0].HasPosition() || its[1].Amount != nil || its[1].BuyPrice != nil {
		t.Fatalf("positions not mapped: %+v", its)
	}
	if len(got[1].Lists[0].Items) != 0 {
		t.Fatal("item of unknown list must be ignored")
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(Migrations(), "migrations/*.up.sql")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 up migrations, got %v", names)
	}
}
