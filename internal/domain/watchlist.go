// Package domain holds the watchlist model shared by the store, the dialog
// scenarios and the notification scheduler.
package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultListName is the sentinel name of the list every user owns and can
// never delete.
const DefaultListName = "MyFavorites"

var timeListName = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// TickerItem is one tracked instrument together with the optional position
// used to estimate unrealized P&L.
type TickerItem struct {
	Ticker   string           `json:"ticker"`
	Engine   string           `json:"engine"`
	Market   string           `json:"market"`
	Board    string           `json:"board"`
	Amount   *int64           `json:"amount,omitempty"`
	BuyPrice *decimal.Decimal `json:"buyPrice,omitempty"`
}

// HasPosition reports whether both position size and acquisition price are set.
func (i TickerItem) HasPosition() bool {
	return i.Amount != nil && *i.Amount > 0 && i.BuyPrice != nil
}

// SameInstrument compares ticker and board ignoring case.
func (i TickerItem) SameInstrument(o TickerItem) bool {
	return strings.EqualFold(i.Ticker, o.Ticker) && strings.EqualFold(i.Board, o.Board)
}

// Matches reports whether the item is ticker on board. An empty board
// matches any board.
func (i TickerItem) Matches(ticker, board string) bool {
	if board == "" {
		return strings.EqualFold(i.Ticker, ticker)
	}
	return i.SameInstrument(TickerItem{Ticker: ticker, Board: board})
}

func (i TickerItem) clone() TickerItem {
	out := i
	if i.Amount != nil {
		v := *i.Amount
		out.Amount = &v
	}
	if i.BuyPrice != nil {
		v := *i.BuyPrice
		out.BuyPrice = &v
	}
	return out
}

// WatchList is a named ordered collection of instruments.
type WatchList struct {
	Name  string       `json:"name"`
	Items []TickerItem `json:"items"`
}

// IsDefault reports whether the list is the user's non-deletable default list.
func (l WatchList) IsDefault() bool {
	return strings.EqualFold(l.Name, DefaultListName)
}

// Triggers reports whether the list fires notifications at the given "HH:MM".
func (l WatchList) Triggers(hhmm string) bool {
	return !l.IsDefault() && l.Name == hhmm
}

// ValidateListName checks a candidate name for a new non-default list.
func ValidateListName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if !timeListName.MatchString(name) {
		return ErrInvalidListName
	}
	return nil
}

// User is a registered chat with its watchlists in menu order.
type User struct {
	ChatID   int64       `json:"chatId"`
	Username string      `json:"username,omitempty"`
	Lists    []WatchList `json:"lists"`
}

// NewUser returns a user that already owns the default list.
func NewUser(chatID int64, username string) User {
	u := User{ChatID: chatID, Username: username}
	u.EnsureDefaultList()
	return u
}

// DisplayName returns @username when known, otherwise the chat id.
func (u User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("%d", u.ChatID)
}

// Clone returns a deep copy safe to hand out of the store.
func (u User) Clone() User {
	out := User{ChatID: u.ChatID, Username: u.Username}
	if u.Lists == nil {
		return out
	}
	out.Lists = make([]WatchList, len(u.Lists))
	for i, l := range u.Lists {
		cl := WatchList{Name: l.Name}
		if l.Items != nil {
			cl.Items = make([]TickerItem, len(l.Items))
			for j, it := range l.Items {
				cl.Items[j] = it.clone()
			}
		}
		out.Lists[i] = cl
	}
	return out
}

// EnsureDefaultList adds the default list when missing and reports whether it did.
func (u *User) EnsureDefaultList() bool {
	for _, l := range u.Lists {
		if l.IsDefault() {
			return false
		}
	}
	u.Lists = append([]WatchList{{Name: DefaultListName}}, u.Lists...)
	return true
}

// FindList returns the index of the list with the given name (case-insensitive).
func (u User) FindList(name string) (int, bool) {
	name = strings.TrimSpace(name)
	for i, l := range u.Lists {
		if strings.EqualFold(l.Name, name) {
			return i, true
		}
	}
	return -1, false
}

// List returns a copy of the named list.
func (u User) List(name string) (WatchList, bool) {
	i, ok := u.FindList(name)
	if !ok {
		return WatchList{}, false
	}
	return u.Lists[i], true
}

// DeletableLists returns the lists DeleteList may offer.
func (u User) DeletableLists() []WatchList {
	out := make([]WatchList, 0, len(u.Lists))
	for _, l := range u.Lists {
		if !l.IsDefault() {
			out = append(out, l)
		}
	}
	return out
}

// AddList appends a new empty time-triggered list.
func (u *User) AddList(name string) error {
	name = strings.TrimSpace(name)
	if err := ValidateListName(name); err != nil {
		return err
	}
	if _, exists := u.FindList(name); exists {
		return ErrDuplicateList
	}
	u.Lists = append(u.Lists, WatchList{Name: name})
	return nil
}

// RemoveList deletes a non-default list by name.
func (u *User) RemoveList(name string) error {
	i, ok := u.FindList(name)
	if !ok {
		return ErrListNotFound
	}
	if u.Lists[i].IsDefault() {
		return ErrDefaultList
	}
	u.Lists = append(u.Lists[:i], u.Lists[i+1:]...)
	return nil
}

// AddItem appends an instrument to the named list.
func (u *User) AddItem(listName string, item TickerItem) error {
	i, ok := u.FindList(listName)
	if !ok {
		return ErrListNotFound
	}
	for _, existing := range u.Lists[i].Items {
		if existing.SameInstrument(item) {
			return ErrDuplicateItem
		}
	}
	u.Lists[i].Items = append(u.Lists[i].Items, item)
	return nil
}

// RemoveItem deletes the first item matching ticker and board from the named list.
func (u *User) RemoveItem(listName, ticker, board string) (TickerItem, error) {
	i, ok := u.FindList(listName)
	if !ok {
		return TickerItem{}, ErrListNotFound
	}
	items := u.Lists[i].Items
	for j, it := range items {
		if it.Matches(ticker, board) {
			u.Lists[i].Items = append(items[:j], items[j+1:]...)
			return it, nil
		}
	}
	return TickerItem{}, ErrItemNotFound
}

// FindItem looks an item up in the named list, or in every list when listName is empty.
func (u User) FindItem(listName, ticker, board string) (TickerItem, bool) {
	for _, l := range u.Lists {
		if listName != "" && !strings.EqualFold(l.Name, listName) {
			continue
		}
		for _, it := range l.Items {
			if it.Matches(ticker, board) {
				return it, true
			}
		}
	}
	return TickerItem{}, false
}

// Items returns every tracked item with the list it belongs to, in menu order.
func (u User) Items() []ListedItem {
	var out []ListedItem
	for _, l := range u.Lists {
		for _, it := range l.Items {
			out = append(out, ListedItem{List: l.Name, Item: it})
		}
	}
	return out
}

// ListedItem pairs an item with the name of its list.
type ListedItem struct {
	List string
	Item TickerItem
}
