package chat

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/m3rciful/moexbot/core/telegram/callbacks"
	"github.com/m3rciful/moexbot/internal/domain"
)

// Kind names an inline-button action. Values are telebot unique keys.
type Kind string

const (
	KindFindMarket    Kind = "find_market"
	KindFindAdd       Kind = "find_add"
	KindFindTo        Kind = "find_to"
	KindFindCancel    Kind = "find_cancel"
	KindDeleteSelect  Kind = "del_select"
	KindDeleteConfirm Kind = "del_confirm"
	KindDeleteCancel  Kind = "del_cancel"
	KindItemShow      Kind = "item_show"
	KindItemAnalyze   Kind = "item_analyze"
	KindItemRemove    Kind = "item_remove"
	KindInterval      Kind = "interval"
)

// Kinds lists every action the bot registers a callback route for.
var Kinds = []Kind{
	KindFindMarket, KindFindAdd, KindFindTo, KindFindCancel,
	KindDeleteSelect, KindDeleteConfirm, KindDeleteCancel,
	KindItemShow, KindItemAnalyze, KindItemRemove,
	KindInterval,
}

var (
	ErrUnknownAction = errors.New("unknown callback action")
	ErrBadPayload    = errors.New("malformed callback payload")
)

// Action is a structured inline-button payload.
type Action struct {
	Kind     Kind
	List     string
	Ticker   string
	Board    string
	Market   string
	Interval domain.Interval
}

// Encode returns telebot's unique key and payload for the action.
func (a Action) Encode() (unique, payload string) {
	switch a.Kind {
	case KindFindMarket:
		payload = callbacks.JoinPayload(a.Market)
	case KindFindTo, KindDeleteSelect, KindDeleteConfirm:
		payload = callbacks.JoinPayload(a.List)
	case KindItemShow, KindItemAnalyze, KindItemRemove:
		payload = callbacks.JoinPayload(a.List, a.Ticker, a.Board)
	case KindInterval:
		payload = strconv.Itoa(int(a.Interval))
	}
	return string(a.Kind), payload
}

// DecodeAction parses a unique key and payload produced by Encode.
func DecodeAction(unique, payload string) (Action, error) {
	a := Action{Kind: Kind(unique)}
	field := func(i int) string { return callbacks.PayloadField(payload, i) }
	switch a.Kind {
	case KindFindAdd, KindFindCancel, KindDeleteCancel:
	case KindFindMarket:
		a.Market = field(0)
		if a.Market == "" {
			return Action{}, fmt.Errorf("%s: %w", unique, ErrBadPayload)
		}
	case KindFindTo, KindDeleteSelect, KindDeleteConfirm:
		a.List = field(0)
		if a.List == "" {
			return Action{}, fmt.Errorf("%s: %w", unique, ErrBadPayload)
		}
	case KindItemShow, KindItemAnalyze, KindItemRemove:
		a.List, a.Ticker, a.Board = field(0), field(1), field(2)
		if a.List == "" || a.Ticker == "" {
			return Action{}, fmt.Errorf("%s: %w", unique, ErrBadPayload)
		}
	case KindInterval:
		n, err := strconv.Atoi(field(0))
		if err != nil {
			return Action{}, fmt.Errorf("%s: %w", unique, ErrBadPayload)
		}
		a.Interval = domain.Interval(n)
	default:
		return Action{}, fmt.Errorf("%q: %w", unique, ErrUnknownAction)
	}
	return a, nil
}
