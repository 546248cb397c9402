package feed

import (
	"encoding/json"
	"fmt"
)

// Contract identifies the instrument a historical request is for.
// It is passed by value; the toolkit only deals in equities.
type Contract struct {
	Symbol       string `json:"symbol"`
	SecurityType string `json:"sec_type"`
	Exchange     string `json:"exchange"`
	Currency     string `json:"currency"`
}

// HistoricalRequest asks the feed for a bounded range of bars. ReqID is chosen by
// the caller and correlates every asynchronous response with this request; it must
// not be reused until the prior request with the same id reached a terminal state.
type HistoricalRequest struct {
	ReqID      int      `json:"req_id"`
	Contract   Contract `json:"contract"`
	Duration   string   `json:"duration"` // lookback window, e.g. "5 D"
	BarSize    string   `json:"bar_size"` // e.g. "1 hour"
	WhatToShow string   `json:"what_to_show"`
}

// BarEvent is one OHLCV sample pushed by the feed for an outstanding request.
// Date arrives either as epoch seconds or as a feed-specific date string; it is
// kept verbatim here and normalized during series assembly.
type BarEvent struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// UnmarshalJSON accepts the date field as either a JSON string or a bare number.
func (b *BarEvent) UnmarshalJSON(data []byte) error {
	type alias BarEvent
	aux := struct {
		Date json.RawMessage `json:"date"`
		*alias
	}{alias: (*alias)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Date) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(aux.Date, &s); err == nil {
		b.Date = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(aux.Date, &n); err != nil {
		return fmt.Errorf("bar date is neither string nor number: %s", aux.Date)
	}
	b.Date = n.String()
	return nil
}

// Inbound message kinds on the event stream.
const (
	msgTypeBar   = "bar"
	msgTypeEnd   = "end"
	msgTypeError = "error"
)

// Outbound operation kinds.
const opHistorical = "historical"

// message is the wire envelope for every inbound event.
type message struct {
	Type  string    `json:"type"`
	ReqID int       `json:"req_id"`
	Bar   *BarEvent `json:"bar,omitempty"`
	Code  int       `json:"code,omitempty"`
	Msg   string    `json:"msg,omitempty"`
}

// request is the wire envelope for an outbound historical-data request.
type request struct {
	Op string `json:"op"`
	HistoricalRequest
}

// informationalCodes are feed connectivity heartbeats; they are status, not failure.
var informationalCodes = map[int]bool{
	2104: true,
	2106: true,
	2158: true,
}

// Informational reports whether a feed error code is a status heartbeat that
// must never be treated as a request failure.
func Informational(code int) bool {
	return informationalCodes[code]
}
