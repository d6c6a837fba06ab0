package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"double-auction/src/engine"
)

// Event is one input row. Seed rows rest without matching.
type Event struct {
	engine.OrderEvent
	Seed bool
	Line int
}

type ParseError struct {
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: field %s: %v", e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var errUnknownValue = errors.New("unknown value")

const numColumns = 7

// EventReader decodes rows of
// traderID,clientOrderID,timestamp,type,side,price,quantity.
// A header row is skipped when present.
type EventReader struct {
	r       *csv.Reader
	records int
}

func NewEventReader(in io.Reader) *EventReader {
	r := csv.NewReader(in)
	r.FieldsPerRecord = numColumns
	r.TrimLeadingSpace = true
	r.Comment = '#'
	return &EventReader{r: r}
}

func (er *EventReader) Next() (Event, error) {
	for {
		row, err := er.r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, fmt.Errorf("read events: %w", err)
		}
		er.records++
		// file line, counting comments and blank lines
		line, _ := er.r.FieldPos(0)

		// edge case: header row
		if er.records == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "traderID") {
			continue
		}
		return parseRow(row, line)
	}
}

func parseRow(row []string, line int) (Event, error) {
	ev := Event{Line: line}

	ints := []struct {
		name string
		dst  *int64
		col  int
	}{
		{"traderID", &ev.TraderID, 0},
		{"clientOrderID", &ev.ClientOrderID, 1},
		{"timestamp", &ev.Timestamp, 2},
		{"price", &ev.Price, 5},
		{"quantity", &ev.Quantity, 6},
	}
	for _, f := range ints {
		v, err := strconv.ParseInt(strings.TrimSpace(row[f.col]), 10, 64)
		if err != nil {
			return Event{}, &ParseError{Line: line, Field: f.name, Err: err}
		}
		*f.dst = v
	}

	typ, seed, err := parseType(row[3])
	if err != nil {
		return Event{}, &ParseError{Line: line, Field: "type", Err: err}
	}
	ev.Type, ev.Seed = typ, seed

	side, err := parseSide(row[4])
	if err != nil {
		return Event{}, &ParseError{Line: line, Field: "side", Err: err}
	}
	ev.Side = side

	return ev, nil
}

func parseType(s string) (engine.EventType, bool, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADD", "1":
		return engine.EventAdd, false, nil
	case "CANCEL", "2":
		return engine.EventCancel, false, nil
	case "MODIFY", "3":
		return engine.EventModify, false, nil
	case "SEED":
		return engine.EventAdd, true, nil
	}
	return 0, false, fmt.Errorf("%w %q", errUnknownValue, s)
}

func parseSide(s string) (engine.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "1":
		return engine.SideBuy, nil
	case "SELL", "2":
		return engine.SideSell, nil
	}
	return 0, fmt.Errorf("%w %q", errUnknownValue, s)
}
