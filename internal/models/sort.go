package models

import (
	"fmt"
	"strings"
)

// SortColumn is one of the four sortable listing columns.
type SortColumn string

const (
	SortByName      SortColumn = "Name"
	SortByExtension SortColumn = "Extension"
	SortByDate      SortColumn = "Date"
	SortBySize      SortColumn = "Size"
)

// WireName is the column name the server sorts by.
func (c SortColumn) WireName() string {
	if c == SortByName {
		return "ListName"
	}
	return string(c)
}

// ParseSortColumn accepts the column names case-insensitively, plus the
// short forms shown in the listing header.
func ParseSortColumn(s string) (SortColumn, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name", "listname":
		return SortByName, nil
	case "ext", "extension":
		return SortByExtension, nil
	case "date", "modified":
		return SortByDate, nil
	case "size":
		return SortBySize, nil
	}
	return "", fmt.Errorf("unknown sort column %q (want name, ext, date or size)", s)
}

// SortDirection is Ascending or Descending.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// Flip returns the opposite direction.
func (d SortDirection) Flip() SortDirection {
	if d == Ascending {
		return Descending
	}
	return Ascending
}

// SortState is the active column and direction. Exactly one column is active.
type SortState struct {
	Column    SortColumn
	Direction SortDirection
}

// DefaultSort is the initial listing order.
func DefaultSort() SortState {
	return SortState{Column: SortByName, Direction: Ascending}
}

// Toggle applies a header click: the active column flips direction, any
// other column becomes active in ascending order.
func (s SortState) Toggle(column SortColumn) SortState {
	if s.Column == column {
		return SortState{Column: column, Direction: s.Direction.Flip()}
	}
	return SortState{Column: column, Direction: Ascending}
}

// Arrow returns the header marker for column under this state.
func (s SortState) Arrow(column SortColumn) string {
	if s.Column != column {
		return ""
	}
	if s.Direction == Ascending {
		return "▲"
	}
	return "▼"
}
