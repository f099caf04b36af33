package model

import (
	"fmt"
	"strings"
)

// Status is the canonical payment request approval state.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Statuses lists every canonical status in display order.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

// NormalizeStatus maps an upstream approval value to a canonical Status.
// Unknown and empty values map to Pending so no record is ever dropped.
func NormalizeStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved":
		return StatusApproved
	case "rejected", "declined":
		return StatusRejected
	default:
		return StatusPending
	}
}

// ParseStatus is the strict counterpart of NormalizeStatus, used for values
// read back from the store and for user input.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}
