package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleTenant Role = "tenant"
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleTenant
}

func (r *Role) Scan(value interface{}) error {
	s, err := scanString(value)
	if err != nil {
		return err
	}
	role := Role(s)
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", s)
	}
	*r = role
	return nil
}

func (r Role) Value() (driver.Value, error) {
	return string(r), nil
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

func (s *PaymentStatus) Scan(value interface{}) error {
	v, err := scanString(value)
	if err != nil {
		return err
	}
	switch PaymentStatus(v) {
	case PaymentStatusPending, PaymentStatusPaid:
		*s = PaymentStatus(v)
	default:
		return fmt.Errorf("invalid payment status %q", v)
	}
	return nil
}

func (s PaymentStatus) Value() (driver.Value, error) {
	return string(s), nil
}

type ComplaintStatus string

const (
	ComplaintStatusOpen       ComplaintStatus = "Open"
	ComplaintStatusInProgress ComplaintStatus = "In Progress"
	ComplaintStatusResolved   ComplaintStatus = "Resolved"
)

func (s ComplaintStatus) Valid() bool {
	switch s {
	case ComplaintStatusOpen, ComplaintStatusInProgress, ComplaintStatusResolved:
		return true
	}
	return false
}

func (s *ComplaintStatus) Scan(value interface{}) error {
	v, err := scanString(value)
	if err != nil {
		return err
	}
	status := ComplaintStatus(v)
	if !status.Valid() {
		return fmt.Errorf("invalid complaint status %q", v)
	}
	*s = status
	return nil
}

func (s ComplaintStatus) Value() (driver.Value, error) {
	return string(s), nil
}

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusPublished  = "PUBLISHED"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

const LedgerEventTypeReadingEntered = "ReadingEntered"

func scanString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", errors.New("value must be a string")
	}
}
