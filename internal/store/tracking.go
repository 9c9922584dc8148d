package store

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const trackingPrefix = "BB-"

// trackingNamespace seeds name-based codes for rows backfilled by migration.
var trackingNamespace = uuid.MustParse("5f0c2a4e-8b1d-4c6f-9a3e-7d2b1e0f4c81")

// NewTrackingCode returns a fresh random code such as "BB-4F1A-9C02D7".
func NewTrackingCode() string {
	return formatTrackingCode(uuid.New())
}

// DerivedTrackingCode returns the code for an existing submission row. The same
// row always yields the same code, so a retried backfill persists one value.
func DerivedTrackingCode(id, createdAt int64) string {
	name := "submission:" + strconv.FormatInt(id, 10) + ":" + strconv.FormatInt(createdAt, 10)
	return formatTrackingCode(uuid.NewSHA1(trackingNamespace, []byte(name)))
}

func formatTrackingCode(u uuid.UUID) string {
	h := strings.ToUpper(strings.ReplaceAll(u.String(), "-", ""))
	return trackingPrefix + h[:4] + "-" + h[4:10]
}

// NormalizeTrackingCode trims and upper-cases user input before lookup.
func NormalizeTrackingCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewOrderNumber returns a time-based order number, unique only to the millisecond.
func NewOrderNumber(now time.Time) string {
	return "ORD-" + strconv.FormatInt(now.UnixMilli(), 10)
}
