package timesheet

import "github.com/adiazcan/timesheet-speck-kit-sub001/id"

// ID is the primary identifier type for all persisted entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
