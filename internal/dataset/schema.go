// Package dataset loads the raw customer, activity and plan tables and repairs
// them into a consistent, typed relational model.
package dataset

// Source names. These are also the backend table names of the cleaned tables.
const (
	Customers = "customers"
	Activity  = "activity"
	Plans     = "plans"
)

// SourceNames lists the raw sources in load order.
var SourceNames = []string{Customers, Activity, Plans}

// KeyColumn joins every source.
const KeyColumn = "customer_id"

// UnknownCustomer fills a missing customer_name.
const UnknownCustomer = "Unknown Customer"

var (
	// activityStringNumeric are declared numeric but commonly exported as text.
	activityStringNumeric = []string{"contacts", "tags", "saved_replies"}

	// activityCounts are plain count columns; nulls become 0.
	activityCounts = []string{
		"docs_sites", "mailboxes", "regular_users", "monthly_active_users",
		"paid_users", "workflows", "integrations", "beacons", "light_users",
		"all_answers_contacts", "all_resolutions",
	}

	planDates = []string{"close_date", "start_date", "end_date", "last_reply_date"}

	planFlags = []string{"advanced_api_access", "api_rate_limit_increase", "advanced_security"}
)

// Provenance tells whether a table came from its source file or was synthesized.
type Provenance string

const (
	FromFile  Provenance = "file"
	Synthetic Provenance = "sample"
)

// Files maps a source name to its file name inside the data directory.
type Files map[string]string

// DefaultFiles returns the conventional export file names.
func DefaultFiles() Files {
	return Files{
		Customers: "customer.csv",
		Activity:  "customer_activity.csv",
		Plans:     "plan.csv",
	}
}
