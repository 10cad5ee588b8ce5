package ocigo

// Version is the driver version reported through AttrClientVersion.
const Version = "1.0.0"

const (
	checkSequenceQuery = "/* oci-connector-go */ select count(*) from all_sequences where sequence_name = upper(:1) and sequence_owner = upper(user)"
)

const defaultCharset = "AL32UTF8"

const defaultPrefetch = 100

// SQLSTATE-shaped states of the error record. The engine reports only
// these two, never the full taxonomy.
const (
	stateSuccess      = "00000"
	stateGeneralError = "HY000"
)

const (
	reset   = "\033[0m"
	red     = "\033[31m"
	green   = "\033[32m"
	yellow  = "\033[33m"
	blue    = "\033[34m"
	magenta = "\033[35m"
	cyan    = "\033[36m"
)
