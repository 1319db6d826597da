package dbsnap

// Hooks for tests in the dbsnap_test package.

// SplitAdminURL exposes splitAdminURL so URL handling can be tested without a
// running PostgreSQL server.
var SplitAdminURL = splitAdminURL

// ValidateName exposes validateName for direct table tests.
var ValidateName = validateName

// PgDumpArgs and PgRestoreArgs expose the client tool invocations so argument
// construction can be tested without the PostgreSQL binaries installed.
var (
	PgDumpArgs    = pgDumpArgs
	PgRestoreArgs = pgRestoreArgs
)
