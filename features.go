package neoql

// Features holds the caller-owned switches consumed by schema construction
// and query compilation.
type Features struct {
	// CaseInsensitive enables the caseInsensitive string operators in where
	// arguments and authorization rules.
	CaseInsensitive bool `yaml:"caseInsensitive" env:"NEOQL_CASE_INSENSITIVE"`

	// Pagination applies to types without a @limit directive.
	Pagination PaginationPolicy `yaml:"pagination"`
}

// PaginationPolicy caps page sizes of types that carry no @limit directive.
// Zero values mean unbounded.
type PaginationPolicy struct {
	// DefaultLimit is used when no page-size argument is supplied.
	DefaultLimit int `yaml:"defaultLimit" env:"NEOQL_DEFAULT_LIMIT"`
	// MaxLimit clamps any requested page size.
	MaxLimit int `yaml:"maxLimit" env:"NEOQL_MAX_LIMIT"`
}

// Unbounded reports whether the policy leaves pages uncapped.
func (p PaginationPolicy) Unbounded() bool {
	return p.DefaultLimit <= 0 && p.MaxLimit <= 0
}
