package odata

// QueryType classifies a parsed request.
type QueryType string

const (
	QueryHelp          QueryType = "help"
	QueryCreateAccount QueryType = "create_account"
	QuerySelect        QueryType = "select"
	QueryInsert        QueryType = "insert"
	QueryUpdate        QueryType = "update"
	QueryDelete        QueryType = "delete"
	QueryServiceDef    QueryType = "service_def"
	QueryMetadata      QueryType = "metadata"
	QueryCreateTable   QueryType = "create_table"
	QueryDropTable     QueryType = "drop_table"
	QueryCreateBucket  QueryType = "create_bucket"
	QueryDropBucket    QueryType = "drop_bucket"
	QueryGrant         QueryType = "grant"
	QueryRevoke        QueryType = "revoke"
	QueryResetPassword QueryType = "reset_password"
	QueryDeleteAccount QueryType = "delete_account"
)

// systemOps are the operations addressed as POST /{schema}/s/{op}.
var systemOps = map[QueryType]bool{
	QueryResetPassword: true,
	QueryDeleteAccount: true,
	QueryCreateBucket:  true,
	QueryDropBucket:    true,
	QueryCreateTable:   true,
	QueryDropTable:     true,
	QueryGrant:         true,
	QueryRevoke:        true,
}

// IsSystemOp reports whether op is a valid system operation name.
func IsSystemOp(op string) bool {
	return systemOps[QueryType(op)]
}

// Descriptor is the typed form of an inbound request.
type Descriptor struct {
	QueryType  QueryType `json:"queryType"`
	Schema     string    `json:"schema,omitempty"`
	Table      string    `json:"table,omitempty"`
	ResetToken string    `json:"resetToken,omitempty"`
	SQL        string    `json:"sql,omitempty"`

	// Clauses holds the compiled query-string clauses, sorted by ID.
	Clauses []Clause `json:"-"`
}

// ClauseID ranks a SQL fragment within a statement.
type ClauseID int

const (
	ClauseSelect ClauseID = 1
	ClauseFrom   ClauseID = 2
	ClauseWhere  ClauseID = 3
	ClauseGroup  ClauseID = 4
	ClauseHaving ClauseID = 5
	ClauseOrder  ClauseID = 6
	ClauseLimit  ClauseID = 7
)

// Clause is one SQL fragment.
type Clause struct {
	ID   ClauseID
	Text string
}
