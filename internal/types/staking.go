package types

// TxKind is the user-initiated operation a Transaction tracks.
type TxKind string

const (
	TxStake   TxKind = "stake"
	TxUnstake TxKind = "unstake"
)

// TxStage is the lifecycle stage of a Transaction. The only legal transitions
// are pending→completed and pending→failed; both targets are terminal.
type TxStage string

const (
	StagePending   TxStage = "pending"
	StageCompleted TxStage = "completed"
	StageFailed    TxStage = "failed"
)

// Terminal reports whether the stage admits no further transitions.
func (s TxStage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Transaction is one user-initiated stake or unstake action. ID is generated
// locally at submission time; it is not a chain transaction id. The same ID is
// round-tripped to the compute process as the Reference tag on the signed
// submission so failed-operation records can be matched back.
type Transaction struct {
	ID           string  `json:"id"`
	Kind         TxKind  `json:"kind"`
	TokenAddress string  `json:"token_address"`
	TokenSymbol  string  `json:"token_symbol"`
	Amount       float64 `json:"amount"`
	Address      string  `json:"address"`
	PositionID   string  `json:"position_id,omitempty"`
	CreatedAt    int64   `json:"created_at"`
	Stage        TxStage `json:"stage"`
	FailReason   string  `json:"fail_reason,omitempty"`
	FailedAt     int64   `json:"failed_at,omitempty"`
	// EstimatedSeconds is a UI hint only; zero means no estimate.
	EstimatedSeconds int `json:"estimated_seconds,omitempty"`
	Checks           int `json:"checks,omitempty"`
}

// Position is one staking position as reported by the compute process.
type Position struct {
	ID           string  `json:"id"`
	TokenAddress string  `json:"token_address"`
	TokenSymbol  string  `json:"token_symbol"`
	Amount       float64 `json:"amount"`
	Address      string  `json:"address"`
	StakedAt     int64   `json:"staked_at"`
}

// PendingStake is the local persistent marker written at submission time. It
// only decides whether background polling should resume after a restart; the
// transaction book, not this marker, is the authoritative in-session state.
type PendingStake struct {
	ID           string  `json:"id" dynamodbav:"id"`
	Address      string  `json:"address" dynamodbav:"address"`
	Kind         TxKind  `json:"kind" dynamodbav:"kind"`
	TokenAddress string  `json:"token_address" dynamodbav:"token_address"`
	TokenSymbol  string  `json:"token_symbol" dynamodbav:"token_symbol"`
	Amount       float64 `json:"amount" dynamodbav:"amount"`
	PositionID   string  `json:"position_id,omitempty" dynamodbav:"position_id"`
	CreatedAt    int64   `json:"created_at" dynamodbav:"created_at"`
}

// FailureRecord is one entry of the compute process's failed-operations
// lookup. Reference carries the local transaction id attached at submission.
type FailureRecord struct {
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
	FailedAt  int64  `json:"failed_at"`
}

// Dashboard is the derived per-user summary recomputed on every refresh.
type Dashboard struct {
	Address       string  `json:"address"`
	PositionCount int     `json:"position_count"`
	TotalStaked   float64 `json:"total_staked"`
	// Coverage is the stake-weighted IL coverage across positions, 0..1.
	Coverage  float64 `json:"coverage"`
	UpdatedAt int64   `json:"updated_at"`
}

// Session is an issued wallet session. The wallet extension's permission
// ceremony happens upstream; the service only tracks address↔token bindings.
type Session struct {
	Token     string `json:"token"`
	Address   string `json:"address"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
}
