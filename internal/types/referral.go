package types

// ReferralAccount is one social-login subject enrolled in the rewards flow.
// Subject is the opaque identifier the identity provider yields; the provider
// itself is an external collaborator. At most one wallet is linked per
// account, and a linked wallet is never silently replaced.
type ReferralAccount struct {
	Subject    string `json:"subject" dynamodbav:"subject"`
	Code       string `json:"code" dynamodbav:"code"`
	Wallet     string `json:"wallet,omitempty" dynamodbav:"wallet"`
	ReferredBy string `json:"referred_by,omitempty" dynamodbav:"referred_by"`
	Referrals  int    `json:"referrals" dynamodbav:"referrals"`
	Points     int    `json:"points" dynamodbav:"points"`
	CreatedAt  int64  `json:"created_at" dynamodbav:"created_at"`
}

// ReferralStats is the read model served to the dashboard.
type ReferralStats struct {
	Code      string `json:"code"`
	Wallet    string `json:"wallet,omitempty"`
	Referrals int    `json:"referrals"`
	Points    int    `json:"points"`
}
