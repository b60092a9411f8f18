package audit

import "time"

type Kind string

const (
	KindSignIn      Kind = "sign_in"
	KindSignOut     Kind = "sign_out"
	KindCreateUser  Kind = "create_user"
	KindLinkAccount Kind = "link_account"
	KindRoleChange  Kind = "role_change"
)

type Event struct {
	ID        int64                  `json:"id"`
	Kind      Kind                   `json:"kind"`
	UserID    string                 `json:"user_id"`
	Provider  string                 `json:"provider,omitempty"`
	Tags      []string               `json:"tags"`
	Fields    map[string]interface{} `json:"fields"`
	CreatedAt time.Time              `json:"created_at"`
}

type Filter struct {
	UserID string
	Kind   Kind
	Since  time.Time
	Until  time.Time
	Limit  int
}
