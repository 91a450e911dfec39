package port

import "context"

// UnknownNickname is rendered when a sender or participant reference can no
// longer be resolved (e.g. the account was deleted). The chat subsystem must
// degrade to this rather than fail.
const UnknownNickname = "unknown user"

// User is the display slice of a marketplace account.
type User struct {
	ID       int64  `db:"id" json:"id"`
	Nickname string `db:"nickname" json:"nickname"`
}

// UserDirectory hydrates sender/participant display data.
// FindUserByID returns (nil, nil) when the user does not exist.
type UserDirectory interface {
	FindUserByID(ctx context.Context, id int64) (*User, error)
}

// NicknameOrUnknown resolves a nickname, degrading to UnknownNickname when
// the account is gone or the directory errors.
func NicknameOrUnknown(ctx context.Context, dir UserDirectory, id int64) string {
	u, err := dir.FindUserByID(ctx, id)
	if err != nil || u == nil {
		return UnknownNickname
	}
	return u.Nickname
}
