package auth

import "context"

// Session is the caller identity threaded explicitly into every service
// call. CoupleID is empty until the user creates or joins a couple.
type Session struct {
	UserID   uint64
	CoupleID string
}

func (s Session) HasCouple() bool { return s.CoupleID != "" }

const sessionKey ctxKey = "session"

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}
