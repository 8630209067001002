package httpx

type ctxKey string

const (
	// CtxKeyIdentityID carries the owning identity's internal ID once the
	// session gateway has verified the request.
	CtxKeyIdentityID ctxKey = "identity_id"

	// CtxKeyDID carries the verified identity's DID.
	CtxKeyDID ctxKey = "did"

	// CtxKeySessionID carries the verified session identifier.
	CtxKeySessionID ctxKey = "session_id"
)
