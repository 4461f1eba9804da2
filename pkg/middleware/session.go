package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SessionCookie names the cookie carrying the session id.
	SessionCookie = "portal_session"
	sessionKey    = "session_id"
)

// Session makes sure every request carries a session id, issuing a new
// cookie when the browser has none or sends one that is not a UUID.
func Session(ttl time.Duration, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(SessionCookie)
		if err != nil || uuid.Validate(sid) != nil {
			sid = uuid.NewString()
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, sid, int(ttl.Seconds()), "/", "", secure, true)
		c.Set(sessionKey, sid)
		c.Next()
	}
}

// SessionID returns the id assigned by Session, or "" outside it.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}
