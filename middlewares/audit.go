package middlewares

import (
	"github.com/gin-gonic/gin"

	"posescope/audit"
)

// AuditTrail appends an audit entry for every authenticated request after the
// handler runs. Best effort: the sink logs its own failures.
func AuditTrail(sink *audit.DBSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		userID := CurrentUserID(c)
		if userID == 0 {
			return
		}
		_ = c.Request.ParseForm()
		sink.RecordRequest(userID, c.Request.Method, c.Request.URL.Path, c.Request.PostForm.Encode())
	}
}
