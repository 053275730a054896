package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-backend/pkg/config"
)

// Pipeline returns the request pre-processing stages in their fixed order:
// JSON body decoding, cookie decoding, then CORS. Each stage runs for every
// request before routing, so a malformed body is rejected before CORS
// headers are considered.
func Pipeline(cfg *config.Config, logger *zap.Logger) []gin.HandlerFunc {
	return []gin.HandlerFunc{
		BodyDecoder(cfg.Server.BodyLimit),
		CookieDecoder(),
		CORS(cfg.CORS, logger),
	}
}
