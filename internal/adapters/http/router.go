package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/adapters/signal"
	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/auth"
	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/core"
)

const clientTokenKey = "ct"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware gives every browser a stable id kept in the
// session cookie; it only correlates log lines.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Signal    *signal.SignalWSController
	Chatrooms *app.Chatrooms
	Registry  *app.Registry
	Verifier  core.TokenVerifier
	Auth      *auth.Authenticator
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("ChatSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": d.Registry.Count()})
	})

	ws := func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws chat endpoint hit")
		d.Signal.HandleChat(ctx, c)
	}
	// Browsers pass the token as a query parameter; other clients may
	// send an Authorization header on either route.
	r.GET("/ws/:room_id", ws)
	r.GET("/api/ws/:room_id", ws)

	api := r.Group("/api")
	if d.Auth != nil {
		login := &LoginHandler{Auth: d.Auth}
		api.POST("/auth/token", login.Token)
	}

	chat := &ChatHandler{Chatrooms: d.Chatrooms}
	rooms := api.Group("/chatrooms", AuthMiddleware(d.Verifier))
	rooms.GET("", chat.List)
	rooms.GET("/mine", chat.ListMine)
	rooms.POST("", chat.Create)
	rooms.POST("/platoon", chat.JoinPlatoon)
	rooms.POST("/:room_id/members", chat.Join)
	rooms.GET("/:room_id/online", chat.Online)

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
