package notification

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"github.com/uts-dev/notification/internal/mail"
	notificationdb "github.com/uts-dev/notification/internal/notification/db"
	"github.com/uts-dev/notification/internal/presence"
	"github.com/uts-dev/notification/internal/realtime"
	"github.com/uts-dev/notification/pkg/middleware"
)

// Server は通知サービスのHTTPサーバー。
// WebSocketゲートウェイ、即時配信、永続通知ストアのAPIをまとめて提供する。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *notificationdb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// presence はユーザーのオンライン状態レジストリ。
	presence *presence.Registry
	// gateway はWebSocketのリアルタイム配信ゲートウェイ。
	gateway *realtime.Gateway
	// dispatcher はエフェメラルなマルチチャネル即時配信。
	dispatcher *Dispatcher
	// store は既読管理付きの永続通知ストア。
	store *Store
}

// NewServer は新しい通知サーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string, sender mail.Sender) (*Server, error) {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "/data/notification.db"
	}

	sqlDB, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		router.Use(middleware.CORS(strings.Split(origins, ",")))
	}

	registry := presence.NewRegistry()
	gateway := realtime.NewGateway(registry)
	queries := notificationdb.New(sqlDB)

	s := &Server{
		router:     router,
		port:       port,
		queries:    queries,
		db:         sqlDB,
		presence:   registry,
		gateway:    gateway,
		dispatcher: NewDispatcher(sender, gateway),
		store:      NewStore(queries, gateway),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "dev-secret-key"
	}

	// WebSocket接続エンドポイント。認証はregisterイベントで行う。
	s.router.GET("/socket", s.gateway.HandleWebSocket())

	// プレゼンス照会
	s.router.GET("/presence/org/:orgId/online", s.handleOnlineUsersInOrg())
	s.router.POST("/presence/users/status", s.handleUsersStatus())
	s.router.GET("/user/:userId/online", s.handleUserOnline())
	s.router.GET("/stats", s.handleStats())

	// 即時配信（サービス間API）
	s.router.POST("/send", s.handleSend())
	s.router.POST("/send-bulk", s.handleSendBulk())
	s.router.POST("/broadcast", s.handleBroadcast())

	// 永続通知の作成（サービス間API、認証なしの内部経路）
	s.router.POST("/notifications/internal", s.handleCreateNotification())

	// 永続通知の参照・操作（エンドユーザーAPI）
	notifications := s.router.Group("/notifications")
	notifications.Use(middleware.JWTAuth(jwtSecret))
	{
		// 通知一覧取得（ページネーション付き）
		notifications.GET("", s.handleListNotifications())
		// 未読通知一覧取得
		notifications.GET("/unread", s.handleListUnread())
		// 未読件数取得
		notifications.GET("/unread-count", s.handleUnreadCount())
		// 通知を既読にする
		notifications.PATCH("/:id/read", s.handleMarkRead())
		// 全通知を既読にする
		notifications.PATCH("/mark-all-read", s.handleMarkAllRead())
		// 通知削除
		notifications.DELETE("/:id", s.handleDeleteNotification())
		// 全通知削除
		notifications.DELETE("", s.handleDeleteAllNotifications())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notification"})
	})
}

// handleOnlineUsersInOrg は組織内のオンラインユーザー一覧取得を処理するハンドラを返す。
func (s *Server) handleOnlineUsersInOrg() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.Param("orgId")
		users := s.gateway.OnlineUsersInOrg(orgID)
		c.JSON(http.StatusOK, gin.H{"orgId": orgID, "onlineUsers": users, "count": len(users)})
	}
}

// usersStatusRequest はユーザー状態一括照会リクエストのJSON構造。
type usersStatusRequest struct {
	// UserIDs は照会対象のユーザーIDの一覧。
	UserIDs []string `json:"userIds" binding:"required"`
}

// handleUsersStatus は複数ユーザーのオンライン状態一括照会を処理するハンドラを返す。
func (s *Server) handleUsersStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req usersStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"statuses": s.gateway.UsersStatus(req.UserIDs)})
	}
}

// handleUserOnline は単一ユーザーのオンライン状態照会を処理するハンドラを返す。
func (s *Server) handleUserOnline() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		c.JSON(http.StatusOK, gin.H{"userId": userID, "isOnline": s.gateway.IsOnline(userID)})
	}
}

// handleStats はゲートウェイの接続統計取得を処理するハンドラを返す。
func (s *Server) handleStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		activeUsers, totalConnections := s.gateway.Stats()
		c.JSON(http.StatusOK, gin.H{
			"activeUsers":      activeUsers,
			"totalConnections": totalConnections,
		})
	}
}

// handleSend は即時配信を処理するハンドラを返す。
// 検証エラーは400、配信の成否は結果のstatusフィールドで表現する。
func (s *Server) handleSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DispatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		result, err := s.dispatcher.Send(c.Request.Context(), req)
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Reason})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の配信に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// handleSendBulk は複数件の即時配信を処理するハンドラを返す。
// 各要素の失敗は該当要素の結果に閉じ、全体としては常に200を返す。
func (s *Server) handleSendBulk() gin.HandlerFunc {
	return func(c *gin.Context) {
		var reqs []DispatchRequest
		if err := c.ShouldBindJSON(&reqs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		results := s.dispatcher.SendBulk(c.Request.Context(), reqs)
		c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
	}
}

// handleBroadcast は全接続への一斉配信を処理するハンドラを返す。
func (s *Server) handleBroadcast() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input BroadcastInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		result, err := s.dispatcher.Broadcast(input)
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Reason})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "一斉配信に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// handleCreateNotification は永続通知の作成を処理するハンドラを返す。
// 他サービスからの内部呼び出しを想定しており、通知先ユーザーはリクエストボディで指定する。
func (s *Server) handleCreateNotification() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input CreateInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		created, err := s.store.Create(c.Request.Context(), input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, created)
	}
}

// handleListNotifications は通知一覧取得を処理するハンドラを返す。
// page（0始まり）とsizeのクエリパラメータでページネーションする。
func (s *Server) handleListNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
		size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

		result, err := s.store.List(c.Request.Context(), userID, page, size)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// handleListUnread は未読通知一覧取得を処理するハンドラを返す。
func (s *Server) handleListUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		items, err := s.store.ListUnread(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読通知一覧の取得に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
	}
}

// handleUnreadCount は未読件数取得を処理するハンドラを返す。
func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		count, err := s.store.UnreadCount(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読件数の取得に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"count": count})
	}
}

// handleMarkRead は通知の既読化を処理するハンドラを返す。
// 他ユーザーの通知を指定した場合は存在しない場合と同じく404を返す。
func (s *Server) handleMarkRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		updated, err := s.store.MarkRead(c.Request.Context(), userID, c.Param("id"))
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, updated)
	}
}

// handleMarkAllRead は全通知の既読化を処理するハンドラを返す。
func (s *Server) handleMarkAllRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		marked, err := s.store.MarkAllRead(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の既読処理に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"marked": marked})
	}
}

// handleDeleteNotification は通知の削除を処理するハンドラを返す。
func (s *Server) handleDeleteNotification() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		err := s.store.Delete(c.Request.Context(), userID, c.Param("id"))
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の削除に失敗しました"})
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// handleDeleteAllNotifications は全通知の削除を処理するハンドラを返す。
func (s *Server) handleDeleteAllNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		deleted, err := s.store.DeleteAll(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の削除に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	}
}
