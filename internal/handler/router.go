// Package handler は運用エンドポイントのHTTPルーティングを提供する。
// アプリケーションのデータ面はバックエンドサービスが担うため、
// ここで公開するのはヘルスチェックとメトリクスのみ。
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/lumina/internal/metrics"
	"github.com/hitoshi/lumina/internal/middleware"
	"github.com/hitoshi/lumina/internal/session"
)

// SessionReader は現在のセッション状態の参照インターフェース。
type SessionReader interface {
	State() session.State
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
	Session  SessionReader // nil可（ワーカー単独起動時）
}

// healthResponse は/healthzのレスポンスボディ。
type healthResponse struct {
	Status       string `json:"status"`
	SessionPhase string `json:"session_phase,omitempty"`
}

// NewRouter は運用エンドポイントのルーティングとミドルウェアチェーンを
// 構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		resp := healthResponse{Status: "ok"}
		if deps.Session != nil {
			resp.SessionPhase = deps.Session.State().Phase().String()
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			deps.Logger.Error("failed to write health response",
				slog.String("error", err.Error()),
			)
		}
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	return r
}
