package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/lumina/internal/backend"
	"github.com/hitoshi/lumina/internal/model"
	"github.com/hitoshi/lumina/internal/repository"
)

// AuthGateway は外部認証サービスの購読・サインアウト操作のインターフェース。
// backend.Clientを抽象化してテスタビリティを向上させる。
type AuthGateway interface {
	// OnAuthStateChange は認証状態変化のリスナーを登録し、解除関数を返す。
	OnAuthStateChange(cb backend.AuthCallback) backend.Unsubscribe
	// SignOut はサインアウトする。
	SignOut(ctx context.Context) error
}

// Mailer は初回プロフィール作成時の通知メール送信インターフェース。
type Mailer interface {
	SendWelcome(ctx context.Context, p *model.Profile) error
}

// MetricsRecorder はセッション関連メトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordSessionPhase(phase string)
	RecordProfileProvisioned()
}

// defaultResolveTimeout はプロフィール解決1回あたりのタイムアウト。
const defaultResolveTimeout = 15 * time.Second

// Controller はSession Stateの唯一の所有者。
// 認証状態変化イベントを購読し、Authenticated状態が常に解決済みの
// Profileを伴うことを保証する。購読はStartで1回だけ取得し、
// Closeで1回だけ解放する。
type Controller struct {
	auth     AuthGateway
	profiles repository.ProfileRepository
	mailer   Mailer          // nil可（送信しない）
	metrics  MetricsRecorder // nil可（記録しない）

	resolveTimeout time.Duration
	baseCtx        context.Context

	mu           sync.Mutex
	state        State
	seq          uint64
	lastEvent    backend.AuthEvent
	lastIdentity *backend.Identity
	watchers     []func(State)
	unsubscribe  backend.Unsubscribe
	started      bool
	closed       bool
}

// Option はControllerの生成オプション。
type Option func(*Controller)

// WithMailer は初回作成時の通知メール送信を有効にする。
func WithMailer(m Mailer) Option {
	return func(c *Controller) { c.mailer = m }
}

// WithMetrics はメトリクス記録を有効にする。
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithResolveTimeout はプロフィール解決のタイムアウトを変更する。
func WithResolveTimeout(d time.Duration) Option {
	return func(c *Controller) { c.resolveTimeout = d }
}

// NewController はControllerを生成する。
func NewController(auth AuthGateway, profiles repository.ProfileRepository, opts ...Option) *Controller {
	c := &Controller{
		auth:           auth,
		profiles:       profiles,
		resolveTimeout: defaultResolveTimeout,
		state:          Initializing(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start は認証状態変化の購読を開始する。
// 2回目以降の呼び出し、Close後の呼び出しはエラーを返す。
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("session controller is closed")
	}
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("session controller already started")
	}
	c.started = true
	c.baseCtx = ctx
	c.mu.Unlock()

	// 購読ハンドルはControllerが排他的に所有し、Closeで必ず解放される。
	unsub := c.auth.OnAuthStateChange(c.handleAuthEvent)

	c.mu.Lock()
	if c.closed {
		// Startと競合してCloseが先行した場合もハンドルを漏らさない
		c.mu.Unlock()
		unsub()
		return fmt.Errorf("session controller is closed")
	}
	c.unsubscribe = unsub
	c.mu.Unlock()
	return nil
}

// Close は購読を解除する。冪等で、2回目以降は何もしない。
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// State は現在のSession Stateを返す。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnChange は状態遷移の通知先を登録する。
// コールバックは遷移確定後にロック外で呼び出される。
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

// SignOut はサインアウトする。
// バックエンドの失効要求が失敗してもログに残すだけで遷移は完了させ、
// 利用者を壊れたAuthenticated状態に取り残さない。
func (c *Controller) SignOut(ctx context.Context) {
	if err := c.auth.SignOut(ctx); err != nil {
		slog.Warn("sign-out request failed, clearing local session anyway",
			slog.String("error", err.Error()),
		)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.seq++
	seq := c.seq
	c.lastEvent, c.lastIdentity = backend.EventSignedOut, nil
	c.mu.Unlock()

	c.commit(seq, Unauthenticated())
}

// Retry はErrored状態からの再解決を行う。
// 最後に受信したイベントを再適用することで、再購読と同じ経路で
// Initializingに戻り、プロフィール解決をやり直す。
func (c *Controller) Retry() {
	c.mu.Lock()
	if c.state.Phase() != PhaseErrored {
		c.mu.Unlock()
		return
	}
	event, identity := c.lastEvent, c.lastIdentity
	c.mu.Unlock()

	c.handleAuthEvent(event, identity)
}

// handleAuthEvent は認証状態変化イベントごとの唯一のエントリポイント。
// イベントは通知元で直列化されるが、Retryとの競合に備えて連番で
// ガードし、古い解決が新しいイベントの結果を上書きしないようにする。
func (c *Controller) handleAuthEvent(event backend.AuthEvent, identity *backend.Identity) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.seq++
	seq := c.seq
	c.lastEvent, c.lastIdentity = event, identity
	c.mu.Unlock()

	if identity == nil {
		c.commit(seq, Unauthenticated())
		return
	}

	c.commit(seq, Initializing())

	ctx := c.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.resolveTimeout)
	defer cancel()

	profile, apiErr := c.resolveProfile(ctx, identity, event)
	if apiErr != nil {
		slog.Error("profile resolution failed",
			slog.String("identity_id", identity.ID),
			slog.String("event", string(event)),
			slog.String("code", apiErr.Code),
			slog.String("error", apiErr.Message),
		)
		c.commit(seq, Errored(apiErr))
		return
	}

	c.commit(seq, Authenticated(profile))
}

// resolveProfile はIdentityに対応するProfileを解決する。
//  1. IDで検索。「行が見つからない」は非致命で、他の失敗は接続起因の致命エラー。
//  2. 未発見かつ新規サインインイベントなら既定値で合成して挿入する。
//     再発火（トークン更新等）では既存行が見つかるため重複挿入は起こらない。
//  3. 未発見かつサインイン以外のイベントは不整合状態として致命エラー。
//  4. 返すProfileのメールはIdentityの現在値を優先する。
func (c *Controller) resolveProfile(ctx context.Context, identity *backend.Identity, event backend.AuthEvent) (*model.Profile, *model.APIError) {
	p, err := c.profiles.FindByID(ctx, identity.ID)
	if err != nil {
		return nil, model.NewProfileFetchFailedError(err.Error())
	}

	provisioned := false
	if p == nil {
		if !event.IsFreshSignIn() {
			// 既存セッションにプロフィール行がない。静かに失敗させず
			// 利用者に見えるエラーとして表面化する。
			return nil, model.NewProfileMissingError(identity.ID)
		}

		created, err := c.profiles.Insert(ctx, NewProfileFromIdentity(identity, time.Now()))
		if err != nil {
			return nil, model.NewProfileCreateFailedError(err.Error())
		}
		p = created
		provisioned = true

		slog.Info("new profile provisioned",
			slog.String("profile_id", p.ID),
			slog.String("email", p.Email),
		)
		if c.metrics != nil {
			c.metrics.RecordProfileProvisioned()
		}
	}

	if identity.Email != "" && p.Email != identity.Email {
		p.Email = identity.Email
	}

	if provisioned && c.mailer != nil {
		// 通知メールの失敗はセッション確立を妨げない
		if err := c.mailer.SendWelcome(ctx, p); err != nil {
			slog.Warn("welcome mail failed",
				slog.String("profile_id", p.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return p, nil
}

// commit は連番が最新の場合のみ状態を確定し、ウォッチャーへ通知する。
func (c *Controller) commit(seq uint64, st State) {
	c.mu.Lock()
	if c.closed || seq != c.seq {
		c.mu.Unlock()
		return
	}
	c.state = st
	watchers := make([]func(State), len(c.watchers))
	copy(watchers, c.watchers)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordSessionPhase(st.Phase().String())
	}
	for _, fn := range watchers {
		fn(st)
	}
}
