package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// AuthEvent は認証状態変化イベントの種別を表す。
type AuthEvent string

const (
	// EventInitialSession はプロセス起動時のセッション復元イベント。
	// アクティブなIdentityが存在しない場合はnil Identityで通知される。
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	// EventSignedIn は明示的なサインイン成功イベント。
	EventSignedIn AuthEvent = "SIGNED_IN"
	// EventSignedOut はサインアウトイベント。常にnil Identityで通知される。
	EventSignedOut AuthEvent = "SIGNED_OUT"
	// EventTokenRefreshed はアクセストークンの更新イベント。
	// 新規サインインではないため、プロフィール自動作成のトリガーにならない。
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// IsFreshSignIn はプロフィールの遅延作成を許可するイベントかを返す。
// 初回セッション復元と明示的サインインのみが該当し、トークン更新は含まない。
func (e AuthEvent) IsFreshSignIn() bool {
	return e == EventInitialSession || e == EventSignedIn
}

// Identity は外部認証サービスが管理する認証レコードを表す。
// IDはセッションの生存期間中不変の安定識別子。
// Metadataにはサインアップ時の任意項目（name, phone, group等）が入る。
type Identity struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata"`
}

// MetadataString はメタデータから文字列値を取り出す。未設定なら空文字列。
func (i *Identity) MetadataString(key string) string {
	if i == nil || i.Metadata == nil {
		return ""
	}
	if v, ok := i.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// Session は認証サービスが発行したセッションを表す。
type Session struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in"`
	User         Identity `json:"user"`
}

// AuthCallback は認証状態変化の通知を受け取るコールバック。
// identityはサインアウト時・セッションなしの場合nil。
type AuthCallback func(event AuthEvent, identity *Identity)

// Unsubscribe は購読を解除する。複数回呼んでも安全。
type Unsubscribe func()

// authError はGoTrueのエラーレスポンスを表す。バージョンにより形式が揺れる。
type authError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

func (e *authError) reason() string {
	if e.ErrorDescription != "" {
		return e.ErrorDescription
	}
	if e.Msg != "" {
		return e.Msg
	}
	return e.Error
}

// OnAuthStateChange は認証状態変化のリスナーを登録し、解除関数を返す。
// コールバックはイベント発生順に同期的に呼び出されるため、
// 1つのリスナー内の処理は次のイベントと競合しない。
// 解除関数は冪等で、リスナーの生存期間はリソース取得・解放の
// 規律（登録時取得・破棄時解放）に従って管理すること。
func (c *Client) OnAuthStateChange(cb AuthCallback) Unsubscribe {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = cb
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// emit は登録済みリスナーへイベントを順に通知する。
func (c *Client) emit(event AuthEvent, identity *Identity) {
	c.mu.RLock()
	cbs := make([]AuthCallback, 0, len(c.subs))
	for _, cb := range c.subs {
		cbs = append(cbs, cb)
	}
	c.mu.RUnlock()

	for _, cb := range cbs {
		cb(event, identity)
	}
}

// Identity は現在のセッションのIdentityを返す。未認証ならnil。
func (c *Client) Identity() *Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	u := c.session.User
	return &u
}

// bearerToken はリクエストに付与するトークンを返す。
// セッションがあればアクセストークン、なければ公開キー。
func (c *Client) bearerToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session != nil && c.session.AccessToken != "" {
		return c.session.AccessToken
	}
	return c.anonKey
}

// authRequest はGoTrueエンドポイントへのリクエストを実行する。
func (c *Client) authRequest(ctx context.Context, path string, query string, body any, bearer string) (*Session, error) {
	u := c.baseURL + "/auth/v1/" + path
	if query != "" {
		u += "?" + query
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode auth request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read auth response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr authError
		if jsonErr := json.Unmarshal(data, &apiErr); jsonErr == nil && apiErr.reason() != "" {
			return nil, fmt.Errorf("auth failed: %s", apiErr.reason())
		}
		return nil, fmt.Errorf("auth returned unexpected status %d", resp.StatusCode)
	}

	if len(data) == 0 {
		return nil, nil
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	return &session, nil
}

// SignIn はメールアドレスとパスワードでサインインする。
// 成功するとセッションを保持し、SIGNED_INイベントを通知する。
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	session, err := c.authRequest(ctx, "token", "grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	if err != nil {
		return err
	}

	c.setSession(session)
	c.emit(EventSignedIn, c.Identity())
	return nil
}

// SignUp は新規Identityを作成する。metadataにはname, phone, group等を渡せる。
// 確認メール不要の設定ではセッションが即時発行され、SIGNED_INイベントを通知する。
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) error {
	session, err := c.authRequest(ctx, "signup", "", map[string]any{
		"email":    email,
		"password": password,
		"data":     metadata,
	}, "")
	if err != nil {
		return err
	}

	if session == nil || session.AccessToken == "" {
		// メール確認待ち。セッションはサインイン時に発行される。
		return nil
	}
	c.setSession(session)
	c.emit(EventSignedIn, c.Identity())
	return nil
}

// SignOut はサインアウトする。
// バックエンド側の失効要求が失敗してもローカルセッションは必ず破棄し、
// SIGNED_OUTイベントを通知する（サインアウトが詰まってはならない）。
// 失効要求の失敗はエラーとして返すので、呼び出し側でログに残すこと。
func (c *Client) SignOut(ctx context.Context) error {
	token := c.bearerToken()

	c.setSession(nil)
	c.emit(EventSignedOut, nil)

	_, err := c.authRequest(ctx, "logout", "", nil, token)
	if err != nil {
		return fmt.Errorf("server-side sign-out failed: %w", err)
	}
	return nil
}

// Hydrate は保存済みリフレッシュトークンからセッションを復元し、
// INITIAL_SESSIONイベントを通知する。トークンが空の場合・復元に失敗した
// 場合はnil Identityで通知する（未認証としての起動は正常系）。
func (c *Client) Hydrate(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		c.emit(EventInitialSession, nil)
		return nil
	}

	session, err := c.authRequest(ctx, "token", "grant_type=refresh_token", map[string]string{
		"refresh_token": refreshToken,
	}, "")
	if err != nil {
		c.setSession(nil)
		c.emit(EventInitialSession, nil)
		return fmt.Errorf("session restore failed: %w", err)
	}

	c.setSession(session)
	c.emit(EventInitialSession, c.Identity())
	return nil
}

// Refresh は現在のセッションのアクセストークンを更新し、
// TOKEN_REFRESHEDイベントを通知する。セッションがない場合は何もしない。
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.RLock()
	var refreshToken string
	if c.session != nil {
		refreshToken = c.session.RefreshToken
	}
	c.mu.RUnlock()

	if refreshToken == "" {
		return nil
	}

	session, err := c.authRequest(ctx, "token", "grant_type=refresh_token", map[string]string{
		"refresh_token": refreshToken,
	}, "")
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}

	c.setSession(session)
	c.emit(EventTokenRefreshed, c.Identity())
	return nil
}

// StartAutoRefresh はトークンの定期更新ループを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (c *Client) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				slog.Warn("token refresh failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (c *Client) setSession(session *Session) {
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
}
