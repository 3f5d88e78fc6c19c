// Package session はアプリケーション全体の認証状態を管理する。
//
// プロセス全体で単一のSession Stateを保持し、外部認証サービスからの
// 状態変化イベントだけを遷移のトリガーとする。Authenticated状態は
// 常に解決済みのProfileを伴うことを保証する。
package session

import "github.com/hitoshi/lumina/internal/model"

// Phase はSession Stateの局面を表す。
type Phase int

const (
	// PhaseInitializing は起動直後またはリトライ中。イベント待ち。
	PhaseInitializing Phase = iota
	// PhaseUnauthenticated はアクティブなIdentityが存在しない状態。
	PhaseUnauthenticated
	// PhaseAuthenticated はProfile解決済みの認証状態。
	PhaseAuthenticated
	// PhaseErrored はプロフィール解決の致命的失敗。リトライとサインアウトが脱出経路。
	PhaseErrored
)

// String はログ・メトリクス用のラベルを返す。
func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// State はSession Stateのタグ付き値。
// コンストラクタ経由でのみ生成され、「ProfileなしのAuthenticated」や
// 「loadingかつerrored」のような不正な組み合わせは表現できない。
type State struct {
	phase   Phase
	profile *model.Profile
	err     *model.APIError
}

// Initializing は初期化中の状態を返す。
func Initializing() State {
	return State{phase: PhaseInitializing}
}

// Unauthenticated は未認証の状態を返す。
func Unauthenticated() State {
	return State{phase: PhaseUnauthenticated}
}

// Authenticated は解決済みProfileを伴う認証状態を返す。
// pがnilの場合はpanicする。呼び出し側のバグであり到達してはならない。
func Authenticated(p *model.Profile) State {
	if p == nil {
		panic("session: Authenticated state requires a resolved profile")
	}
	return State{phase: PhaseAuthenticated, profile: p}
}

// Errored はプロフィール解決失敗の状態を返す。
func Errored(err *model.APIError) State {
	if err == nil {
		panic("session: Errored state requires an error")
	}
	return State{phase: PhaseErrored, err: err}
}

// Phase は現在の局面を返す。
func (s State) Phase() Phase {
	return s.phase
}

// Profile は解決済みProfileを返す。Authenticated以外ではnil。
func (s State) Profile() *model.Profile {
	return s.profile
}

// Err は解決失敗の詳細を返す。Errored以外ではnil。
func (s State) Err() *model.APIError {
	return s.err
}
