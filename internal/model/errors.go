// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。Messageは利用者向けのためpt-BR。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: config, auth, profile, collection, admin
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeConfigMissing       = "CONFIG_MISSING"
	ErrCodeAuthFailed          = "AUTH_FAILED"
	ErrCodeProfileFetchFailed  = "PROFILE_FETCH_FAILED"
	ErrCodeProfileMissing      = "PROFILE_MISSING"
	ErrCodeProfileCreateFailed = "PROFILE_CREATE_FAILED"
	ErrCodeFetchFailed         = "FETCH_FAILED"
	ErrCodeCommitFailed        = "COMMIT_FAILED"
	ErrCodeDraftConflict       = "DRAFT_CONFLICT"
)

// NewConfigMissingError はバックエンド資格情報の未設定エラーを生成する。
// 起動時のみ発生し、コード修正が必要なためリトライ経路を持たない。
func NewConfigMissingError(keys []string) *APIError {
	return &APIError{
		Code:     ErrCodeConfigMissing,
		Message:  fmt.Sprintf("Configuração do backend ausente: %v", keys),
		Category: "config",
		Action:   "Defina as variáveis de ambiente do backend (URL e chave pública) e reinicie o aplicativo.",
	}
}

// NewAuthFailedError は認証操作の失敗エラーを生成する。
func NewAuthFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  fmt.Sprintf("Falha na autenticação: %s", reason),
		Category: "auth",
		Action:   "Verifique seu email e senha e tente novamente.",
	}
}

// NewProfileFetchFailedError はプロフィール取得の接続・設定起因の失敗エラーを生成する。
// 「行が見つからない」とは区別される致命的な失敗に対して使う。
func NewProfileFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileFetchFailed,
		Message:  fmt.Sprintf("Não foi possível carregar seu perfil: %s", reason),
		Category: "profile",
		Action:   "Verifique sua conexão e tente novamente, ou saia e entre de novo.",
	}
}

// NewProfileMissingError はサインイン以外のイベントでプロフィール行が
// 存在しない不整合状態のエラーを生成する。
func NewProfileMissingError(identityID string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileMissing,
		Message:  fmt.Sprintf("Perfil não encontrado para a sessão atual: %s", identityID),
		Category: "profile",
		Action:   "Saia da conta e entre novamente para recriar seu perfil.",
	}
}

// NewProfileCreateFailedError はプロフィール自動作成の失敗エラーを生成する。
func NewProfileCreateFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileCreateFailed,
		Message:  fmt.Sprintf("Não foi possível criar seu perfil: %s", reason),
		Category: "profile",
		Action:   "Tente novamente. Se o problema persistir, contate a equipe da igreja.",
	}
}

// NewFetchFailedError はコレクション取得の失敗エラーを生成する。
// 各ビュー内でローカルに表示され、アプリ全体を停止させない。
func NewFetchFailedError(collection, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("Erro ao carregar dados (%s): %s", collection, reason),
		Category: "collection",
		Action:   "Toque em \"Tentar Novamente\" para recarregar.",
	}
}

// NewCommitFailedError は管理画面での保存失敗エラーを生成する。
// ドラフトは破棄されず、修正して再送信できる。
func NewCommitFailedError(collection, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeCommitFailed,
		Message:  fmt.Sprintf("Erro ao salvar (%s): %s", collection, reason),
		Category: "admin",
		Action:   "Revise os campos e salve novamente.",
	}
}

// NewDraftConflictError は別のドラフトが既に開いている場合のエラーを生成する。
// StudyとEventのドラフトは同時に1つまで。
func NewDraftConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeDraftConflict,
		Message:  "Já existe uma edição em andamento.",
		Category: "admin",
		Action:   "Salve ou descarte a edição atual antes de abrir outra.",
	}
}
