// Package notify はプロフィール作成時の通知メール送信を提供する。
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"github.com/hitoshi/lumina/internal/model"
)

// WelcomeMailer はResend API経由で歓迎メールを送信する。
// session.Mailerを実装する。送信失敗はセッション確立を妨げないため、
// 呼び出し側はエラーをログに残すだけでよい。
type WelcomeMailer struct {
	client *resend.Client
	from   string
}

// NewWelcomeMailer はWelcomeMailerの新しいインスタンスを生成する。
func NewWelcomeMailer(apiKey, from string) *WelcomeMailer {
	return &WelcomeMailer{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// SendWelcome は初回サインインした会員に歓迎メールを送信する。
func (m *WelcomeMailer) SendWelcome(ctx context.Context, p *model.Profile) error {
	if p.Email == "" {
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{p.Email},
		Subject: "Bem-vindo à nossa comunidade!",
		Html:    welcomeBody(p),
	}

	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		slog.Error("welcome mail send failed",
			slog.String("profile_id", p.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to send welcome mail: %w", err)
	}

	slog.Info("welcome mail sent",
		slog.String("profile_id", p.ID),
		slog.String("message_id", sent.Id),
	)
	return nil
}

// welcomeBody は歓迎メールのHTML本文を生成する。
func welcomeBody(p *model.Profile) string {
	return fmt.Sprintf(
		"<h1>Olá, %s!</h1>"+
			"<p>Seja bem-vindo à nossa comunidade. Seu perfil foi criado e você já pode "+
			"acompanhar os estudos bíblicos, eventos e transmissões.</p>"+
			"<p>Que bom ter você conosco!</p>",
		p.Name,
	)
}
