package model

import "time"

// TransactionType は献金の種別を表す。
type TransactionType string

const (
	TransactionTithe    TransactionType = "Dízimo"
	TransactionOffering TransactionType = "Oferta"
	TransactionMissions TransactionType = "Missões"
	TransactionBuilding TransactionType = "Construção"
)

// TransactionStatus は献金処理の状態を表す。
type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "Concluído"
	TransactionPending   TransactionStatus = "Pendente"
)

// Transaction は献金履歴の1件を表す。
// このアプリケーションは履歴の閲覧のみを提供し、決済処理自体は扱わない。
type Transaction struct {
	ID        string            `json:"id"`
	ProfileID string            `json:"profile_id"`
	Date      time.Time         `json:"date"`
	Amount    float64           `json:"amount"`
	Type      TransactionType   `json:"type"`
	Status    TransactionStatus `json:"status"`
}
