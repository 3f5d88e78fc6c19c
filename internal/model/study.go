package model

// StudyCategory は聖書研究のカテゴリを表す。
// 値は表示言語（pt-BR）のままバックエンドに保存される。
type StudyCategory string

const (
	CategoryNewTestament StudyCategory = "Novo Testamento"
	CategoryOldTestament StudyCategory = "Velho Testamento"
	CategoryThematic     StudyCategory = "Temáticos"
	CategoryFamily       StudyCategory = "Família"
	CategoryYouth        StudyCategory = "Jovens"
)

// StudyDay は研究プラン内の1日分のステップを表す。
// Dayは1始まりの連番で、途中の日を削除した場合は必ず振り直される。
type StudyDay struct {
	Day                int    `json:"day"`
	Title              string `json:"title"`
	Content            string `json:"content"`
	ScriptureReference string `json:"scripture_reference,omitempty"`
}

// BibleStudy は聖書研究プランを表す。
// DaysはバックエンドではJSONB列として1行に埋め込まれる。
type BibleStudy struct {
	ID          string        `json:"id,omitempty"`
	Title       string        `json:"title"`
	CoverImage  string        `json:"cover_image"`
	Description string        `json:"description"`
	Content     string        `json:"content"`
	Days        []StudyDay    `json:"days"`
	Author      string        `json:"author"`
	Duration    string        `json:"duration"`
	Category    StudyCategory `json:"category"`
}
