package loader

// 文言の既定値。利用者向けのためpt-BR。
const (
	// DefaultLoadingText は取得中の表示文言。
	DefaultLoadingText = "Carregando..."
	// DefaultEmptyText は0件時の表示文言。
	DefaultEmptyText = "Nenhum item encontrado."
)

// Branches は状態ごとの描画分岐を表す。
// 判定順は固定で、Loading → Failure → Empty → Data。
// 取得中は古いデータを持っていてもLoadingに分岐する。
type Branches[T, V any] struct {
	Loading func() V
	Failure func(err error) V
	Empty   func() V
	Data    func(items []T) V
}

// Reduce は状態を4分岐のいずれか1つに還元する。
// すべての状態がちょうど1つの分岐に対応し、判定順は常に同じ。
func Reduce[T, V any](st State[T], b Branches[T, V]) V {
	switch {
	case st.Loading:
		return b.Loading()
	case st.Err != nil:
		return b.Failure(st.Err)
	case len(st.Items) == 0:
		return b.Empty()
	default:
		return b.Data(st.Items)
	}
}

// ReduceText は状態を表示文言へ還元する。Loading・Emptyは既定文言、
// Failureはエラー文言、Dataはrenderの結果になる。
func ReduceText[T any](st State[T], render func(items []T) string) string {
	return Reduce(st, Branches[T, string]{
		Loading: func() string { return DefaultLoadingText },
		Failure: func(err error) string { return err.Error() },
		Empty:   func() string { return DefaultEmptyText },
		Data:    render,
	})
}
