package model

// SmallGroup は小グループ（セルグループ）の1件を表す。
type SmallGroup struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Leader       string `json:"leader"`
	Address      string `json:"address"`
	Day          string `json:"day"`
	Time         string `json:"time"`
	Image        string `json:"image"`
	Neighborhood string `json:"neighborhood"`
}
