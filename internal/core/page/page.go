// Package page décrit les noeuds affichés par les deux pages.
// Les contrôleurs les modifient, l'adapter web les rend avec html/template.
package page

import "net/url"

type State int

const (
	StateIdle State = iota
	StateLoading
	StateDisplayed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateDisplayed:
		return "displayed"
	case StateErrored:
		return "errored"
	default:
		return "idle"
	}
}

// Textes affichés (repris tels quels des pages d'origine)
const (
	TextLoading        = "Loading..."
	TextEmpty          = "Belum ada berita."
	TextLoadFailed     = "Gagal load: "
	TextMissingInput   = "Gambar dan keterangan wajib diisi."
	TextUploading      = "Uploading..."
	TextUploadOK       = "Upload berhasil ✅"
	TextUploadFailed   = "Upload gagal: "
	TextPreviewFailed  = "Pratinjau gagal: "
	TextPreviewHint    = "Belum ada gambar dipilih."
	TextMissingID      = "ID berita tidak ditemukan di URL. Contoh: detail.html?id=1"
	TextDetailFailed   = "Gagal load detail: "
	FallbackUploadFail = "Upload failed"
)

// Status est une zone de texte masquable.
type Status struct {
	Text   string
	Hidden bool
}

// Card est une entrée de la liste, déjà formatée.
type Card struct {
	ID       string
	Href     string
	ImageURL string
	Caption  string
	Time     string
}

// List est la zone #posts. Placeholder n'est affiché que si Cards est vide.
type List struct {
	State       State
	Placeholder string
	Cards       []Card
}

type PreviewBox struct {
	Handle   string
	ImageURL string
	Visible  bool
}

// HintVisible : le texte d'aide remplace l'image tant qu'aucun fichier n'est choisi.
func (p PreviewBox) HintVisible() bool { return !p.Visible }

type UploadForm struct {
	Caption string
	Preview PreviewBox
}

// Feed regroupe les noeuds de la page liste.
type Feed struct {
	Form   UploadForm
	Status Status
	List   List
}

func NewFeed() *Feed {
	return &Feed{}
}

// Clone copie les noeuds pour un rendu hors verrou.
func (f *Feed) Clone() Feed {
	c := *f
	c.List.Cards = append([]Card(nil), f.List.Cards...)
	return c
}

type DetailBody struct {
	Visible  bool
	ImageURL string
	Caption  string
	Meta     string
}

// Detail regroupe les noeuds de la page détail (#detailStatus, #detailWrap).
type Detail struct {
	State  State
	Status Status
	Body   DetailBody
}

func NewDetail() *Detail {
	return &Detail{}
}

// PreviewURL est la route qui sert la version d'affichage d'un handle.
func PreviewURL(handle string) string {
	return "/preview/" + url.PathEscape(handle)
}

// DetailHref est le lien d'une carte vers la page détail.
func DetailHref(id string) string {
	return "/detail.html?" + url.Values{"id": {id}}.Encode()
}
