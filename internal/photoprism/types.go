package photoprism

// Album represents a PhotoPrism album
type Album struct {
	UID         string `json:"UID"`
	Title       string `json:"Title"`
	Description string `json:"Description"`
	PhotoCount  int    `json:"PhotoCount"`
	Type        string `json:"Type"`
	CreatedAt   string `json:"CreatedAt"`
}

// Photo represents a PhotoPrism photo search result
type Photo struct {
	UID          string `json:"UID"`
	Title        string `json:"Title"`
	Type         string `json:"Type"`
	Hash         string `json:"Hash"`
	Width        int    `json:"Width"`
	Height       int    `json:"Height"`
	OriginalName string `json:"OriginalName"` // Original filename when uploaded
	FileName     string `json:"FileName"`     // Current filename
	Name         string `json:"Name"`         // Internal name
}

// DisplayName returns the most human friendly name PhotoPrism knows.
func (p Photo) DisplayName() string {
	switch {
	case p.OriginalName != "":
		return p.OriginalName
	case p.FileName != "":
		return p.FileName
	case p.Title != "":
		return p.Title
	}
	return p.UID
}
