package comick

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// label is a chapter/volume designation. The API sends it as a string, a
// number or null depending on the endpoint, so it is normalized to text.
type label string

func (l *label) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = label(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	// 42.0 and 42 designate the same chapter
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		*l = label(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*l = label(n.String())
	return nil
}

// searchItem is one entry of GET v1.0/search
type searchItem struct {
	HID      string `json:"hid"`
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	CoverURL string `json:"cover_url"`
	MDCovers []struct {
		B2Key string `json:"b2key"`
	} `json:"md_covers"`
}

// chapterListResponse is returned by GET comic/{hid}/chapters
type chapterListResponse struct {
	Chapters []chapterItem `json:"chapters"`
	Total    int           `json:"total"`
}

type chapterItem struct {
	HID   string `json:"hid"`
	Chap  label  `json:"chap"`
	Vol   label  `json:"vol"`
	Title string `json:"title"`
	Lang  string `json:"lang"`
}

// chapterDetailResponse is returned by GET chapter/{hid}. A "message" field
// is present instead of the chapter when the API refuses to serve it.
type chapterDetailResponse struct {
	Message *string `json:"message"`
	Chapter *struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"chapter"`
}

// feedEntry is one item of the "recently updated" chapter feed
type feedEntry struct {
	HID   string `json:"hid"`
	Chap  label  `json:"chap"`
	Comic *struct {
		HID         string `json:"hid"`
		LastChapter label  `json:"last_chapter"`
	} `json:"md_comics"`
}
