package manga

import "iter"

// Collect drains a chapter sequence, stopping at the first error.
func Collect(seq iter.Seq2[Chapter, error]) ([]Chapter, error) {
	var out []Chapter
	for ch, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, ch)
	}
	return out, nil
}

// Latest returns the newest chapter of an ascending sequence.
// ok is false when the sequence is empty.
func Latest(seq iter.Seq2[Chapter, error]) (latest Chapter, ok bool, err error) {
	for ch, err := range seq {
		if err != nil {
			return Chapter{}, false, err
		}
		latest, ok = ch, true
	}
	return latest, ok, nil
}

// After returns the chapters that come after the chapter whose URL equals
// chapterURL. When the pointer is not in the list only the newest chapter
// is returned so a lost pointer never floods subscribers.
func After(chapters []Chapter, chapterURL string) []Chapter {
	if len(chapters) == 0 {
		return nil
	}
	for i, ch := range chapters {
		if ch.URL == chapterURL {
			return chapters[i+1:]
		}
	}
	return chapters[len(chapters)-1:]
}
