package tunein

import "encoding/xml"

// The TuneIn directory answers in OPML. Audio outlines may be nested under
// grouping outlines, so parsing walks the tree.
type opmlDoc struct {
	XMLName xml.Name  `xml:"opml"`
	Body    opmlBody  `xml:"body"`
	Head    *opmlHead `xml:"head"`
}

type opmlHead struct {
	Title  string `xml:"title"`
	Status int    `xml:"status"`
}

type opmlBody struct {
	Outlines []outline `xml:"outline"`
}

type outline struct {
	Type        string    `xml:"type,attr"`
	Text        string    `xml:"text,attr"`
	URL         string    `xml:"URL,attr"`
	Bitrate     int       `xml:"bitrate,attr"`
	GuideID     string    `xml:"guide_id,attr"`
	Subtext     string    `xml:"subtext,attr"`
	GenreID     string    `xml:"genre_id,attr"`
	Reliability int       `xml:"reliability,attr"`
	Children    []outline `xml:"outline"`
}

func parseStations(data []byte) ([]Station, error) {
	var doc opmlDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var stations []Station
	var walk func(outlines []outline)
	walk = func(outlines []outline) {
		for _, o := range outlines {
			if o.Type == "audio" && o.URL != "" {
				stations = append(stations, Station{
					ID:          o.GuideID,
					Name:        o.Text,
					URL:         o.URL,
					Bitrate:     o.Bitrate,
					Subtext:     o.Subtext,
					GenreID:     o.GenreID,
					Reliability: o.Reliability,
				})
			}
			walk(o.Children)
		}
	}
	walk(doc.Body.Outlines)

	return stations, nil
}
