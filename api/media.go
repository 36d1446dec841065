package api

import "github.com/dfryer1193/inkblog/blog/domain"

type Media struct {
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	Hash         string `json:"hash"`
	ContentType  string `json:"content_type"`
	Type         string `json:"type"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func NewMedia(m *domain.Media, url string) Media {
	return Media{
		Name:         m.Name,
		OriginalName: m.OriginalName,
		Hash:         m.Hash,
		ContentType:  m.ContentType,
		Type:         string(m.Kind()),
		Size:         m.Size,
		URL:          url,
		CreatedAt:    Time(m.CreatedAt),
		UpdatedAt:    Time(m.UpdatedAt),
	}
}
