package videos

import (
	"mime/multipart"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rovercam/rovercam/internal/media"
)

// VideoDto is the wire representation of a catalog record. CreatedAt is
// rendered as ISO-8601 UTC with a trailing 'Z'.
type VideoDto struct {
	ID        int64  `json:"id"`
	Slug      string `json:"slug"`
	OrigName  string `json:"orig_name"`
	Title     string `json:"title"`
	Mime      string `json:"mime"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"created_at"`
}

func newDto(video *media.Video) VideoDto {
	return VideoDto{
		ID:        video.ID,
		Slug:      video.Slug,
		OrigName:  video.OrigName,
		Title:     video.TitleOrEmpty(),
		Mime:      video.Mime,
		Size:      video.SizeBytes,
		CreatedAt: video.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func newDtos(videos []*media.Video) []VideoDto {
	dtos := make([]VideoDto, 0, len(videos))
	for _, video := range videos {
		dtos = append(dtos, newDto(video))
	}

	return dtos
}

// detectMime infers the content type of an upload. The filename extension
// is authoritative when recognised; otherwise the content itself is
// sniffed, falling back to the generic video type for anything the
// sniffer cannot improve on.
func detectMime(fileHeader *multipart.FileHeader) string {
	if inferred := media.MimeTypeForFilename(fileHeader.Filename); inferred != media.DefaultMimeType {
		return inferred
	}

	if src, err := fileHeader.Open(); err == nil {
		defer src.Close()
		if detected, err := mimetype.DetectReader(src); err == nil && detected.String() != "application/octet-stream" {
			return detected.String()
		}
	}

	return media.DefaultMimeType
}
