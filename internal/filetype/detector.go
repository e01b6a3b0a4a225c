package filetype

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Kind is the processing route for an input file.
type Kind string

const (
	KindImage       Kind = "image"
	KindPDF         Kind = "pdf"
	KindUnsupported Kind = "unsupported"
)

// decodable lists the image formats imagerender has a decoder registered for.
var decodable = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
	"image/webp": true,
}

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	Kind        Kind
	Description string
}

// Supported reports whether the file can be split.
func (i *FileTypeInfo) Supported() bool { return i.Kind != KindUnsupported }

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type using magic bytes, not filename
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	info := classify(mtype)
	log.Debug().Str("mime", info.MIMEType).Str("kind", string(info.Kind)).Str("file", filePath).Msg("detected file type")
	return info, nil
}

// DetectBytes classifies an in-memory payload, e.g. the head of an upload.
func (d *Detector) DetectBytes(data []byte) *FileTypeInfo {
	return classify(mimetype.Detect(data))
}

func classify(mtype *mimetype.MIME) *FileTypeInfo {
	// strip parameters such as "; charset=binary"
	mimeType, _, _ := strings.Cut(mtype.String(), ";")
	info := &FileTypeInfo{
		MIMEType:  mimeType,
		Extension: mtype.Extension(),
	}

	switch {
	case mimeType == "application/pdf":
		info.Kind = KindPDF
		info.Description = "PDF document"
	case decodable[mimeType]:
		info.Kind = KindImage
		info.Description = "Scanned image"
	case strings.HasPrefix(mimeType, "image/"):
		info.Kind = KindUnsupported
		info.Description = fmt.Sprintf("Image format without decoder: %s", mimeType)
	default:
		info.Kind = KindUnsupported
		info.Description = fmt.Sprintf("Unsupported file type: %s", mimeType)
	}
	return info
}
