package aqua

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"path/filepath"
)

// Object is implemented by every type that participates in the persistence
// model. Embed Doc in the struct to get it.
type Object interface {
	AquaDoc() *Doc
}

// Doc carries the storage identity of an Object: the document id and
// revision, plus the outcome of the last commit.
type Doc struct {
	id       string
	rev      string
	warnings []*ExternalSaveWarning
	err      error

	committing bool
}

func (d *Doc) AquaDoc() *Doc { return d }

func (d *Doc) ID() string  { return d.id }
func (d *Doc) Rev() string { return d.rev }
func (d *Doc) IsNew() bool { return d.rev == "" }

// SetID assigns the id a new object will be stored under. Objects without an
// id get one from the store on their first commit.
func (d *Doc) SetID(id string) {
	d.id = id
}

// Warnings returns external save failures recorded by the last commit.
func (d *Doc) Warnings() []*ExternalSaveWarning {
	return d.warnings
}

// Err returns the error that failed the last commit, if any.
func (d *Doc) Err() error {
	return d.err
}

func (d *Doc) resetCommitState() {
	d.warnings = nil
	d.err = nil
}

// Attachable values are stored as attachments of the document that
// references them.
type Attachable interface {
	io.Reader
	Name() string
}

// File is an in-memory attachment body. Resolving an attachment stub yields
// a *File.
type File struct {
	name        string
	contentType string
	data        []byte
	r           *bytes.Reader
}

var _ io.ReadSeeker = (*File)(nil)

func NewFile(name string, data []byte) *File {
	return &File{name: name, data: data}
}

func newFileWithType(name, contentType string, data []byte) *File {
	return &File{name: name, contentType: contentType, data: data}
}

func (f *File) Name() string  { return f.name }
func (f *File) Bytes() []byte { return f.data }
func (f *File) Len() int      { return len(f.data) }

func (f *File) ContentType() string {
	if f.contentType == "" {
		f.contentType = detectContentType(f.name, f.data)
	}
	return f.contentType
}

func (f *File) Read(p []byte) (int, error) {
	if f.r == nil {
		f.r = bytes.NewReader(f.data)
	}
	return f.r.Read(p)
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.r == nil {
		f.r = bytes.NewReader(f.data)
	}
	return f.r.Seek(offset, whence)
}

func (f *File) respond(name string) (any, error) {
	switch name {
	case "name":
		return f.name, nil
	case "content_type":
		return f.ContentType(), nil
	case "content_length":
		return len(f.data), nil
	case "bytes":
		return f.data, nil
	default:
		return nil, unknownCapabilityErrf("File", name)
	}
}

func detectContentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

func readAttachable(a Attachable) ([]byte, string, error) {
	if f, ok := a.(*File); ok {
		return f.data, f.ContentType(), nil
	}
	data, err := io.ReadAll(a)
	if err != nil {
		return nil, "", err
	}
	if s, ok := a.(io.Seeker); ok {
		_, _ = s.Seek(0, io.SeekStart)
	}
	return data, detectContentType(a.Name(), data), nil
}
