package facts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/keagan/factreel/pkg/util"
)

// Repository persists the fact document. Stages load a record at their start
// and save the updated record at their end; a single process is expected to
// own a document at a time.
type Repository interface {
	LoadDocument(ctx context.Context) (*Document, error)
	SaveDocument(ctx context.Context, doc *Document) error
	Load(ctx context.Context, key string) (Record, error)
	Save(ctx context.Context, key string, rec Record) error
}

// FileRepository stores the document as one indented JSON file
type FileRepository struct {
	path string
}

// NewFileRepository creates a repository backed by the JSON file at path
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Path returns the backing file
func (r *FileRepository) Path() string {
	return r.path
}

// LoadDocument reads the whole document
func (r *FileRepository) LoadDocument(ctx context.Context) (*Document, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", r.path, ErrNotFound)
		}
		return nil, err
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", r.path, err)
	}
	if doc.Facts == nil {
		doc.Facts = make(map[string]Record)
	}
	return doc, nil
}

// SaveDocument rewrites the whole document atomically
func (r *FileRepository) SaveDocument(ctx context.Context, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(r.path, data, 0644)
}

// Load returns a copy of one fact
func (r *FileRepository) Load(ctx context.Context, key string) (Record, error) {
	doc, err := r.LoadDocument(ctx)
	if err != nil {
		return Record{}, err
	}
	return lookup(doc, key)
}

// Save replaces one fact and rewrites the document
func (r *FileRepository) Save(ctx context.Context, key string, rec Record) error {
	doc, err := r.LoadDocument(ctx)
	if errors.Is(err, ErrNotFound) {
		doc = NewDocument("")
	} else if err != nil {
		return err
	}
	doc.Facts[key] = rec.Clone()
	return r.SaveDocument(ctx, doc)
}

func lookup(doc *Document, key string) (Record, error) {
	rec, ok := doc.Facts[key]
	if !ok {
		return Record{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return rec.Clone(), nil
}
